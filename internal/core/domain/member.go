package domain

// MemberStatus is the membership status shown in the directory.
type MemberStatus string

const (
	StatusActive   MemberStatus = "Actif"
	StatusInactive MemberStatus = "Inactif"
)

// MemberRole is stored on every record. It is not enforced unless the
// service runs with role enforcement enabled.
type MemberRole string

const (
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "membre"
)

// DocType tags the membership document on file: "M", "C" or none.
type DocType string

const (
	DocNone DocType = ""
	DocM    DocType = "M"
	DocC    DocType = "C"
)

// ParseStatus maps free text to a status. Only the exact value "Actif" is
// active; anything else is inactive.
func ParseStatus(s string) MemberStatus {
	if s == string(StatusActive) {
		return StatusActive
	}
	return StatusInactive
}

// ParseRole maps free text to a role. Only the exact value "admin" grants
// the admin role.
func ParseRole(s string) MemberRole {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleMember
}

// ParseDoc keeps "M" and "C" and drops every other value.
func ParseDoc(s string) DocType {
	switch DocType(s) {
	case DocM, DocC:
		return DocType(s)
	default:
		return DocNone
	}
}

// MemberRecord is one entry of the member directory. Email is the lookup key
// used to authorize a credential.
type MemberRecord struct {
	ID      string       `json:"id" bson:"_id,omitempty"`
	Name    string       `json:"name" bson:"name"`
	Email   string       `json:"email" bson:"email"`
	Phone   string       `json:"phone" bson:"phone"`
	Address string       `json:"address" bson:"address"`
	Status  MemberStatus `json:"status" bson:"status"`
	Role    MemberRole   `json:"role" bson:"role"`
	Doc     DocType      `json:"doc" bson:"doc"`
	Memo    string       `json:"memo" bson:"memo"`
}
