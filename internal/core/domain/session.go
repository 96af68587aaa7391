package domain

// DeniedNotice is shown to a user whose account matched no member.
const DeniedNotice = "Accès refusé : membre non autorisé. Veuillez contacter l'ACIM."

// SessionState is the derived view of one session: its credential, the
// member it resolved to and whether resolution is still pending.
type SessionState struct {
	Credential *Credential
	Member     *MemberRecord
	Loading    bool
	Err        error
	// Notice carries a user-facing message, set when access was denied.
	Notice string
}

// LoadingState is the state of a session nothing has been decided about yet.
func LoadingState() SessionState {
	return SessionState{Loading: true}
}

// Authorized reports whether the session settled with a credential and a
// matching member.
func (s SessionState) Authorized() bool {
	return !s.Loading && s.Credential != nil && s.Member != nil
}

// Denied reports whether the session settled after an authorization failure.
func (s SessionState) Denied() bool {
	return !s.Loading && s.Credential == nil && s.Notice != ""
}
