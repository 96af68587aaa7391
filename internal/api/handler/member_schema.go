package handler

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type createMemberRequest struct {
	Name    string `json:"name"    validate:"required,max=200"`
	Email   string `json:"email"   validate:"required,email"`
	Phone   string `json:"phone"   validate:"max=50"`
	Address string `json:"address" validate:"max=500"`
	Status  string `json:"status"  validate:"omitempty,oneof=Actif Inactif"`
	Role    string `json:"role"    validate:"omitempty,oneof=admin membre"`
	Doc     string `json:"doc"     validate:"omitempty,oneof=M C"`
	Memo    string `json:"memo"    validate:"max=2000"`
}

type memberResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Status  string `json:"status"`
	Role    string `json:"role"`
	Doc     string `json:"doc"`
	Memo    string `json:"memo"`
}

type listMembersResponse struct {
	Items []memberResponse `json:"items"`
	Total int              `json:"total"`
}

type importResponse struct {
	Imported int      `json:"imported"`
	Skipped  []string `json:"skipped"`
	Error    string   `json:"error,omitempty"`
}
