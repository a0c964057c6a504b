package domain

// Role is a user account role.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
)

// Identity is the locally held representation of who is signed in. It is
// derived from successful auth calls and destroyed together with the
// credential at logout.
type Identity struct {
	Email  string `json:"email"`
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
