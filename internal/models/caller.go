package models

// UserRole określa rolę użytkownika w systemie
type UserRole string

const (
	RoleMember UserRole = "member" // Uczestnik wymiany
	RoleAdmin  UserRole = "admin"  // Administrator - może usuwać książki i działać za innych
)

// Caller to uwierzytelniony wywołujący przekazany przez warstwę autoryzacji
type Caller struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// IsAdmin sprawdza czy wywołujący jest administratorem
func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// CanActFor sprawdza czy wywołujący może działać w imieniu użytkownika
func (c *Caller) CanActFor(userID string) bool {
	if c == nil {
		return false
	}
	return c.UserID == userID || c.IsAdmin()
}
