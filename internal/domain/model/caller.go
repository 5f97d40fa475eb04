package model

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID  string
	Email   string
	IsAdmin bool
}

// CanActFor reports whether the caller may read or modify userID's data.
func (c Caller) CanActFor(userID string) bool {
	return c.IsAdmin || (c.UserID != "" && c.UserID == userID)
}
