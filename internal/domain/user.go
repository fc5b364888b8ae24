package domain

// UserProfile is the authenticated user as seen by the storefront backend.
type UserProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}
