// Package users holds the account profile types returned by the CRM API.
package users

// UserProfile is the authenticated account as reported by GET /auth/me/.
// The client trusts the server for everything beyond the presence of an ID
// and an email address.
type UserProfile struct {
	ID        int64   `json:"id"`
	Email     string  `json:"email"`
	Username  string  `json:"username,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	FullName  *string `json:"full_name,omitempty"`
}

// Valid reports whether the profile carries the minimum identifying fields.
func (u UserProfile) Valid() bool {
	return u.ID != 0 && u.Email != ""
}

// ProfileUpdate is a partial update sent with PATCH /auth/me/. Nil fields are
// omitted from the payload and left untouched by the server.
type ProfileUpdate struct {
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}
