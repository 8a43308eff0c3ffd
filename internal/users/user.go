package users

import "time"

// User represents a row in the users table. The password hash is never
// serialized to clients.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Public is the representation safe to return to clients.
type Public struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Public returns the client-visible fields of the user.
func (u *User) Public() Public {
	return Public{ID: u.ID, Username: u.Username, Email: u.Email}
}
