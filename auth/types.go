package auth

import "errors"

var ErrNotAuthenticated = errors.New("not authenticated")

// User is the authenticated user record returned by the backend and
// persisted locally so a reload does not require a new login.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}
