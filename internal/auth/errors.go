package auth

import "errors"

var (
	ErrUsernamePasswordRequired = errors.New("Username and password are required")
	ErrPasswordMismatch         = errors.New("Passwords do not match")
	ErrUsernameTaken            = errors.New("Username already taken")
	ErrInvalidUsername          = errors.New("Invalid username")
	ErrIncorrectPassword        = errors.New("Incorrect password")
	ErrNotAuthenticated         = errors.New("Not authenticated")
)
