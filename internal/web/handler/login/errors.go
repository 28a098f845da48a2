package login

import "errors"

var (
	// ErrInvalidCredentials is returned when the username or password is wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidRequestBody is returned when the login request body cannot be parsed.
	ErrInvalidRequestBody = errors.New("invalid request body")
)
