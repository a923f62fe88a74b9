package domain

import "errors"

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists with that email or username")
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrRankNotFound       = errors.New("user has no ranked score")
	ErrInvalidScore       = errors.New("invalid score value")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPage        = errors.New("invalid page or limit")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInternalError      = errors.New("internal server error")
)

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRankNotFound)
}

// IsValidationError checks if an error is caused by bad caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrInvalidPage) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsConflictError checks if an error is a uniqueness conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrUserExists) || errors.Is(err, ErrUsernameTaken)
}
