package auth

import "errors"

// ErrEmailExists indicates a duplicate email address.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists indicates a duplicate username.
var ErrUsernameExists = errors.New("username already exists")

// ErrUserNotFound is returned by repository writes that target a missing account.
var ErrUserNotFound = errors.New("user not found")

// Error codes carried by apperrors.AppError values returned from Service.
const (
	CodeInvalidInput       = "invalid_input"
	CodeInvalidCredentials = "invalid_credentials"
	CodeConflict           = "conflict"
	CodeTokenExpired       = "token_expired"
	CodeTokenInvalid       = "token_invalid"
	CodeUserNotFound       = "user_not_found"
	CodeInternal           = "auth_error"
)

const invalidCredentialsMessage = "Invalid credentials"
