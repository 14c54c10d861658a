package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
	apperrors "github.com/yanqian/fittrack/pkg/errors"
)

const internalErrorMessage = "Internal server error"

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: internalErrorMessage,
		Err:     err,
	}
}

// fromAuthError maps auth service failures outside the middleware and refresh paths.
func fromAuthError(err error) *HTTPError {
	msg := apperrors.MessageOf(err)
	switch apperrors.CodeOf(err) {
	case auth.CodeInvalidInput:
		return NewHTTPError(http.StatusBadRequest, "VALIDATION_ERROR", msg, err)
	case auth.CodeInvalidCredentials:
		return NewHTTPError(http.StatusUnauthorized, "INVALID_CREDENTIALS", msg, err)
	case auth.CodeConflict:
		return NewHTTPError(http.StatusConflict, "USER_EXISTS", msg, err)
	case auth.CodeTokenExpired:
		return NewHTTPError(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", err)
	case auth.CodeTokenInvalid:
		return NewHTTPError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token", err)
	case auth.CodeUserNotFound:
		return NewHTTPError(http.StatusNotFound, "USER_NOT_FOUND", "User not found", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, err)
	}
}

// fromRefreshError collapses every non-expiry failure into one refresh code so clients
// only need to know whether logging in again is required.
func fromRefreshError(err error) *HTTPError {
	switch apperrors.CodeOf(err) {
	case auth.CodeTokenExpired:
		return NewHTTPError(http.StatusUnauthorized, "REFRESH_TOKEN_EXPIRED", "Refresh token expired, please login again", err)
	case auth.CodeTokenInvalid, auth.CodeUserNotFound:
		return NewHTTPError(http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Invalid refresh token", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, err)
	}
}

func fromExerciseError(err error) *HTTPError {
	msg := apperrors.MessageOf(err)
	switch apperrors.CodeOf(err) {
	case "invalid_input":
		return NewHTTPError(http.StatusBadRequest, "VALIDATION_ERROR", msg, err)
	case "unauthorized":
		return NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, err)
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
