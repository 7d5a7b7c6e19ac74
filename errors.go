package auth

import (
	"errors"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeTokenRejected       = "TOKEN_REJECTED"
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeNotFound            = "NOT_FOUND"
	TextCodeCommentThrottled    = "COMMENT_THROTTLED"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeUsernameTaken       = "USERNAME_TAKEN"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeRegistrationClosed  = "REGISTRATION_DISABLED"
	TextCodePasswordResetClosed = "PASSWORD_RESET_DISABLED"
	TextCodeAccountUnconfirmed  = "ACCOUNT_UNCONFIRMED"
	TextCodeCommentsClosed      = "COMMENTS_DISABLED"
)

// ErrTokenRejected is the single outcome for every token failure: bad
// signature, malformed, expired, wrong claim type or unknown subject.
var ErrTokenRejected = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenRejected)

// ErrUnauthenticated is returned when an action needs a signed in user
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeUnauthenticated)

// ErrForbidden is returned when the subject lacks a permission
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeForbidden)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeNotFound)

// ErrCommentThrottled is returned when a session comments too often
var ErrCommentThrottled = goerrors.New("commenting too frequently", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeTooManyRequests).
	WithTextCode(TextCodeCommentThrottled)

// ErrEmailTaken is returned when the email belongs to another account
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrUsernameTaken is returned when the username belongs to another account
var ErrUsernameTaken = goerrors.New("username already in use", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeUsernameTaken)

// ErrInvalidCredentials is returned when identifier or password do not match
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrRegistrationDisabled is returned when the registration flag is off
var ErrRegistrationDisabled = goerrors.New("registration is disabled", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeRegistrationClosed)

// ErrPasswordResetDisabled is returned when the password reset gate is off
var ErrPasswordResetDisabled = goerrors.New("password reset is disabled", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodePasswordResetClosed)

// ErrCommentsDisabled is returned when the comments feature gate is off
var ErrCommentsDisabled = goerrors.New("comments are disabled", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeCommentsClosed)

// ErrAccountUnconfirmed is returned when an account that has not confirmed
// its email tries anything beyond the confirmation routes
var ErrAccountUnconfirmed = goerrors.New("unconfirmed account", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeAccountUnconfirmed)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("password does not match")

// HTTPStatus maps an error to the status code the HTTP boundary should use.
// Token, authentication, authorization and lookup failures stay distinct.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// IsTokenRejected reports whether err is the collapsed token failure
func IsTokenRejected(err error) bool {
	return hasTextCode(err, TextCodeTokenRejected)
}

// IsForbidden reports whether err is a permission failure
func IsForbidden(err error) bool {
	return hasTextCode(err, TextCodeForbidden)
}

// IsUnauthenticated reports whether err asks for a signed in user
func IsUnauthenticated(err error) bool {
	return hasTextCode(err, TextCodeUnauthenticated)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
