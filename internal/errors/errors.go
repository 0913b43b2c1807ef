package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput is returned when required fields are missing or malformed.
	ErrInvalidInput = errors.New("email and password are required")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash (over 72 bytes).
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrUserAlreadyExists is returned when registering an email that is already taken.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrAuthFailure matches every *AuthFailure regardless of its reason.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrProvisioningFailure is returned when an OAuth account could not be stored.
	ErrProvisioningFailure = errors.New("account provisioning failed")
	// ErrStoreUnavailable wraps any connectivity or query error from the credential store.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrSignInDenied is returned when the sign-in callback refuses to continue.
	ErrSignInDenied = errors.New("sign-in denied")
	// ErrInvalidSession is returned for missing, expired, or tampered session tokens.
	ErrInvalidSession = errors.New("invalid session")
	// ErrOAuthState is returned when an OAuth state value is unknown, expired, or reused.
	ErrOAuthState = errors.New("invalid oauth state")
	// ErrUnknownProvider is returned when a login names a provider that is not configured.
	ErrUnknownProvider = errors.New("unknown provider")
)

// PublicAuthFailureMessage is the only text a caller ever sees for a failed login.
const PublicAuthFailureMessage = "Invalid email or password"

// AuthFailureReason tells the two credential failure branches apart for logs.
type AuthFailureReason int

const (
	ReasonNoSuchUser AuthFailureReason = iota + 1
	ReasonBadPassword
)

func (r AuthFailureReason) String() string {
	switch r {
	case ReasonNoSuchUser:
		return "no such user"
	case ReasonBadPassword:
		return "bad password"
	default:
		return "unknown"
	}
}

// AuthFailure is a failed credential check. Error() always collapses to
// PublicAuthFailureMessage; Reason is meant for server-side logs only.
type AuthFailure struct {
	Reason AuthFailureReason
}

// NewAuthFailure builds an AuthFailure with the given reason.
func NewAuthFailure(reason AuthFailureReason) *AuthFailure {
	return &AuthFailure{Reason: reason}
}

func (e *AuthFailure) Error() string {
	return PublicAuthFailureMessage
}

// Is lets errors.Is(err, ErrAuthFailure) match any reason.
func (e *AuthFailure) Is(target error) bool {
	return target == ErrAuthFailure
}

// StoreUnavailable wraps a raw store error so it matches ErrStoreUnavailable.
func StoreUnavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// MessageResponse represents a standardized success response.
type MessageResponse struct {
	Message string `json:"message"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors. Messages are fixed strings;
// the wrapped cause never reaches the response.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return NewHTTPError(http.StatusBadRequest, "Email and password are required", "INVALID_INPUT")
	case errors.Is(err, ErrPasswordTooLong):
		return NewHTTPError(http.StatusBadRequest, "Password is too long", "PASSWORD_TOO_LONG")
	case errors.Is(err, ErrUserAlreadyExists):
		return NewHTTPError(http.StatusBadRequest, "User already exists", "USER_ALREADY_EXISTS")
	case errors.Is(err, ErrAuthFailure):
		return NewHTTPError(http.StatusUnauthorized, PublicAuthFailureMessage, "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidSession):
		return NewHTTPError(http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
	case errors.Is(err, ErrSignInDenied):
		return NewHTTPError(http.StatusForbidden, "Access denied", "ACCESS_DENIED")
	case errors.Is(err, ErrOAuthState):
		return NewHTTPError(http.StatusBadRequest, "Invalid sign-in request", "OAUTH_STATE")
	case errors.Is(err, ErrUnknownProvider):
		return NewHTTPError(http.StatusNotFound, "Unknown provider", "UNKNOWN_PROVIDER")
	default:
		return NewHTTPError(http.StatusInternalServerError, "Internal server error", "INTERNAL_ERROR")
	}
}
