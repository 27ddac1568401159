package schemas

import "fmt"

// ErrorCode is a string type used for structured error reporting across the
// engine and the HTTP boundary. Using a custom type keeps call sites on the
// predefined constants.
type ErrorCode string

const (
	// -- Boundary errors (rejected before any planning call) --
	ErrCodeBadRequest    ErrorCode = "BAD_REQUEST"
	ErrCodeTurnInFlight  ErrorCode = "TURN_IN_FLIGHT"
	ErrCodeNotConfigured ErrorCode = "NOT_CONFIGURED"
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"

	// -- Per-action errors (recovered into failed ActionResults) --
	ErrCodeInvalidArguments ErrorCode = "INVALID_ARGUMENTS"
	ErrCodeTargetNotFound   ErrorCode = "TARGET_NOT_FOUND"
	ErrCodePolicyRejected   ErrorCode = "POLICY_REJECTED"
	ErrCodeUnknownAction    ErrorCode = "UNKNOWN_ACTION"

	// -- Provider errors (fatal to the turn, never auto-retried) --
	ErrCodeProviderFailure ErrorCode = "PROVIDER_FAILURE"

	// -- Server-side failures --
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// ValidationError describes a malformed field at the API boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// ErrorResponse is the JSON error envelope returned by the HTTP API.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}
