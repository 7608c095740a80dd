package handlers

const (
	ErrInvalidJSON         = "Invalid JSON body"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrNotFound            = "Not found"
	ErrTooManyRequests     = "Too many requests"
	ErrInternalServerError = "Internal server error"

	// maxBodyBytes caps request bodies
	maxBodyBytes = 1 << 20
)

// Error codes returned in the JSON error body
const (
	CodeValidation          = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeInsufficientPoints  = "INSUFFICIENT_POINTS"
	CodeAlreadyClaimed      = "ALREADY_CLAIMED"
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"
	CodeRateLimited         = "RATE_LIMITED"
	CodeInternal            = "INTERNAL"
)
