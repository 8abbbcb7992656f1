package models

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the JSON shape every domain error is converted to at
// the route boundary. The optional flags let clients distinguish a ban
// from an ordinary 403 and a pending verification from a hard failure.
type ErrorResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	Code              string `json:"code,omitempty"`
	Banned            bool   `json:"banned,omitempty"`
	NeedsVerification bool   `json:"needsVerification,omitempty"`
}

// Error codes carried in the code field of the response.
const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeForbidden            = "FORBIDDEN"
	CodeBanned               = "BANNED"
	CodeVerificationRequired = "VERIFICATION_REQUIRED"
	CodeInternal             = "INTERNAL_ERROR"
)

// AppError represents a custom application error
type AppError struct {
	Code              string
	Message           string
	Banned            bool
	NeedsVerification bool
	Err               error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

// NewBannedError marks a valid identity whose account is blocked. The
// banned flag tells clients to show a ban message and stop retrying.
func NewBannedError() *AppError {
	return &AppError{
		Code:    CodeBanned,
		Message: "Your account has been blocked",
		Banned:  true,
	}
}

// NewVerificationRequiredError signals an unverified account attempting a
// write. Clients keep read access and surface the pending state.
func NewVerificationRequiredError() *AppError {
	return &AppError{
		Code:              CodeVerificationRequired,
		Message:           "Your account is awaiting verification by an administrator. You can read posts but cannot create posts or comments yet.",
		NeedsVerification: true,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// RespondWithError converts a domain error into the standardized JSON
// response. Wrapped causes stay server-side; only the message crosses
// the boundary.
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	response := ErrorResponse{Success: false}

	if appErr, ok := err.(*AppError); ok {
		response.Message = appErr.Message
		response.Code = appErr.Code
		response.Banned = appErr.Banned
		response.NeedsVerification = appErr.NeedsVerification
	} else {
		response.Message = err.Error()
	}

	return c.Status(status).JSON(response)
}
