package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/calder-fi/optio-api/internal/types"
)

// Response represents a standardized API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error represents an error response
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeBadRequest            = "BAD_REQUEST"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeForbidden             = "FORBIDDEN"
	ErrCodeInternalError         = "INTERNAL_ERROR"
	ErrCodeValidationFailed      = "VALIDATION_FAILED"
	ErrCodeConflict              = "CONFLICT"
	ErrCodeOfferExpired          = "OFFER_EXPIRED"
	ErrCodeInsufficientRemaining = "INSUFFICIENT_REMAINING"
	ErrCodeAuthorizationInvalid  = "AUTHORIZATION_INVALID"
	ErrCodeUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
)

// Handle maps the error to the appropriate response. Domain errors carry
// their message through; anything unrecognized becomes an opaque 500.
func Handle(c *gin.Context, data interface{}, err error) {
	if err == nil {
		Success(c, data)
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, types.ErrOfferNotFound),
		errors.Is(err, types.ErrPositionNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, types.ErrValidation):
		errorJSON(c, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, types.ErrAuthorizationInvalid):
		errorJSON(c, http.StatusBadRequest, ErrCodeAuthorizationInvalid, err.Error())
	case errors.Is(err, types.ErrOfferExpired):
		errorJSON(c, http.StatusConflict, ErrCodeOfferExpired, err.Error())
	case errors.Is(err, types.ErrInsufficientRemaining):
		errorJSON(c, http.StatusConflict, ErrCodeInsufficientRemaining, err.Error())
	case errors.Is(err, types.ErrStateConflict):
		Conflict(c, err.Error())
	case errors.Is(err, types.ErrUpstreamUnavailable):
		Unavailable(c, err.Error())
	default:
		InternalError(c, "An unexpected error occurred")
	}
}

// Success sends a successful response
func Success(c *gin.Context, data interface{}) {
	status := http.StatusOK
	if c.Request.Method == "POST" {
		status = http.StatusCreated
	}

	c.JSON(status, Response{
		Success: true,
		Data:    data,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	errorJSON(c, http.StatusNotFound, ErrCodeNotFound, message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, message string) {
	errorJSON(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized sends a 401 response
func Unauthorized(c *gin.Context, message string) {
	errorJSON(c, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// Forbidden sends a 403 response
func Forbidden(c *gin.Context, message string) {
	errorJSON(c, http.StatusForbidden, ErrCodeForbidden, message)
}

// InternalError sends a 500 response
func InternalError(c *gin.Context, message string) {
	errorJSON(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}

// Conflict sends a 409 response
func Conflict(c *gin.Context, message string) {
	errorJSON(c, http.StatusConflict, ErrCodeConflict, message)
}

// Unavailable sends a 503 response
func Unavailable(c *gin.Context, message string) {
	errorJSON(c, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, message)
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{
		Success: false,
		Error: &Error{
			Code:    code,
			Message: message,
		},
	})
}
