package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/models"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest              = "BAD_REQUEST"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeNotFound                = "NOT_FOUND"
	ErrCodeConflict                = "CONFLICT"
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeInternalServer          = "INTERNAL_SERVER_ERROR"
	ErrCodeNumberUnavailable       = "NUMBER_UNAVAILABLE"
	ErrCodeConflictingConfirmation = "CONFLICTING_CONFIRMATION"
	ErrCodeContention              = "CONTENTION"
	ErrCodeAlreadyResolved         = "ALREADY_RESOLVED"
	ErrCodeTimeout                 = "TIMEOUT"
)

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// BadRequest creates a 400 error with custom message
func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// Unauthorized creates a 401 error with custom message
func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message}
}

// NotFound creates a 404 error with custom message
func NotFound(message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: message}
}

// InternalError creates a 500 error that hides the original error from the caller
func InternalError(err error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

// kindStatus maps error kinds to HTTP status and error code
var kindStatus = map[errors.Kind]struct {
	status int
	code   string
}{
	errors.ErrNotFound:                {http.StatusNotFound, ErrCodeNotFound},
	errors.ErrValidation:              {http.StatusBadRequest, ErrCodeValidation},
	errors.ErrInvalidInput:            {http.StatusBadRequest, ErrCodeValidation},
	errors.ErrConflict:                {http.StatusConflict, ErrCodeConflict},
	errors.ErrUnauthorized:            {http.StatusForbidden, ErrCodeForbidden},
	errors.ErrNumberUnavailable:       {http.StatusConflict, ErrCodeNumberUnavailable},
	errors.ErrConflictingConfirmation: {http.StatusConflict, ErrCodeConflictingConfirmation},
	errors.ErrContention:              {http.StatusServiceUnavailable, ErrCodeContention},
	errors.ErrAlreadyResolved:         {http.StatusConflict, ErrCodeAlreadyResolved},
	errors.ErrTimeout:                 {http.StatusGatewayTimeout, ErrCodeTimeout},
}

// ToAPIError converts service errors to appropriate API errors
func ToAPIError(err error) *APIError {
	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		return InternalError(err)
	}
	m, ok := kindStatus[appErr.Kind]
	if !ok {
		return InternalError(err)
	}
	return &APIError{
		Status:    m.status,
		Code:      m.code,
		Message:   appErr.Message,
		Retryable: appErr.Kind.Retryable(),
	}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondOK writes a 200 OK JSON response
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

// respondCreated writes a 201 Created JSON response
func respondCreated(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusCreated, data)
}

// respondSuccess writes a 200 OK with a message
func respondSuccess(w http.ResponseWriter, message string) {
	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}

// respondError writes an error response, logging anything that maps to a 500
func (h *Handlers) respondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = ToAPIError(err)
	}
	if apiErr.Status == http.StatusInternalServerError && h.Log != nil {
		h.Log.Error("Internal error", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if apiErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, apiErr.Status, apiErr)
}

// decodeJSON decodes JSON from request body into the target
func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}

// parseLimit reads an optional non-negative limit query parameter
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, BadRequest("Invalid limit parameter")
	}
	return n, nil
}

// idParam returns the {id} URL parameter
func idParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// actor returns the caller identified by the auth middleware
func actor(r *http.Request) models.Actor {
	return auth.ActorFromContext(r.Context())
}
