package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rfontaine/atelier/internal/domain"
)

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
// Unknown codes map to 500.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON envelope for error responses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorResponse writes an error to the client, negotiating between JSON and
// plain text based on the request. Internal error details are never exposed;
// they are logged here instead.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	message := domain.ErrorMessage(err)
	status := ErrorCodeToHTTPStatus(code)

	if code == domain.EINTERNAL {
		slog.Error("internal error",
			"op", domain.ErrorOp(err),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}

	if acceptsJSON(r) {
		writeErrorJSON(w, status, errorDetail{Code: code, Message: message})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, message)
}

// ValidationErrorResponse writes a field-level validation error with a 400
// status. Falls back to ErrorResponse for non-validation errors.
func ValidationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	fields := domain.GetValidationFields(err)
	if fields == nil {
		ErrorResponse(w, r, err)
		return
	}

	if acceptsJSON(r) {
		writeErrorJSON(w, http.StatusBadRequest, errorDetail{
			Code:    domain.EINVALID,
			Message: "validation failed",
			Fields:  fields,
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	for field, msg := range fields {
		fmt.Fprintf(w, "%s: %s\n", field, msg)
	}
}

// NotFoundResponse writes a 404.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.NotFound("handler.not_found", "resource", r.URL.Path))
}

// UnauthorizedResponse writes a 401.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("handler.unauthorized", "authentication required"))
}

// ForbiddenResponse writes a 403.
func ForbiddenResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Forbidden("handler.forbidden", "not authorized"))
}

// InternalErrorResponse writes a 500 with a generic message.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "handler.internal", "internal error"))
}

func writeErrorJSON(w http.ResponseWriter, status int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: detail}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// acceptsJSON reports whether the client should receive a JSON response,
// based on the Accept header, Content-Type header, or a .json path suffix.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasSuffix(r.URL.Path, ".json")
}
