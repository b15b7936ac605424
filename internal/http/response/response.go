// Package response writes JSON responses for the routes served outside the
// typed API, using the same error body as the API.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/lucidlyapp/lucidly/internal/errors"
	"github.com/lucidlyapp/lucidly/internal/gateway"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	JSON(w, status, ErrorBody{Code: string(code), Message: message}, logger)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, domainerrors.CodeUnauthorized, message, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, domainerrors.CodeRateLimited, message, logger)
}

// HandleError writes the response for err. Unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	e := Classify(err)
	if e.Code == domainerrors.CodeInternal && logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	JSON(w, e.HTTPStatus(), ErrorBody{Code: string(e.Code), Message: e.Message, Details: e.Details}, logger)
}

// Classify maps err to a domain error. Store failures keep the backend's
// message; anything unrecognized is internal.
func Classify(err error) *domainerrors.Error {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		switch {
		case errors.Is(err, gateway.ErrNotFound):
			return domainerrors.Wrap(err, domainerrors.CodeNotFound, gwErr.Message)
		case errors.Is(err, gateway.ErrUnauthorized):
			return domainerrors.Wrap(err, domainerrors.CodeUnauthorized, gwErr.Message)
		case errors.Is(err, gateway.ErrRateLimited):
			return domainerrors.Wrap(err, domainerrors.CodeRateLimited, gwErr.Message)
		default:
			return domainerrors.Wrap(err, domainerrors.CodeUpstream, gwErr.Message)
		}
	}

	return domainerrors.Wrap(err, domainerrors.CodeInternal, "internal server error")
}
