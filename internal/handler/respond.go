package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/betpoints/platform/internal/domain"
)

const maxBodyBytes = 1 << 20

// RespondJSON writes a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// ErrorBody is the wire form of every error.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// RespondError writes a JSON error response, detecting domain.AppError for
// status codes. Anything else is logged and hidden behind a 500.
func RespondError(w http.ResponseWriter, err error) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			slog.Error("request failed", "code", appErr.Code, "error", err)
		}
		RespondJSON(w, appErr.Status, ErrorBody{Code: appErr.Code, Message: appErr.Message, Reason: appErr.Reason})
		return
	}
	slog.Error("unhandled error", "error", err)
	RespondJSON(w, http.StatusInternalServerError, ErrorBody{
		Code:    domain.CodeInternal,
		Message: "internal server error",
	})
}

// DecodeJSON reads and decodes a JSON request body into dst. Bodies over
// 1 MiB and unknown fields are rejected.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
