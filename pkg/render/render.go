// Package render writes JSON responses and the error envelope.
package render

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/apperrors"
)

// ErrorBody is the error envelope payload.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Error maps err to its status and writes the envelope. Server-side kinds
// are logged; integrity violations carry the alert flag.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	switch {
	case kind == apperrors.KindIntegrityViolation:
		logger.Error("integrity violation", "alert", true, "method", r.Method, "path", r.URL.Path, "error", err)
	case kind == apperrors.KindUpstreamGateway:
		logger.Warn("payment gateway failure", "method", r.Method, "path", r.URL.Path, "error", err)
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}

	JSON(w, status, errorEnvelope{Error: ErrorBody{
		Code:      string(kind),
		Message:   apperrors.MessageOf(err),
		Retryable: apperrors.Retryable(kind),
	}})
}

// DecodeJSON decodes the request body into v. Malformed bodies are
// validation errors.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "invalid request body")
	}
	return nil
}
