// Package handler exposes the storefront views and user actions over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"storefront/internal/model"
	"storefront/internal/requestid"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError maps err to a status code and writes the standard error body.
// Anything that is not a DomainError is reported as an internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error, logger zerolog.Logger) {
	var de *model.DomainError
	if !errors.As(err, &de) {
		de = &model.DomainError{Code: model.ErrCodeInternalError, Message: "internal server error", Err: err}
	}

	status := statusFor(de.Code)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("code", de.Code).
		Int("status", status).
		Str("request_id", requestid.From(r.Context())).
		Msg("handler error")

	writeJSON(w, status, model.ErrorResponse{
		Error:         de.Code,
		Message:       de.Message,
		Fields:        de.Fields,
		CorrelationID: requestid.From(r.Context()),
	})
}

func statusFor(code string) int {
	switch code {
	case model.ErrCodeInvalidJSON, model.ErrCodeValidation, model.ErrCodeInvalidQuantity:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorised:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeEmptyCart, model.ErrCodeSubmissionInProgress, model.ErrCodeInvalidTransition:
		return http.StatusConflict
	case model.ErrCodeNetwork, model.ErrCodeServer:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &model.DomainError{Code: model.ErrCodeInvalidJSON, Message: "invalid request body", Err: err}
	}
	return nil
}
