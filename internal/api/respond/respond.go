// Package respond writes JSON bodies and classified errors for HTTP handlers.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/isdelr/bidhall/internal/apperr"
	"github.com/rs/zerolog/log"
)

// ErrorBody is the payload written for every failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure to the client.
type ErrorDetail struct {
	Kind    apperr.Kind `json:"kind"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Error maps err to a status code and writes its client-safe description.
// Unclassified errors are logged and reported as a generic internal error.
func Error(w http.ResponseWriter, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Error().Err(err).Msg("Unhandled error")
		JSON(w, http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
			Kind:    apperr.KindInternal,
			Code:    "InternalError",
			Message: "internal server error",
		}})
		return
	}
	JSON(w, apperr.HTTPStatus(err), ErrorBody{Error: ErrorDetail{
		Kind:    e.Kind,
		Code:    e.Code,
		Message: e.Message,
	}})
}
