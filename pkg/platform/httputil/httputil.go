// Package httputil maps domain errors onto the operational HTTP surface.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "brickshare/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorBody is the wire shape of a rejected request.
type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError writes a domain error as JSON. Internal failures are reported
// without their description so infrastructure details never reach callers.
func WriteError(w http.ResponseWriter, err error) {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
		return
	}

	status := statusFor(de.Code)
	body := errorBody{Error: string(de.Code)}
	if status == http.StatusInternalServerError {
		body.Error = "internal_error"
	} else {
		body.ErrorDescription = de.Message
	}
	WriteJSON(w, status, body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeInsufficient:
		return http.StatusPaymentRequired
	case dErrors.CodeInvalidState, dErrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
