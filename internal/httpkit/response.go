// Package httpkit holds small JSON response helpers shared by ops handlers.
package httpkit

import (
	"encoding/json"
	"net/http"

	apperrors "reelpress/internal/pkg/errors"
)

type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	_ = json.NewEncoder(w).Encode(env)
}

// WriteError maps a coded error onto its HTTP status and writes the envelope.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var appErr *apperrors.Error
	if apperrors.As(err, &appErr) {
		status = appErr.HTTPStatus()
	}
	WriteErr(w, status, string(apperrors.GetCode(err)), err.Error(), nil)
}
