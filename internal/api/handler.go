// Package api provides HTTP handlers for the BCFG relay.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wwbp/BCFG-API/internal/orchestrator"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// orchestratorError maps a coded orchestrator error to an HTTP response.
func orchestratorError(w http.ResponseWriter, err error) {
	var oerr *orchestrator.Error
	if !errors.As(err, &oerr) {
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	switch oerr.Code {
	case orchestrator.ErrorValidation:
		Error(w, http.StatusBadRequest, "Missing 'message' in payload")
	case orchestrator.ErrorUserNotFound:
		Error(w, http.StatusUnauthorized, "please log in again")
	default:
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
