package handler

import (
	"encoding/json"
	"net/http"

	"github.com/fieldlinehq/fieldline/internal/model"
)

// writeJSON serializes v with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard management API error envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{Code: code, Message: message},
	})
}

// readJSON decodes the request body as JSON into v, closing the body.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
