package service

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/seckatie/urlhealth/internal/core/remote"
)

// Error details returned to clients.
const (
	DetailEmptyURLs    = "The 'urls' list cannot be empty"
	DetailNoHistory    = "No history found for this URL"
	DetailInvalidBody  = "Request body must be a JSON object with a 'urls' list"
	DetailInvalidURLID = "url_id must be an integer"
	DetailNotFound     = "Not Found"
	DetailMethod       = "Method Not Allowed"
	DetailInternal     = "Internal Server Error"
)

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeError writes a {"detail": ...} error response.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, remote.ErrorBody{Detail: detail})
}

func notFound(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusNotFound, detail)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, DetailMethod)
}

func unprocessable(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusUnprocessableEntity, detail)
}

func internalError(w http.ResponseWriter, detail string) {
	writeError(w, http.StatusInternalServerError, detail)
}
