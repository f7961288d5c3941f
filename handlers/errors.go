package handlers

import (
	"errors"
	"net/http"

	"tasknest/backend/logging"
	"tasknest/backend/models"
)

// writeError mapira vrstu greške iz servisa na HTTP status.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		// Greške skladišta se ne prosleđuju klijentu, samo se loguju
		logging.Logger.Errorf("Event ID: INTERNAL_ERROR, Description: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// actingUsername vraća korisnika koga je middleware upisao u header.
func actingUsername(w http.ResponseWriter, r *http.Request) (string, bool) {
	username := r.Header.Get("Username")
	if username == "" {
		http.Error(w, "Missing authenticated user", http.StatusUnauthorized)
		return "", false
	}
	return username, true
}
