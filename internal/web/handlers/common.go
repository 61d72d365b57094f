package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-login/internal/constants"
	"github.com/kozaktomas/face-login/internal/database"
	"github.com/kozaktomas/face-login/internal/messages"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with a human message and a machine code.
func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

// respondMessage sends an error response whose message is looked up in the catalog
// using the request's Accept-Language header.
func respondMessage(w http.ResponseWriter, r *http.Request, catalog *messages.Catalog, status int, code string) {
	respondError(w, status, catalog.Lookup(r.Header.Get("Accept-Language"), code), code)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// HealthCheck handles the health check endpoint.
// It never opens the descriptor store, it only reports whether it is open.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	store := "pending"
	if database.IsInitialized() {
		store = "open"
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  store,
	})
}
