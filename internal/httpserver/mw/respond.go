package mw

import (
	"encoding/json"
	"net/http"
)

// writeError mirrors handlers' JSON error framing; mw cannot import handlers.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
