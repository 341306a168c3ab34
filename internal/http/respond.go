package http

import (
	"encoding/json"
	"net/http"
	"strings"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// queryParams flattens the first value of every query parameter.
func queryParams(r *http.Request) map[string]string {
	out := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = sanitizeInput(v[0])
		}
	}
	return out
}

// offline reports whether the caller asked to skip the remote spreadsheet.
func offline(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("offline"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
