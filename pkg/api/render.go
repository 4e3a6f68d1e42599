package api

import (
	"encoding/json"
	"net/http"

	"github.com/fieldsafe/sentinel/pkg/auth"
)

const maxBodyBytes = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody parses the JSON request body into dst. On failure it writes the
// error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// actorFrom pulls the authenticated actor off the request context. The auth
// middleware guarantees it for protected paths; missing means misconfigured
// routing, answered with 401.
func actorFrom(w http.ResponseWriter, r *http.Request) (*auth.Actor, bool) {
	actor, err := auth.ActorFrom(r.Context())
	if err != nil {
		WriteUnauthorized(w, "")
		return nil, false
	}
	return actor, true
}
