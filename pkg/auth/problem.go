package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// The middleware answers before any handler runs, so it carries its own
// minimal RFC 7807 writers instead of depending on the handler layer. The
// body shape matches pkg/api's problem responses.

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&problemDetail{
		Type:   fmt.Sprintf("https://fieldsafe.dev/errors/%d", status),
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeUnauthorized(w http.ResponseWriter, detail string) {
	if detail == "" {
		detail = "Authentication required"
	}
	writeProblem(w, http.StatusUnauthorized, "Unauthorized", detail)
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	writeProblem(w, http.StatusTooManyRequests, "Too Many Requests",
		"Rate limit exceeded. Retry after the indicated interval.")
}
