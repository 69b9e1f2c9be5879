package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/creatormatch/backend/match"
)

const maxBodyBytes = 1 << 20

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeValidationError reports a rejected profile attribute as 400 invalid_profile.
func writeValidationError(w http.ResponseWriter, err error) {
	resp := map[string]string{"error": "invalid_profile"}
	var verr *match.ValidationError
	if errors.As(err, &verr) {
		resp["field"] = verr.Field
		resp["detail"] = verr.Error()
	}
	writeJSON(w, http.StatusBadRequest, resp)
}

// writeDecodeError maps a body decoding failure to a response. A malformed
// timezone is a profile problem rather than a syntax one.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, match.ErrInvalidTimezone) {
		writeValidationError(w, &match.ValidationError{Field: "timezone", Err: err})
		return
	}
	writeError(w, http.StatusBadRequest, "invalid_json")
}

// decodeJSON reads a size-limited JSON body into dst. Unknown fields are allowed.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

// pathParts splits the URL path into its non-empty segments.
func pathParts(r *http.Request) []string {
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// intParam reads a positive integer query parameter, falling back to def and
// capping at max. ok is false when the value is present but malformed.
func intParam(r *http.Request, name string, def, max int) (n int, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "invalid_method")
}
