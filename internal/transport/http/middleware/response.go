package middleware

import (
	"encoding/json"
	"net/http"
)

// Machine-readable codes for failures raised by middleware.
const (
	codeRateLimited  = "RATE_LIMITED"
	codeUnauthorized = "UNAUTHORIZED"
)

type errorBody struct {
	Error     string `json:"error"`
	ErrorCode string `json:"error_code,omitempty"`
}

// writeJSONError writes the same error envelope the handlers use.
func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, ErrorCode: code})
}
