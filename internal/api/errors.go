package api

import (
	"encoding/json"
	"net/http"
)

// Problem codes carried in error bodies.
const (
	CodeNotFound = "not_found"
	CodeReadOnly = "read_only"
	CodeInternal = "internal"
)

// problem is the body of every non-2xx response.
type problem struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// respond encodes v as the JSON response body.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(v)
}

// fail writes a problem body tagged with the request id.
func fail(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	respond(w, status, problem{
		Code:      code,
		Detail:    detail,
		RequestID: requestID(r.Context()),
	})
}
