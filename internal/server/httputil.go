package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeBadRequest          = "bad_request"
	CodePayloadTooLarge     = "payload_too_large"
	CodeUnsupportedMedia    = "unsupported_media_type"
	CodeRateLimited         = "rate_limited"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeUpstreamMalformed   = "upstream_malformed_response"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal_error"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// uploadResponse is the body of a successful POST /upload.
type uploadResponse struct {
	TestsDescriptions string `json:"testsDescriptions"`
	ReportHTML        string `json:"reportHtml"`
	Status            string `json:"status"`
	ReportID          string `json:"reportId"`
}

// errorResponse is the body of every error response.
type errorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Status string `json:"status"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. clientMsg is returned to the caller;
// internalDetails are logged server-side and never sent.
func httpError(w http.ResponseWriter, r *http.Request, status int, code, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		zerolog.Ctx(r.Context()).Error().
			Int("status", status).
			Str("code", code).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, errorResponse{Error: clientMsg, Code: code, Status: statusError})
}
