package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"spycats/pkg/domain"
)

const maxRequestBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// statusFor maps a failure kind to an HTTP status. Every tagged failure other
// than not_found is a client error.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusInternalServerError
	case domain.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "internal server error", Kind: "internal"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Kind: string(kind)})
}

func badRequest(format string, args ...any) error {
	return domain.NewError(domain.ErrValidationFailed, "", "", format, args...)
}

// decodeJSON reads a single JSON object from the request body. Unknown fields
// are ignored.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("malformed JSON body: %v", err)
	}
	return nil
}
