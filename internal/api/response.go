package api

import (
	"encoding/json"
	"net/http"

	"muadati/internal/domain"

	"github.com/rs/zerolog"
)

// envelope is the body shape of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

var encodeFailureBody = []byte("{\"success\":false,\"message\":\"server error\"}\n")

// encodeReporter is implemented by writers that want to hear about payloads
// that could not be encoded.
type encodeReporter interface {
	reportEncodeError(err error)
}

// writeJSON encodes before writing the header so a bad payload becomes a 500
// instead of an empty body.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		if rep, ok := w.(encodeReporter); ok {
			rep.reportEncodeError(err)
		}
		statusCode = http.StatusInternalServerError
		body = encodeFailureBody
	} else {
		body = append(body, '\n')
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

func writeData(w http.ResponseWriter, statusCode int, message string, data any) {
	writeJSON(w, statusCode, envelope{Success: true, Message: message, Data: data})
}

func writeList[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: items, Count: &n})
}

var statusByKind = map[domain.Kind]int{
	domain.KindValidation:   http.StatusBadRequest,
	domain.KindNotFound:     http.StatusNotFound,
	domain.KindForbidden:    http.StatusForbidden,
	domain.KindConflict:     http.StatusConflict,
	domain.KindUnauthorized: http.StatusUnauthorized,
	domain.KindRateLimited:  http.StatusTooManyRequests,
	domain.KindInternal:     http.StatusInternalServerError,
}

func statusFor(err error) int {
	if code, ok := statusByKind[domain.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// errorWriter renders domain errors. Details of the underlying cause are only
// exposed outside production.
type errorWriter struct {
	production bool
	logger     *zerolog.Logger
}

func (e errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := envelope{Success: false, Message: domain.MessageOf(err, "server error")}
	if code == http.StatusInternalServerError {
		e.logger.Error().Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	if !e.production {
		body.Error = err.Error()
	}
	writeJSON(w, code, body)
}

func (e errorWriter) message(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, envelope{Success: false, Message: msg})
}
