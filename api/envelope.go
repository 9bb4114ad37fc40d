package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/semsearch/core"
)

// Envelope wraps every response body.
type Envelope struct {
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error,omitempty"`
	Metadata ResponseMeta `json:"metadata"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    core.Code `json:"code"`
	Message string    `json:"message"`
}

// ResponseMeta identifies a response and how long it took to produce.
type ResponseMeta struct {
	RequestID      string    `json:"requestId"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime float64   `json:"processingTime"` // milliseconds
}

// requestState travels with a request so envelopes can report timing.
type requestState struct {
	id      string
	started time.Time
}

func newRequestState(r *http.Request) *requestState {
	id := r.Header.Get("X-Request-ID")
	if id == "" {
		id = uuid.NewString()
	}
	return &requestState{id: id, started: time.Now()}
}

func (rs *requestState) meta() ResponseMeta {
	return ResponseMeta{
		RequestID:      rs.id,
		Timestamp:      time.Now().UTC(),
		ProcessingTime: float64(time.Since(rs.started).Microseconds()) / 1000,
	}
}

// statusFor maps an error code onto an HTTP status.
func statusFor(code core.Code) int {
	switch {
	case strings.HasPrefix(string(code), "INVALID_"):
		return http.StatusBadRequest
	case code == core.CodeNotFound:
		return http.StatusNotFound
	case code == core.CodeAlreadyRunning:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) writeData(w http.ResponseWriter, rs *requestState, status int, data any) {
	w.Header().Set("X-Request-ID", rs.id)
	writeJSON(w, status, Envelope{Success: true, Data: data, Metadata: rs.meta()}, s.logger)
}

func (s *Server) writeError(w http.ResponseWriter, rs *requestState, err error) {
	code := core.CodeOf(err)
	status := statusFor(code)
	message := err.Error()
	if code == core.CodeInternal {
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "request", rs.id, "code", code, "err", err)
	} else {
		s.logger.Debug("request rejected", "request", rs.id, "code", code, "err", err)
	}
	w.Header().Set("X-Request-ID", rs.id)
	writeJSON(w, status, Envelope{
		Error:    &ErrorBody{Code: code, Message: message},
		Metadata: rs.meta(),
	}, s.logger)
}
