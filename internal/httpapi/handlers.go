package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/jeffasante/photo-mood/internal/errs"
	"github.com/jeffasante/photo-mood/internal/fanin"
	"github.com/jeffasante/photo-mood/internal/jsoncodec"
	"github.com/jeffasante/photo-mood/internal/logging"
)

// EnrichResponse is the JSON body for a finished enrichment request.
type EnrichResponse struct {
	RequestID string               `json:"requestId"`
	Status    string               `json:"status"`
	Data      map[string]any       `json:"data,omitempty"`
	Warnings  []fanin.ServiceError `json:"warnings,omitempty"`
	Warning   string               `json:"warning,omitempty"`
}

// HealthzResponse is the JSON body for the health endpoint.
type HealthzResponse struct {
	Status        string `json:"status"`
	Transport     string `json:"transport"`
	Running       bool   `json:"running"`
	InFlight      int    `json:"inFlight"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// ErrorResponse is the JSON body for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleEnrich accepts a multipart photo upload, fans it out to the analysis
// services, and blocks until the correlated outcome arrives. Each upload gets
// exactly one response; if the caller disconnects first, the in-flight
// request is aborted so no entry leaks.
func (s *Server) handleEnrich(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "image exceeds upload limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}
	if len(payload) == 0 {
		s.writeError(w, http.StatusBadRequest, errs.ErrEmptyUpload.Error())
		return
	}

	outcomeCh := make(chan fanin.Outcome, 1)
	id, err := s.orch.Submit(r.Context(), header.Filename, payload, func(o fanin.Outcome) {
		outcomeCh <- o
	})
	if err != nil {
		s.logger.Error("admission failed", err, logging.LogFields{"file_name": header.Filename})
		s.writeError(w, http.StatusServiceUnavailable, "request could not be accepted")
		return
	}

	select {
	case outcome := <-outcomeCh:
		s.respondOutcome(w, outcome)
	case <-r.Context().Done():
		s.orch.Abort(id)
		s.logger.Info("caller disconnected, request aborted", logging.LogFields{"correlation_id": id})
	}
}

// respondOutcome maps a correlation outcome onto an HTTP status. A timeout
// that still gathered some service data is reported as accepted-but-partial
// rather than a hard failure.
func (s *Server) respondOutcome(w http.ResponseWriter, outcome fanin.Outcome) {
	resp := EnrichResponse{
		RequestID: outcome.CorrelationID,
		Status:    string(outcome.Status),
		Data:      outcome.Data,
		Warnings:  outcome.Warnings,
	}

	switch outcome.Status {
	case fanin.StatusComplete, fanin.StatusPartial:
		s.respondJSON(w, http.StatusOK, resp)
	case fanin.StatusTimedOut:
		if outcome.HasData() {
			resp.Warning = "request timed out before all services replied"
			s.respondJSON(w, http.StatusAccepted, resp)
			return
		}
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
	default:
		s.respondJSON(w, http.StatusServiceUnavailable, resp)
	}
}

// handleHealthz reports service liveness for load balancers and probes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		Transport:     s.orch.TransportName(),
		Running:       s.orch.IsRunning(),
		InFlight:      s.orch.InFlight(),
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{Error: message})
}

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := jsoncodec.Encode(w, v); err != nil {
		s.logger.Error("encoding response failed", err, nil)
	}
}
