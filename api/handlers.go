package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/pipeline"
)

// decode reads a JSON body into v, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.NewError(core.CodeInvalidRequest, "request body is empty", nil)
		}
		return core.NewError(core.CodeInvalidRequest, "malformed request body", err)
	}
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	var req core.SearchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, rs, err)
		return
	}
	s.runSearch(w, r, rs, &req)
}

// handleSearchQuery serves GET /v1/search?q=...&limit=&offset=&threshold=&text=&explain=&category=
func (s *Server) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	req, err := searchRequestFromQuery(r)
	if err != nil {
		s.writeError(w, rs, err)
		return
	}
	s.runSearch(w, r, rs, req)
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, rs *requestState, req *core.SearchRequest) {
	resp, err := s.backend.Search().Search(r.Context(), req)
	if err != nil {
		s.writeError(w, rs, err)
		return
	}
	s.writeData(w, rs, http.StatusOK, resp)
}

func searchRequestFromQuery(r *http.Request) (*core.SearchRequest, error) {
	q := r.URL.Query()
	req := &core.SearchRequest{Query: q.Get("q")}

	opts := &core.SearchOptions{}
	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		return nil, paramError("limit", err)
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		return nil, paramError("offset", err)
	}
	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, paramError("threshold", err)
		}
		opts.Threshold = &threshold
	}
	if v := q.Get("text"); v != "" {
		text, err := strconv.ParseBool(v)
		if err != nil {
			return nil, paramError("text", err)
		}
		opts.IncludeTextSearch = &text
	}
	if v := q.Get("explain"); v != "" {
		if opts.IncludeExplanation, err = strconv.ParseBool(v); err != nil {
			return nil, paramError("explain", err)
		}
	}
	req.Options = opts

	if categories := splitValues(q["category"]); len(categories) > 0 {
		req.Filters = &core.SearchFilters{Categories: categories}
	}
	return req, nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func paramError(name string, err error) error {
	return core.NewError(core.CodeInvalidRequest, fmt.Sprintf("invalid %s parameter", name), err)
}

// splitValues accepts both repeated and comma separated parameters.
func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	status := s.backend.Search().HealthCheck(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, Envelope{Success: status.Healthy, Data: status, Metadata: rs.meta()}, s.logger)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	s.writeData(w, rs, http.StatusOK, s.backend.Monitor().Snapshot())
}

type createJobRequest struct {
	RecordIDs []string `json:"recordIds"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	var req createJobRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, rs, err)
		return
	}
	job, err := s.backend.Embeddings().CreateJob(r.Context(), req.RecordIDs)
	if err != nil {
		s.writeError(w, rs, err)
		return
	}
	s.writeData(w, rs, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	s.writeData(w, rs, http.StatusOK, s.backend.Embeddings().ListJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	job, err := s.backend.Embeddings().GetJob(r.PathValue("id"))
	if err != nil {
		s.writeError(w, rs, err)
		return
	}
	s.writeData(w, rs, http.StatusOK, job)
}

type startRunRequest struct {
	Mode string   `json:"mode"`
	IDs  []string `json:"ids,omitempty"`
}

// handleStartRun starts a pipeline run in the background and returns the
// status right after it was accepted.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	var req startRunRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, rs, err)
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		s.writeError(w, rs, core.NewError(core.CodeInvalidRequest, err.Error(), nil))
		return
	}
	if mode == pipeline.ModeSpecific && len(req.IDs) == 0 {
		s.writeError(w, rs, core.NewError(core.CodeInvalidRequest, "mode specific requires ids", nil))
		return
	}
	if s.backend.Pipeline().Status().State == pipeline.StateRunning {
		s.writeError(w, rs, core.ErrAlreadyRunning)
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		progress, err := s.backend.RunPipeline(s.ctx, mode, req.IDs)
		if err != nil {
			s.logger.Error("pipeline run failed", "request", rs.id, "mode", mode, "err", err)
			return
		}
		s.logger.Info("pipeline run finished", "request", rs.id, "mode", mode,
			"successful", progress.Successful, "failed", progress.Failed, "skipped", progress.Skipped)
	}()

	s.writeData(w, rs, http.StatusAccepted, map[string]any{
		"mode":  mode,
		"state": "accepted",
	})
}

func (s *Server) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	rs := newRequestState(r)
	s.writeData(w, rs, http.StatusOK, s.backend.Pipeline().Status())
}
