package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/poiesic/semsearch"
	"github.com/poiesic/semsearch/ai/mock"
	"github.com/poiesic/semsearch/config"
	"github.com/poiesic/semsearch/core"
	"github.com/poiesic/semsearch/embedding"
	"github.com/poiesic/semsearch/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnvelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    *ErrorBody      `json:"error"`
	Metadata ResponseMeta    `json:"metadata"`
}

func newTestServer(t *testing.T) (*Server, *semsearch.Engine) {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.InMemory = true
	cfg.Storage.Path = ""
	cfg.Embedding.BatchDelay = 0
	cfg.Pipeline.BatchDelay = 0
	cfg.Search.DefaultThreshold = 0

	engine, err := semsearch.NewEngine(cfg, semsearch.WithProvider(mock.NewMockProvider()))
	require.NoError(t, err)

	srv := NewServer("127.0.0.1:0", engine)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		engine.Close()
	})

	require.NoError(t, engine.Import(context.Background(), []*core.Record{
		{ID: "inv-1", Fields: map[string]any{
			core.FieldName:        "InvoiceBot",
			core.FieldDescription: "Automated invoice capture for accounts payable teams",
			core.FieldCategory:    "Finance",
		}},
		{ID: "sec-1", Fields: map[string]any{
			core.FieldName:        "WatchTower",
			core.FieldDescription: "Cloud security posture management and alerting",
			core.FieldCategory:    "Security",
		}},
	}))
	return srv, engine
}

func do(t *testing.T, h http.Handler, method, target string, body any) (*httptest.ResponseRecorder, testEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env testEnvelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code core.Code
		want int
	}{
		{core.CodeInvalidQuery, http.StatusBadRequest},
		{core.CodeInvalidRequest, http.StatusBadRequest},
		{core.CodeInvalidEmbedding, http.StatusBadRequest},
		{core.CodeNotFound, http.StatusNotFound},
		{core.CodeAlreadyRunning, http.StatusConflict},
		{core.CodeSearchFailed, http.StatusInternalServerError},
		{core.CodeEmbeddingFailed, http.StatusInternalServerError},
		{core.CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.code))
		})
	}
}

func TestSearchEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	t.Run("post search", func(t *testing.T) {
		rec, env := do(t, h, http.MethodPost, "/v1/search", core.SearchRequest{
			Query:   "invoice capture",
			Options: &core.SearchOptions{Limit: 5},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Nil(t, env.Error)
		assert.NotEmpty(t, env.Metadata.RequestID)
		assert.False(t, env.Metadata.Timestamp.IsZero())
		assert.Equal(t, env.Metadata.RequestID, rec.Header().Get("X-Request-ID"))

		var resp core.SearchResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, "invoice capture", resp.QueryMetadata.OriginalQuery)
		assert.Equal(t, 5, resp.QueryMetadata.Limit)
	})

	t.Run("get search with category", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/v1/search?q=invoice+capture&category=Finance&text=true&explain=1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp core.SearchResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		require.NotEmpty(t, resp.Results)
		for _, r := range resp.Results {
			assert.Equal(t, "inv-1", r.RecordID)
			assert.NotNil(t, r.Explanation)
		}
	})

	errorCases := []struct {
		name   string
		method string
		target string
		body   any
		status int
		code   core.Code
	}{
		{"empty query", http.MethodPost, "/v1/search", core.SearchRequest{Query: "  "}, http.StatusBadRequest, core.CodeInvalidQuery},
		{"malformed body", http.MethodPost, "/v1/search", "{not json", http.StatusBadRequest, core.CodeInvalidRequest},
		{"empty body", http.MethodPost, "/v1/search", nil, http.StatusBadRequest, core.CodeInvalidRequest},
		{"unknown field", http.MethodPost, "/v1/search", `{"query":"crm","limitt":3}`, http.StatusBadRequest, core.CodeInvalidRequest},
		{"threshold out of range", http.MethodPost, "/v1/search", `{"query":"crm","options":{"threshold":3}}`, http.StatusBadRequest, core.CodeInvalidRequest},
		{"bad limit parameter", http.MethodGet, "/v1/search?q=crm&limit=many", nil, http.StatusBadRequest, core.CodeInvalidRequest},
		{"missing q", http.MethodGet, "/v1/search", nil, http.StatusBadRequest, core.CodeInvalidQuery},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}

	t.Run("method not allowed", func(t *testing.T) {
		rec, _ := do(t, h, http.MethodDelete, "/v1/search", nil)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, env := do(t, h, http.MethodGet, "/v1/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var health struct {
		Healthy bool `json:"healthy"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &health))
	assert.True(t, health.Healthy)

	rec, env = do(t, h, http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &snapshot))
	assert.Contains(t, snapshot, "search.total")
}

func TestEmbeddingJobEndpoints(t *testing.T) {
	srv, engine := newTestServer(t)
	h := srv.Handler()

	rec, env := do(t, h, http.MethodPost, "/v1/embeddings/jobs", map[string]any{"recordIds": []string{"inv-1", "ghost"}})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job embedding.Job
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, 2, job.Total)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		rec, env := do(t, h, http.MethodGet, "/v1/embeddings/jobs/"+job.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var current embedding.Job
		if err := json.Unmarshal(env.Data, &current); err != nil {
			return false
		}
		return current.Status == embedding.JobCompleted && current.Completed == 1 && current.Failed == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec2, err := engine.Store().Get(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec2.Embedding)

	t.Run("list", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/v1/embeddings/jobs", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var jobs []embedding.Job
		require.NoError(t, json.Unmarshal(env.Data, &jobs))
		assert.Len(t, jobs, 1)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec, env := do(t, h, http.MethodGet, "/v1/embeddings/jobs/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, core.CodeNotFound, env.Error.Code)
	})

	t.Run("no ids", func(t *testing.T) {
		rec, env := do(t, h, http.MethodPost, "/v1/embeddings/jobs", map[string]any{"recordIds": []string{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, core.CodeInvalidRequest, env.Error.Code)
	})
}

func TestPipelineEndpoints(t *testing.T) {
	srv, engine := newTestServer(t)
	h := srv.Handler()

	rec, env := do(t, h, http.MethodGet, "/v1/pipeline/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status pipeline.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, pipeline.StateIdle, status.State)

	rec, _ = do(t, h, http.MethodPost, "/v1/pipeline/runs", map[string]any{"mode": "all"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Eventually(t, func() bool {
		return engine.Pipeline().Status().State == pipeline.StateCompleted
	}, 5*time.Second, 10*time.Millisecond)

	_, env = do(t, h, http.MethodGet, "/v1/pipeline/status", nil)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	require.NotNil(t, status.Progress)
	assert.Equal(t, 2, status.Progress.Successful)

	tests := []struct {
		name string
		body any
	}{
		{"unknown mode", map[string]any{"mode": "sometimes"}},
		{"specific without ids", map[string]any{"mode": "specific"}},
		{"malformed", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/v1/pipeline/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, core.CodeInvalidRequest, env.Error.Code)
		})
	}
}

func TestServer_ServeAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/pipeline/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
