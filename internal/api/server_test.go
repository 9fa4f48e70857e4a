package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/lawsearch/internal/config"
	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const bill = `DIVISION C--DEPARTMENT OF HOMELAND SECURITY APPROPRIATIONS ACT, 2024
For the Federal Emergency Management Agency Disaster Relief Fund, $20,261,000,000.
`

var vocab = division.MustVocabulary([]division.Entry{
	{Label: "DEPARTMENT OF HOMELAND SECURITY", Store: "bill_txt_Division_C_DEPARTMENT_OF_HOMELAND_SECURITY"},
})

type stubLLM struct{}

func (stubLLM) Complete(_ context.Context, _, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "Relevant Subcommittees:"):
		return `["DEPARTMENT OF HOMELAND SECURITY"]`, nil
	case strings.Contains(prompt, "Comprehensive Answer:"):
		return "FEMA: $20,261,000,000", nil
	default:
		return "- $20,261,000,000", nil
	}
}

func newTestServer(t *testing.T, apiKey string) (*Server, config.Config) {
	t.Helper()
	cfg := config.Config{
		LawsearchAPIKey:        apiKey,
		DataDir:                t.TempDir(),
		IndexDir:               filepath.Join(t.TempDir(), "index"),
		MaxUploadBytes:         1 << 20,
		LLMProvider:            "anthropic",
		ModelFast:              "f",
		ModelBalanced:          "b",
		ModelReasoning:         "r",
		ModelStrong:            "s",
		LLMRequestsPerSecond:   1000,
		EmbeddingProvider:      "hash",
		EmbeddingModel:         "hash-32",
		ChunkSize:              300,
		ChunkOverlap:           30,
		DefaultEffort:          "medium",
		DefaultMaxResults:      8,
		MaxResults:             20,
		MaxQuestionLength:      1000,
		MaxSteps:               25,
		QueryTimeout:           10 * time.Second,
		MaxConcurrentDivisions: 2,
		MaxConcurrentMap:       2,
		MaxConcurrentIngest:    1,
		RunTTL:                 time.Hour,
	}
	svc, err := service.New(context.Background(), service.Deps{
		Config:     cfg,
		Vocabulary: vocab,
		LLM:        stubLLM{},
		NewEmbedder: func(_ context.Context, model string) (embedding.Embedder, error) {
			return embedding.NewHashEmbedder(model)
		},
	})
	require.NoError(t, err)
	return NewServer(svc, zap.NewNop(), cfg), cfg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestRootAndDivisions(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lawsearch", decode(t, rec)["service"])

	rec = do(t, srv, http.MethodGet, "/api/divisions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	divs := decode(t, rec)["divisions"].([]any)
	assert.Len(t, divs, 1)
}

func TestHealthBeforeIngest(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}

func TestQueryErrors(t *testing.T) {
	srv, _ := newTestServer(t, "")

	rec := do(t, srv, http.MethodPost, "/api/query", `{"question":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode(t, rec)["error"])

	rec = do(t, srv, http.MethodPost, "/api/query", `{"question":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/query", `{"question":"How much for FEMA?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "service_unavailable", decode(t, rec)["error"])
}

func TestUploadIngestQuery(t *testing.T) {
	srv, cfg := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "bill.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte(bill))
	require.NoError(t, err)
	fw, err = mw.CreateFormFile("files", "notes.exe")
	require.NoError(t, err)
	_, err = fw.Write([]byte("nope"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	_, err = os.Stat(filepath.Join(cfg.DataDir, "bill.txt"))
	require.NoError(t, err)

	rec = do(t, srv, http.MethodGet, "/api/documents", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["documents"].([]any), 1)

	rec = do(t, srv, http.MethodPost, "/api/ingest", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ing := decode(t, rec)
	assert.Equal(t, "completed", ing["status"])
	assert.EqualValues(t, 1, ing["divisions_processed"])

	rec = do(t, srv, http.MethodGet, "/api/ingest/"+ing["run_id"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "completed", decode(t, rec)["status"])

	rec = do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/query", `{"question":"How much for FEMA?","effort":"quick","include_sources":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	assert.Contains(t, resp["answer"], "$20,261,000,000")
	assert.Equal(t, []any{"DEPARTMENT OF HOMELAND SECURITY"}, resp["selected_divisions"])
	assert.NotEmpty(t, resp["sources"])
	assert.Regexp(t, `^query_\d{8}_\d{6}_[0-9a-f]{8}$`, resp["query_id"])

	rec = do(t, srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hash-32", decode(t, rec)["current_embedding_model"])

	rec = do(t, srv, http.MethodGet, "/api/stats/llm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)["stats"].(map[string]any)
	assert.Positive(t, stats["count"])

	rec = do(t, srv, http.MethodDelete, "/api/documents/bill.txt", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, srv, http.MethodDelete, "/api/documents/bill.txt", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngestUnknownRun(t *testing.T) {
	srv, _ := newTestServer(t, "")
	rec := do(t, srv, http.MethodGet, "/api/ingest/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	rec := do(t, srv, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health stays public.
	rec = do(t, srv, http.MethodGet, "/api/health", "")
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
}
