package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"medibot/internal/config"
	"medibot/internal/ingest"
	"medibot/internal/models"
	"medibot/internal/rag"
)

type stubAsker struct {
	ans     models.Answer
	err     error
	gotTopK int
}

func (s *stubAsker) Answer(_ context.Context, _, _ string, topK int) (models.Answer, error) {
	s.gotTopK = topK
	return s.ans, s.err
}

func newTestServer(asker Asker) *Server {
	return &Server{
		cfg:      config.Load(),
		registry: ingest.NewRegistry(),
		asker:    asker,
	}
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func errCode(t *testing.T, body map[string]any) string {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return e["code"].(string)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&stubAsker{})
	rec, body := doJSON(t, s.Routes(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])
}

func TestAskValidation(t *testing.T) {
	s := newTestServer(&stubAsker{})

	rec, body := doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"","question":""}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MB-API-4001", errCode(t, body))

	rec, body = doJSON(t, s.Routes(), http.MethodPost, "/ask", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MB-API-4001", errCode(t, body))
}

func TestAskReturnsAnswer(t *testing.T) {
	s := newTestServer(&stubAsker{ans: models.Answer{
		Text:    "Rest and fluids are first-line treatment.",
		Sources: []string{"c1"},
		Citations: []models.ChunkMatch{
			{ChunkID: "c1", Filename: "fever.pdf", Score: 0.9},
		},
		State: rag.StateDone,
	}})

	rec, body := doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"how to treat fever?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Rest and fluids are first-line treatment.", body["answer"])
	require.Equal(t, "done", body["state"])
	require.Equal(t, []any{"c1"}, body["sources"].([]any), "sources carry chunk identifiers")
}

func TestAskTopKOverride(t *testing.T) {
	asker := &stubAsker{ans: models.Answer{Text: "ok", State: rag.StateDone}}
	s := newTestServer(asker)

	rec, _ := doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"q","top_k":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 3, asker.gotTopK)

	rec, _ = doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"q"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, s.cfg.TopK, asker.gotTopK, "absent top_k falls back to the configured default")

	rec, _ = doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"q","top_k":1000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxAskTopK, asker.gotTopK, "oversized top_k is clamped")
}

func TestAskNoRelevantContext(t *testing.T) {
	s := newTestServer(&stubAsker{err: rag.ErrNoRelevantContext})
	rec, body := doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"unknown topic"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "MB-RAG-4220", errCode(t, body))
}

func TestAskPipelineErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{rag.ErrEmbeddingService, http.StatusBadGateway, "MB-EMB-5020"},
		{rag.ErrGenerationService, http.StatusBadGateway, "MB-GEN-5021"},
		{rag.ErrIndexUnavailable, http.StatusServiceUnavailable, "MB-IDX-5030"},
		{rag.ErrCancelled, http.StatusRequestTimeout, "MB-REQ-4080"},
	}
	for _, c := range cases {
		s := newTestServer(&stubAsker{err: c.err})
		rec, body := doJSON(t, s.Routes(), http.MethodPost, "/ask", `{"kb_id":"kb1","question":"q"}`)
		require.Equal(t, c.status, rec.Code, c.code)
		require.Equal(t, c.code, errCode(t, body))
	}
}

func TestCreateKBValidation(t *testing.T) {
	s := newTestServer(&stubAsker{})
	rec, body := doJSON(t, s.Routes(), http.MethodPost, "/kb", `{"name":"  "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "MB-API-4001", errCode(t, body))
}
