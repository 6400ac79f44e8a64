package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"geotech-rag/internal/chromemdb"
	"geotech-rag/internal/config"
	"geotech-rag/internal/models"
	"geotech-rag/internal/rag"
	"geotech-rag/internal/testutil"
)

type testServer struct {
	cfg      *config.Config
	llm      *testutil.FakeLLM
	env      map[string]string
	pipeline *rag.Pipeline
	srv      *Server
	router   *gin.Engine
	cookie   *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	cfg := config.Default()
	cfg.PDFDir = filepath.Join(root, "pdfs")
	cfg.StorageDir = filepath.Join(root, "vectorstore")
	cfg.PhotoDirs = []config.PhotoDir{
		{Name: "Shallow Foundation", Path: filepath.Join(root, "Shallow_foundation")},
		{Name: "Deep Foundation", Path: filepath.Join(root, "Deep_foundation")},
	}
	require.NoError(t, os.MkdirAll(cfg.PDFDir, 0o755))

	ts := &testServer{cfg: cfg, llm: &testutil.FakeLLM{}, env: map[string]string{"OPENAI_API_KEY": "sk-test"}}
	builder, err := rag.NewBuilder(cfg, chromemdb.NewDirStore(cfg.StorageDir, ""))
	require.NoError(t, err)
	pipeline := rag.NewPipeline(cfg, builder)
	embedder := &testutil.FakeEmbedder{}
	pipeline.NewProvider = func(string) (embeddings.Embedder, error) { return embedder, nil }
	pipeline.NewChat = func(string) (llms.Model, error) { return ts.llm, nil }
	pipeline.Getenv = func(k string) string { return ts.env[k] }

	ts.pipeline = pipeline
	ts.serve(New(cfg, pipeline, nil))
	return ts
}

func (ts *testServer) serve(srv *Server) {
	ts.srv = srv
	ts.router = srv.Router()
	ts.cookie = nil
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	for _, c := range resp.Result().Cookies() {
		if c.Name == sessionCookie {
			ts.cookie = c
		}
	}
	return resp
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

type statusBody struct {
	State      string                `json:"state"`
	KeyPresent bool                  `json:"key_present"`
	PDFCount   int                   `json:"pdf_count"`
	Index      *models.IndexMetadata `json:"index"`
}

type askBody struct {
	Answer     string               `json:"answer"`
	AnswerHTML string               `json:"answer_html"`
	Sources    []models.ScoredChunk `json:"sources"`
	State      string               `json:"state"`
}

func TestStatus_NoPDFs(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotNil(t, ts.cookie)

	status := decode[statusBody](t, resp)
	assert.Equal(t, "no_pdfs", status.State)
	assert.True(t, status.KeyPresent)
	assert.Zero(t, status.PDFCount)
}

func TestSettings_KeyOverride(t *testing.T) {
	ts := newTestServer(t)
	ts.env = map[string]string{}
	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "deep.pdf"), "Bored piles are drilled")

	status := decode[statusBody](t, ts.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, "missing_key", status.State)
	assert.False(t, status.KeyPresent)

	resp := ts.do(t, http.MethodPut, "/api/settings", map[string]string{"api_key": "sk-session"})
	require.Equal(t, http.StatusOK, resp.Code)
	status = decode[statusBody](t, resp)
	assert.Equal(t, "ready", status.State)
	assert.True(t, status.KeyPresent)
	assert.Equal(t, 1, status.PDFCount)
	require.NotNil(t, status.Index)
	assert.Equal(t, []string{"deep.pdf"}, status.Index.PDFFiles)

	// a different client has no override
	other := &testServer{router: ts.router}
	status = decode[statusBody](t, other.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, "missing_key", status.State)
}

func TestAsk(t *testing.T) {
	ts := newTestServer(t)
	ts.llm.Responses = []string{"Use **bored piles**:\n- drilled\n- cast in place"}
	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "deep.pdf"), "Bored piles are drilled and cast in place")

	resp := ts.do(t, http.MethodPost, "/api/ask", map[string]string{"question": "Which piles are drilled?"})
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[askBody](t, resp)
	assert.Equal(t, "ready", body.State)
	assert.Equal(t, "Use **bored piles**:\n\n- drilled\n- cast in place", body.Answer)
	assert.Contains(t, body.AnswerHTML, "<strong>bored piles</strong>")
	assert.Contains(t, body.AnswerHTML, "<li>drilled</li>")
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "deep.pdf", body.Sources[0].Source)

	history := decode[[]models.Message](t, ts.do(t, http.MethodGet, "/api/history", nil))
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, "Which piles are drilled?", history[0].Content)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodDelete, "/api/history", nil).Code)
	history = decode[[]models.Message](t, ts.do(t, http.MethodGet, "/api/history", nil))
	assert.Empty(t, history)
}

func TestAsk_EmptyQuestion(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodPost, "/api/ask", map[string]string{"question": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "invalid")
}

func TestRebuild(t *testing.T) {
	ts := newTestServer(t)
	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "a.pdf"), "Consolidation of clay")
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/status", nil).Code)

	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "b.pdf"), "Slope stability")
	resp := ts.do(t, http.MethodPost, "/api/rebuild", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	body := decode[struct {
		State string                `json:"state"`
		Index *models.IndexMetadata `json:"index"`
	}](t, resp)
	assert.Equal(t, "ready", body.State)
	require.NotNil(t, body.Index)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, body.Index.PDFFiles)

	kb := decode[knowledgeBaseResponse](t, ts.do(t, http.MethodGet, "/api/knowledge-base", nil))
	require.Len(t, kb.Files, 2)
	assert.Equal(t, "a.pdf", kb.Files[0].Name)
	assert.Positive(t, kb.Files[0].Size)
	require.NotNil(t, kb.Index)
	assert.Equal(t, 2, kb.Index.ChunkCount)
	require.NotNil(t, kb.Staleness)
	assert.False(t, kb.Staleness.Stale())

	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "c.pdf"), "Retaining walls")
	kb = decode[knowledgeBaseResponse](t, ts.do(t, http.MethodGet, "/api/knowledge-base", nil))
	require.NotNil(t, kb.Staleness)
	assert.Equal(t, []string{"c.pdf"}, kb.Staleness.Added)
}

func TestRebuild_MissingKey(t *testing.T) {
	ts := newTestServer(t)
	ts.env = map[string]string{}
	resp := ts.do(t, http.MethodPost, "/api/rebuild", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Body.String(), "missing_key")
}

func TestPhotos(t *testing.T) {
	ts := newTestServer(t)
	deep := ts.cfg.PhotoDirs[1].Path
	require.NoError(t, os.MkdirAll(deep, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(deep, "rig.jpg"), []byte("jpeg"), 0o644))

	sections := decode[[]struct {
		Name   string `json:"name"`
		Slug   string `json:"slug"`
		Images []struct {
			Name string `json:"name"`
		} `json:"images"`
	}](t, ts.do(t, http.MethodGet, "/api/photos", nil))
	require.Len(t, sections, 2)
	assert.Empty(t, sections[0].Images)
	require.Len(t, sections[1].Images, 1)
	assert.Equal(t, "rig.jpg", sections[1].Images[0].Name)

	resp := ts.do(t, http.MethodGet, "/photos/Deep_foundation/rig.jpg", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "jpeg", resp.Body.String())

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/photos/Deep_foundation/missing.jpg", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/photos/Other/rig.jpg", nil).Code)
}

func TestSessions_LeastRecentlyUsedEvicted(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.Server.SessionLimit = 2
	ts.serve(New(ts.cfg, ts.pipeline, nil))

	first := &testServer{router: ts.router}
	require.Equal(t, http.StatusOK, first.do(t, http.MethodGet, "/api/history", nil).Code)
	for i := 0; i < 10; i++ {
		anonymous := &testServer{router: ts.router}
		require.Equal(t, http.StatusOK, anonymous.do(t, http.MethodGet, "/api/history", nil).Code)
	}
	assert.Equal(t, 2, ts.srv.sessions.Len())
	assert.Nil(t, ts.srv.lookup(first.cookie.Value))

	// the evicted client gets a fresh session and cookie
	old := first.cookie.Value
	require.Equal(t, http.StatusOK, first.do(t, http.MethodGet, "/api/history", nil).Code)
	assert.NotEqual(t, old, first.cookie.Value)
	assert.Equal(t, 2, ts.srv.sessions.Len())
}

func TestSessions_Expire(t *testing.T) {
	ts := newTestServer(t)
	ts.cfg.Server.SessionTTL = 50 * time.Millisecond
	ts.serve(New(ts.cfg, ts.pipeline, nil))

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/api/history", nil).Code)
	id := ts.cookie.Value
	require.NotNil(t, ts.srv.lookup(id))
	require.Eventually(t, func() bool { return ts.srv.lookup(id) == nil }, time.Second, 10*time.Millisecond)
}

func TestSessions_FactoryAppliesKey(t *testing.T) {
	ts := newTestServer(t)
	ts.env = map[string]string{}
	ts.serve(New(ts.cfg, ts.pipeline, func(id string) *rag.Session {
		s := rag.NewSession(id)
		s.SetKeyOverride("sk-flag")
		return s
	}))
	testutil.WritePDF(t, filepath.Join(ts.cfg.PDFDir, "deep.pdf"), "Bored piles are drilled")

	status := decode[statusBody](t, ts.do(t, http.MethodGet, "/api/status", nil))
	assert.Equal(t, "ready", status.State)
	assert.True(t, status.KeyPresent)
}
