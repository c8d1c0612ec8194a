package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/excel-translator/internal/config"
	"github.com/yourusername/excel-translator/internal/session"
	"github.com/yourusername/excel-translator/internal/storage"
)

type stubScheduler struct {
	jobs []*Job
	err  error
}

func (s *stubScheduler) Schedule(ctx context.Context, job *Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func newTranslateRouter(t *testing.T, cfg *config.Config, scheduler *stubScheduler) (*gin.Engine, *session.Registry, *storage.Local) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.NewLocal(t.TempDir(), cfg.MaxFileSize)
	if err != nil {
		t.Fatalf("NewLocal returned error: %v", err)
	}
	registry := session.NewRegistry()

	router := gin.New()
	router.POST("/api/translate", TranslateHandler(HandlerOptions{
		Config:    cfg,
		Store:     store,
		Registry:  registry,
		Scheduler: scheduler,
		Logger:    zap.NewNop(),
	}))
	router.GET("/api/languages", LanguagesHandler())
	router.GET("/api/download/:filename", DownloadHandler(store))
	return router, registry, store
}

func buildTranslateRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		fileWriter, err := writer.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fileWriter.Write(content); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field %s: %v", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/translate", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func testConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey: "server-key",
		GPTModel:     "gpt-4.1-nano",
		MaxFileSize:  1 << 20,
	}
}

func TestTranslateHandlerAccepted(t *testing.T) {
	scheduler := &stubScheduler{}
	router, registry, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := buildTranslateRequest(t, "data.csv", []byte("name\n사과\n"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if body["jobId"] == "" || body["sessionId"] == "" {
		t.Fatalf("missing identifiers in response: %#v", body)
	}
	if len(scheduler.jobs) != 1 {
		t.Fatalf("scheduled jobs = %d, want 1", len(scheduler.jobs))
	}

	job := scheduler.jobs[0]
	if job.SourceLang != "ko" || job.TargetLang != "en" {
		t.Fatalf("default languages not applied: %#v", job)
	}
	if job.APIKey != "server-key" {
		t.Fatalf("server API key not applied: %q", job.APIKey)
	}
	if _, ok := registry.Get(body["sessionId"]); !ok {
		t.Fatal("session not created for job")
	}
}

func TestTranslateHandlerReusesSession(t *testing.T) {
	scheduler := &stubScheduler{}
	router, registry, _ := newTranslateRouter(t, testConfig(), scheduler)
	id, _ := registry.Create()

	req := buildTranslateRequest(t, "data.csv", []byte("name\nvalue\n"), map[string]string{
		"session_id": id,
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if body["sessionId"] != id {
		t.Fatalf("sessionId = %q, want %q", body["sessionId"], id)
	}
}

func TestTranslateHandlerMissingFile(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := buildTranslateRequest(t, "", nil, map[string]string{"source_lang": "ko"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTranslateHandlerMissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = ""
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, cfg, scheduler)

	req := buildTranslateRequest(t, "data.csv", []byte("name\nvalue\n"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("MISSING_API_KEY")) {
		t.Fatalf("error code missing: %s", rec.Body.String())
	}
}

func TestTranslateHandlerUnsupportedLanguage(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := buildTranslateRequest(t, "data.csv", []byte("name\nvalue\n"), map[string]string{
		"source_lang": "xx",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("INVALID_INPUT")) {
		t.Fatalf("error code missing: %s", rec.Body.String())
	}
	if len(scheduler.jobs) != 0 {
		t.Fatalf("job scheduled despite invalid language: %d", len(scheduler.jobs))
	}
}

func TestTranslateHandlerOversizedFile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxFileSize = 10
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, cfg, scheduler)

	req := buildTranslateRequest(t, "big.csv", bytes.Repeat([]byte("a"), 100), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("LIMIT_EXCEEDED")) {
		t.Fatalf("error code missing: %s", rec.Body.String())
	}
}

func TestTranslateHandlerSchedulerFailure(t *testing.T) {
	scheduler := &stubScheduler{err: errors.New("queue down")}
	router, _, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := buildTranslateRequest(t, "data.csv", []byte("name\nvalue\n"), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestLanguagesHandler(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := httptest.NewRequest(http.MethodGet, "/api/languages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var langs map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &langs); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if len(langs) != 15 {
		t.Fatalf("language count = %d, want 15", len(langs))
	}
	if langs["ko"] != "Korean" {
		t.Fatalf("langs[ko] = %q, want Korean", langs["ko"])
	}
}

func TestDownloadHandlerServesFile(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, store := newTranslateRouter(t, testConfig(), scheduler)

	path := store.OutputPath("result_translated.xlsx")
	if err := os.WriteFile(path, []byte("dummy xlsx"), 0o644); err != nil {
		t.Fatalf("failed to write output file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/download/result_translated.xlsx", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "dummy xlsx" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestDownloadHandlerNotFound(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, _ := newTranslateRouter(t, testConfig(), scheduler)

	req := httptest.NewRequest(http.MethodGet, "/api/download/missing.xlsx", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadHandlerRejectsTraversal(t *testing.T) {
	scheduler := &stubScheduler{}
	router, _, store := newTranslateRouter(t, testConfig(), scheduler)

	secret := filepath.Join(filepath.Dir(store.Dir()), "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatalf("failed to write secret: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/download/..%2Fsecret.txt", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatalf("traversal request served a file: %d", rec.Code)
	}
}
