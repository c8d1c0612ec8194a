package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newStreamRouter(registry *Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/logs/stream", StreamHandler(registry, zap.NewNop()))
	router.POST("/api/logs/session", CreateSessionHandler(registry))
	return router
}

func TestCreateSessionHandler(t *testing.T) {
	registry := NewRegistry()
	router := newStreamRouter(registry)

	req := httptest.NewRequest(http.MethodPost, "/api/logs/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	id := body["session_id"]
	if id == "" {
		t.Fatal("session_id missing in response")
	}
	if _, ok := registry.Get(id); !ok {
		t.Fatal("created session not registered")
	}
}

func TestStreamHandlerUnknownSession(t *testing.T) {
	registry := NewRegistry()
	router := newStreamRouter(registry)

	req := httptest.NewRequest(http.MethodGet, "/api/logs/stream?session_id=nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}
	if !strings.Contains(rec.Body.String(), `"error": "Invalid session ID"`) {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestStreamHandlerDeliversUntilTerminal(t *testing.T) {
	registry := NewRegistry()
	id, q := registry.Create()

	q.Emit(NewLogEvent("INFO", "working", time.Unix(1700000000, 0)))
	q.Emit(MilestoneEvent{Type: "milestone", Stage: "upload", Percentage: 10, Completed: true})
	q.Emit(MilestoneEvent{Type: "milestone", Stage: "complete", Percentage: 100, Completed: true})
	// 終端イベントより後のイベントは配信されない
	q.Emit(NewLogEvent("INFO", "should not appear", time.Unix(1700000001, 0)))

	router := newStreamRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/api/logs/stream?session_id="+id, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	body := rec.Body.String()
	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	if len(frames) != 3 {
		t.Fatalf("frame count = %d, want 3: %q", len(frames), body)
	}
	if !strings.Contains(frames[0], `"message":"working"`) {
		t.Fatalf("unexpected first frame: %q", frames[0])
	}
	if !strings.Contains(frames[2], `"stage":"complete"`) {
		t.Fatalf("unexpected terminal frame: %q", frames[2])
	}
	if strings.Contains(body, "should not appear") {
		t.Fatalf("event after terminal was delivered: %q", body)
	}

	if _, ok := registry.Get(id); ok {
		t.Fatal("session not destroyed after terminal event")
	}
}

func TestStreamHandlerKeepaliveOnIdle(t *testing.T) {
	registry := NewRegistry()
	id, q := registry.Create()

	router := newStreamRouter(registry)
	req := httptest.NewRequest(http.MethodGet, "/api/logs/stream?session_id="+id, nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rec, req)
	}()

	// 1秒のタイムアウトを1回経過させてからストリームを終わらせる
	time.Sleep(1500 * time.Millisecond)
	q.Emit(MilestoneEvent{Type: "milestone", Stage: "complete", Percentage: 100, Completed: true})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not finish after terminal event")
	}

	if !strings.Contains(rec.Body.String(), ": keepalive\n\n") {
		t.Fatalf("keepalive comment missing: %q", rec.Body.String())
	}
}

func TestStreamHandlerClientDisconnect(t *testing.T) {
	registry := NewRegistry()
	id, _ := registry.Create()

	router := newStreamRouter(registry)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/logs/stream?session_id="+id, nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		router.ServeHTTP(rec, req)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not stop after client disconnect")
	}
	if _, ok := registry.Get(id); ok {
		t.Fatal("session not destroyed after disconnect")
	}
}
