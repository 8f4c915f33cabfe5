package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/g-ogaki/assistant-ui-langgraph/internal/session"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/store"
	"github.com/g-ogaki/assistant-ui-langgraph/internal/upstream"
)

// fakeBackend is an httptest stand-in for the thread API, recording call
// order so tests can assert create-before-send.
type fakeBackend struct {
	mu           sync.Mutex
	events       []string
	listCalls    int
	createStatus int
	createDelay  time.Duration
	lastQuery    any
	server       *httptest.Server
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{createStatus: http.StatusOK}
	b.server = httptest.NewServer(http.HandlerFunc(b.handle))
	return b
}

func (b *fakeBackend) handle(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	parts := strings.Split(path, "/")

	switch {
	case r.Method == http.MethodPost && path == "threads":
		var body struct {
			Query any `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		time.Sleep(b.createDelay)
		b.mu.Lock()
		b.events = append(b.events, "create")
		b.lastQuery = body.Query
		status := b.createStatus
		b.mu.Unlock()
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"thread_id":"t1"}`))

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "messages":
		b.mu.Lock()
		b.events = append(b.events, "send "+parts[1])
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("x-vercel-ai-ui-message-stream", "v1")
		_, _ = w.Write([]byte("data: {\"type\":\"text-delta\",\"delta\":\"hi there\"}\n\n"))

	case r.Method == http.MethodGet && path == "threads":
		b.mu.Lock()
		b.listCalls++
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"threads":[{"thread_id":"t1","title":"hi","created_at":"2026-01-01T00:00:00"}]}`))

	case r.Method == http.MethodDelete && len(parts) == 2:
		b.mu.Lock()
		b.events = append(b.events, "delete "+parts[1])
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))

	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "messages":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"m1","type":"human","content":"hi"},{"id":"m2","type":"ai","content":"hello"}]}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *fakeBackend) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

func newTestRouter(backendURL string) http.Handler {
	r := chi.NewRouter()
	sessions := session.NewStore("test-secret", false)
	r.Use(sessions.Middleware)
	h := NewHandler(upstream.NewClient(backendURL), store.NewThreadCache(time.Minute))
	h.RegisterRoutes(r)
	return r
}

func TestStreamCreatesThreadBeforeSend(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	router := newTestRouter(backend.server.URL)

	body := `{"conversationId":"c1","messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"create", "send t1"}, backend.snapshot())
	assert.Equal(t, "hi", backend.lastQuery, "create-thread carries the user's query")
	assert.Equal(t, "t1", rec.Header().Get(ThreadHeader))
	assert.Equal(t, "v1", rec.Header().Get("x-vercel-ai-ui-message-stream"))
	assert.Contains(t, rec.Body.String(), "text-delta")
}

func TestCreateFailureAbortsSend(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	backend.createStatus = http.StatusInternalServerError
	router := newTestRouter(backend.server.URL)

	body := `{"conversationId":"c1","messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, []string{"create"}, backend.snapshot(), "message-send must never run after a failed create")
	assert.Empty(t, rec.Header().Get(ThreadHeader), "no thread id may be reported on failure")
}

func TestExistingThreadSkipsCreate(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	router := newTestRouter(backend.server.URL)

	body := `{"conversationId":"c1","threadId":"t9","messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"again"}]}]}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"send t9"}, backend.snapshot(), "resuming a thread must not create another")
	assert.Equal(t, "t9", rec.Header().Get(ThreadHeader))
}

func TestConcurrentFirstSendsShareOneCreate(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	backend.createDelay = 50 * time.Millisecond

	orch := NewOrchestrator(upstream.NewClient(backend.server.URL), store.NewThreadCache(time.Minute))

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], _, errs[i] = orch.EnsureThread(context.Background(), "g1", "c1", "", "hi")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	assert.Equal(t, []string{"create"}, backend.snapshot(), "racing sends must share one create")
	assert.Equal(t, ids[0], ids[1])
}

func TestThreadListingCachedAndInvalidatedByCreate(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	router := newTestRouter(backend.server.URL)

	// First listing populates the cache and issues the guest cookie.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/threads", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	withCookie := func(req *http.Request) *http.Request {
		for _, c := range cookies {
			req.AddCookie(c)
		}
		return req
	}

	// Second listing for the same guest is served from cache.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/chat/threads", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, backend.listCalls)

	// Creating a thread invalidates the listing so it refetches.
	body := `{"conversationId":"c1","messages":[{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]}]}`
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodPost, "/chat/stream", strings.NewReader(body))))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withCookie(httptest.NewRequest(http.MethodGet, "/chat/threads", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, backend.listCalls)
}

func TestDeleteThread(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	router := newTestRouter(backend.server.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chat/threads/t1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"delete t1"}, backend.snapshot())
}

func TestHistoryEndpointConvertsRoles(t *testing.T) {
	backend := newFakeBackend()
	defer backend.server.Close()
	router := newTestRouter(backend.server.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/chat/threads/t1/messages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[
		{"id":"m1","role":"user","parts":[{"type":"text","text":"hi"}]},
		{"id":"m2","role":"assistant","parts":[{"type":"text","text":"hello"}]}
	]}`, rec.Body.String())
}
