package e2e

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"droidscope/internal/httpapi"
	"droidscope/internal/jsoncodec"
	"droidscope/internal/logsource"
	"droidscope/internal/notify"
	"droidscope/internal/session"
	"droidscope/internal/settings"
)

// hook is a fake incoming-webhook endpoint that records every payload.
type hook struct {
	mu       sync.Mutex
	status   int
	payloads []notify.Payload
	arrivals []time.Time
}

func newHook(t *testing.T, status int) (*hook, *httptest.Server) {
	t.Helper()
	h := &hook{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p notify.Payload
		if err := jsoncodec.Decode(r.Body, &p); err != nil {
			http.Error(w, "bad payload", http.StatusBadRequest)
			return
		}
		h.mu.Lock()
		h.payloads = append(h.payloads, p)
		h.arrivals = append(h.arrivals, time.Now())
		code := h.status
		h.mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return h, srv
}

func (h *hook) titles() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.payloads))
	for i, p := range h.payloads {
		out[i] = p.Title()
	}
	return out
}

func (h *hook) setStatus(code int) {
	h.mu.Lock()
	h.status = code
	h.mu.Unlock()
}

// stack is a control API wired to a session reading from a pipe.
type stack struct {
	api   *httptest.Server
	sess  *session.Session
	logW  *io.PipeWriter
	store *settings.Store
}

func newStack(t *testing.T, delay time.Duration) *stack {
	t.Helper()
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.toml"))
	if err != nil {
		t.Fatalf("open settings: %v", err)
	}
	pr, pw := io.Pipe()
	sess := session.New(session.Config{
		Source:            func() (logsource.LineSource, error) { return logsource.NewReader("pipe", pr), nil },
		Settings:          store,
		HighPriorityZones: []string{"GLITCHED"},
		ZoneStartDelay:    delay,
		DeliveryTimeout:   2 * time.Second,
		Logger:            zerolog.Nop(),
	})
	api := httptest.NewServer(httpapi.NewMux(&httpapi.Controller{Session: sess, Store: store}))
	t.Cleanup(func() {
		api.Close()
		sess.Stop()
		_ = sess.Wait()
		_ = pw.Close()
	})
	return &stack{api: api, sess: sess, logW: pw, store: store}
}

func rpcLine(item, zone string) string {
	return fmt.Sprintf(`10-19 12:00:00.000 I/Unity   ( 4242): [BloxstrapRPC] {"command":"SetRichPresence","data":{"state":"Equipped \"%s\"","largeImage":{"hoverText":"%s"}}}`+"\n", item, zone)
}

func (s *stack) writeLog(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if _, err := io.WriteString(s.logW, l); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}
}

func do(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func settingsFor(url string) settings.Values { return settings.Values{WebhookURL: url} }
