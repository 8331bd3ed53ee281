package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"droidscope/internal/logsource"
)

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/zones/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	pattern := httpRequestsTotal.WithLabelValues("/zones/{name}", http.MethodGet, "202")
	before := testutil.ToFloat64(pattern)
	for _, zone := range []string{"GLITCHED", "DREAMSPACE", "CYBERSPACE"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/zones/"+zone, nil))
		if rr.Code != http.StatusAccepted {
			t.Fatalf("status=%d", rr.Code)
		}
	}
	if got := testutil.ToFloat64(pattern) - before; got != 3 {
		t.Fatalf("pattern counter delta=%v want 3", got)
	}
	raw := httpRequestsTotal.WithLabelValues("/zones/GLITCHED", http.MethodGet, "202")
	if testutil.ToFloat64(raw) != 0 {
		t.Fatalf("raw path leaked into labels")
	}
}

func TestMetricsMiddleware_UnroutedFallsBackToPath(t *testing.T) {
	h := MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	c := httpRequestsTotal.WithLabelValues("/plain", http.MethodGet, "200")
	before := testutil.ToFloat64(c)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plain", nil))
	if testutil.ToFloat64(c)-before != 1 {
		t.Fatalf("expected implicit 200 to be counted under the raw path")
	}
}

func TestSessionControlCounters(t *testing.T) {
	ok := sessionControlTotal.WithLabelValues("start", "ok")
	failed := sessionControlTotal.WithLabelValues("start", "error")
	stopped := sessionControlTotal.WithLabelValues("stop", "ok")
	okBefore, failedBefore, stopBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed), testutil.ToFloat64(stopped)

	svc := &mockService{}
	h := NewMux(svc)
	do(t, h, http.MethodPost, "/session/start", "", "")
	svc.startErr = &logsource.UnavailableError{Source: "direct", Err: errors.New("no logcat")}
	do(t, h, http.MethodPost, "/session/start", "", "")
	do(t, h, http.MethodPost, "/session/stop", "", "")

	if testutil.ToFloat64(ok)-okBefore != 1 || testutil.ToFloat64(failed)-failedBefore != 1 {
		t.Fatalf("start counters not updated")
	}
	if testutil.ToFloat64(stopped)-stopBefore != 1 {
		t.Fatalf("stop counter not updated")
	}
}
