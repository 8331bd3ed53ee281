package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"droidscope/internal/jsoncodec"
	"droidscope/internal/notify"
)

var (
	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "droidscope",
			Subsystem: "delivery",
			Name:      "total",
			Help:      "Webhook deliveries by event kind and result",
		},
		[]string{"kind", "result"},
	)

	deliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "droidscope",
			Subsystem: "delivery",
			Name:      "duration_seconds",
			Help:      "Duration of webhook POSTs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(deliveriesTotal, deliveryDuration)
}

// Defaults applied when WebhookConfig fields are unset.
const (
	defaultTimeout     = 10 * time.Second
	defaultMaxInflight = 8
	maxErrorBody       = 512
)

// WebhookConfig configures a Webhook sink.
type WebhookConfig struct {
	URL         string
	Client      *http.Client
	Timeout     time.Duration
	MaxInflight int
	Logger      zerolog.Logger
	// OnResult, if set, is called from the delivery goroutine.
	OnResult func(Result)
}

// Webhook POSTs payloads as JSON to an incoming-webhook URL.
type Webhook struct {
	url      string
	client   *http.Client
	timeout  time.Duration
	sem      *semaphore.Weighted
	log      zerolog.Logger
	onResult func(Result)
	wg       sync.WaitGroup
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	w := &Webhook{
		url:      strings.TrimSpace(cfg.URL),
		client:   cfg.Client,
		timeout:  cfg.Timeout,
		log:      cfg.Logger,
		onResult: cfg.OnResult,
	}
	if w.client == nil {
		// Timeout=0: every request carries its own context deadline.
		w.client = &http.Client{Timeout: 0}
	}
	if w.timeout <= 0 {
		w.timeout = defaultTimeout
	}
	inflight := cfg.MaxInflight
	if inflight <= 0 {
		inflight = defaultMaxInflight
	}
	w.sem = semaphore.NewWeighted(int64(inflight))
	return w
}

// Deliver starts the POST in the background. Cancellation of ctx does not
// abort a delivery that has already been accepted. Deliveries beyond
// MaxInflight wait their turn in parked goroutines; none is dropped.
func (w *Webhook) Deliver(ctx context.Context, kind string, p notify.Payload) string {
	id := NewID()
	dctx := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		// dctx is never canceled, so Acquire only returns once a slot is free.
		_ = w.sem.Acquire(dctx, 1)
		defer w.sem.Release(1)
		start := time.Now()
		status, err := w.post(dctx, p)
		res := Result{ID: id, Kind: kind, Status: status, Duration: time.Since(start)}
		if err != nil {
			res.Err = &DeliveryError{ID: id, Status: status, Err: err}
		}
		w.finish(res, p)
	}()
	return id
}

func (w *Webhook) Wait() { w.wg.Wait() }

func (w *Webhook) post(ctx context.Context, p notify.Payload) (int, error) {
	if w.url == "" {
		return 0, fmt.Errorf("webhook url is not configured")
	}
	body, err := jsoncodec.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("webhook http error: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (w *Webhook) finish(res Result, p notify.Payload) {
	deliveryDuration.WithLabelValues(res.Kind).Observe(res.Duration.Seconds())
	if res.Err != nil {
		deliveriesTotal.WithLabelValues(res.Kind, "failed").Inc()
		w.log.Warn().
			Str("kind", "delivery_failure").
			Str("delivery_id", res.ID).
			Str("event", res.Kind).
			Str("title", p.Title()).
			Int("status", res.Status).
			Err(res.Err).
			Msg("webhook delivery failed")
	} else {
		deliveriesTotal.WithLabelValues(res.Kind, "ok").Inc()
		w.log.Debug().
			Str("delivery_id", res.ID).
			Str("event", res.Kind).
			Str("title", p.Title()).
			Int("status", res.Status).
			Dur("dur", res.Duration).
			Msg("webhook delivered")
	}
	if w.onResult != nil {
		w.onResult(res)
	}
}
