// Package session owns a monitoring session: one background task that reads
// log lines, extracts rich-presence state, diffs it against the previous
// observation and hands formatted payloads to a delivery sink.
//
// Only an unavailable source ends a session on its own. Malformed fragments
// and failed deliveries are logged and counted; they never stop the pipeline
// or touch the observed state.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"droidscope/internal/delivery"
	"droidscope/internal/enrich"
	"droidscope/internal/logsource"
	"droidscope/internal/notify"
	"droidscope/internal/settings"
	"droidscope/internal/tracker"
	"droidscope/pkg/types"
)

// Session starts and stops monitoring runs. At most one run is active.
type Session struct {
	cfg     Config
	log     zerolog.Logger
	created time.Time

	mu      sync.RWMutex
	cur     *run // active run, nil when stopped
	last    *run // most recent run, possibly finished
	lastErr string
}

func New(cfg Config) *Session {
	return &Session{
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "session").Logger(),
		created: time.Now(),
	}
}

// run is the state of one session from Start to end of stream or Stop.
type run struct {
	source    string
	startedAt time.Time
	values    settings.Values
	sink      delivery.Sink
	stream    io.ReadCloser
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	err       error // set before done is closed

	mu       sync.Mutex
	counters types.PipelineCounters
	lastItem string
	lastZone string
}

func (r *run) closeStream() {
	r.closeOnce.Do(func() { _ = r.stream.Close() })
}

// Start opens the source and launches the pipeline. Calling Start while a run
// is active is a no-op. The run is detached from ctx cancellation; use Stop.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return nil
	}
	if s.cfg.Source == nil {
		return s.failStart(&logsource.UnavailableError{Source: "none", Err: errors.New("no source configured")})
	}
	src, err := s.cfg.Source()
	if err != nil {
		return s.failStart(err)
	}

	var values settings.Values
	if s.cfg.Settings != nil {
		values = s.cfg.Settings.Get()
	}
	store, err := enrich.Load(s.cfg.ItemsPath, s.cfg.ZonesPath)
	if err != nil {
		s.log.Warn().Err(err).Msg("enrichment tables unavailable; using defaults")
		store = enrich.Empty()
	}

	rctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := src.Open(rctx)
	if err != nil {
		cancel()
		return s.failStart(err)
	}
	r := &run{
		source:    src.Name(),
		startedAt: time.Now(),
		values:    values,
		stream:    stream,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	r.counters.Events = map[string]uint64{}
	r.sink = s.cfg.newSink(values, r.recordResult)

	p := &pipeline{
		run:       r,
		differ:    tracker.NewDiffer(s.cfg.HighPriorityZones),
		formatter: notify.NewFormatter(store, notify.DefaultPalette(), values.PrivateServerURL),
		delay:     s.cfg.zoneStartDelay(),
		log:       s.log.With().Str("source", r.source).Logger(),
	}
	s.cur, s.last, s.lastErr = r, r, ""
	running.Set(1)
	items, zones := store.Len()
	s.log.Info().Str("source", r.source).Int("items", items).Int("zones", zones).
		Bool("webhook_set", values.WebhookURL != "").Msg("session started")

	go func() {
		defer close(r.done)
		r.err = p.loop(rctx)
		s.finish(r, r.err)
	}()
	return nil
}

func (s *Session) failStart(err error) error {
	if logsource.IsSourceUnavailable(err) {
		sourceErrorsTotal.Inc()
	}
	s.lastErr = err.Error()
	s.log.Error().Str("kind", "source_unavailable").Err(err).Msg("session not started")
	return err
}

// finish runs on the pipeline goroutine once the loop returns.
func (s *Session) finish(r *run, err error) {
	r.closeStream()
	s.mu.Lock()
	if s.cur == r {
		s.cur = nil
		running.Set(0)
	}
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()
	switch {
	case errors.Is(err, io.EOF):
		sourceErrorsTotal.Inc()
		s.log.Info().Str("kind", "source_unavailable").Str("source", r.source).Msg("log stream ended")
		return
	case err != nil:
		sourceErrorsTotal.Inc()
		s.log.Error().Str("kind", "source_unavailable").Str("source", r.source).Err(err).Msg("session ended")
		return
	}
	s.log.Info().Str("source", r.source).Msg("session stopped")
}

// Stop tears down the active run and waits for the pipeline to exit.
// Deliveries already dispatched finish on their own. It reports whether a
// run was active.
func (s *Session) Stop() bool {
	s.mu.Lock()
	r := s.cur
	s.cur = nil
	if r != nil {
		running.Set(0)
	}
	s.mu.Unlock()
	if r == nil {
		return false
	}
	r.cancel()
	r.closeStream()
	<-r.done
	return true
}

func (s *Session) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur != nil
}

// Wait blocks until the most recent run has ended and its sink has drained.
// It returns the error that ended the run, nil after Stop.
func (s *Session) Wait() error {
	s.mu.RLock()
	r := s.last
	s.mu.RUnlock()
	if r == nil {
		return nil
	}
	<-r.done
	r.sink.Wait()
	return r.err
}

// Values returns the settings snapshot of the active run.
func (s *Session) Values() (settings.Values, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return settings.Values{}, false
	}
	return s.cur.values, true
}

// Status builds the response for /status from the active or last run.
func (s *Session) Status() types.StatusResponse {
	s.mu.RLock()
	r, active, lastErr := s.last, s.cur != nil, s.lastErr
	s.mu.RUnlock()

	now := time.Now()
	resp := types.StatusResponse{
		Running:        active,
		ServerTimeUnix: now.Unix(),
		UptimeSeconds:  int64(now.Sub(s.created).Seconds()),
		LastError:      lastErr,
	}
	resp.Events = map[string]uint64{}
	if r == nil {
		return resp
	}
	resp.Source = r.source
	resp.StartedAtUnix = r.startedAt.Unix()
	r.mu.Lock()
	defer r.mu.Unlock()
	resp.PipelineCounters = r.counters
	resp.Events = make(map[string]uint64, len(r.counters.Events))
	for k, v := range r.counters.Events {
		resp.Events[k] = v
	}
	resp.LastItem = r.lastItem
	resp.LastZone = r.lastZone
	return resp
}

func (r *run) recordResult(res delivery.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res.Err != nil {
		r.counters.DeliveriesFailed++
		return
	}
	r.counters.DeliveriesOK++
}
