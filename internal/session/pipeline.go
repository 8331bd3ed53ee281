package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"droidscope/internal/extract"
	"droidscope/internal/logsource"
	"droidscope/internal/notify"
	"droidscope/internal/scanner"
	"droidscope/internal/tracker"
)

// pipeline is owned by a single goroutine; ObservedState needs no lock.
type pipeline struct {
	run       *run
	differ    *tracker.Differ
	formatter *notify.Formatter
	delay     time.Duration
	log       zerolog.Logger

	state tracker.ObservedState
	lines uint64
}

// loop reads until the stream ends. It returns nil when ctx was canceled and
// an UnavailableError when the source ended or failed by itself; a clean end
// of stream also matches io.EOF.
func (p *pipeline) loop(ctx context.Context) error {
	sc := scanner.New(p.run.stream)
	for sc.Next() {
		p.syncLines(sc.Stats().Lines)
		candidatesTotal.Inc()
		if !p.handle(ctx, sc.Fragment()) {
			return nil
		}
	}
	p.syncLines(sc.Stats().Lines)
	if ctx.Err() != nil {
		return nil
	}
	err := sc.Err()
	if err == nil || errors.Is(err, io.EOF) {
		err = fmt.Errorf("log stream ended: %w", io.EOF)
	}
	return &logsource.UnavailableError{Source: p.run.source, Err: err}
}

func (p *pipeline) syncLines(n uint64) {
	if n <= p.lines {
		return
	}
	linesTotal.Add(float64(n - p.lines))
	p.lines = n
	p.run.mu.Lock()
	p.run.counters.LinesRead = n
	p.run.mu.Unlock()
}

// handle processes one fragment. It returns false if ctx was canceled while
// waiting to dispatch.
func (p *pipeline) handle(ctx context.Context, frag string) bool {
	ex, ok, err := extract.Extract(frag)
	p.run.mu.Lock()
	p.run.counters.Candidates++
	switch {
	case err != nil:
		p.run.counters.Malformed++
	case !ok:
		p.run.counters.Ignored++
	}
	p.run.mu.Unlock()
	if err != nil {
		malformedTotal.Inc()
		p.log.Warn().Str("kind", "malformed_fragment").Err(err).Msg("fragment dropped")
		return true
	}
	if !ok {
		return true
	}

	events := p.differ.Diff(&p.state, ex)
	p.run.mu.Lock()
	p.run.lastItem = p.state.LastEquippedItem
	p.run.lastZone = p.state.LastZone
	p.run.mu.Unlock()

	for i, ev := range events {
		if ev.Kind() == tracker.KindZoneStarted && i > 0 && events[i-1].Kind() == tracker.KindZoneEnded {
			if !p.sleep(ctx) {
				return false
			}
		}
		p.dispatch(ctx, ev)
	}
	return true
}

func (p *pipeline) sleep(ctx context.Context) bool {
	if p.delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (p *pipeline) dispatch(ctx context.Context, ev tracker.Event) {
	kind := string(ev.Kind())
	payload := p.formatter.Format(ev)
	id := p.run.sink.Deliver(ctx, kind, payload)
	eventsTotal.WithLabelValues(kind).Inc()
	p.run.mu.Lock()
	p.run.counters.Events[kind]++
	p.run.counters.DeliveriesDispatched++
	p.run.mu.Unlock()
	p.log.Info().Str("event", kind).Str("delivery_id", id).Str("title", payload.Title()).Msg("event dispatched")
}
