package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"droidscope/internal/delivery"
	"droidscope/internal/logsource"
	"droidscope/internal/notify"
	"droidscope/internal/settings"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func rpcLine(item, zone string) string {
	return fmt.Sprintf(`10-19 12:00:00.000 I/Unity   ( 4242): [BloxstrapRPC] {"command":"SetRichPresence","data":{"state":"Equipped \"%s\"","largeImage":{"hoverText":"%s"}}}`, item, zone)
}

func readerSource(lines ...string) func() (logsource.LineSource, error) {
	return func() (logsource.LineSource, error) {
		return logsource.NewReader("test", strings.NewReader(strings.Join(lines, "\n")+"\n")), nil
	}
}

func memoryConfig(src func() (logsource.LineSource, error), sink *delivery.MemorySink) Config {
	return Config{
		Source:            src,
		HighPriorityZones: []string{"GLITCHED", "DREAMSPACE"},
		ZoneStartDelay:    NoDelay,
		Sink: func(settings.Values, func(delivery.Result)) delivery.Sink {
			return sink
		},
		Logger: zerolog.Nop(),
	}
}

func kinds(ds []delivery.Delivery) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Kind + ":" + d.Payload.Title()
	}
	return out
}

func TestPipelineEndToEnd(t *testing.T) {
	sink := delivery.NewMemorySink()
	s := New(memoryConfig(readerSource(
		"10-19 12:00:00.000 I/ActivityManager( 100): unrelated",
		rpcLine("Nova", "WINDY"),
		"[BloxstrapRPC] {broken",
		`[BloxstrapRPC] {"command":"SetLaunchData"}`,
		rpcLine("Nova", "WINDY"),
		rpcLine("Nova", "GLITCHED"),
		"[BloxstrapRPC] no payload here",
	), sink))

	require.NoError(t, s.Start(context.Background()))
	err := s.Wait()
	require.True(t, logsource.IsSourceUnavailable(err), "err=%v", err)
	require.ErrorIs(t, err, io.EOF)

	require.Equal(t, []string{
		"item_equipped:Aura Equipped - Nova",
		"zone_started:Biome Started - WINDY",
		"zone_ended:Biome Ended - WINDY",
		"zone_started:Biome Started - GLITCHED",
	}, kinds(sink.Deliveries()))
	require.Empty(t, sink.Deliveries()[1].Payload.Content)
	require.Equal(t, notify.MentionEveryone, sink.Deliveries()[3].Payload.Content)

	st := s.Status()
	require.False(t, st.Running)
	require.Equal(t, "test", st.Source)
	require.EqualValues(t, 7, st.LinesRead)
	require.EqualValues(t, 5, st.Candidates)
	require.EqualValues(t, 1, st.Malformed)
	require.EqualValues(t, 1, st.Ignored)
	require.EqualValues(t, 4, st.DeliveriesDispatched)
	require.Equal(t, map[string]uint64{"item_equipped": 1, "zone_started": 2, "zone_ended": 1}, st.Events)
	require.Equal(t, "Nova", st.LastItem)
	require.Equal(t, "GLITCHED", st.LastZone)
	require.Contains(t, st.LastError, "source unavailable")
}

func TestZoneStartedWaitsForDelay(t *testing.T) {
	sink := delivery.NewMemorySink()
	cfg := memoryConfig(readerSource(rpcLine("", "WINDY"), rpcLine("", "RAINY")), sink)
	cfg.ZoneStartDelay = 40 * time.Millisecond
	s := New(cfg)
	require.NoError(t, s.Start(context.Background()))
	_ = s.Wait()

	ds := sink.Deliveries()
	require.Equal(t, []string{
		"zone_started:Biome Started - WINDY",
		"zone_ended:Biome Ended - WINDY",
		"zone_started:Biome Started - RAINY",
	}, kinds(ds))
	// The first zone has nothing to end, so only the second start is delayed.
	require.Less(t, ds[1].At.Sub(ds[0].At), 40*time.Millisecond)
	require.GreaterOrEqual(t, ds[2].At.Sub(ds[1].At), 40*time.Millisecond)
}

func TestStartIsIdempotentAndStopUnblocksRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	opens := 0
	sink := delivery.NewMemorySink()
	s := New(memoryConfig(func() (logsource.LineSource, error) {
		opens++
		return logsource.NewReader("pipe", pr), nil
	}, sink))

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, 1, opens)
	require.True(t, s.Running())

	_, err := io.WriteString(pw, rpcLine("Nova", "WINDY")+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.Deliveries()) == 2 }, time.Second, 5*time.Millisecond)

	require.True(t, s.Stop())
	require.False(t, s.Running())
	require.False(t, s.Stop())
	require.NoError(t, s.Wait())
	require.Empty(t, s.Status().LastError)
}

// idleReader blocks until release is closed, like a terminal nobody types into.
type idleReader struct{ release chan struct{} }

func (r idleReader) Read([]byte) (int, error) {
	<-r.release
	return 0, io.EOF
}

func stopWithin(t *testing.T, s *Session, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("Stop blocked on an idle source")
	}
}

func TestStopUnblocksIdleStdin(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer w.Close()
	orig := os.Stdin
	os.Stdin = r
	t.Cleanup(func() { os.Stdin = orig })

	sink := delivery.NewMemorySink()
	s := New(memoryConfig(func() (logsource.LineSource, error) {
		return logsource.NewReader("stdin", os.Stdin), nil
	}, sink))
	require.NoError(t, s.Start(context.Background()))

	_, err = io.WriteString(w, rpcLine("Nova", "WINDY")+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.Deliveries()) == 2 }, time.Second, 5*time.Millisecond)

	stopWithin(t, s, 2*time.Second)
	require.False(t, s.Running())
	require.NoError(t, s.Wait())
}

func TestStopUnblocksIdlePlainReader(t *testing.T) {
	idle := idleReader{release: make(chan struct{})}
	defer close(idle.release)
	s := New(memoryConfig(func() (logsource.LineSource, error) {
		return logsource.NewReader("tty", idle), nil
	}, delivery.NewMemorySink()))
	require.NoError(t, s.Start(context.Background()))
	stopWithin(t, s, 2*time.Second)
	require.NoError(t, s.Wait())
}

func TestStopDuringZoneDelay(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	sink := delivery.NewMemorySink()
	cfg := memoryConfig(func() (logsource.LineSource, error) {
		return logsource.NewReader("pipe", pr), nil
	}, sink)
	cfg.ZoneStartDelay = time.Hour
	s := New(cfg)
	require.NoError(t, s.Start(context.Background()))

	_, err := io.WriteString(pw, rpcLine("", "WINDY")+"\n"+rpcLine("", "RAINY")+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.Deliveries()) == 2 }, time.Second, 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not interrupt the zone delay")
	}
	require.Len(t, sink.Deliveries(), 2)
}

func TestStartFailsWhenSourceUnavailable(t *testing.T) {
	s := New(Config{
		Source: func() (logsource.LineSource, error) {
			return nil, &logsource.UnavailableError{Source: "auto", Err: errors.New("logcat not found")}
		},
		Logger: zerolog.Nop(),
	})
	err := s.Start(context.Background())
	require.True(t, logsource.IsSourceUnavailable(err))
	require.False(t, s.Running())
	require.Contains(t, s.Status().LastError, "logcat not found")
	require.NoError(t, s.Wait())

	err = New(Config{Logger: zerolog.Nop()}).Start(context.Background())
	require.True(t, logsource.IsSourceUnavailable(err))
}

func TestDeliveryFailureDoesNotAffectState(t *testing.T) {
	// No webhook URL configured: every delivery fails.
	s := New(Config{
		Source:         readerSource(rpcLine("", "WINDY"), rpcLine("", "RAINY"), rpcLine("", "RAINY")),
		ZoneStartDelay: NoDelay,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, s.Start(context.Background()))
	_ = s.Wait()

	st := s.Status()
	require.EqualValues(t, 3, st.DeliveriesDispatched)
	require.EqualValues(t, 3, st.DeliveriesFailed)
	require.Zero(t, st.DeliveriesOK)
	require.Equal(t, "RAINY", st.LastZone)
	require.EqualValues(t, 3, st.Candidates)
}

func TestSettingsSnapshotPerSession(t *testing.T) {
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.toml"))
	require.NoError(t, err)
	require.NoError(t, store.Set(settings.Values{WebhookURL: "https://example.invalid/a", PrivateServerURL: "ps-1"}))

	pr, pw := io.Pipe()
	defer pw.Close()
	var mu sync.Mutex
	var seen []settings.Values
	sink := delivery.NewMemorySink()
	s := New(Config{
		Source:   func() (logsource.LineSource, error) { return logsource.NewReader("pipe", pr), nil },
		Settings: store,
		Sink: func(v settings.Values, _ func(delivery.Result)) delivery.Sink {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
			return sink
		},
		ZoneStartDelay: NoDelay,
		Logger:         zerolog.Nop(),
	})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, store.Set(settings.Values{WebhookURL: "https://example.invalid/b"}))

	v, ok := s.Values()
	require.True(t, ok)
	require.Equal(t, "https://example.invalid/a", v.WebhookURL)

	_, err = io.WriteString(pw, rpcLine("", "WINDY")+"\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sink.Deliveries()) == 1 }, time.Second, 5*time.Millisecond)
	fields := sink.Deliveries()[0].Payload.Embeds[0].Fields
	require.Len(t, fields, 1)
	require.Equal(t, "ps-1", fields[0].Value)

	s.Stop()
	_, ok = s.Values()
	require.False(t, ok)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 1)
}

func TestRestartResetsObservedState(t *testing.T) {
	sink := delivery.NewMemorySink()
	s := New(memoryConfig(readerSource(rpcLine("Nova", "WINDY")), sink))
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Start(context.Background()))
		_ = s.Wait()
	}
	require.Equal(t, []string{
		"item_equipped:Aura Equipped - Nova",
		"zone_started:Biome Started - WINDY",
		"item_equipped:Aura Equipped - Nova",
		"zone_started:Biome Started - WINDY",
	}, kinds(sink.Deliveries()))
}
