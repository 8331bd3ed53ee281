package delivery

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"droidscope/internal/notify"
)

// Sink accepts payloads for asynchronous delivery.
type Sink interface {
	// Deliver queues p and returns its delivery id without waiting.
	Deliver(ctx context.Context, kind string, p notify.Payload) string
	// Wait blocks until every accepted delivery has finished.
	Wait()
}

// ErrDeliveryFailed matches every delivery error.
var ErrDeliveryFailed = errors.New("delivery failed")

// DeliveryError describes one failed attempt.
type DeliveryError struct {
	ID     string
	Status int // 0 when no response was received
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("delivery %s failed: status %d: %v", e.ID, e.Status, e.Err)
	}
	return fmt.Sprintf("delivery %s failed: %v", e.ID, e.Err)
}

func (e *DeliveryError) Unwrap() error        { return e.Err }
func (e *DeliveryError) Is(target error) bool { return target == ErrDeliveryFailed }

// IsDeliveryFailed reports whether err came from a failed delivery.
func IsDeliveryFailed(err error) bool { return errors.Is(err, ErrDeliveryFailed) }

// Result is reported once per delivery.
type Result struct {
	ID       string
	Kind     string
	Status   int
	Err      error
	Duration time.Duration
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable delivery id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
