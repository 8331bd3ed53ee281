package delivery

import (
	"context"
	"fmt"
	"io"
	"sync"

	"droidscope/internal/jsoncodec"
	"droidscope/internal/notify"
)

// DryRun prints payloads instead of sending them.
type DryRun struct {
	mu  sync.Mutex
	out io.Writer
	n   int
}

func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{out: out}
}

// Deliver writes p synchronously; it never blocks on the network.
func (d *DryRun) Deliver(_ context.Context, kind string, p notify.Payload) string {
	id := NewID()
	b, err := jsoncodec.MarshalIndent(p, "", "  ")
	d.mu.Lock()
	defer d.mu.Unlock()
	d.n++
	fmt.Fprintf(d.out, "--- %s #%d (%s) ---\n", kind, d.n, id)
	if err != nil {
		fmt.Fprintf(d.out, "(marshal error: %v)\n\n", err)
		return id
	}
	fmt.Fprintf(d.out, "%s\n\n", b)
	return id
}

func (d *DryRun) Wait() {}
