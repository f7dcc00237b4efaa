// Package progress reports harvest status to a foreground surface.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Summary describes a completed run.
type Summary struct {
	UniqueContacts int
	ItemsScanned   int
	OutputPath     string
}

func (s Summary) String() string {
	return fmt.Sprintf("%d unique contacts exported from %d messages", s.UniqueContacts, s.ItemsScanned)
}

// Sink receives status while a run progresses. Progress percentages are
// in the range 0-100 and must be treated as monotonically non-decreasing.
type Sink interface {
	Progress(pct int, phase string)
	Done(Summary)
	Fail(err error)
}

// Console writes status lines to a writer, clamping percentages so the
// reported value never decreases.
type Console struct {
	mu   sync.Mutex
	w    io.Writer
	last int
}

// NewConsole builds a console sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Progress(pct int, phase string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pct < c.last {
		pct = c.last
	}
	if pct > 100 {
		pct = 100
	}
	c.last = pct
	fmt.Fprintf(c.w, "[%3d%%] %s\n", pct, phase)
}

func (c *Console) Done(s Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s\n", s)
	if s.OutputPath != "" {
		fmt.Fprintf(c.w, "Saved to: %s\n", s.OutputPath)
	}
}

func (c *Console) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "Harvest failed: %v\n", err)
}

// Nop discards all status. Useful in tests.
type Nop struct{}

func (Nop) Progress(int, string) {}
func (Nop) Done(Summary)         {}
func (Nop) Fail(error)           {}
