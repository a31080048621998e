package watch

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Op is the kind of filesystem change seen for a path.
type Op uint8

const (
	OpCreate Op = iota + 1
	OpWrite
	OpRemove
	OpRename
)

var opNames = map[Op]string{
	OpCreate: "create",
	OpWrite:  "write",
	OpRemove: "remove",
	OpRename: "rename",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return "unknown"
}

// Change is the latest observed change to one root-relative path.
type Change struct {
	Path string
	Op   Op
	At   time.Time
}

// Coalescer merges changes into batches keyed by path. A batch is handed to
// emit once the tree has been quiet for the configured duration, or at once
// when it reaches limit paths. emit runs without the lock held.
type Coalescer struct {
	quiet time.Duration
	limit int
	emit  func([]Change)

	mu      sync.Mutex
	pending map[string]Change
	due     time.Time
	timer   *time.Timer
	closed  bool
}

func NewCoalescer(quiet time.Duration, limit int, emit func([]Change)) *Coalescer {
	return &Coalescer{
		quiet:   quiet,
		limit:   max(limit, 1),
		emit:    emit,
		pending: map[string]Change{},
	}
}

// Add records ch, replacing any pending change for the same path, and
// pushes the quiet deadline back. It is a no-op after Close.
func (c *Coalescer) Add(ch Change) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending[ch.Path] = ch
	if len(c.pending) >= c.limit {
		batch := c.drainLocked()
		c.mu.Unlock()
		c.deliver(batch)
		return
	}
	c.due = time.Now().Add(c.quiet)
	if c.timer == nil {
		c.timer = time.AfterFunc(c.quiet, c.expire)
	} else {
		c.timer.Reset(c.quiet)
	}
	c.mu.Unlock()
}

// expire runs on the timer goroutine. A timer that fires early (a Reset
// racing with an earlier expiry) re-arms itself for the remainder.
func (c *Coalescer) expire() {
	c.mu.Lock()
	if c.closed || len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	if left := time.Until(c.due); left > 0 {
		c.timer.Reset(left)
		c.mu.Unlock()
		return
	}
	batch := c.drainLocked()
	c.mu.Unlock()
	c.deliver(batch)
}

// Close emits whatever is pending and ignores later changes. Calling it
// more than once is safe.
func (c *Coalescer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	batch := c.drainLocked()
	c.mu.Unlock()
	c.deliver(batch)
}

func (c *Coalescer) drainLocked() []Change {
	batch := make([]Change, 0, len(c.pending))
	for _, ch := range c.pending {
		batch = append(batch, ch)
	}
	clear(c.pending)
	slices.SortFunc(batch, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	return batch
}

func (c *Coalescer) deliver(batch []Change) {
	if len(batch) > 0 && c.emit != nil {
		c.emit(batch)
	}
}
