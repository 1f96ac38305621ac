package flow

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// DefaultDebounceDelay is the quiet window after the last chunk before the
// buffered parts are joined and flushed downstream.
const DefaultDebounceDelay = 500 * time.Millisecond

// FlushFunc is called once a user's input has been quiet for the debounce
// delay, with the token the parts were submitted under. The consumer calls
// Drain to collect the merged answer under its own lock, and uses the token
// to detect flushes that raced with a state change on its side.
type FlushFunc func(userID string, token uint64)

// accumBuffer holds the in-flight parts for one user. The generation counter
// lets a fired timer detect it was superseded by a later submit or cancel.
type accumBuffer struct {
	parts []string
	timer *time.Timer
	gen   uint64
	token uint64
}

// Accumulator coalesces bursty per-user input into one logical answer per
// quiet period. Operations for different users are independent; operations
// for the same user are serialized by the internal mutex. The flush callback
// runs outside the lock.
type Accumulator struct {
	mu      sync.Mutex
	buffers map[string]*accumBuffer
	delay   time.Duration
	flush   FlushFunc
}

// NewAccumulator creates an accumulator that notifies flush after delay of
// quiet.
func NewAccumulator(delay time.Duration, flush FlushFunc) *Accumulator {
	if delay <= 0 {
		delay = DefaultDebounceDelay
	}
	return &Accumulator{
		buffers: make(map[string]*accumBuffer),
		delay:   delay,
		flush:   flush,
	}
}

// Submit appends chunk to the user's buffer, creating it if absent, and
// restarts the debounce timer. When a fresh buffer is created and seed is
// non-empty, seed becomes the first part, so an answer already shown to the
// user but not yet confirmed is not silently dropped. The token is handed
// back to the flush callback. Whitespace-only chunks are ignored. Never
// blocks on the downstream flush.
func (a *Accumulator) Submit(userID, seed, chunk string, token uint64) {
	if strings.TrimSpace(chunk) == "" {
		slog.Debug("Accumulator Submit ignoring empty chunk", "user_id", userID)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	buf, ok := a.buffers[userID]
	if !ok {
		buf = &accumBuffer{}
		if seed != "" {
			buf.parts = append(buf.parts, seed)
			slog.Debug("Accumulator Submit seeded pending answer", "user_id", userID)
		}
		a.buffers[userID] = buf
	}

	buf.parts = append(buf.parts, chunk)
	buf.token = token
	buf.gen++
	gen := buf.gen

	if buf.timer != nil {
		buf.timer.Stop()
	}
	buf.timer = time.AfterFunc(a.delay, func() {
		a.fire(userID, gen)
	})
	slog.Debug("Accumulator Submit scheduled flush", "user_id", userID, "parts", len(buf.parts))
}

// Cancel discards the user's buffer and pending timer without flushing.
// A no-op if the buffer already flushed or never existed.
func (a *Accumulator) Cancel(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[userID]
	if !ok {
		return
	}
	if buf.timer != nil {
		buf.timer.Stop()
	}
	// A timer that already fired re-checks the buffer and generation under
	// the lock, so after this point its callback is a no-op.
	buf.gen++
	delete(a.buffers, userID)
	slog.Debug("Accumulator Cancel discarded buffer", "user_id", userID)
}

// Pending reports whether the user has an unflushed buffer.
func (a *Accumulator) Pending(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.buffers[userID]
	return ok
}

// Drain removes and returns the user's merged buffer, if any. The flush
// callback only signals readiness; the consumer drains under its own lock,
// so a submit serialized against that lock lands either in the buffer before
// the drain or in a fresh buffer after it, never in between.
func (a *Accumulator) Drain(userID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[userID]
	if !ok {
		return "", false
	}
	if buf.timer != nil {
		buf.timer.Stop()
	}
	delete(a.buffers, userID)
	text := strings.Join(buf.parts, "\n")
	slog.Debug("Accumulator Drain merged answer", "user_id", userID, "length", len(text))
	return text, true
}

// fire notifies the consumer if gen still matches; a stale generation means
// a later submit rescheduled the flush or a cancel discarded it. The buffer
// stays in place until the consumer drains it.
func (a *Accumulator) fire(userID string, gen uint64) {
	a.mu.Lock()
	buf, ok := a.buffers[userID]
	if !ok || buf.gen != gen {
		a.mu.Unlock()
		return
	}
	token := buf.token
	a.mu.Unlock()

	a.flush(userID, token)
}
