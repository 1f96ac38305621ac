package flow

import (
	"sync"
	"testing"
	"time"
)

// flushRecorder drains the accumulator on each flush signal and captures the
// merged answers for assertions.
type flushRecorder struct {
	mu      sync.Mutex
	acc     *Accumulator
	flushes []flushRecord
}

type flushRecord struct {
	userID string
	text   string
	token  uint64
}

func (r *flushRecorder) flush(userID string, token uint64) {
	text, ok := r.acc.Drain(userID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes = append(r.flushes, flushRecord{userID: userID, text: text, token: token})
}

func (r *flushRecorder) all() []flushRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]flushRecord(nil), r.flushes...)
}

func (r *flushRecorder) waitCount(t *testing.T, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(r.all()) >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := len(r.all()); got < want {
		t.Fatalf("recorded %d flushes before timeout, want %d", got, want)
	}
}

func TestAccumulatorMergesChunks(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(60*time.Millisecond, rec.flush)
	rec.acc = acc

	acc.Submit("u1", "", "Hello", 7)
	time.Sleep(20 * time.Millisecond)
	acc.Submit("u1", "", "World", 7)
	time.Sleep(20 * time.Millisecond)
	acc.Submit("u1", "", "Test", 7)

	rec.waitCount(t, 1, time.Second)
	time.Sleep(100 * time.Millisecond)

	flushes := rec.all()
	if len(flushes) != 1 {
		t.Fatalf("got %d flushes, want exactly 1", len(flushes))
	}
	if flushes[0].text != "Hello\nWorld\nTest" {
		t.Errorf("merged text = %q, want %q", flushes[0].text, "Hello\nWorld\nTest")
	}
	if flushes[0].token != 7 {
		t.Errorf("flush token = %d, want the submitted 7", flushes[0].token)
	}
	if acc.Pending("u1") {
		t.Error("buffer should be cleared after flush")
	}
}

func TestAccumulatorIsolatesUsers(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(40*time.Millisecond, rec.flush)
	rec.acc = acc

	acc.Submit("a", "", "one", 0)
	acc.Submit("b", "", "uno", 0)
	acc.Submit("a", "", "two", 0)

	rec.waitCount(t, 2, time.Second)

	got := map[string]string{}
	for _, f := range rec.all() {
		got[f.userID] = f.text
	}
	if got["a"] != "one\ntwo" {
		t.Errorf("user a merged text = %q, want %q", got["a"], "one\ntwo")
	}
	if got["b"] != "uno" {
		t.Errorf("user b merged text = %q, want %q", got["b"], "uno")
	}
}

func TestAccumulatorCancelNeverFlushes(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(10*time.Millisecond, rec.flush)
	rec.acc = acc

	for i := 0; i < 100; i++ {
		acc.Submit("u1", "", "chunk", 0)
		acc.Cancel("u1")
	}
	time.Sleep(80 * time.Millisecond)

	if flushes := rec.all(); len(flushes) != 0 {
		t.Fatalf("got %d stray flushes after cancel, want 0", len(flushes))
	}
	if acc.Pending("u1") {
		t.Error("no buffer should remain after cancel")
	}
}

func TestAccumulatorCancelThenResubmit(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(30*time.Millisecond, rec.flush)
	rec.acc = acc

	acc.Submit("u1", "", "dropped", 0)
	acc.Cancel("u1")
	acc.Submit("u1", "", "kept", 0)

	rec.waitCount(t, 1, time.Second)
	flushes := rec.all()
	if len(flushes) != 1 || flushes[0].text != "kept" {
		t.Errorf("flushes = %+v, want single %q", flushes, "kept")
	}
}

func TestAccumulatorSeedsFreshBufferOnly(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(30*time.Millisecond, rec.flush)
	rec.acc = acc

	// Seed applies when the buffer is created.
	acc.Submit("u1", "shown before", "addition", 0)
	rec.waitCount(t, 1, time.Second)
	if got := rec.all()[0].text; got != "shown before\naddition" {
		t.Errorf("seeded merge = %q, want %q", got, "shown before\naddition")
	}

	// Seed is ignored while a buffer is already accumulating.
	acc.Submit("u2", "", "first", 0)
	acc.Submit("u2", "stale seed", "second", 0)
	rec.waitCount(t, 2, time.Second)
	flushes := rec.all()
	if got := flushes[len(flushes)-1].text; got != "first\nsecond" {
		t.Errorf("merge with existing buffer = %q, want %q", got, "first\nsecond")
	}
}

func TestAccumulatorDrainCollectsCurrentBuffer(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(time.Hour, rec.flush)
	rec.acc = acc

	if _, ok := acc.Drain("u1"); ok {
		t.Fatal("drain of absent buffer reported ok")
	}

	acc.Submit("u1", "seed", "chunk", 0)
	text, ok := acc.Drain("u1")
	if !ok || text != "seed\nchunk" {
		t.Errorf("drained %q (ok=%v), want %q", text, ok, "seed\nchunk")
	}
	if acc.Pending("u1") {
		t.Error("buffer should be removed by drain")
	}
}

func TestAccumulatorIgnoresEmptyChunks(t *testing.T) {
	rec := &flushRecorder{}
	acc := NewAccumulator(20*time.Millisecond, rec.flush)
	rec.acc = acc

	acc.Submit("u1", "", "", 0)
	acc.Submit("u1", "", "   \n\t", 0)
	time.Sleep(80 * time.Millisecond)

	if flushes := rec.all(); len(flushes) != 0 {
		t.Errorf("got %d flushes from empty chunks, want 0", len(flushes))
	}
	if acc.Pending("u1") {
		t.Error("empty chunks must not create a buffer")
	}
}
