package heal

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/child/localchild"
	"github.com/distfs/afr/pkg/pending"
)

const testPath = "/data/file"

func run(t *testing.T, children []*localchild.Child) Result {
	t.Helper()
	cs := make([]child.Child, len(children))
	for i, c := range children {
		cs[i] = c
	}
	e := NewEngine(cs, 0, 0)

	var (
		mu   sync.Mutex
		got  Result
		done bool
	)
	e.Run(context.Background(), child.Location{Path: testPath}, func(r Result) {
		mu.Lock()
		defer mu.Unlock()
		got, done = r, true
	})
	mu.Lock()
	defer mu.Unlock()
	if !done {
		t.Fatal("completion was never invoked")
	}
	return got
}

func TestS1NoOp(t *testing.T) {
	c0, c1, c2 := localchild.New("c0"), localchild.New("c1"), localchild.New("c2")
	for _, c := range []*localchild.Child{c0, c1, c2} {
		c.Seed(testPath, []byte("same"), pending.ZeroRow(3))
	}

	res := run(t, []*localchild.Child{c0, c1, c2})
	if res.Outcome != OutcomeNoop {
		t.Fatalf("outcome = %v, want no-op", res.Outcome)
	}
	for _, c := range []*localchild.Child{c0, c1, c2} {
		if c.Calls.Lookup != 1 {
			t.Errorf("%s: Lookup calls = %d, want 1", c.ID(), c.Calls.Lookup)
		}
		if c.Calls.InodeLock != 0 || c.Calls.Open != 0 {
			t.Errorf("%s: expected no lock/open, got lock=%d open=%d", c.ID(), c.Calls.InodeLock, c.Calls.Open)
		}
	}
}

func TestS2SingleSink(t *testing.T) {
	c0, c1, c2 := localchild.New("c0"), localchild.New("c1"), localchild.New("c2")
	c0.Seed(testPath, []byte("hello world"), pending.Counters{0, 0, 1})
	c1.Seed(testPath, []byte("hello world"), pending.ZeroRow(3))
	c2.Seed(testPath, []byte("STALE!STALE"), pending.ZeroRow(3))

	res := run(t, []*localchild.Child{c0, c1, c2})
	if res.Outcome != OutcomeHealed {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Source != "c0" {
		t.Fatalf("source = %q, want c0", res.Source)
	}
	if !bytes.Equal(c2.Data(testPath), c0.Data(testPath)) {
		t.Fatalf("sink c2 = %q, want %q", c2.Data(testPath), c0.Data(testPath))
	}

	if c1.Calls.InodeLock != 0 || c1.Calls.Open != 0 || c1.Calls.WriteAt != 0 {
		t.Fatalf("c1 (neither source nor sink) received I/O: %+v", c1.Calls)
	}
	if c0.Calls.InodeLock == 0 || c2.Calls.InodeLock == 0 {
		t.Fatal("expected lock on source and sink")
	}
	if c0.Calls.Open == 0 || c2.Calls.Open == 0 {
		t.Fatal("expected open on source and sink")
	}
	if c2.Calls.WriteAt == 0 {
		t.Fatal("expected writes on sink c2")
	}
	if !c0.PendingRow(testPath).IsZero() || !c2.PendingRow(testPath).IsZero() {
		t.Fatal("expected pending rows cleared on source and healed sink")
	}
}

// shortReadChild wraps a localchild.Child to force its first ReadAt to
// return fewer bytes than requested, exercising S3 without needing a
// new backend implementation.
type shortReadChild struct {
	*localchild.Child
	reads int
}

func (s *shortReadChild) ReadAt(ctx context.Context, h child.Handle, p []byte, offset int64) (int, error) {
	s.reads++
	if s.reads == 1 && len(p) > 3000 {
		return s.Child.ReadAt(ctx, h, p[:3000], offset)
	}
	return s.Child.ReadAt(ctx, h, p, offset)
}

func TestS3ShortRead(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 10000)
	src := &shortReadChild{Child: localchild.New("c0")}
	src.Seed(testPath, data, pending.Counters{0, 1})
	sink := localchild.New("c1")
	sink.Seed(testPath, make([]byte, 10000), pending.ZeroRow(2))

	children := []child.Child{src, sink}
	e := NewEngine(children, 0, 0)
	var got Result
	e.Run(context.Background(), child.Location{Path: testPath}, func(r Result) { got = r })

	if got.Outcome != OutcomeHealed {
		t.Fatalf("outcome = %v, err = %v", got.Outcome, got.Err)
	}
	if !bytes.Equal(sink.Data(testPath), data) {
		t.Fatal("sink did not converge to source contents after a short read")
	}
	if src.reads < 2 {
		t.Fatalf("expected at least 2 reads after a short first read, got %d", src.reads)
	}
}

func TestS4SplitBrain(t *testing.T) {
	c0, c1 := localchild.New("c0"), localchild.New("c1")
	c0.Seed(testPath, []byte("a"), pending.Counters{0, 1})
	c1.Seed(testPath, []byte("b"), pending.Counters{1, 0})

	res := run(t, []*localchild.Child{c0, c1})
	if res.Outcome != OutcomeSplitBrain {
		t.Fatalf("outcome = %v, want split-brain", res.Outcome)
	}
	for _, c := range []*localchild.Child{c0, c1} {
		if c.Calls.Lookup != 1 {
			t.Errorf("%s: Lookup calls = %d, want 1", c.ID(), c.Calls.Lookup)
		}
		if c.Calls.InodeLock != 0 || c.Calls.Open != 0 {
			t.Errorf("%s: expected no lock/open on split-brain", c.ID())
		}
	}
	if res.SplitBrainMatrix == nil {
		t.Fatal("expected the pending matrix to be attached to a split-brain result")
	}
}

func TestS5TieBreakLowestIndex(t *testing.T) {
	c0, c1, c2 := localchild.New("c0"), localchild.New("c1"), localchild.New("c2")
	// c0 accuses c2; c1 accuses nobody; c2's own row is absent (its
	// lookup fails) and so contributes no accusations of its own. c0
	// and c1 both end up candidate sources, c2 does not.
	c0.Seed(testPath, []byte("x"), pending.Counters{0, 0, 1})
	c1.Seed(testPath, []byte("x"), pending.ZeroRow(3))
	c2.Seed(testPath, []byte("y"), pending.ZeroRow(3))
	c2.FailLookup = localchild.ErrNotFound

	res := run(t, []*localchild.Child{c0, c1, c2})
	if res.Outcome != OutcomeHealed {
		t.Fatalf("outcome = %v, err = %v", res.Outcome, res.Err)
	}
	if res.Source != "c0" {
		t.Fatalf("source = %q, want c0 (lowest-index tie-break)", res.Source)
	}
}

func TestS6StatFailure(t *testing.T) {
	c0, c1 := localchild.New("c0"), localchild.New("c1")
	c0.Seed(testPath, []byte("x"), pending.Counters{0, 1})
	c1.Seed(testPath, []byte("y"), pending.ZeroRow(2))
	failing := &statFailChild{Child: c0}

	children := []child.Child{failing, c1}
	e := NewEngine(children, 0, 0)
	var got Result
	e.Run(context.Background(), child.Location{Path: testPath}, func(r Result) { got = r })

	if got.Outcome != OutcomeAborted {
		t.Fatalf("outcome = %v, want aborted", got.Outcome)
	}
	if c1.Calls.InodeLock != 0 {
		t.Fatal("expected no inodelk issued on any replica after a stat failure")
	}
	if failing.Calls.InodeLock != 0 {
		t.Fatal("expected no inodelk issued on the source either")
	}
}

type statFailChild struct {
	*localchild.Child
}

func (s *statFailChild) Stat(ctx context.Context, loc child.Location) (child.Stat, error) {
	return child.Stat{}, errStatInjected
}

var errStatInjected = errors.New("injected stat failure")

func TestCompletionInvokedExactlyOnce(t *testing.T) {
	c0, c1 := localchild.New("c0"), localchild.New("c1")
	c0.Seed(testPath, []byte("x"), pending.ZeroRow(2))
	c1.Seed(testPath, []byte("x"), pending.ZeroRow(2))

	var calls int
	children := []child.Child{c0, c1}
	e := NewEngine(children, 0, 0)
	e.Run(context.Background(), child.Location{Path: testPath}, func(Result) { calls++ })

	if calls != 1 {
		t.Fatalf("completion invoked %d times, want exactly 1", calls)
	}
}
