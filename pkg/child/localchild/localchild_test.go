package localchild

import (
	"context"
	"testing"

	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/pending"
)

func TestLookupNotFound(t *testing.T) {
	c := New("c0")
	_, err := c.Lookup(context.Background(), child.Location{Path: "/a"}, true)
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestLookupReturnsPendingRow(t *testing.T) {
	c := New("c0")
	c.Seed("/a", []byte("hello"), pending.Counters{0, 3})

	row, err := c.Lookup(context.Background(), child.Location{Path: "/a"}, true)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(row) != 2 || row[1] != 3 {
		t.Fatalf("got %v, want [0 3]", row)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := New("c0")
	c.Seed("/a", make([]byte, 10), pending.ZeroRow(2))
	ctx := context.Background()
	loc := child.Location{Path: "/a"}

	if err := c.InodeLock(ctx, loc, child.WholeFile(child.WriteLock)); err != nil {
		t.Fatalf("InodeLock: %v", err)
	}
	h, err := c.Open(ctx, loc, child.ReadWrite)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := c.WriteAt(ctx, h, []byte("abcd"), 2); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	buf := make([]byte, 4)
	n, err := c.ReadAt(ctx, h, buf, 2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || string(buf) != "abcd" {
		t.Fatalf("got %q (%d), want abcd (4)", buf[:n], n)
	}
}

func TestWriteAtGrowsFile(t *testing.T) {
	c := New("c0")
	c.Seed("/a", []byte("ab"), pending.ZeroRow(1))
	ctx := context.Background()
	loc := child.Location{Path: "/a"}
	_ = c.InodeLock(ctx, loc, child.WholeFile(child.WriteLock))
	h, _ := c.Open(ctx, loc, child.ReadWrite)

	if _, err := c.WriteAt(ctx, h, []byte("XYZ"), 2); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	if got := string(c.Data("/a")); got != "abXYZ" {
		t.Fatalf("got %q, want abXYZ", got)
	}
}

func TestClearPendingXattr(t *testing.T) {
	c := New("c0")
	c.Seed("/a", nil, pending.Counters{1, 2, 3})

	if err := c.ClearPendingXattr(context.Background(), child.Location{Path: "/a"}); err != nil {
		t.Fatalf("ClearPendingXattr: %v", err)
	}
	if !c.PendingRow("/a").IsZero() {
		t.Fatal("row should be zero after clearing")
	}
}

func TestInodeLockExcludesConcurrentLock(t *testing.T) {
	c := New("c0")
	c.Seed("/a", nil, pending.ZeroRow(1))
	ctx := context.Background()
	loc := child.Location{Path: "/a"}

	if err := c.InodeLock(ctx, loc, child.WholeFile(child.WriteLock)); err != nil {
		t.Fatalf("first lock: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.InodeLock(context.Background(), loc, child.WholeFile(child.WriteLock))
	}()

	select {
	case <-done:
		t.Fatal("second lock should have blocked while first was held")
	default:
	}

	if err := c.InodeLock(ctx, loc, child.WholeFile(child.Unlock)); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("second lock after release: %v", err)
	}
	// leave it unlocked for any further use
	_ = c.InodeLock(ctx, loc, child.WholeFile(child.Unlock))
}

func TestWriteAtWithoutLockFails(t *testing.T) {
	c := New("c0")
	c.Seed("/a", []byte("ab"), pending.ZeroRow(1))
	ctx := context.Background()
	h, _ := c.Open(ctx, child.Location{Path: "/a"}, child.ReadWrite)

	if _, err := c.WriteAt(ctx, h, []byte("XYZ"), 0); err != ErrNotLocked {
		t.Fatalf("got %v, want ErrNotLocked", err)
	}
}

func TestReadAtWithoutLockFails(t *testing.T) {
	c := New("c0")
	c.Seed("/a", []byte("ab"), pending.ZeroRow(1))
	ctx := context.Background()
	h, _ := c.Open(ctx, child.Location{Path: "/a"}, child.ReadWrite)

	buf := make([]byte, 2)
	if _, err := c.ReadAt(ctx, h, buf, 0); err != ErrNotLocked {
		t.Fatalf("got %v, want ErrNotLocked", err)
	}
}

func TestFailLookupInjection(t *testing.T) {
	c := New("c0")
	c.FailLookup = ErrNotFound
	_, err := c.Lookup(context.Background(), child.Location{Path: "/a"}, false)
	if err != ErrNotFound {
		t.Fatalf("got %v, want injected error", err)
	}
}
