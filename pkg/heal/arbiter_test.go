package heal

import (
	"testing"

	"github.com/distfs/afr/pkg/pending"
)

func TestBuildPendingMatrixAbsentRowIsZero(t *testing.T) {
	xattr := []pending.Counters{
		{0, 1},
		nil, // absent: lookup failed
	}
	m := buildPendingMatrix(xattr, 2)
	if m[0][1] != 1 {
		t.Fatalf("m[0][1] = %d, want 1", m[0][1])
	}
	if m[1][0] != 0 || m[1][1] != 0 {
		t.Fatalf("absent row should be all-zero, got %v", m[1])
	}
}

func TestIsMatrixZero(t *testing.T) {
	zero := [][]uint64{{0, 0}, {0, 0}}
	if !isMatrixZero(zero) {
		t.Error("all-zero matrix reported non-zero")
	}
	nonzero := [][]uint64{{0, 1}, {0, 0}}
	if isMatrixZero(nonzero) {
		t.Error("matrix with an accusation reported zero")
	}
}

func TestClassifySourcesSingleSink(t *testing.T) {
	// replica 0 accuses replica 2; nobody else accuses anybody.
	matrix := [][]uint64{
		{0, 0, 1},
		{0, 0, 0},
		{0, 0, 0},
	}
	sources := classifySources(matrix, 3)
	want := []bool{true, true, false}
	for i := range want {
		if sources[i] != want[i] {
			t.Fatalf("sources = %v, want %v", sources, want)
		}
	}
}

func TestClassifySourcesSplitBrain(t *testing.T) {
	// replica 0 accuses 1, replica 1 accuses 0: no candidate survives.
	matrix := [][]uint64{
		{0, 1},
		{1, 0},
	}
	sources := classifySources(matrix, 2)
	if sources[0] || sources[1] {
		t.Fatalf("sources = %v, want all false", sources)
	}
	if got := selectSource(sources, []bool{true, true}); got != -1 {
		t.Fatalf("selectSource = %d, want -1", got)
	}
}

func TestSelectSourceTieBreakLowestIndex(t *testing.T) {
	sources := []bool{true, true, false}
	up := []bool{true, true, true}
	if got := selectSource(sources, up); got != 0 {
		t.Fatalf("selectSource = %d, want 0", got)
	}
}

func TestSelectSourceSkipsDownReplicas(t *testing.T) {
	sources := []bool{true, true, false}
	up := []bool{false, true, true}
	if got := selectSource(sources, up); got != 1 {
		t.Fatalf("selectSource = %d, want 1", got)
	}
}
