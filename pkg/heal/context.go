/*
 * Minio Cloud Storage, (C) 2016, 2017, 2018 Minio, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package heal

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/pending"
)

// defaultMinBlockSize is the floor the Sizer clamps a backend-reported
// block size to when the caller configures no minimum, per §4.3's note
// that the source does not guard a zero or absurd st_blksize.
const defaultMinBlockSize = 128 * 1024

// healContext is the per-heal state of §3: every field past
// construction is touched by exactly one phase at a time under the
// engine's strict join discipline (§5), except the fields explicitly
// called out below, which are mutated concurrently within a single
// fan-out and are therefore behind mu. childUp is the one exception: P1
// writes it concurrently without mu, each goroutine touching only its
// own element.
type healContext struct {
	loc      child.Location
	children []child.Child
	childUp  []bool

	mu         sync.Mutex
	xattr      []pending.Counters // guarded by mu: installed concurrently in P1
	handles    map[int]child.Handle
	failedSink map[int]bool

	matrix  [][]uint64
	sources []bool
	source  int

	fileSize  int64
	blockSize int64
	offset    int64

	lockedSet []int // indices locked in P4; unlocked in full in P7 regardless of open outcome

	aborted atomic.Bool
	once    sync.Once
}

func newHealContext(loc child.Location, children []child.Child) *healContext {
	n := len(children)
	up := make([]bool, n)
	for i := range up {
		up[i] = true
	}
	return &healContext{
		loc:        loc,
		children:   children,
		childUp:    up,
		xattr:      make([]pending.Counters, n),
		handles:    make(map[int]child.Handle),
		failedSink: make(map[int]bool),
		source:     -1,
	}
}

func (c *healContext) setXattr(i int, row pending.Counters) {
	c.mu.Lock()
	c.xattr[i] = row
	c.mu.Unlock()
}

func (c *healContext) setHandle(i int, h child.Handle) {
	c.mu.Lock()
	c.handles[i] = h
	c.mu.Unlock()
}

func (c *healContext) getHandle(i int) (child.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handles[i]
	return h, ok
}

func (c *healContext) markSinkFailed(i int) {
	c.mu.Lock()
	c.failedSink[i] = true
	c.mu.Unlock()
}

func (c *healContext) sinkFailed(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failedSink[i]
}

// sinkIndexes returns every index that is a sink (not the source) and
// was up at probe time, in ascending order.
func (c *healContext) sinkIndexes() []int {
	var sinks []int
	for i, up := range c.childUp {
		if !up || i == c.source {
			continue
		}
		if c.sources[i] {
			continue
		}
		sinks = append(sinks, i)
	}
	return sinks
}
