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

// Package heal implements the single-inode self-heal state machine: a
// strict sequence of seven phases, each an internal fan-out across a
// replica set that must fully join before the next phase begins.
//
// Every phase is a plain method on Engine that dispatches goroutines,
// blocks on a join, and either calls the next phase or routes to the
// Finalizer. This is the "explicit state machine with a single driver"
// shape recommended over nested callbacks: each phase method is a
// state, and the driver is simply the Go call stack plus the join
// type's zero-edge detection.
package heal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/distfs/afr/internal/logger"
	"github.com/distfs/afr/internal/metrics"
	"github.com/distfs/afr/pkg/child"
)

// Engine drives data self-heal for a fixed replica set. One Engine can
// run many heals (one per Run call); each gets its own healContext.
type Engine struct {
	children     []child.Child
	minBlockSize int64
	phaseTimeout time.Duration
}

// NewEngine returns an Engine over children, indexed consistently with
// the pending-versions attribute's replica ordering. minBlockSize
// overrides the Sizer's clamp floor (defaultMinBlockSize when <= 0);
// phaseTimeout bounds each phase's own backend round trips with a fresh
// per-phase deadline (no bound when <= 0, per §5's "should").
func NewEngine(children []child.Child, minBlockSize int64, phaseTimeout time.Duration) *Engine {
	if minBlockSize <= 0 {
		minBlockSize = defaultMinBlockSize
	}
	return &Engine{children: children, minBlockSize: minBlockSize, phaseTimeout: phaseTimeout}
}

// phaseCtx derives a context scoped to a single phase's own work. The
// deadline never carries into the next phase call, which starts a
// fresh budget of its own.
func (e *Engine) phaseCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.phaseTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.phaseTimeout)
}

// Run drives one heal of loc to completion, invoking completion exactly
// once. Every backend round trip happens on its own goroutine, but Run
// waits on each phase's join and returns only after the heal has fully
// terminated, since nothing in this codebase needs to observe a heal's
// progress before its outcome.
func (e *Engine) Run(ctx context.Context, loc child.Location, completion CompletionFunc) {
	hc := newHealContext(loc, e.children)
	rctx := logger.SetReqInfo(ctx, &logger.ReqInfo{Path: loc.Path, Operation: "self-heal"})
	e.probe(rctx, hc, completion)
}

// probe is P1: lookup with xattr request on every up replica.
func (e *Engine) probe(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	n := len(hc.children)
	j := newJoin(n)
	for i, c := range hc.children {
		i, c := i, c
		go func() {
			defer j.complete()
			row, err := c.Lookup(pctx, hc.loc, true)
			if err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "probe lookup on %s", c.ID()))
				hc.childUp[i] = false
				return
			}
			hc.setXattr(i, row)
		}()
	}
	j.wait()
	cancel()
	metrics.ObservePhase("probe", time.Since(start).Seconds())

	up := 0
	for _, u := range hc.childUp {
		if u {
			up++
		}
	}
	if up == 0 {
		e.finalizer(ctx, hc, completion, OutcomeNoop, errNoUpChildren, 0)
		return
	}
	e.arbiter(ctx, hc, completion)
}

// arbiter is P2: build the pending matrix, classify sources/sinks,
// elect a source.
func (e *Engine) arbiter(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	n := len(hc.children)
	hc.matrix = buildPendingMatrix(hc.xattr, n)

	if isMatrixZero(hc.matrix) {
		metrics.ObservePhase("arbiter", time.Since(start).Seconds())
		e.finalizer(ctx, hc, completion, OutcomeNoop, nil, 0)
		return
	}

	hc.sources = classifySources(hc.matrix, n)
	hc.source = selectSource(hc.sources, hc.childUp)
	metrics.ObservePhase("arbiter", time.Since(start).Seconds())
	if hc.source == -1 {
		e.finalizer(ctx, hc, completion, OutcomeSplitBrain, errSplitBrain, 0)
		return
	}
	e.sizer(ctx, hc, completion)
}

// sizer is P3: stat the elected source for file size and block size.
func (e *Engine) sizer(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	src := hc.children[hc.source]
	st, err := src.Stat(pctx, hc.loc)
	cancel()
	if err != nil {
		logger.LogIf(ctx, errors.Wrapf(err, "stat source %s", src.ID()))
		metrics.ObservePhase("sizer", time.Since(start).Seconds())
		e.finalizer(ctx, hc, completion, OutcomeAborted, errors.Wrap(err, errSourceStatFailed.Error()), 0)
		return
	}

	hc.fileSize = st.Size
	blockSize := st.BlockSize
	if blockSize < e.minBlockSize {
		blockSize = e.minBlockSize
	}
	hc.blockSize = blockSize

	metrics.ObservePhase("sizer", time.Since(start).Seconds())
	e.locker(ctx, hc, completion)
}

// locker is P4: acquire a whole-file write lock on the source and every
// sink. Lock failures are logged but never block progress (§4.4's soft
// policy, preserved from the source even though it's fragile).
func (e *Engine) locker(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	sinks := hc.sinkIndexes()
	targets := make([]int, 0, 1+len(sinks))
	targets = append(targets, hc.source)
	targets = append(targets, sinks...)
	hc.lockedSet = targets

	j := newJoin(len(targets))
	for _, idx := range targets {
		idx := idx
		go func() {
			defer j.complete()
			err := hc.children[idx].InodeLock(pctx, hc.loc, child.WholeFile(child.WriteLock))
			if err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "inodelk on %s", hc.children[idx].ID()))
			}
		}()
	}
	j.wait()
	cancel()
	metrics.ObservePhase("locker", time.Since(start).Seconds())

	e.opener(ctx, hc, completion)
}

// opener is P5: open the shared heal descriptor on the locked set. Any
// open failure latches the abort flag rather than terminating from
// inside the fan-out (§9's open-failure-abort-race fix); the join edge
// is still reached by every dispatched open before the engine decides
// whether to proceed.
func (e *Engine) opener(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	targets := hc.lockedSet
	j := newJoin(len(targets))
	for _, idx := range targets {
		idx := idx
		go func() {
			defer j.complete()
			h, err := hc.children[idx].Open(pctx, hc.loc, child.ReadWrite|child.LargeFile)
			if err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "open on %s", hc.children[idx].ID()))
				hc.aborted.Store(true)
				return
			}
			hc.setHandle(idx, h)
		}()
	}
	j.wait()
	cancel()
	metrics.ObservePhase("opener", time.Since(start).Seconds())

	if hc.aborted.Load() {
		e.finalizer(ctx, hc, completion, OutcomeAborted, errSourceOpenFailed, 0)
		return
	}
	e.copier(ctx, hc, completion)
}

// copier is P6: serial reads from the source, parallel writes to every
// sink that has an open handle, advancing offset by exactly what the
// source returned each round.
func (e *Engine) copier(ctx context.Context, hc *healContext, completion CompletionFunc) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	srcHandle, ok := hc.getHandle(hc.source)
	if !ok {
		// The source itself failed to open; opener already aborted.
		metrics.ObservePhase("copier", time.Since(start).Seconds())
		e.finalizer(ctx, hc, completion, OutcomeAborted, errSourceOpenFailed, 0)
		return
	}
	srcChild := hc.children[hc.source]

	var copied int64
	for hc.offset < hc.fileSize {
		buf := make([]byte, hc.blockSize)
		n, err := srcChild.ReadAt(pctx, srcHandle, buf, hc.offset)
		if err != nil {
			logger.LogIf(ctx, errors.Wrapf(err, "read source %s at offset %d", srcChild.ID(), hc.offset))
			metrics.ObservePhase("copier", time.Since(start).Seconds())
			e.finalizer(ctx, hc, completion, OutcomeAborted, errSourceReadFailed, copied)
			return
		}
		if n == 0 {
			logger.LogIf(ctx, errors.Wrapf(errSourceReadFailed, "zero-byte read from %s at offset %d before EOF", srcChild.ID(), hc.offset))
			metrics.ObservePhase("copier", time.Since(start).Seconds())
			e.finalizer(ctx, hc, completion, OutcomeAborted, errSourceReadFailed, copied)
			return
		}

		chunk := buf[:n]
		writeOffset := hc.offset
		sinks := hc.openSinkIndexes()

		j := newJoin(len(sinks))
		for _, idx := range sinks {
			idx := idx
			go func() {
				defer j.complete()
				h, _ := hc.getHandle(idx)
				if _, err := hc.children[idx].WriteAt(pctx, h, chunk, writeOffset); err != nil {
					logger.LogIf(ctx, errors.Wrapf(err, "write sink %s at offset %d", hc.children[idx].ID(), writeOffset))
					hc.markSinkFailed(idx)
				}
			}()
		}
		j.wait()

		copied += int64(n)
		hc.offset += int64(n)
	}

	metrics.ObservePhase("copier", time.Since(start).Seconds())
	e.finalizer(ctx, hc, completion, OutcomeHealed, nil, copied)
}

// finalizer is P7: flush, erase pending marks (a real fan-out rather
// than the source's unlock-only stub), unlock the full P4-locked set,
// then invoke completion exactly once. Every step degrades gracefully
// to a no-op when nothing was acquired (a no-op or split-brain heal
// reaches this with empty handle and lock sets), which is what lets
// every terminal path in this file route through here uniformly.
func (e *Engine) finalizer(ctx context.Context, hc *healContext, completion CompletionFunc, outcome Outcome, err error, bytesCopied int64) {
	start := time.Now()
	pctx, cancel := e.phaseCtx(ctx)
	e.flushOpenHandles(pctx, hc)
	e.erasePendingMarks(pctx, hc, outcome)
	e.unlockLockedSet(pctx, hc)
	cancel()
	metrics.ObservePhase("finalizer", time.Since(start).Seconds())

	res := Result{Outcome: outcome, Err: err, BytesCopied: bytesCopied}
	if hc.source >= 0 {
		res.Source = hc.children[hc.source].ID()
	}
	if outcome == OutcomeSplitBrain {
		res.SplitBrainMatrix = hc.matrix
	}
	for idx := range hc.failedSink {
		if hc.sinkFailed(idx) {
			res.FailedSinks = append(res.FailedSinks, hc.children[idx].ID())
		}
	}

	splitBrainReplicas := 0
	if outcome == OutcomeSplitBrain {
		splitBrainReplicas = len(res.SplitBrainMatrix)
	}
	metrics.ObserveResult(outcome.String(), bytesCopied, splitBrainReplicas)

	hc.once.Do(func() {
		logger.Info(ctx, "heal finished", map[string]interface{}{
			"outcome": outcome.String(),
			"bytes":   bytesCopied,
		})
		completion(res)
	})
}

func (e *Engine) flushOpenHandles(ctx context.Context, hc *healContext) {
	hc.mu.Lock()
	targets := make([]int, 0, len(hc.handles))
	for idx := range hc.handles {
		targets = append(targets, idx)
	}
	hc.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	j := newJoin(len(targets))
	for _, idx := range targets {
		idx := idx
		go func() {
			defer j.complete()
			h, _ := hc.getHandle(idx)
			if err := hc.children[idx].Flush(ctx, h); err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "flush %s", hc.children[idx].ID()))
			}
		}()
	}
	j.wait()
}

// erasePendingMarks clears the pending-versions attribute on every sink
// that completed every write, restricting the fan-out the way §9's
// soft-sink-failure note requires rather than clearing it
// unconditionally. The source's row holds its accusations against other
// replicas, so it is cleared only when every replica it accuses is a
// sink that completed every write; otherwise a failed or unreached
// replica stays marked stale.
func (e *Engine) erasePendingMarks(ctx context.Context, hc *healContext, outcome Outcome) {
	if outcome != OutcomeHealed {
		return
	}

	targets := make([]int, 0, 1+len(hc.sinkIndexes()))
	healed := make(map[int]bool)
	for _, idx := range hc.sinkIndexes() {
		if !hc.sinkFailed(idx) {
			targets = append(targets, idx)
			healed[idx] = true
		}
	}
	clearSource := true
	for j, v := range hc.matrix[hc.source] {
		if v != 0 && !healed[j] {
			clearSource = false
		}
	}
	if clearSource {
		targets = append(targets, hc.source)
	}

	j := newJoin(len(targets))
	for _, idx := range targets {
		idx := idx
		go func() {
			defer j.complete()
			if err := hc.children[idx].ClearPendingXattr(ctx, hc.loc); err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "clear pending xattr on %s", hc.children[idx].ID()))
			}
		}()
	}
	j.wait()
}

func (e *Engine) unlockLockedSet(ctx context.Context, hc *healContext) {
	if len(hc.lockedSet) == 0 {
		return
	}

	j := newJoin(len(hc.lockedSet))
	for _, idx := range hc.lockedSet {
		idx := idx
		go func() {
			defer j.complete()
			if err := hc.children[idx].InodeLock(ctx, hc.loc, child.WholeFile(child.Unlock)); err != nil {
				logger.LogIf(ctx, errors.Wrapf(err, "unlock %s", hc.children[idx].ID()))
			}
		}()
	}
	j.wait()
}

// openSinkIndexes is sinkIndexes restricted to replicas that actually
// hold an open handle, i.e. the survivors of a partial P5 failure.
func (hc *healContext) openSinkIndexes() []int {
	all := hc.sinkIndexes()
	open := make([]int, 0, len(all))
	for _, idx := range all {
		if _, ok := hc.getHandle(idx); ok {
			open = append(open, idx)
		}
	}
	return open
}
