/*
 * Minio Cloud Storage, (C) 2016 Minio, Inc.
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

// Package localchild is an in-process child.Child: a single replica kept
// entirely in memory, with inode locks taken through lsync.LRWMutex the
// same way the teacher's nsLockMap takes them for the non-distributed
// case. It backs both the engine's unit tests and a single-process
// deployment where every replica lives under one afrheald.
package localchild

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/minio/lsync"

	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/pending"
)

// lockTimeout bounds how long InodeLock waits for a write lock held by a
// sibling heal or a stuck caller before giving up.
const lockTimeout = 30 * time.Second

// ErrNotFound is returned by Lookup/Stat/Open for a path this replica
// has never seen.
var ErrNotFound = errors.New("localchild: no such path")

// ErrNotLocked is returned by WriteAt/ReadAt when the caller hasn't
// taken the inode lock first, catching a heal engine bug rather than
// modelling a real protocol error.
var ErrNotLocked = errors.New("localchild: handle used without a lock")

type file struct {
	data    []byte
	pending pending.Counters

	lockRef uint
	lock    *lsync.LRWMutex
	locked  bool

	openRef int
}

// Child is a single in-memory replica.
type Child struct {
	id string

	mu    sync.Mutex
	files map[string]*file

	// FailLookup, FailOpen, FailWrite, when set, make the matching
	// operation return err for every call, letting tests drive the
	// engine's tolerated-failure paths (§7) without a real network.
	FailLookup error
	FailOpen   error
	FailWrite  error

	// Calls counts invocations per method, for tests asserting a
	// replica received (or was spared) specific I/O.
	Calls CallCounts
}

// CallCounts tallies invocations of each child.Child method against a
// single replica.
type CallCounts struct {
	Lookup, Stat, InodeLock, Open, ReadAt, WriteAt, Flush, ClearPendingXattr int32
}

// New returns an empty replica identified by id.
func New(id string) *Child {
	return &Child{id: id, files: make(map[string]*file)}
}

// ID implements child.Child.
func (c *Child) ID() string { return c.id }

func (c *Child) getOrCreate(path string, width int) *file {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[path]
	if !ok {
		f = &file{pending: pending.ZeroRow(width)}
		c.files[path] = f
	}
	return f
}

func (c *Child) get(path string) (*file, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[path]
	return f, ok
}

// Seed installs data and a pending row for path, for test setup. Not
// part of child.Child.
func (c *Child) Seed(path string, data []byte, row pending.Counters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = &file{data: append([]byte(nil), data...), pending: append(pending.Counters(nil), row...)}
}

// Data returns a copy of path's current contents, for test assertions.
// Not part of child.Child.
func (c *Child) Data(path string) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[path]
	if !ok {
		return nil
	}
	return append([]byte(nil), f.data...)
}

// PendingRow returns a copy of path's current pending row, for test
// assertions. Not part of child.Child.
func (c *Child) PendingRow(path string) pending.Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[path]
	if !ok {
		return nil
	}
	return append(pending.Counters(nil), f.pending...)
}

// Lookup implements child.Child.
func (c *Child) Lookup(ctx context.Context, loc child.Location, wantXattr bool) (pending.Counters, error) {
	atomic.AddInt32(&c.Calls.Lookup, 1)
	if c.FailLookup != nil {
		return nil, c.FailLookup
	}
	f, ok := c.get(loc.Path)
	if !ok {
		return nil, ErrNotFound
	}
	if !wantXattr {
		return nil, nil
	}
	return append(pending.Counters(nil), f.pending...), nil
}

// Stat implements child.Child.
func (c *Child) Stat(ctx context.Context, loc child.Location) (child.Stat, error) {
	atomic.AddInt32(&c.Calls.Stat, 1)
	f, ok := c.get(loc.Path)
	if !ok {
		return child.Stat{}, ErrNotFound
	}
	return child.Stat{Size: int64(len(f.data)), BlockSize: 4096}, nil
}

// InodeLock implements child.Child using an lsync.LRWMutex per path,
// ref-counted the way nsLockMap ref-counts its per-<volume,path> lock so
// concurrent heals of distinct inodes never contend on the same mutex.
func (c *Child) InodeLock(ctx context.Context, loc child.Location, flock child.Flock) error {
	atomic.AddInt32(&c.Calls.InodeLock, 1)
	f := c.getOrCreate(loc.Path, 0)

	switch flock.Type {
	case child.WriteLock:
		c.mu.Lock()
		if f.lock == nil {
			f.lock = &lsync.LRWMutex{}
		}
		f.lockRef++
		lk := f.lock
		c.mu.Unlock()

		if !lk.GetLock(lockTimeout) {
			return errors.Errorf("localchild: lock of %s timed out", loc.Path)
		}

		c.mu.Lock()
		f.locked = true
		c.mu.Unlock()
		return nil

	case child.Unlock:
		c.mu.Lock()
		if f.lock == nil || !f.locked {
			c.mu.Unlock()
			return nil
		}
		lk := f.lock
		f.locked = false
		if f.lockRef > 0 {
			f.lockRef--
		}
		c.mu.Unlock()

		lk.Unlock()
		return nil
	default:
		return errors.Errorf("localchild: unknown lock type %d", flock.Type)
	}
}

// handle is the concrete type behind child.Handle for this package.
type handle struct {
	path string
}

// Open implements child.Child. Every call for the same path returns an
// equally valid handle; the file is ref-counted so Flush can tell when
// the last replica-local reference goes away.
func (c *Child) Open(ctx context.Context, loc child.Location, flags child.OpenFlags) (child.Handle, error) {
	atomic.AddInt32(&c.Calls.Open, 1)
	if c.FailOpen != nil {
		return nil, c.FailOpen
	}
	f, ok := c.get(loc.Path)
	if !ok {
		return nil, ErrNotFound
	}
	c.mu.Lock()
	f.openRef++
	c.mu.Unlock()
	return &handle{path: loc.Path}, nil
}

// ReadAt implements child.Child.
func (c *Child) ReadAt(ctx context.Context, h child.Handle, p []byte, offset int64) (int, error) {
	atomic.AddInt32(&c.Calls.ReadAt, 1)
	hd, ok := h.(*handle)
	if !ok {
		return 0, errors.New("localchild: foreign handle")
	}
	f, ok := c.get(hd.path)
	if !ok {
		return 0, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !f.locked {
		return 0, ErrNotLocked
	}
	if offset >= int64(len(f.data)) {
		return 0, nil
	}
	n := copy(p, f.data[offset:])
	return n, nil
}

// WriteAt implements child.Child.
func (c *Child) WriteAt(ctx context.Context, h child.Handle, p []byte, offset int64) (int, error) {
	atomic.AddInt32(&c.Calls.WriteAt, 1)
	if c.FailWrite != nil {
		return 0, c.FailWrite
	}
	hd, ok := h.(*handle)
	if !ok {
		return 0, errors.New("localchild: foreign handle")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[hd.path]
	if !ok {
		return 0, ErrNotFound
	}
	if !f.locked {
		return 0, ErrNotLocked
	}
	end := offset + int64(len(p))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[offset:end], p)
	return len(p), nil
}

// Flush implements child.Child.
func (c *Child) Flush(ctx context.Context, h child.Handle) error {
	atomic.AddInt32(&c.Calls.Flush, 1)
	hd, ok := h.(*handle)
	if !ok {
		return errors.New("localchild: foreign handle")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[hd.path]
	if !ok {
		return ErrNotFound
	}
	if f.openRef > 0 {
		f.openRef--
	}
	return nil
}

// ClearPendingXattr implements child.Child.
func (c *Child) ClearPendingXattr(ctx context.Context, loc child.Location) error {
	atomic.AddInt32(&c.Calls.ClearPendingXattr, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.files[loc.Path]
	if !ok {
		return ErrNotFound
	}
	for i := range f.pending {
		f.pending[i] = 0
	}
	return nil
}
