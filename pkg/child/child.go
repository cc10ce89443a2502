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

// Package child declares the contract the self-heal engine expects of a
// backend replica. Everything here is a consumer-side interface: lookup,
// stat, inode locking, open/read/write/flush and the legacy pending-xattr
// clear. How a given Child actually talks to its replica (in-process, or
// over the wire) is the concern of its own package
// (localchild, rpcchild); the engine in pkg/heal only ever depends on
// this interface.
package child

import (
	"context"

	"github.com/distfs/afr/pkg/pending"
)

// Location is the canonical address of the inode being healed: the path
// the translator layer resolves against each child, plus the stable
// inode handle used to detect the child renaming or recreating the path
// out from under the heal.
type Location struct {
	Path   string
	Handle string
}

// LockType mirrors the POSIX fcntl lock types the protocol actually
// uses: a whole-file write lock, and its release.
type LockType int

const (
	WriteLock LockType = iota
	Unlock
)

// Flock is the advisory range lock taken on the inode. Start=0, Len=0
// means "whole file", the only range this engine ever requests.
type Flock struct {
	Type  LockType
	Start int64
	Len   int64
}

// WholeFile is the canonical lock range used for both the P4 write lock
// and the P7 unlock.
func WholeFile(t LockType) Flock { return Flock{Type: t, Start: 0, Len: 0} }

// OpenFlags mirrors the flags used to open the shared heal descriptor.
type OpenFlags int

const (
	ReadWrite OpenFlags = 1 << iota
	LargeFile
)

// Stat is the subset of a replica's file attributes the engine needs.
type Stat struct {
	Size      int64
	BlockSize int64
}

// Handle is an opaque per-child file descriptor returned by Open. Its
// only use is being passed back into ReadAt/WriteAt/Flush on the same
// child; the engine never inspects it.
type Handle interface{}

// Child is the RPC-shaped, per-replica contract the engine drives. Every
// method call corresponds to exactly one wire round trip in a real
// deployment (rpcchild) or one map access in tests (localchild); the
// engine is responsible for all fan-out and concurrency, Child
// implementations are not expected to be internally concurrent beyond
// what's needed to serve one call.
type Child interface {
	// Lookup resolves loc and, when wantXattr is true, also returns the
	// decoded pending-versions row this replica holds for every other
	// replica. A lookup failure is reported via err; the caller treats a
	// failed lookup as an absent (all-zero) row, never as an error that
	// aborts the heal.
	Lookup(ctx context.Context, loc Location, wantXattr bool) (pending.Counters, error)

	// Stat returns st_size/st_blksize for loc.
	Stat(ctx context.Context, loc Location) (Stat, error)

	// InodeLock requests or releases the whole-file advisory lock.
	InodeLock(ctx context.Context, loc Location, flock Flock) error

	// Open creates (or, if called again for the same Location from
	// another replica of the same heal, joins) the heal's shared
	// descriptor and returns this replica's handle for it.
	Open(ctx context.Context, loc Location, flags OpenFlags) (Handle, error)

	// ReadAt reads up to len(p) bytes at offset, returning however many
	// bytes were actually read — a short read is not an error.
	ReadAt(ctx context.Context, h Handle, p []byte, offset int64) (int, error)

	// WriteAt writes p at offset.
	WriteAt(ctx context.Context, h Handle, p []byte, offset int64) (int, error)

	// Flush persists and releases h.
	Flush(ctx context.Context, h Handle) error

	// ClearPendingXattr erases this replica's pending-versions row,
	// withdrawing its accusations against every other replica. Called
	// only for sinks the Copier never failed to write to, and for the
	// source only when every replica it accuses was such a sink (see
	// pkg/heal's soft-sink-failure tracking).
	ClearPendingXattr(ctx context.Context, loc Location) error

	// ID is this replica's stable identifier, used for logging and in
	// heal results. Pending rows are not keyed by it: they are indexed
	// by replica position (see pkg/pending).
	ID() string
}
