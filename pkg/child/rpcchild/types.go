/*
 * Minio Cloud Storage, (C) 2018, 2019 Minio, Inc.
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

package rpcchild

// Each RPC method gets its own Args/Reply pair, the way the teacher's
// peer and admin RPC receivers do (DeleteBucketArgs/VoidReply,
// SetBucketPolicyArgs/VoidReply, and so on) rather than one generic
// envelope, so the gorilla/rpc JSON codec can decode each call
// unambiguously by method name.

// LocationArgs identifies the inode an RPC call targets.
type LocationArgs struct {
	Path   string
	Handle string
}

// VoidReply is returned by calls that carry no payload beyond success,
// mirroring the teacher's VoidReply.
type VoidReply struct{}

// LookupArgs - Lookup RPC arguments.
type LookupArgs struct {
	LocationArgs
	WantXattr bool
}

// LookupReply - Lookup RPC reply.
type LookupReply struct {
	Row   []uint64
	Width int
}

// StatArgs - Stat RPC arguments.
type StatArgs struct {
	LocationArgs
}

// StatReply - Stat RPC reply.
type StatReply struct {
	Size      int64
	BlockSize int64
}

// InodeLockArgs - InodeLock RPC arguments.
type InodeLockArgs struct {
	LocationArgs
	LockType int
}

// OpenArgs - Open RPC arguments.
type OpenArgs struct {
	LocationArgs
	Flags int
}

// OpenReply - Open RPC reply. Handle identifies the descriptor for
// every subsequent ReadAt/WriteAt/Flush call in this heal.
type OpenReply struct {
	Handle uint64
}

// ReadAtArgs - ReadAt RPC arguments.
type ReadAtArgs struct {
	Handle uint64
	Len    int
	Offset int64
}

// ReadAtReply - ReadAt RPC reply.
type ReadAtReply struct {
	Data []byte
}

// WriteAtArgs - WriteAt RPC arguments.
type WriteAtArgs struct {
	Handle uint64
	Data   []byte
	Offset int64
}

// WriteAtReply - WriteAt RPC reply.
type WriteAtReply struct {
	N int
}

// FlushArgs - Flush RPC arguments.
type FlushArgs struct {
	Handle uint64
}

// ClearPendingXattrArgs - ClearPendingXattr RPC arguments.
type ClearPendingXattrArgs struct {
	LocationArgs
}
