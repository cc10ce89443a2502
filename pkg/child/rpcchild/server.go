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

// Package rpcchild exposes a local child.Child over JSON-RPC/HTTP, the
// way the teacher exposes its peer and lock subsystems: one receiver
// type registered against a gorilla/rpc server, one Args/Reply struct
// pair per method, reachable through a gorilla/mux subrouter.
package rpcchild

import (
	"net/http"
	"path"
	"sync"

	"github.com/gorilla/mux"
	gorpc "github.com/gorilla/rpc"
	rpcjson "github.com/gorilla/rpc/json"
	"github.com/pkg/errors"

	"github.com/distfs/afr/pkg/child"
)

const (
	serviceName   = "Child"
	serviceSubdir = "/afr/child"
)

// receiver adapts a local child.Child to the gorilla/rpc calling
// convention: every exported method takes (*http.Request, *Args,
// *Reply) and returns error, the same shape as the teacher's
// peerRPCReceiver methods.
type receiver struct {
	local  child.Child
	secret string

	mu      sync.Mutex
	handles map[uint64]child.Handle
	nextID  uint64
}

func (r *receiver) authenticate(req *http.Request) error {
	if r.secret == "" {
		return nil
	}
	return authenticateRequest(req, r.secret)
}

func (r *receiver) storeHandle(h child.Handle) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.handles[id] = h
	return id
}

func (r *receiver) loadHandle(id uint64) (child.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	if !ok {
		return nil, errors.Errorf("rpcchild: unknown handle %d", id)
	}
	return h, nil
}

func loc(a LocationArgs) child.Location {
	return child.Location{Path: a.Path, Handle: a.Handle}
}

// Lookup - Lookup RPC receiver method.
func (r *receiver) Lookup(req *http.Request, args *LookupArgs, reply *LookupReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	row, err := r.local.Lookup(req.Context(), loc(args.LocationArgs), args.WantXattr)
	if err != nil {
		return err
	}
	reply.Row = []uint64(row)
	reply.Width = len(row)
	return nil
}

// Stat - Stat RPC receiver method.
func (r *receiver) Stat(req *http.Request, args *StatArgs, reply *StatReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	st, err := r.local.Stat(req.Context(), loc(args.LocationArgs))
	if err != nil {
		return err
	}
	reply.Size, reply.BlockSize = st.Size, st.BlockSize
	return nil
}

// InodeLock - InodeLock RPC receiver method.
func (r *receiver) InodeLock(req *http.Request, args *InodeLockArgs, reply *VoidReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	flock := child.Flock{Type: child.LockType(args.LockType)}
	return r.local.InodeLock(req.Context(), loc(args.LocationArgs), flock)
}

// Open - Open RPC receiver method.
func (r *receiver) Open(req *http.Request, args *OpenArgs, reply *OpenReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	h, err := r.local.Open(req.Context(), loc(args.LocationArgs), child.OpenFlags(args.Flags))
	if err != nil {
		return err
	}
	reply.Handle = r.storeHandle(h)
	return nil
}

// ReadAt - ReadAt RPC receiver method.
func (r *receiver) ReadAt(req *http.Request, args *ReadAtArgs, reply *ReadAtReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	h, err := r.loadHandle(args.Handle)
	if err != nil {
		return err
	}
	buf := make([]byte, args.Len)
	n, err := r.local.ReadAt(req.Context(), h, buf, args.Offset)
	if err != nil {
		return err
	}
	reply.Data = buf[:n]
	return nil
}

// WriteAt - WriteAt RPC receiver method.
func (r *receiver) WriteAt(req *http.Request, args *WriteAtArgs, reply *WriteAtReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	h, err := r.loadHandle(args.Handle)
	if err != nil {
		return err
	}
	n, err := r.local.WriteAt(req.Context(), h, args.Data, args.Offset)
	if err != nil {
		return err
	}
	reply.N = n
	return nil
}

// Flush - Flush RPC receiver method.
func (r *receiver) Flush(req *http.Request, args *FlushArgs, reply *VoidReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	h, err := r.loadHandle(args.Handle)
	if err != nil {
		return err
	}
	err = r.local.Flush(req.Context(), h)
	r.mu.Lock()
	delete(r.handles, args.Handle)
	r.mu.Unlock()
	return err
}

// ClearPendingXattr - ClearPendingXattr RPC receiver method.
func (r *receiver) ClearPendingXattr(req *http.Request, args *ClearPendingXattrArgs, reply *VoidReply) error {
	if err := r.authenticate(req); err != nil {
		return err
	}
	return r.local.ClearPendingXattr(req.Context(), loc(args.LocationArgs))
}

// NewServer returns a gorilla/rpc server exposing local under the JSON
// codec, the way the teacher's NewPeerRPCServer wraps a
// peerRPCReceiver. secret, if non-empty, is the shared cluster secret
// every caller must present a valid inter-node JWT for.
func NewServer(local child.Child, secret string) (*gorpc.Server, error) {
	rpcServer := gorpc.NewServer()
	rpcServer.RegisterCodec(rpcjson.NewCodec(), "application/json")
	r := &receiver{local: local, secret: secret, handles: make(map[uint64]child.Handle)}
	if err := rpcServer.RegisterService(r, serviceName); err != nil {
		return nil, errors.Wrap(err, "rpcchild: register service")
	}
	return rpcServer, nil
}

// RegisterRouter mounts an RPC server for local at serviceSubdir under
// router, mirroring registerPeerRPCRouter's mux wiring.
func RegisterRouter(router *mux.Router, local child.Child, secret string) error {
	rpcServer, err := NewServer(local, secret)
	if err != nil {
		return err
	}
	router.Path(path.Join(serviceSubdir, local.ID())).Handler(rpcServer)
	return nil
}
