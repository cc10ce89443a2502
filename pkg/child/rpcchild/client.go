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

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	rpcjson "github.com/gorilla/rpc/json"
	"github.com/pkg/errors"

	"github.com/distfs/afr/pkg/child"
	"github.com/distfs/afr/pkg/pending"
)

// Client is a child.Child that drives a remote rpcchild server (see
// NewServer and RegisterRouter), one JSON-RPC-over-HTTP call per
// method, the way the teacher's PeerRPCClient drives a remote peer.
type Client struct {
	endpoint string // e.g. http://10.0.0.2:9000/afr/child/c1
	id       string
	token    string
	http     *http.Client
}

// NewClient returns a Client addressing id at endpoint. token, if
// non-empty, is sent as a Bearer credential on every call.
func NewClient(endpoint, id, token string) *Client {
	return &Client{endpoint: endpoint, id: id, token: token, http: &http.Client{}}
}

// ID implements child.Child.
func (c *Client) ID() string { return c.id }

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	body, err := rpcjson.EncodeClientRequest(fmt.Sprintf("%s.%s", serviceName, method), args)
	if err != nil {
		return errors.Wrap(err, "rpcchild: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "rpcchild: build request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "rpcchild: call %s", method)
	}
	defer resp.Body.Close()

	return rpcjson.DecodeClientResponse(resp.Body, reply)
}

// Lookup implements child.Child.
func (c *Client) Lookup(ctx context.Context, loc child.Location, wantXattr bool) (pending.Counters, error) {
	var reply LookupReply
	args := LookupArgs{LocationArgs: LocationArgs{Path: loc.Path, Handle: loc.Handle}, WantXattr: wantXattr}
	if err := c.call(ctx, "Lookup", args, &reply); err != nil {
		return nil, err
	}
	if !wantXattr {
		return nil, nil
	}
	return pending.Counters(reply.Row), nil
}

// Stat implements child.Child.
func (c *Client) Stat(ctx context.Context, loc child.Location) (child.Stat, error) {
	var reply StatReply
	args := StatArgs{LocationArgs{Path: loc.Path, Handle: loc.Handle}}
	if err := c.call(ctx, "Stat", args, &reply); err != nil {
		return child.Stat{}, err
	}
	return child.Stat{Size: reply.Size, BlockSize: reply.BlockSize}, nil
}

// InodeLock implements child.Child.
func (c *Client) InodeLock(ctx context.Context, loc child.Location, flock child.Flock) error {
	args := InodeLockArgs{LocationArgs{Path: loc.Path, Handle: loc.Handle}, int(flock.Type)}
	var reply VoidReply
	return c.call(ctx, "InodeLock", args, &reply)
}

// remoteHandle is the wire-visible form of a handle issued by a remote
// rpcchild server: an opaque ID, round-tripped unchanged.
type remoteHandle uint64

// Open implements child.Child.
func (c *Client) Open(ctx context.Context, loc child.Location, flags child.OpenFlags) (child.Handle, error) {
	args := OpenArgs{LocationArgs{Path: loc.Path, Handle: loc.Handle}, int(flags)}
	var reply OpenReply
	if err := c.call(ctx, "Open", args, &reply); err != nil {
		return nil, err
	}
	return remoteHandle(reply.Handle), nil
}

func asRemoteHandle(h child.Handle) (remoteHandle, error) {
	rh, ok := h.(remoteHandle)
	if !ok {
		return 0, errors.New("rpcchild: foreign handle")
	}
	return rh, nil
}

// ReadAt implements child.Child.
func (c *Client) ReadAt(ctx context.Context, h child.Handle, p []byte, offset int64) (int, error) {
	rh, err := asRemoteHandle(h)
	if err != nil {
		return 0, err
	}
	var reply ReadAtReply
	args := ReadAtArgs{Handle: uint64(rh), Len: len(p), Offset: offset}
	if err := c.call(ctx, "ReadAt", args, &reply); err != nil {
		return 0, err
	}
	return copy(p, reply.Data), nil
}

// WriteAt implements child.Child.
func (c *Client) WriteAt(ctx context.Context, h child.Handle, p []byte, offset int64) (int, error) {
	rh, err := asRemoteHandle(h)
	if err != nil {
		return 0, err
	}
	var reply WriteAtReply
	args := WriteAtArgs{Handle: uint64(rh), Data: p, Offset: offset}
	if err := c.call(ctx, "WriteAt", args, &reply); err != nil {
		return 0, err
	}
	return reply.N, nil
}

// Flush implements child.Child.
func (c *Client) Flush(ctx context.Context, h child.Handle) error {
	rh, err := asRemoteHandle(h)
	if err != nil {
		return err
	}
	var reply VoidReply
	return c.call(ctx, "Flush", FlushArgs{Handle: uint64(rh)}, &reply)
}

// ClearPendingXattr implements child.Child.
func (c *Client) ClearPendingXattr(ctx context.Context, loc child.Location) error {
	var reply VoidReply
	args := ClearPendingXattrArgs{LocationArgs{Path: loc.Path, Handle: loc.Handle}}
	return c.call(ctx, "ClearPendingXattr", args, &reply)
}
