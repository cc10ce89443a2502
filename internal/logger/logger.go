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

// Package logger mirrors the teacher's cmd/logger package: a tiny set of
// helpers (LogIf, FatalIf, Info) that every "tolerated" failure in the
// heal engine funnels through. LogIf and Info take a context, so their
// log line carries whatever ReqInfo the caller attached instead of
// requiring every call site to build its own fields; FatalIf takes none. The backend is zerolog rather than the
// teacher's in-house (and unretrieved) logger core.
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().
	Timestamp().
	Logger()

// SetOutput swaps the destination logs are written to, for example to
// capture output instead of writing to stderr.
func SetOutput(w zerolog.ConsoleWriter) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// ReqInfo tags a log line with the object and replica the heal is
// currently acting on, the way the teacher's logger.ReqInfo tags a line
// with bucket/object. Zero value is valid and logs no tags.
type ReqInfo struct {
	Path      string
	ChildID   string
	Operation string
	tags      []keyVal
}

type keyVal struct {
	key string
	val interface{}
}

// AppendTags records an additional key/value pair, returning the same
// ReqInfo for chaining, mirroring the teacher's fluent ReqInfo API.
func (r *ReqInfo) AppendTags(key string, value interface{}) *ReqInfo {
	r.tags = append(r.tags, keyVal{key, value})
	return r
}

type reqInfoKey struct{}

// SetReqInfo attaches ri to ctx for every LogIf/FatalIf/Info call made
// with the returned context.
func SetReqInfo(ctx context.Context, ri *ReqInfo) context.Context {
	return context.WithValue(ctx, reqInfoKey{}, ri)
}

// GetReqInfo retrieves the ReqInfo attached by SetReqInfo, or nil.
func GetReqInfo(ctx context.Context) *ReqInfo {
	ri, _ := ctx.Value(reqInfoKey{}).(*ReqInfo)
	return ri
}

func withReqInfo(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	ri := GetReqInfo(ctx)
	if ri == nil {
		return ev
	}
	if ri.Path != "" {
		ev = ev.Str("path", ri.Path)
	}
	if ri.ChildID != "" {
		ev = ev.Str("child", ri.ChildID)
	}
	if ri.Operation != "" {
		ev = ev.Str("op", ri.Operation)
	}
	for _, kv := range ri.tags {
		ev = ev.Interface(kv.key, kv.val)
	}
	return ev
}

// LogIf logs err at warn level and swallows it, for every "tolerated"
// failure kind in §7 of the spec this repository implements: a single
// probe miss, a lock failure on a sink, a write failure on a sink, a
// flush/unlock failure. A nil err is a no-op, so call sites don't need
// their own nil check.
func LogIf(ctx context.Context, err error) {
	if err == nil {
		return
	}
	withReqInfo(ctx, base.Warn()).Err(err).Msg("")
}

// FatalIf logs err at fatal level (if non-nil) and exits the process. It
// is only ever appropriate at process startup, never inside the heal
// engine itself.
func FatalIf(err error, msg string) {
	if err == nil {
		return
	}
	base.Fatal().Err(err).Msg(msg)
}

// Info logs an informational line with the given fields, analogous to
// the teacher's gf_log(..., GF_LOG_DEBUG, ...) call sites that narrate
// phase transitions.
func Info(ctx context.Context, msg string, fields map[string]interface{}) {
	ev := withReqInfo(ctx, base.Info())
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}
