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

// Package pending implements the wire format of the pending-versions
// extended attribute the replicated transaction layer stamps on writes.
//
// The attribute is a flat array of fixed-width, big-endian counters, one
// per replica, indexed by replica position: counters[j] is how many
// outstanding data writes the replica holding this attribute believes
// replica j has not yet acknowledged. This encoding must be parsed
// exactly as-is to interoperate with replicas written by the legacy
// system, so it is kept independent of the self-heal engine that
// consumes it.
package pending

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// counterSize is the byte width of a single pending counter on the wire.
const counterSize = 8

// ErrTruncated is returned when a raw attribute's length is not exactly
// the expected counter count times the counter width.
var ErrTruncated = errors.New("pending: attribute length does not match the counter count")

// Counters is one replica's decoded pending-versions row: Counters[j] is
// this replica's count of unacknowledged writes against replica j.
type Counters []uint64

// Encode serialises counters as network-byte-order (big-endian) 64-bit
// integers, back to back, in replica-index order.
func Encode(counters Counters) []byte {
	raw := make([]byte, len(counters)*counterSize)
	for i, c := range counters {
		binary.BigEndian.PutUint64(raw[i*counterSize:], c)
	}
	return raw
}

// Decode parses a raw attribute into n counters. It returns ErrTruncated
// if raw isn't exactly n*8 bytes; legacy writers never pad or truncate
// this attribute, so any other length indicates corruption upstream.
func Decode(raw []byte, n int) (Counters, error) {
	if len(raw) != n*counterSize {
		return nil, errors.Wrapf(ErrTruncated, "got %d bytes, want %d", len(raw), n*counterSize)
	}
	counters := make(Counters, n)
	for i := range counters {
		counters[i] = binary.BigEndian.Uint64(raw[i*counterSize:])
	}
	return counters, nil
}

// ZeroRow returns an all-zero row of width n, used for replicas whose
// attribute could not be fetched (absent rows contribute no accusations).
func ZeroRow(n int) Counters {
	return make(Counters, n)
}

// IsZero reports whether every counter in the row is zero.
func (c Counters) IsZero() bool {
	for _, v := range c {
		if v != 0 {
			return false
		}
	}
	return true
}
