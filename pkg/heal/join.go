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

import "go.uber.org/atomic"

// join is the call_count join counter of §3/§5: initialised to the
// number of requests a fan-out dispatches, decremented by exactly one
// completion at a time with no ordering guarantee between them, closing
// done on the single completion that drives it to zero. It exists
// separately from sync.WaitGroup so the zero edge is witnessed exactly
// once by one caller, matching invariant 4 literally rather than by
// the accident of WaitGroup's semantics.
type join struct {
	remaining atomic.Int64
	done      chan struct{}
}

func newJoin(n int) *join {
	j := &join{done: make(chan struct{})}
	j.remaining.Store(int64(n))
	if n == 0 {
		close(j.done)
	}
	return j
}

// complete decrements the counter; the goroutine that observes it reach
// zero closes done.
func (j *join) complete() {
	if j.remaining.Dec() == 0 {
		close(j.done)
	}
}

func (j *join) wait() {
	<-j.done
}
