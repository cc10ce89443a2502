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

// Outcome is the single overall result surfaced to a CompletionFunc. The
// engine never leaks individual backend errors past this boundary.
type Outcome int

const (
	// OutcomeHealed means the copy completed and every non-failed sink
	// now matches the source.
	OutcomeHealed Outcome = iota
	// OutcomeNoop means the pending matrix was entirely zero, or no
	// replica answered the probe (Err is then errNoUpChildren); nothing
	// was healed.
	OutcomeNoop
	// OutcomeSplitBrain means no replica was free of accusation; no
	// source could be elected.
	OutcomeSplitBrain
	// OutcomeAborted means the heal was abandoned after taking some
	// action (a stat failure, an open failure, or a read failure
	// mid-copy); Finalizer still runs over whatever was acquired.
	OutcomeAborted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHealed:
		return "healed"
	case OutcomeNoop:
		return "no-op"
	case OutcomeSplitBrain:
		return "split-brain"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the payload delivered to a CompletionFunc exactly once per
// Engine.Run. Source and SplitBrainMatrix are populated only when
// relevant to Outcome.
type Result struct {
	Outcome Outcome
	Err     error

	// Source is the elected source's child.Child.ID(), set whenever an
	// election happened (OutcomeHealed and OutcomeAborted after P3+).
	Source string

	// SplitBrainMatrix is the pending matrix as built in the Arbiter,
	// preserved on OutcomeSplitBrain so a caller can surface which
	// replicas mutually accused each other instead of just the verdict.
	SplitBrainMatrix [][]uint64

	// FailedSinks lists the child IDs the Copier could not fully write
	// to; they were excluded from pending-erase in the Finalizer.
	FailedSinks []string

	// BytesCopied is the total payload streamed from source to sinks.
	BytesCopied int64
}

// CompletionFunc is invoked exactly once per heal, with all HealContext
// cleanup already performed — mirroring the source's completion_cbk
// contract (§6, §9: freeing must happen before the callback, since the
// callback may enqueue further work referencing the same inode).
type CompletionFunc func(Result)
