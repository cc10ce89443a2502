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

import "github.com/distfs/afr/pkg/pending"

// buildPendingMatrix turns the per-replica attribute rows collected in
// Probe into the N×N matrix of §3/§4.2: matrix[i][j] is replica i's
// counter of writes against j it believes are unacknowledged. A
// replica whose row is absent (lookup failed, or never returned an
// attribute) contributes an all-zero row, never an error.
func buildPendingMatrix(xattr []pending.Counters, n int) [][]uint64 {
	matrix := make([][]uint64, n)
	for i := range matrix {
		row := make([]uint64, n)
		src := xattr[i]
		for j := 0; j < n && j < len(src); j++ {
			row[j] = src[j]
		}
		matrix[i] = row
	}
	return matrix
}

// isMatrixZero reports whether no replica accuses any other: the §4.2
// early-exit condition for a no-op heal.
func isMatrixZero(matrix [][]uint64) bool {
	for _, row := range matrix {
		for _, v := range row {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// classifySources marks replica j a candidate source iff no replica i
// accuses it. Columns, not rows: sources[j] depends on matrix[*][j].
func classifySources(matrix [][]uint64, n int) []bool {
	sources := make([]bool, n)
	for j := 0; j < n; j++ {
		candidate := true
		for i := 0; i < n; i++ {
			if matrix[i][j] != 0 {
				candidate = false
				break
			}
		}
		sources[j] = candidate
	}
	return sources
}

// selectSource applies the §4.2 deterministic tie-break (lowest index)
// among up, candidate-source replicas. Returns -1 if none qualify,
// which is the split-brain condition of §4.2/§9 ("sources vector all
// zero" — checked here directly rather than via the source's
// unassigned nsources variable).
func selectSource(sources []bool, childUp []bool) int {
	for i, isSource := range sources {
		if isSource && childUp[i] {
			return i
		}
	}
	return -1
}
