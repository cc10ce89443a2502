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

// Package metrics exposes afrheald's Prometheus instrumentation: heal
// outcomes by kind, per-phase durations, and bytes copied.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry collects every metric this package defines, so a caller can
// register it once against whatever http.Handler serves /metrics.
var Registry = prometheus.NewRegistry()

var (
	healsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "afrheald",
		Name:      "heals_total",
		Help:      "Self-heal runs completed, labeled by outcome.",
	}, []string{"outcome"})

	phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "afrheald",
		Name:      "phase_duration_seconds",
		Help:      "Wall-clock duration of a single heal phase.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"phase"})

	bytesCopiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "afrheald",
		Name:      "bytes_copied_total",
		Help:      "Bytes streamed from a source replica to sinks during self-heal.",
	})

	splitBrainReplicas = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "afrheald",
		Name:      "split_brain_replicas",
		Help:      "Replica count observed in the most recent split-brain result.",
	})
)

func init() {
	Registry.MustRegister(healsTotal, phaseDuration, bytesCopiedTotal, splitBrainReplicas)
}

// ObservePhase records how long one named phase took.
func ObservePhase(phase string, seconds float64) {
	phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// ObserveResult records the terminal outcome of one heal run: outcome
// is a heal.Outcome's String(), splitBrainReplicaCount is the replica
// count of a split-brain result's matrix (0 otherwise). Plain values
// rather than heal.Result keep this package free of a heal import, so
// the engine can import metrics back to report phase durations.
func ObserveResult(outcome string, bytesCopied int64, splitBrainReplicaCount int) {
	healsTotal.WithLabelValues(outcome).Inc()
	if bytesCopied > 0 {
		bytesCopiedTotal.Add(float64(bytesCopied))
	}
	if splitBrainReplicaCount > 0 {
		splitBrainReplicas.Set(float64(splitBrainReplicaCount))
	}
}
