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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveResultIncrementsCounter(t *testing.T) {
	before := testutilCount(t, "healed")
	ObserveResult("healed", 42, 0)
	after := testutilCount(t, "healed")
	if after != before+1 {
		t.Fatalf("heals_total{outcome=healed} = %v, want %v", after, before+1)
	}
}

func TestObserveResultSplitBrainSetsGauge(t *testing.T) {
	ObserveResult("split-brain", 0, 2)
	if got := testutilGauge(t); got != 2 {
		t.Fatalf("split_brain_replicas = %v, want 2", got)
	}
}

func TestObservePhaseRecordsDuration(t *testing.T) {
	before := testutilPhaseSamples(t, "sizer")
	ObservePhase("sizer", 0.01)
	if after := testutilPhaseSamples(t, "sizer"); after != before+1 {
		t.Fatalf("phase_duration_seconds{phase=sizer} samples = %d, want %d", after, before+1)
	}
}

func testutilPhaseSamples(t *testing.T, phase string) uint64 {
	t.Helper()
	var m dto.Metric
	if err := phaseDuration.WithLabelValues(phase).(prometheus.Metric).Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func testutilCount(t *testing.T, outcome string) float64 {
	t.Helper()
	c, err := healsTotal.GetMetricWithLabelValues(outcome)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func testutilGauge(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := splitBrainReplicas.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}
