/*
 * Copyright 2025 Ted Dunning
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sweep

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"wmtclk/src/pll"
)

// Metrics counts solver outcomes and sweep durations.
type Metrics struct {
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	gatherer prometheus.Gatherer
}

// NewMetrics registers the sweep collectors with reg.
func NewMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wmtclk",
			Name:      "solve_total",
			Help:      "PLL solver calls by outcome.",
		}, []string{"solver", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wmtclk",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of a full sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"solver"}),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{m.solves, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(solver string, exact, approximate, none uint64, elapsed time.Duration) {
	m.solves.WithLabelValues(solver, pll.Exact.String()).Add(float64(exact))
	m.solves.WithLabelValues(solver, pll.Approximate.String()).Add(float64(approximate))
	m.solves.WithLabelValues(solver, pll.None.String()).Add(float64(none))
	m.duration.WithLabelValues(solver).Observe(elapsed.Seconds())
}

// WriteFile dumps the metrics in the text exposition format, suitable for
// the node exporter's textfile collector.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}
