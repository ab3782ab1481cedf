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
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wmtclk/src/pll"
)

func quiet() Option {
	l, _ := test.NewNullLogger()
	return WithLogger(l)
}

func Test_run_vt8500(t *testing.T) {
	cfg := Config{Start: 0, Limit: 2_000_000_000, Step: 500_000, Parent: pll.ParentRate, Workers: 4}
	report, err := Run(context.Background(), pll.VT8500{}, cfg, quiet())
	require.NoError(t, err)

	var want []uint64
	for mul := uint64(8); mul <= 62; mul++ {
		want = append(want, mul*12_500_000)
	}
	for mul := uint64(32); mul <= 62; mul++ {
		want = append(want, mul*25_000_000)
	}
	if diff := cmp.Diff(want, report.Rates); diff != "" {
		t.Errorf("exact rates mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, uint64(4000), report.Tried)
	assert.Equal(t, "vt8500", report.Solver)
	assert.Zero(t, report.Approximate)
}

func Test_run_order_independent_of_workers(t *testing.T) {
	defer func(n uint64) { chunkSize = n }(chunkSize)
	chunkSize = 37

	cfg := Config{Start: 30_000_000, Limit: 650_000_000, Step: 250_000, Parent: pll.ParentRate}
	var reports []Report
	for _, workers := range []int{1, 3, 8} {
		cfg.Workers = workers
		r, err := Run(context.Background(), pll.WM8650Fast{}, cfg, quiet())
		require.NoError(t, err)
		reports = append(reports, r)
	}
	require.NotEmpty(t, reports[0].Rates)
	for _, r := range reports[1:] {
		assert.Empty(t, cmp.Diff(reports[0].Rates, r.Rates))
		assert.Equal(t, reports[0].Tried, r.Tried)
		assert.Equal(t, reports[0].Approximate, r.Approximate)
	}
	for i := 1; i < len(reports[0].Rates); i++ {
		assert.Less(t, reports[0].Rates[i-1], reports[0].Rates[i])
	}
}

func Test_run_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, pll.WM8650{}, Config{Limit: 4_000_000_000, Step: 1000, Parent: pll.ParentRate}, quiet())
	assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
}

func Test_run_full_range_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := Run(ctx, pll.VT8500{}, Config{Start: 0, Limit: math.MaxUint64, Step: 1, Parent: pll.ParentRate}, quiet())
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "err = %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled sweep over the full uint64 range did not return")
	}
}

func Test_run_huge_step(t *testing.T) {
	cfg := Config{Start: 0, Limit: math.MaxUint64, Step: math.MaxUint64 / 2, Parent: pll.ParentRate}
	r, err := Run(context.Background(), pll.VT8500{}, cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.Tried)
	assert.Empty(t, r.Rates)
}

func Test_run_edges(t *testing.T) {
	_, err := Run(context.Background(), pll.VT8500{}, Config{Limit: 10}, quiet())
	assert.Error(t, err)

	r, err := Run(context.Background(), pll.VT8500{}, Config{Start: 10, Limit: 10, Step: 1}, quiet())
	require.NoError(t, err)
	assert.Empty(t, r.Rates)
	assert.Zero(t, r.Tried)
}

func Test_run_logs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	cfg := Config{Start: 100_000_000, Limit: 101_000_000, Step: 1_000_000, Parent: pll.ParentRate}
	_, err := Run(context.Background(), pll.VT8500{}, cfg, WithLogger(logger))
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "sweep finished", entry.Message)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, 1, entry.Data["exact"])
}

func Test_metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	cfg := Config{Start: 37_000_000, Limit: 38_000_000, Step: 100_000, Parent: pll.ParentRate}
	report, err := Run(context.Background(), pll.WM8650Fast{}, cfg, quiet(), WithMetrics(m))
	require.NoError(t, err)
	require.Equal(t, []uint64{37_500_000}, report.Rates)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.solves.WithLabelValues("wm8650-fast", "exact")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.solves.WithLabelValues("wm8650-fast", "approximate")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.solves.WithLabelValues("wm8650-fast", "none")))

	path := filepath.Join(t.TempDir(), "wmtclk.prom")
	require.NoError(t, m.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `wmtclk_solve_total{solver="wm8650-fast",status="exact"} 1`)
	assert.Contains(t, string(data), "wmtclk_sweep_duration_seconds_count")

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice")
}

func Test_report_write_to(t *testing.T) {
	var buf bytes.Buffer
	r := Report{Rates: []uint64{100_000_000, 112_500_000, 125_000_000}, Elapsed: 1500 * time.Millisecond}
	n, err := r.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Equal(t, "100000000,112500000,125000000\n3 rates found, 1.50s spent\n", buf.String())

	buf.Reset()
	_, err = Report{}.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "\n0 rates found"))
}
