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

/*
Package sweep runs a PLL solver over a range of requested rates and reports
which of them can be produced exactly.

The range is cut into chunks that are solved in parallel. Each solver call
is independent, so chunks share nothing but the metrics.
*/
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wmtclk/src/pll"
)

// rates per chunk
var chunkSize uint64 = 1 << 14

// Config describes the rates to sweep.
type Config struct {
	Start, Limit, Step uint64 // rates Start, Start+Step, ... < Limit
	Parent             uint64
	Workers            int // 0 means GOMAXPROCS
}

// Report summarizes a finished sweep.
type Report struct {
	Solver      string
	Rates       []uint64 // exact matches, ascending
	Tried       uint64
	Approximate uint64
	Elapsed     time.Duration
}

// Option customizes Run.
type Option func(*runner)

// WithLogger sends progress logging to l instead of the standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *runner) { r.log = l }
}

// WithMetrics records the sweep outcome in m.
func WithMetrics(m *Metrics) Option {
	return func(r *runner) { r.metrics = m }
}

type runner struct {
	log     logrus.FieldLogger
	metrics *Metrics
}

type chunk struct {
	rates       []uint64
	tried       uint64
	approximate uint64
	none        uint64
}

/*
Run calls s.Solve for every rate in the configured range. The report lists
the exactly reachable rates in ascending order no matter how the work was
split. If ctx is cancelled the partial work is discarded and ctx.Err() is
returned.
*/
func Run(ctx context.Context, s pll.Solver, cfg Config, opts ...Option) (Report, error) {
	r := runner{log: logrus.StandardLogger()}
	for _, o := range opts {
		o(&r)
	}
	if cfg.Step == 0 {
		return Report{}, errors.New("sweep: step must be positive")
	}
	if cfg.Limit <= cfg.Start {
		return Report{Solver: s.Name()}, nil
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// number of rates; written so Limit near MaxUint64 can't overflow
	n := (cfg.Limit-cfg.Start-1)/cfg.Step + 1
	log := r.log.WithFields(logrus.Fields{
		"solver":  s.Name(),
		"parent":  cfg.Parent,
		"rates":   n,
		"chunks":  (n-1)/chunkSize + 1,
		"workers": workers,
	})
	log.Info("sweep started")

	t0 := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var chunks []*chunk
	for first, last := uint64(0), uint64(0); first < n && gctx.Err() == nil; first = last {
		last = n
		if n-first > chunkSize {
			last = first + chunkSize
		}
		first, last := first, last
		c := &chunk{}
		chunks = append(chunks, c)
		g.Go(func() error {
			return solveChunk(gctx, s, cfg, first, last, c)
		})
	}
	if err := g.Wait(); err != nil {
		log.WithError(err).Warn("sweep aborted")
		return Report{}, err
	}
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("sweep aborted")
		return Report{}, err
	}

	report := Report{Solver: s.Name(), Elapsed: time.Since(t0)}
	var none uint64
	for _, c := range chunks {
		report.Rates = append(report.Rates, c.rates...)
		report.Tried += c.tried
		report.Approximate += c.approximate
		none += c.none
	}
	if r.metrics != nil {
		r.metrics.observe(s.Name(), uint64(len(report.Rates)), report.Approximate, none, report.Elapsed)
	}
	log.WithFields(logrus.Fields{
		"exact":       len(report.Rates),
		"approximate": report.Approximate,
		"elapsed":     report.Elapsed,
	}).Info("sweep finished")
	return report, nil
}

// solveChunk handles rate indexes first..last-1.
func solveChunk(ctx context.Context, s pll.Solver, cfg Config, first, last uint64, c *chunk) error {
	for i := first; i < last; i++ {
		if (i-first)&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rate := cfg.Start + i*cfg.Step
		res, err := s.Solve(rate, cfg.Parent)
		c.tried++
		switch {
		case err == nil:
			c.rates = append(c.rates, rate)
		case !errors.Is(err, pll.ErrNoValidConfiguration):
			return fmt.Errorf("sweep: %s at %d Hz: %w", s.Name(), rate, err)
		case res.Status == pll.Approximate:
			c.approximate++
		default:
			c.none++
		}
	}
	return nil
}

// WriteTo prints the exact rates comma separated on one line followed by a
// summary line.
func (r Report) WriteTo(w io.Writer) (int64, error) {
	buf := make([]byte, 0, 11*len(r.Rates)+64)
	for i, rate := range r.Rates {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendUint(buf, rate, 10)
	}
	buf = fmt.Appendf(buf, "\n%d rates found, %.2fs spent\n", len(r.Rates), r.Elapsed.Seconds())
	n, err := w.Write(buf)
	return int64(n), err
}
