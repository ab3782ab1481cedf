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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Uint64("start", 0, "")
	fs.Uint64("limit", 0, "")
	fs.Uint64("step", 0, "")
	fs.Int("workers", 0, "")
	fs.Uint64("parent", 0, "")
	fs.String("log-level", "", "")
	fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func Test_load_defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(25_000_000), cfg.ParentRate)
	assert.Equal(t, uint64(0), cfg.Sweep.Start)
	assert.Equal(t, uint64(4_000_000_000), cfg.Sweep.Limit)
	assert.Equal(t, uint64(1000), cfg.Sweep.Step)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"vt8500", "wm8650", "wm8650-fast"}, cfg.Solvers)
}

func Test_load_file_env_flags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wmtclk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: warn
parent_rate: 27000000
solvers: [wm8650-fast]
sweep:
  start: 1000000
  limit: 2000000
  step: 500
  workers: 3
`), 0o644))

	cfg, err := Load(path, testFlags(t))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, uint64(27_000_000), cfg.ParentRate)
	assert.Equal(t, []string{"wm8650-fast"}, cfg.Solvers)
	assert.Equal(t, Sweep{Start: 1_000_000, Limit: 2_000_000, Step: 500, Workers: 3}, cfg.Sweep)

	t.Setenv("WMTCLK_SWEEP_STEP", "250")
	cfg, err = Load(path, testFlags(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(250), cfg.Sweep.Step)

	// flags beat env and file
	cfg, err = Load(path, testFlags(t, "--step=100", "--workers=1", "--verbose"))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cfg.Sweep.Step)
	assert.Equal(t, 1, cfg.Sweep.Workers)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, uint64(1_000_000), cfg.Sweep.Start)
}

func Test_load_invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero step", "sweep: {step: 0}"},
		{"empty range", "sweep: {start: 10, limit: 10}"},
		{"negative workers", "sweep: {workers: -1}"},
		{"zero parent", "parent_rate: 0"},
		{"unknown solver", "solvers: [si5351]"},
		{"bad level", "log_level: loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path, nil)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func Test_new_logger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{LogLevel: "warn"}
	logger := cfg.NewLogger(&buf)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	cfg.Verbose = true
	assert.Equal(t, logrus.DebugLevel, cfg.NewLogger(&buf).GetLevel())
}
