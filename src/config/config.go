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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"wmtclk/src/pll"
)

// EnvPrefix prefixes the environment variables Load reads.
const EnvPrefix = "WMTCLK"

// Sweep holds the settings of the sweep command.
type Sweep struct {
	Start       uint64 `mapstructure:"start"`
	Limit       uint64 `mapstructure:"limit"`
	Step        uint64 `mapstructure:"step"`
	Workers     int    `mapstructure:"workers"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// Config is the merged configuration of the wmtclk command.
type Config struct {
	LogLevel   string   `mapstructure:"log_level"`
	Verbose    bool     `mapstructure:"verbose"`
	ParentRate uint64   `mapstructure:"parent_rate"`
	Solvers    []string `mapstructure:"solvers"`
	Sweep      Sweep    `mapstructure:"sweep"`
}

// flag name => config key
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"verbose":      "verbose",
	"parent":       "parent_rate",
	"solver":       "solvers",
	"start":        "sweep.start",
	"limit":        "sweep.limit",
	"step":         "sweep.step",
	"workers":      "sweep.workers",
	"metrics-file": "sweep.metrics_file",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("verbose", false)
	v.SetDefault("parent_rate", pll.ParentRate)
	v.SetDefault("solvers", pll.Names())
	// 0..4GHz in 1kHz steps
	v.SetDefault("sweep.start", 0)
	v.SetDefault("sweep.limit", 4_000_000_000)
	v.SetDefault("sweep.step", 1000)
	v.SetDefault("sweep.workers", 0)
	v.SetDefault("sweep.metrics_file", "")
}

/*
Load builds the configuration from defaults, an optional YAML file at path,
WMTCLK_* environment variables and whichever of flags are present. Later
sources win. Flags that were not set on the command line don't override
the file.
*/
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: binding --%s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	if c.ParentRate == 0 {
		return errors.New("config: parent_rate must be positive")
	}
	if c.Sweep.Step == 0 {
		return errors.New("config: sweep.step must be positive")
	}
	if c.Sweep.Limit <= c.Sweep.Start {
		return fmt.Errorf("config: empty sweep %d..%d", c.Sweep.Start, c.Sweep.Limit)
	}
	if c.Sweep.Workers < 0 {
		return fmt.Errorf("config: sweep.workers = %d", c.Sweep.Workers)
	}
	for _, name := range c.Solvers {
		if _, err := pll.Lookup(name); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewLogger returns a text logger writing to out at the configured level.
// Verbose forces debug output.
func (c *Config) NewLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if c.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}
