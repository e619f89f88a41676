/*
 *
 * k6 - a next-generation load testing tool
 * Copyright (C) 2016 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/mstoykov/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/telemetry/errext"
	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/lib/types"
	"github.com/liuxd6825/telemetry/tracing"
)

// Config holds the settings of the trace and smoke commands. Every field is
// nullable so that the layers below only override what was actually set.
type Config struct {
	DevtoolsHost    null.String        `json:"devtoolsHost" envconfig:"DEVTOOLS_HOST"`
	DevtoolsPort    null.Int           `json:"devtoolsPort" envconfig:"DEVTOOLS_PORT"`
	RecordMode      null.String        `json:"recordMode" envconfig:"RECORD_MODE"`
	Categories      null.String        `json:"categories" envconfig:"CATEGORIES"`
	Duration        types.NullDuration `json:"duration" envconfig:"DURATION"`
	StartTimeout    types.NullDuration `json:"startTimeout" envconfig:"START_TIMEOUT"`
	StopTimeout     types.NullDuration `json:"stopTimeout" envconfig:"STOP_TIMEOUT"`
	Output          null.String        `json:"output" envconfig:"OUTPUT"`
	CredentialsPath null.String        `json:"credentialsPath" envconfig:"CREDENTIALS_PATH"`
	LogLevel        null.String        `json:"logLevel" envconfig:"LOG_LEVEL"`
	PageSetsDir     null.String        `json:"pageSetsDir" envconfig:"PAGE_SETS_DIR"`
}

func defaultConfig() Config {
	return Config{
		DevtoolsHost:    null.NewString("127.0.0.1", false),
		DevtoolsPort:    null.NewInt(9222, false),
		RecordMode:      null.NewString(string(tracing.RecordUntilFull), false),
		Duration:        types.NewNullDuration(5*time.Second, false),
		StartTimeout:    types.NewNullDuration(tracing.DefaultStartTimeout, false),
		StopTimeout:     types.NewNullDuration(tracing.DefaultStopTimeout, false),
		Output:          null.NewString("trace.json", false),
		CredentialsPath: null.NewString("", false),
		LogLevel:        null.NewString("info", false),
		PageSetsDir:     null.NewString("page_sets", false),
	}
}

// Apply returns c with every valid field of cfg copied over it.
func (c Config) Apply(cfg Config) Config {
	if cfg.DevtoolsHost.Valid {
		c.DevtoolsHost = cfg.DevtoolsHost
	}
	if cfg.DevtoolsPort.Valid {
		c.DevtoolsPort = cfg.DevtoolsPort
	}
	if cfg.RecordMode.Valid {
		c.RecordMode = cfg.RecordMode
	}
	if cfg.Categories.Valid {
		c.Categories = cfg.Categories
	}
	if cfg.Duration.Valid {
		c.Duration = cfg.Duration
	}
	if cfg.StartTimeout.Valid {
		c.StartTimeout = cfg.StartTimeout
	}
	if cfg.StopTimeout.Valid {
		c.StopTimeout = cfg.StopTimeout
	}
	if cfg.Output.Valid {
		c.Output = cfg.Output
	}
	if cfg.CredentialsPath.Valid {
		c.CredentialsPath = cfg.CredentialsPath
	}
	if cfg.LogLevel.Valid {
		c.LogLevel = cfg.LogLevel
	}
	if cfg.PageSetsDir.Valid {
		c.PageSetsDir = cfg.PageSetsDir
	}
	return c
}

// Validate checks the consolidated configuration.
func (c Config) Validate() error {
	var errs []error
	if p := c.DevtoolsPort.Int64; p <= 0 || p > 65535 {
		errs = append(errs, fmt.Errorf("devtools port %d is out of range", p))
	}
	if c.DevtoolsHost.String == "" {
		errs = append(errs, errors.New("devtools host is empty"))
	}
	if _, err := tracing.ParseRecordMode(c.RecordMode.String); err != nil {
		errs = append(errs, err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel.String); err != nil {
		errs = append(errs, err)
	}
	for name, d := range map[string]types.NullDuration{
		"duration":      c.Duration,
		"start timeout": c.StartTimeout,
		"stop timeout":  c.StopTimeout,
	} {
		if d.TimeDuration() <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d.Duration))
		}
	}
	if c.Output.String == "" {
		errs = append(errs, errors.New("output path is empty"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errext.WithExitCodeIfNone(errors.Join(errs...), exitcodes.InvalidConfig)
}

// Gets configuration from CLI flags. Flags missing from the set are left
// unset.
func getConfig(flags *pflag.FlagSet) Config {
	return Config{
		DevtoolsHost:    getNullString(flags, "host"),
		DevtoolsPort:    getNullInt64(flags, "port"),
		RecordMode:      getNullString(flags, "record-mode"),
		Categories:      getNullString(flags, "categories"),
		Duration:        getNullDuration(flags, "duration"),
		StartTimeout:    getNullDuration(flags, "start-timeout"),
		StopTimeout:     getNullDuration(flags, "stop-timeout"),
		Output:          getNullString(flags, "output"),
		CredentialsPath: getNullString(flags, "credentials"),
		LogLevel:        getNullString(flags, "log-level"),
	}
}

// Reads configuration variables from the environment.
func readEnvConfig(envVars map[string]string) (Config, error) {
	conf := Config{}
	err := envconfig.Process("telemetry", &conf, func(key string) (string, bool) {
		v, ok := envVars[key]
		return v, ok
	})
	if err != nil {
		return conf, errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	}
	return conf, nil
}

// getConsolidatedConfig layers the defaults, the environment and the CLI
// flags, in increasing priority, and validates the result.
func getConsolidatedConfig(gs *globalState, cliConf Config) (Config, error) {
	envConf, err := readEnvConfig(gs.envVars)
	if err != nil {
		return Config{}, err
	}
	conf := defaultConfig().Apply(envConf).Apply(cliConf)
	if err := conf.Validate(); err != nil {
		return conf, err
	}

	level, _ := logrus.ParseLevel(conf.LogLevel.String)
	if !gs.flags.verbose {
		gs.logger.SetLevel(level)
	}
	return conf, nil
}
