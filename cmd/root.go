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

// Package cmd implements the telemetry command line interface.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/telemetry/errext"
	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/lib/consts"
	"github.com/liuxd6825/telemetry/log"
	"github.com/liuxd6825/telemetry/ui/console"
)

const (
	// exit code used for errors that carry none
	defaultExitCode = 255

	waitLoggerCloseTimeout = 5 * time.Second
)

// globalFlags contains global config values that apply for all sub-commands.
type globalFlags struct {
	quiet       bool
	noColor     bool
	verbose     bool
	logOutput   string
	logFormat   string
	logCategory string
}

func getDefaultFlags() globalFlags {
	return globalFlags{logOutput: "stderr"}
}

func consolidateGlobalFlags(defaultFlags globalFlags, env map[string]string) globalFlags {
	result := defaultFlags

	if val, ok := env["TELEMETRY_LOG_OUTPUT"]; ok {
		result.logOutput = val
	}
	if val, ok := env["TELEMETRY_LOG_FORMAT"]; ok {
		result.logFormat = val
	}
	if val, ok := env["TELEMETRY_LOG_CATEGORY"]; ok {
		result.logCategory = val
	}
	if env["TELEMETRY_NO_COLOR"] != "" {
		result.noColor = true
	}
	// Support https://no-color.org/, even an empty value should disable the
	// color output.
	if _, ok := env["NO_COLOR"]; ok {
		result.noColor = true
	}
	return result
}

// globalState contains the process wide dependencies of the commands, so
// tests can replace them.
type globalState struct {
	ctx context.Context

	fs      afero.Fs
	getwd   func() (string, error)
	args    []string
	envVars map[string]string

	defaultFlags, flags globalFlags

	console        *console.Console
	stdOut, stdErr io.Writer
	logger         *logrus.Logger
	fallbackLogger logrus.FieldLogger

	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
	osExit       func(int)
}

func newGlobalState(ctx context.Context) *globalState {
	env := buildEnvMap(os.Environ())
	defaultFlags := getDefaultFlags()
	flags := consolidateGlobalFlags(defaultFlags, env)

	cons := console.New(os.Stdout, os.Stderr, !flags.noColor, env["TERM"])

	return &globalState{
		ctx:          ctx,
		fs:           afero.NewOsFs(),
		getwd:        os.Getwd,
		args:         append(make([]string, 0, len(os.Args)), os.Args...),
		envVars:      env,
		defaultFlags: defaultFlags,
		flags:        flags,
		console:      cons,
		stdOut:       cons.Stdout,
		stdErr:       cons.Stderr,
		logger:       cons.GetLogger(),
		fallbackLogger: &logrus.Logger{
			Out:       os.Stderr,
			Formatter: new(logrus.TextFormatter),
			Hooks:     make(logrus.LevelHooks),
			Level:     logrus.InfoLevel,
		},
		signalNotify: signal.Notify,
		signalStop:   signal.Stop,
		osExit:       os.Exit,
	}
}

func buildEnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v := parseEnvKeyValue(kv)
		env[k] = v
	}
	return env
}

func parseEnvKeyValue(kv string) (string, string) {
	if idx := strings.IndexRune(kv, '='); idx != -1 {
		return kv[:idx], kv[idx+1:]
	}
	return kv, ""
}

// This is to keep all fields needed for the main/root telemetry command
type rootCommand struct {
	globalState *globalState
	cmd         *cobra.Command

	stopLogger    context.CancelFunc
	loggerStopped <-chan struct{}
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{globalState: gs}
	// the base command when called without any subcommands.
	rootCmd := &cobra.Command{
		Use:               "telemetry",
		Short:             "browser tracing and page set tooling",
		Long:              "\n" + gs.console.Banner(),
		Version:           consts.FullVersion(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}

	rootCmd.PersistentFlags().AddFlagSet(rootCmdPersistentFlagSet(gs))
	rootCmd.SetArgs(gs.args[1:])
	rootCmd.SetOut(gs.stdOut)
	rootCmd.SetErr(gs.stdErr)
	rootCmd.AddCommand(
		getCmdTrace(gs),
		getCmdSmoke(gs),
		getCmdVersion(gs),
	)

	c.cmd = rootCmd
	return c
}

func (c *rootCommand) persistentPreRunE(_ *cobra.Command, _ []string) error {
	if err := c.setupLoggers(); err != nil {
		return err
	}
	c.globalState.logger.Debugf("telemetry version: v%s", consts.FullVersion())
	return nil
}

func (c *rootCommand) execute() {
	err := c.cmd.Execute()
	if err == nil {
		c.waitLogger()
		return
	}

	exitCode := errext.ExitCodeOf(err, defaultExitCode)
	errText, fields := errext.Format(err)
	c.globalState.logger.WithFields(fields).Error(errText)
	c.waitLogger()
	c.globalState.osExit(int(exitCode))
}

// waitLogger flushes the log file, if one is in use.
func (c *rootCommand) waitLogger() {
	if c.stopLogger == nil {
		return
	}
	c.stopLogger()
	select {
	case <-c.loggerStopped:
	case <-time.After(waitLoggerCloseTimeout):
		c.globalState.fallbackLogger.Errorf("The log file wasn't closed in %s", waitLoggerCloseTimeout)
	}
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newRootCommand(newGlobalState(ctx)).execute()
}

func rootCmdPersistentFlagSet(gs *globalState) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	// Defaults come from the consolidated flags, so that environment
	// variables and CLI flags both work.
	flags.BoolVarP(&gs.flags.verbose, "verbose", "v", gs.flags.verbose, "enable debug logging")
	flags.BoolVarP(&gs.flags.quiet, "quiet", "q", gs.flags.quiet, "disable the banner and progress output")
	flags.BoolVar(&gs.flags.noColor, "no-color", gs.flags.noColor, "disable colored output")
	flags.StringVar(&gs.flags.logOutput, "log-output", gs.flags.logOutput,
		"change the output for logs, possible values are stderr,stdout,none,file[=./path.fileformat]")
	flags.StringVar(&gs.flags.logFormat, "log-format", gs.flags.logFormat, "log output format, one of text, json, raw")
	flags.StringVar(&gs.flags.logCategory, "log-category", gs.flags.logCategory,
		"only log entries whose category matches this regular expression")

	// And we also need to explicitly set the default value for the usage
	// message here, so things like `TELEMETRY_NO_COLOR=1 telemetry -h`
	// don't produce a weird usage message
	flags.Lookup("no-color").DefValue = fmt.Sprint(gs.defaultFlags.noColor)
	flags.Lookup("log-output").DefValue = gs.defaultFlags.logOutput
	flags.Lookup("log-format").DefValue = gs.defaultFlags.logFormat
	flags.Lookup("log-category").DefValue = gs.defaultFlags.logCategory
	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

func (c *rootCommand) setupLoggers() error {
	gs := c.globalState
	if gs.flags.verbose {
		gs.logger.SetLevel(logrus.DebugLevel)
	}

	switch line := gs.flags.logOutput; {
	case line == "stderr":
		gs.logger.SetOutput(gs.stdErr)
	case line == "stdout":
		gs.logger.SetOutput(gs.stdOut)
	case line == "none":
		gs.logger.SetOutput(io.Discard)
	case strings.HasPrefix(line, "file"):
		ctx, cancel := context.WithCancel(gs.ctx)
		done := make(chan struct{})
		hook, err := log.FileHookFromConfigLine(ctx, gs.fs, gs.getwd, gs.fallbackLogger, line, done)
		if err != nil {
			cancel()
			return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
		}
		c.stopLogger, c.loggerStopped = cancel, done
		gs.logger.AddHook(hook)
		gs.logger.SetOutput(io.Discard)
	default:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("unsupported log output '%s'", line), exitcodes.InvalidConfig)
	}

	switch gs.flags.logFormat {
	case "raw":
		gs.logger.SetFormatter(&RawFormatter{})
		gs.logger.Debug("Logger format: RAW")
	case "json":
		gs.logger.SetFormatter(&logrus.JSONFormatter{})
		gs.logger.Debug("Logger format: JSON")
	case "", "text":
		gs.logger.SetFormatter(&logrus.TextFormatter{
			ForceColors:   gs.console.IsTTY && !gs.flags.noColor,
			DisableColors: gs.flags.noColor,
		})
		gs.logger.Debug("Logger format: TEXT")
	default:
		return errext.WithExitCodeIfNone(
			fmt.Errorf("unsupported log format '%s'", gs.flags.logFormat), exitcodes.InvalidConfig)
	}

	if gs.flags.logCategory != "" {
		if _, err := regexp.Compile(gs.flags.logCategory); err != nil {
			return errext.WithExitCodeIfNone(
				fmt.Errorf("invalid log category filter: %w", err), exitcodes.InvalidConfig)
		}
	}
	return nil
}

// categoryLogger returns the category logger handed to the tracing and smoke
// packages.
func (gs *globalState) categoryLogger() *log.Logger {
	var filter *regexp.Regexp
	if gs.flags.logCategory != "" {
		// validated by setupLoggers
		filter = regexp.MustCompile(gs.flags.logCategory)
	}
	return log.New(gs.logger, filter)
}

func maybePrintBanner(gs *globalState) {
	if !gs.flags.quiet {
		gs.console.Printf("\n%s\n\n", gs.console.Banner())
	}
}
