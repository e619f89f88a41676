package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/telemetry/errext"
	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/inspector"
	"github.com/liuxd6825/telemetry/timeline"
	"github.com/liuxd6825/telemetry/tracing"
)

// cmdTrace handles the `telemetry trace` sub-command
type cmdTrace struct {
	gs *globalState
}

func traceFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.String("host", "127.0.0.1", "host of the browser's DevTools endpoint")
	flags.Int64P("port", "p", 9222, "port of the browser's DevTools endpoint")
	flags.String("record-mode", string(tracing.RecordUntilFull),
		"what the browser does once its trace buffer is full, one of record-until-full, record-as-much-as-possible")
	flags.String("categories", "", "comma separated trace categories, empty for the browser's defaults")
	flags.DurationP("duration", "d", 5*time.Second, "how long to record before stopping")
	flags.Duration("start-timeout", tracing.DefaultStartTimeout, "timeout of the start request")
	flags.Duration("stop-timeout", tracing.DefaultStopTimeout, "timeout for receiving all trace data")
	flags.StringP("output", "o", "trace.json", "`file` the trace is written to, gzipped if it ends in .gz, - for stdout")
	flags.String("log-level", "info", "log level, one of trace, debug, info, warning, error")
	return flags
}

func (c *cmdTrace) run(cmd *cobra.Command, _ []string) error {
	conf, err := getConsolidatedConfig(c.gs, getConfig(cmd.Flags()))
	if err != nil {
		return err
	}
	maybePrintBanner(c.gs)

	logger := c.gs.categoryLogger()
	wsURL := fmt.Sprintf("ws://%s:%d/devtools/browser", conf.DevtoolsHost.String, conf.DevtoolsPort.Int64)
	backend, err := tracing.NewBackendWithURL(c.gs.ctx, wsURL, logger)
	if err != nil {
		return errext.WithExitCodeIfNone(
			fmt.Errorf("could not connect to the browser at %s: %w", wsURL, err), exitcodes.ConnectionFailed)
	}
	defer func() {
		if cerr := backend.Close(); cerr != nil {
			logger.Debugf("tracing", "closing the DevTools connection: %s", cerr)
		}
	}()

	opts := tracing.Options{RecordMode: tracing.RecordMode(conf.RecordMode.String)}
	if _, err := backend.StartTracing(c.gs.ctx, opts, conf.Categories.String, conf.StartTimeout.TimeDuration()); err != nil {
		return withTimeoutExitCode(err)
	}
	c.gs.logger.Infof("Tracing for %s, interrupt to stop early", conf.Duration.Duration)
	c.wait(conf.Duration.TimeDuration())

	builder := timeline.NewTraceDataBuilder()
	if err := backend.StopTracing(c.gs.ctx, builder, conf.StopTimeout.TimeDuration()); err != nil {
		return withTimeoutExitCode(err)
	}
	data, err := builder.AsData()
	if err != nil {
		return err
	}

	out := conf.Output.String
	if err := writeTraceData(c.gs, out, data); err != nil {
		return fmt.Errorf("could not write trace data to %s: %w", out, err)
	}
	c.gs.logger.Infof("Wrote %d trace events to %s", len(data.EventsFor(timeline.ChromeTracePart)), out)
	return nil
}

// wait returns after d, or earlier on an interrupt.
func (c *cmdTrace) wait(d time.Duration) {
	sigC := make(chan os.Signal, 1)
	c.gs.signalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer c.gs.signalStop(sigC)

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case sig := <-sigC:
		c.gs.logger.Infof("Stopping the trace early after receiving signal: %s", sig)
	case <-c.gs.ctx.Done():
	}
}

func withTimeoutExitCode(err error) error {
	if errors.Is(err, inspector.ErrTimeout) {
		return errext.WithExitCodeIfNone(err, exitcodes.GenericTimeout)
	}
	return err
}

func writeTraceData(gs *globalState, path string, data *timeline.TraceData) (err error) {
	if path == "-" {
		return data.Serialize(gs.stdOut)
	}

	f, err := gs.fs.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return serializeTo(f, path, data)
}

func serializeTo(f afero.File, path string, data *timeline.TraceData) (err error) {
	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		gz := gzip.NewWriter(f)
		defer func() {
			if cerr := gz.Close(); err == nil {
				err = cerr
			}
		}()
		w = gz
	}
	return data.Serialize(w)
}

func getCmdTrace(gs *globalState) *cobra.Command {
	c := &cmdTrace{gs: gs}

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Record a browser trace",
		Long: `Record a browser trace.

Connects to the DevTools endpoint of a running browser, records a trace for
the given duration and writes it in the Trace Event Format.`,
		Example: `
  # Record 10 seconds from a browser started with --remote-debugging-port=9222.
  telemetry trace --port 9222 --duration 10s -o trace.json.gz

  # Only record some categories, for as long as the buffer allows.
  telemetry trace --categories blink,v8 --record-mode record-as-much-as-possible`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	traceCmd.Flags().AddFlagSet(traceFlagSet())
	return traceCmd
}
