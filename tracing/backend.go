// Package tracing controls tracing sessions on a running browser through its
// DevTools websocket and hands the collected events to a trace data sink.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/telemetry/inspector"
	"github.com/liuxd6825/telemetry/log"
	"github.com/liuxd6825/telemetry/timeline"
)

const (
	// DefaultStartTimeout bounds each command issued by StartTracing.
	DefaultStartTimeout = 10 * time.Second
	// DefaultStopTimeout bounds the wait for the trace data after Tracing.end.
	DefaultStopTimeout = 30 * time.Second

	domain = "Tracing"

	// methodHasCompleted is only used as a capability probe: browsers with a
	// compatible tracing domain answer it with an error.
	methodHasCompleted = "Tracing.hasCompleted"
)

// Backend is a tracing session on one browser. It is not safe for
// concurrent use.
type Backend struct {
	ws      *inspector.Websocket
	logger  *log.Logger
	running bool
	events  []interface{}
}

// NewBackend connects to the browser-wide DevTools endpoint listening on
// devtoolsPort on the loopback interface.
func NewBackend(ctx context.Context, devtoolsPort int, logger *log.Logger) (*Backend, error) {
	return NewBackendWithURL(ctx, fmt.Sprintf("ws://127.0.0.1:%d/devtools/browser", devtoolsPort), logger)
}

// NewBackendWithURL connects to the DevTools endpoint at wsURL.
func NewBackendWithURL(ctx context.Context, wsURL string, logger *log.Logger) (*Backend, error) {
	b := &Backend{logger: logger}
	b.ws = inspector.New(logger, b.handleError)
	if err := b.ws.RegisterDomain(domain, b.handleNotification); err != nil {
		return nil, err
	}
	if err := b.ws.Connect(ctx, wsURL); err != nil {
		return nil, err
	}
	return b, nil
}

// IsTracingRunning reports whether a tracing run was started and not yet
// stopped.
func (b *Backend) IsTracingRunning() bool {
	return b.running
}

// StartTracing starts a tracing run and returns true. If a run is already in
// progress it changes nothing and returns false.
func (b *Backend) StartTracing(
	ctx context.Context, opts Options, customCategories string, timeout time.Duration,
) (bool, error) {
	if b.running {
		return false, nil
	}
	if timeout <= 0 {
		timeout = DefaultStartTimeout
	}
	mode := opts.RecordMode
	if mode == "" {
		mode = RecordUntilFull
	}
	if _, err := ParseRecordMode(string(mode)); err != nil {
		return false, err
	}

	b.events = nil
	if err := b.checkNotificationSupported(ctx, timeout); err != nil {
		return false, err
	}

	params := startParams{Options: string(mode), Categories: customCategories}
	res, err := b.ws.SyncRequest(ctx, cdproto.CommandTracingStart, params, timeout)
	if err != nil {
		return false, err
	}
	if err := res.Err(); err != nil {
		return false, err
	}
	b.logger.Debugf("tracing", "tracing started (mode=%s, categories=%q)", mode, customCategories)
	b.running = true
	return true, nil
}

// StopTracing ends the current run and pushes its events to sink. When no
// run is in progress, the events of the last run are pushed again.
func (b *Backend) StopTracing(ctx context.Context, sink timeline.TraceDataSink, timeout time.Duration) error {
	if !b.running {
		if len(b.events) == 0 {
			return ErrTracingHasNotRun
		}
	} else {
		if timeout <= 0 {
			timeout = DefaultStopTimeout
		}
		if _, err := b.ws.SendAndIgnoreResponse(cdproto.CommandTracingEnd, nil); err != nil {
			return err
		}
		// The browser now flushes its trace buffers as Tracing.dataCollected
		// notifications, then signals Tracing.tracingComplete.
		err := b.ws.DispatchNotificationsUntilDone(ctx, timeout)
		var terr *inspector.DispatchTimeoutError
		if errors.As(err, &terr) {
			return &TimeoutError{Elapsed: terr.Elapsed}
		}
		if err != nil {
			return err
		}
	}

	b.running = false
	b.logger.Debugf("tracing", "handing %d trace events to the sink", len(b.events))
	events := b.events
	if events == nil {
		events = []interface{}{}
	}
	return sink.AddEventsTo(timeline.ChromeTracePart, events)
}

// Close releases the websocket. The backend must not be used afterwards.
func (b *Backend) Close() error {
	return b.ws.Disconnect()
}

func (b *Backend) handleError(elapsed time.Duration, err error) error {
	b.logger.Errorf("tracing", "Unrecoverable error after %ds reading tracing response.", int(elapsed.Seconds()))
	return err
}

func (b *Backend) handleNotification(msg *cdproto.Message) bool {
	switch msg.Method {
	case cdproto.EventTracingDataCollected:
		value := gjson.GetBytes(msg.Params, "value")
		switch {
		case value.Type == gjson.String:
			b.events = append(b.events, value.String())
		case value.IsArray():
			for _, ev := range value.Array() {
				b.events = append(b.events, ev.Value())
			}
		default:
			b.logger.Warnf("tracing", "Unexpected type in tracing data")
		}
	case cdproto.EventTracingTracingComplete:
		return true
	}
	return false
}

// checkNotificationSupported ensures we're running against a browser with a
// compatible tracing domain. A response carrying an error is accepted.
func (b *Backend) checkNotificationSupported(ctx context.Context, timeout time.Duration) error {
	res, err := b.ws.SyncRequest(ctx, methodHasCompleted, nil, timeout)
	if err != nil {
		return err
	}
	if truthy(gjson.GetBytes(res.Raw, "response")) {
		return ErrTracingUnsupported
	}
	return nil
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		raw := strings.Join(strings.Fields(r.Raw), "")
		return raw != "{}" && raw != "[]"
	default:
		return false
	}
}
