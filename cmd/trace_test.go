package cmd

import (
	"bytes"
	"io"
	"strconv"
	"testing"

	"github.com/chromedp/cdproto"
	"github.com/klauspost/compress/gzip"
	"github.com/mailru/easyjson"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/telemetry/errext/exitcodes"
	"github.com/liuxd6825/telemetry/tests/ws"
	"github.com/liuxd6825/telemetry/timeline"
)

// browserHandler answers the tracing commands like a browser recording two
// events.
func browserHandler(unsupported bool) ws.Handler {
	return func(msg *cdproto.Message, writeCh chan<- easyjson.Marshaler) {
		switch msg.Method {
		case "Tracing.hasCompleted":
			if unsupported {
				writeCh <- ws.RawFrame(`{"id":` + strconv.FormatInt(msg.ID, 10) + `,"response":true}`)
				return
			}
			writeCh <- cdproto.Message{ID: msg.ID, Error: &cdproto.Error{Code: -32601, Message: "method not found"}}
		case cdproto.CommandTracingStart:
			writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage(`{}`)}
		case cdproto.CommandTracingEnd:
			writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage(`{}`)}
			writeCh <- ws.Notification(cdproto.EventTracingDataCollected,
				`{"value":[{"name":"a","ph":"X"},{"name":"b","ph":"X"}]}`)
			writeCh <- ws.Notification(cdproto.EventTracingTracingComplete, `{}`)
		}
	}
}

func newBrowser(t *testing.T, unsupported bool) *ws.Server {
	t.Helper()
	return ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", browserHandler(unsupported)))
}

func TestTraceWritesGzippedFile(t *testing.T) {
	t.Parallel()

	server := newBrowser(t, false)
	ts := newGlobalTestState(t, "trace", "-q",
		"--port", strconv.Itoa(server.Port()), "--duration", "10ms", "-o", "/trace.json.gz")
	ts.run(t)
	require.False(t, ts.exited, ts.errorMessages())

	f, err := ts.fs.Open("/trace.json.gz")
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(gz)
	require.NoError(t, err)

	events := gjson.GetBytes(data, "traceEvents")
	require.True(t, events.IsArray(), string(data))
	assert.Equal(t, int64(2), gjson.GetBytes(data, "traceEvents.#").Int())
	assert.Equal(t, "b", gjson.GetBytes(data, "traceEvents.1.name").String())

	assert.Equal(t,
		[]cdproto.MethodType{"Tracing.hasCompleted", cdproto.CommandTracingStart, cdproto.CommandTracingEnd},
		server.CommandsReceived())
}

func TestTraceToStdout(t *testing.T) {
	t.Parallel()

	server := newBrowser(t, false)
	ts := newGlobalTestState(t, "trace", "-q",
		"--port", strconv.Itoa(server.Port()), "--duration", "10ms", "-o", "-")
	ts.run(t)
	require.False(t, ts.exited, ts.errorMessages())

	out := ts.stdOut.String()
	assert.Equal(t, int64(2), gjson.Get(out, "traceEvents.#").Int(), out)

	exists, err := afero.Exists(ts.fs, "-")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTraceUnsupported(t *testing.T) {
	t.Parallel()

	server := newBrowser(t, true)
	ts := newGlobalTestState(t, "trace", "-q", "--port", strconv.Itoa(server.Port()), "--duration", "10ms")
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, int(exitcodes.TracingUnsupported), ts.exitCode)
	assert.Contains(t, ts.errorMessages(), "tracing not supported for this browser")
}

func TestTraceConnectionFailed(t *testing.T) {
	t.Parallel()

	// Nothing upgrades /devtools/browser on a bare server.
	server := ws.NewServer(t)
	ts := newGlobalTestState(t, "trace", "-q", "--port", strconv.Itoa(server.Port()))
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, int(exitcodes.ConnectionFailed), ts.exitCode)
}

func TestTraceInvalidConfig(t *testing.T) {
	t.Parallel()

	ts := newGlobalTestState(t, "trace", "--record-mode", "record-forever")
	ts.run(t)
	require.True(t, ts.exited)
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.exitCode)
}

func TestSerializeTo(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	ts := newGlobalTestState(t)
	ts.fs = fs

	data := traceData(t, []interface{}{map[string]interface{}{"name": "a"}})
	require.NoError(t, writeTraceData(ts.globalState, "/plain.json", data))

	raw, err := afero.ReadFile(fs, "/plain.json")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("{")))
	assert.Equal(t, "a", gjson.GetBytes(raw, "traceEvents.0.name").String())
}

func traceData(t *testing.T, events []interface{}) *timeline.TraceData {
	t.Helper()

	b := timeline.NewTraceDataBuilder()
	require.NoError(t, b.AddEventsTo(timeline.ChromeTracePart, events))
	td, err := b.AsData()
	require.NoError(t, err)
	return td
}
