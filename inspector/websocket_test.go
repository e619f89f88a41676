package inspector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/liuxd6825/telemetry/log"
	"github.com/liuxd6825/telemetry/tests/ws"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func connect(t *testing.T, wsURL string, errorHandler ErrorHandler) *Websocket {
	t.Helper()

	w := New(log.NewNullLogger(), errorHandler)
	require.NoError(t, w.Connect(context.Background(), wsURL))
	t.Cleanup(func() { _ = w.Disconnect() })
	return w
}

func TestWebsocketNotConnected(t *testing.T) {
	t.Parallel()

	w := New(log.NewNullLogger(), nil)
	_, err := w.SendAndIgnoreResponse("Tracing.end", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = w.SyncRequest(context.Background(), "Tracing.end", nil, time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, w.DispatchNotificationsUntilDone(context.Background(), time.Second), ErrNotConnected)
	assert.NoError(t, w.Disconnect())
}

func TestWebsocketRegisterDomain(t *testing.T) {
	t.Parallel()

	w := New(log.NewNullLogger(), nil)
	noop := func(*cdproto.Message) bool { return false }
	require.NoError(t, w.RegisterDomain("Tracing", noop))
	require.Error(t, w.RegisterDomain("Tracing", noop))
	require.NoError(t, w.UnregisterDomain("Tracing"))
	require.Error(t, w.UnregisterDomain("Tracing"))
}

func TestWebsocketSyncRequest(t *testing.T) {
	t.Parallel()

	handler := func(msg *cdproto.Message, writeCh chan<- easyjson.Marshaler) {
		switch msg.Method {
		case "Browser.getVersion":
			// a notification sneaks in before the response
			writeCh <- ws.Notification("Tracing.bufferUsage", `{"percentFull":0.5}`)
			writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage(`{"product":"Chrome/120"}`)}
		case "Tracing.hasCompleted":
			writeCh <- cdproto.Message{ID: msg.ID, Error: &cdproto.Error{Code: -32601, Message: "'Tracing.hasCompleted' wasn't found"}}
		}
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", handler))

	var notified []cdproto.MethodType
	w := connect(t, server.URL("/devtools/browser"), nil)
	require.NoError(t, w.RegisterDomain("Tracing", func(msg *cdproto.Message) bool {
		notified = append(notified, msg.Method)
		return false
	}))

	res, err := w.SyncRequest(context.Background(), "Browser.getVersion", nil, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.JSONEq(t, `{"product":"Chrome/120"}`, string(res.Result))
	assert.Equal(t, []cdproto.MethodType{"Tracing.bufferUsage"}, notified)

	res, err = w.SyncRequest(context.Background(), "Tracing.hasCompleted", nil, 5*time.Second)
	require.NoError(t, err)
	var rerr *ResponseError
	require.True(t, errors.As(res.Err(), &rerr))
	assert.Equal(t, int64(-32601), rerr.Err.Code)
	assert.Contains(t, string(res.Raw), `"error"`)
}

func TestWebsocketDispatchUntilDone(t *testing.T) {
	t.Parallel()

	handler := func(msg *cdproto.Message, writeCh chan<- easyjson.Marshaler) {
		if msg.Method != "Tracing.end" {
			return
		}
		// response to the ignored request is dropped by the dispatcher
		writeCh <- cdproto.Message{ID: msg.ID, Result: easyjson.RawMessage(`{}`)}
		writeCh <- ws.Notification("Page.frameNavigated", `{}`)
		writeCh <- ws.Notification(cdproto.EventTracingDataCollected, `{"value":[{"ph":"X"}]}`)
		writeCh <- ws.Notification(cdproto.EventTracingTracingComplete, `{}`)
	}
	server := ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", handler))
	w := connect(t, server.URL("/devtools/browser"), nil)

	var seen []cdproto.MethodType
	require.NoError(t, w.RegisterDomain("Tracing", func(msg *cdproto.Message) bool {
		seen = append(seen, msg.Method)
		return msg.Method == cdproto.EventTracingTracingComplete
	}))

	_, err := w.SendAndIgnoreResponse("Tracing.end", nil)
	require.NoError(t, err)
	require.NoError(t, w.DispatchNotificationsUntilDone(context.Background(), 5*time.Second))
	assert.Equal(t, []cdproto.MethodType{
		cdproto.EventTracingDataCollected,
		cdproto.EventTracingTracingComplete,
	}, seen)
}

func TestWebsocketDispatchTimeout(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", func(*cdproto.Message, chan<- easyjson.Marshaler) {}))
	w := connect(t, server.URL("/devtools/browser"), nil)

	err := w.DispatchNotificationsUntilDone(context.Background(), 100*time.Millisecond)
	var terr *DispatchTimeoutError
	require.True(t, errors.As(err, &terr), "unexpected error %v", err)
	assert.GreaterOrEqual(t, terr.Elapsed, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWebsocketSyncRequestTimeout(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", func(*cdproto.Message, chan<- easyjson.Marshaler) {}))
	w := connect(t, server.URL("/devtools/browser"), nil)

	_, err := w.SyncRequest(context.Background(), "Tracing.start", nil, 50*time.Millisecond)
	var terr *RequestTimeoutError
	require.True(t, errors.As(err, &terr), "unexpected error %v", err)
	assert.Equal(t, "Tracing.start", terr.Method)
}

func TestWebsocketContextCancel(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithCDPHandler("/devtools/browser", func(*cdproto.Message, chan<- easyjson.Marshaler) {}))
	w := connect(t, server.URL("/devtools/browser"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.DispatchNotificationsUntilDone(ctx, time.Second), context.Canceled)
}

func TestWebsocketErrorHandler(t *testing.T) {
	t.Parallel()

	server := ws.NewServer(t, ws.WithClosureAbnormalHandler("/closure-abnormal"))

	sentinel := errors.New("reraised")
	var handled error
	w := connect(t, server.URL("/closure-abnormal"), func(_ time.Duration, err error) error {
		handled = err
		return sentinel
	})

	_, err := w.SyncRequest(context.Background(), "Tracing.hasCompleted", nil, 5*time.Second)
	require.ErrorIs(t, err, sentinel)
	require.Error(t, handled)
	assert.Contains(t, handled.Error(), "abnormal closure")
}
