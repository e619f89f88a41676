/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
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

// Package inspector is a synchronous client for a browser's DevTools
// websocket. Reads only happen on the caller's goroutine: notifications are
// dispatched to their domain handler while the caller waits for a response
// or explicitly asks for notifications to be serviced.
package inspector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/liuxd6825/telemetry/log"
)

const (
	wsWriteBufferSize = 1 << 20
	handshakeTimeout  = 60 * time.Second
	closeWriteTimeout = 10 * time.Second
)

// NotificationHandler receives every notification of the domain it was
// registered for. Returning true ends DispatchNotificationsUntilDone.
type NotificationHandler func(msg *cdproto.Message) (done bool)

// ErrorHandler is invoked for unrecoverable read errors with the time spent
// in the failing operation. Its return value is what the operation returns.
type ErrorHandler func(elapsed time.Duration, err error) error

// Response is a command response together with the raw frame it was decoded
// from, for callers inspecting keys cdproto.Message does not model.
type Response struct {
	cdproto.Message
	Raw []byte
}

// Err returns the protocol error carried by the response, if any.
func (r *Response) Err() error {
	if r.Error == nil {
		return nil
	}
	return &ResponseError{Method: string(r.Method), Err: r.Error}
}

// Websocket is a connection to a DevTools endpoint. It is not safe for
// concurrent use.
type Websocket struct {
	logger       *log.Logger
	errorHandler ErrorHandler
	dialer       websocket.Dialer
	conn         *websocket.Conn
	handlers     map[string]NotificationHandler
	msgID        int64

	// Reuse the easyjson structs to avoid allocs per Read/Write.
	decoder jlexer.Lexer
	encoder jwriter.Writer
}

// New returns a disconnected Websocket. A nil errorHandler returns read
// errors unchanged.
func New(logger *log.Logger, errorHandler ErrorHandler) *Websocket {
	if errorHandler == nil {
		errorHandler = func(_ time.Duration, err error) error { return err }
	}
	return &Websocket{
		logger:       logger,
		errorHandler: errorHandler,
		dialer: websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			Proxy:            http.ProxyFromEnvironment,
			WriteBufferSize:  wsWriteBufferSize,
		},
		handlers: make(map[string]NotificationHandler),
	}
}

// RegisterDomain routes the notifications of domain (e.g. "Tracing") to h.
func (w *Websocket) RegisterDomain(domain string, h NotificationHandler) error {
	if _, ok := w.handlers[domain]; ok {
		return fmt.Errorf("domain %q is already registered", domain)
	}
	w.handlers[domain] = h
	return nil
}

// UnregisterDomain removes the handler of domain.
func (w *Websocket) UnregisterDomain(domain string) error {
	if _, ok := w.handlers[domain]; !ok {
		return fmt.Errorf("domain %q is not registered", domain)
	}
	delete(w.handlers, domain)
	return nil
}

// Connect dials wsURL.
func (w *Websocket) Connect(ctx context.Context, wsURL string) error {
	if w.conn != nil {
		return fmt.Errorf("already connected, disconnect before connecting to %s", wsURL)
	}
	conn, _, err := w.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", wsURL, err)
	}
	w.logger.Debugf("inspector", "connected to %s", wsURL)
	w.conn = conn
	return nil
}

// Disconnect sends a close frame and releases the connection. It is a no-op
// when not connected.
func (w *Websocket) Disconnect() error {
	if w.conn == nil {
		return nil
	}
	conn := w.conn
	w.conn = nil

	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(closeWriteTimeout),
	)
	if cerr := conn.Close(); err == nil {
		err = cerr
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}

// SendAndIgnoreResponse sends a command without waiting for its response;
// the response is dropped when it eventually arrives.
func (w *Websocket) SendAndIgnoreResponse(method string, params easyjson.Marshaler) (int64, error) {
	return w.send(method, params)
}

// SyncRequest sends a command and reads until its response arrives,
// dispatching any notification received in the meantime. The response is
// returned even when it carries a protocol error; see Response.Err.
func (w *Websocket) SyncRequest(
	ctx context.Context, method string, params easyjson.Marshaler, timeout time.Duration,
) (*Response, error) {
	start := time.Now()
	id, err := w.send(method, params)
	if err != nil {
		return nil, err
	}
	deadline := start.Add(timeout)

	for {
		res, err := w.receive(ctx, start, deadline)
		if errors.Is(err, ErrTimeout) {
			return nil, &RequestTimeoutError{Method: method, Elapsed: time.Since(start)}
		}
		if err != nil {
			return nil, err
		}
		if res.ID == id {
			res.Method = cdproto.MethodType(method)
			return res, nil
		}
		w.dispatch(res)
	}
}

// DispatchNotifications services a single incoming message.
func (w *Websocket) DispatchNotifications(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	res, err := w.receive(ctx, start, start.Add(timeout))
	if err != nil {
		return err
	}
	w.dispatch(res)
	return nil
}

// DispatchNotificationsUntilDone services incoming messages until a handler
// returns true. It returns a *DispatchTimeoutError when timeout elapses
// first.
func (w *Websocket) DispatchNotificationsUntilDone(ctx context.Context, timeout time.Duration) error {
	start := time.Now()
	deadline := start.Add(timeout)
	for {
		res, err := w.receive(ctx, start, deadline)
		if errors.Is(err, ErrTimeout) {
			return &DispatchTimeoutError{Elapsed: time.Since(start)}
		}
		if err != nil {
			return err
		}
		if w.dispatch(res) {
			return nil
		}
	}
}

func (w *Websocket) send(method string, params easyjson.Marshaler) (int64, error) {
	if w.conn == nil {
		return 0, ErrNotConnected
	}

	var buf []byte
	if params != nil {
		var err error
		if buf, err = easyjson.Marshal(params); err != nil {
			return 0, fmt.Errorf("encoding %s params: %w", method, err)
		}
	}
	w.msgID++
	msg := cdproto.Message{
		ID:     w.msgID,
		Method: cdproto.MethodType(method),
		Params: buf,
	}

	w.encoder = jwriter.Writer{}
	msg.MarshalEasyJSON(&w.encoder)
	if err := w.encoder.Error; err != nil {
		return 0, err
	}
	frame, _ := w.encoder.BuildBytes()
	w.logger.Debugf("cdp:send", "-> %s", frame)

	if err := w.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return 0, fmt.Errorf("sending %s: %w", method, err)
	}
	return msg.ID, nil
}

// receive reads one frame. A read that hits the deadline leaves the
// underlying connection unusable, so timeouts are terminal for the session.
func (w *Websocket) receive(ctx context.Context, start, deadline time.Time) (*Response, error) {
	if w.conn == nil {
		return nil, ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if !time.Now().Before(deadline) {
		return nil, ErrTimeout
	}
	if err := w.conn.SetReadDeadline(deadline); err != nil {
		return nil, w.errorHandler(time.Since(start), err)
	}

	_, buf, err := w.conn.ReadMessage()
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return nil, ErrTimeout
		}
		return nil, w.errorHandler(time.Since(start), err)
	}
	w.logger.Debugf("cdp:recv", "<- %s", buf)

	res := &Response{Raw: buf}
	w.decoder = jlexer.Lexer{Data: buf}
	res.UnmarshalEasyJSON(&w.decoder)
	if err := w.decoder.Error(); err != nil {
		return nil, fmt.Errorf("decoding inspector message: %w", err)
	}
	return res, nil
}

func (w *Websocket) dispatch(res *Response) bool {
	if res.Method == "" {
		if res.ID != 0 {
			w.logger.Debugf("inspector", "dropping response to ignored request #%d", res.ID)
		} else {
			w.logger.Errorf("inspector", "ignoring malformed incoming message (missing id or method): %s", res.Raw)
		}
		return false
	}

	method := string(res.Method)
	domain := method
	if i := strings.IndexByte(method, '.'); i >= 0 {
		domain = method[:i]
	}
	h, ok := w.handlers[domain]
	if !ok {
		w.logger.Debugf("inspector", "no handler registered for %s", method)
		return false
	}
	return h(&res.Message)
}
