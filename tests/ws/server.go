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

// Package ws is a fake DevTools endpoint for tests.
package ws

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"github.com/mccutchen/go-httpbin/httpbin"
	"github.com/stretchr/testify/require"
)

// Handler answers one incoming CDP message by pushing replies on writeCh.
// Replies are usually cdproto.Message values; RawFrame allows frames that
// cdproto.Message cannot express.
type Handler func(msg *cdproto.Message, writeCh chan<- easyjson.Marshaler)

// RawFrame is a reply written to the websocket verbatim.
type RawFrame string

// MarshalEasyJSON implements easyjson.Marshaler.
func (f RawFrame) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawString(string(f))
}

// Server can be used as a test alternative to a real CDP compatible browser.
type Server struct {
	t          testing.TB
	Mux        *http.ServeMux
	ServerHTTP *httptest.Server

	mu           sync.Mutex
	cmdsReceived []cdproto.MethodType
}

// NewServer returns a fully configured and running WS test server.
func NewServer(t testing.TB, opts ...func(*Server)) *Server {
	t.Helper()

	// Create a http.ServeMux and set the httpbin handler as the default
	mux := http.NewServeMux()
	mux.Handle("/", httpbin.New().Handler())

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s := &Server{
		t:          t,
		Mux:        mux,
		ServerHTTP: server,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// URL returns the websocket URL of path on the server.
func (s *Server) URL(path string) string {
	u, err := url.Parse(s.ServerHTTP.URL)
	require.NoError(s.t, err)
	return fmt.Sprintf("ws://%s%s", u.Host, path)
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int {
	u, err := url.Parse(s.ServerHTTP.URL)
	require.NoError(s.t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(s.t, err)
	return port
}

// CommandsReceived returns the methods of all commands received so far.
func (s *Server) CommandsReceived() []cdproto.MethodType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cdproto.MethodType(nil), s.cmdsReceived...)
}

// WithClosureAbnormalHandler attaches an abnormal closure behavior to Server:
// the connection is dropped as soon as the first message is read.
func WithClosureAbnormalHandler(path string) func(*Server) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
		if err != nil {
			return
		}
		_, _, _ = conn.ReadMessage()
		_ = conn.Close() // This forces a connection closure without a proper WS close message exchange
	}
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(handler))
	}
}

// WithCDPHandler attaches a custom CDP handler function to Server.
func WithCDPHandler(path string, fn Handler) func(*Server) {
	return func(s *Server) {
		s.Mux.Handle(path, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.serveCDP(w, req, fn)
		}))
	}
}

func (s *Server) serveCDP(w http.ResponseWriter, req *http.Request, fn Handler) {
	conn, err := (&websocket.Upgrader{}).Upgrade(w, req, w.Header())
	if err != nil {
		return
	}
	defer conn.Close() //nolint:errcheck

	done := make(chan struct{})
	writeCh := make(chan easyjson.Marshaler, 64)

	go func() {
		defer close(done)
		for {
			_, buf, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg cdproto.Message
			decoder := jlexer.Lexer{Data: buf}
			msg.UnmarshalEasyJSON(&decoder)
			if decoder.Error() != nil {
				return
			}
			if msg.Method != "" {
				s.mu.Lock()
				s.cmdsReceived = append(s.cmdsReceived, msg.Method)
				s.mu.Unlock()
			}
			fn(&msg, writeCh)
		}
	}()

	for {
		select {
		case msg := <-writeCh:
			encoder := jwriter.Writer{}
			msg.MarshalEasyJSON(&encoder)
			if encoder.Error != nil {
				return
			}
			writer, err := conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := encoder.DumpTo(writer); err != nil {
				return
			}
			if err := writer.Close(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// CDPDefaultHandler answers every command with an empty result.
func CDPDefaultHandler(msg *cdproto.Message, writeCh chan<- easyjson.Marshaler) {
	if msg.Method == "" {
		return
	}
	writeCh <- cdproto.Message{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Result:    easyjson.RawMessage("{}"),
	}
}

// Notification builds a notification frame with the given raw JSON params.
func Notification(method cdproto.MethodType, params string) cdproto.Message {
	return cdproto.Message{
		Method: method,
		Params: easyjson.RawMessage(params),
	}
}
