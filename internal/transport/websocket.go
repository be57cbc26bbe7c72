// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package transport

import (
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// wsPipe adapts a *websocket.Conn (message-oriented) to io.ReadWriteCloser
// (byte-stream-oriented), the shape the MQTT codec expects: an MQTT frame
// may span, or be smaller than, a single WebSocket binary message, so reads
// buffer across message boundaries.
//
// Grounded on other_examples' gorilla/websocket handlers (e.g.
// ba9d6b31_irgordon-kari_..._websocket.go.go), adapted from a per-message
// read loop into a continuous io.Reader.
type wsPipe struct {
	conn *websocket.Conn

	pending io.Reader // leftover bytes from the current WS message
}

func newWSPipe(conn *websocket.Conn) *wsPipe {
	return &wsPipe{conn: conn}
}

func (p *wsPipe) Read(b []byte) (int, error) {
	for p.pending == nil {
		_, r, err := p.conn.NextReader()
		if err != nil {
			return 0, err
		}
		p.pending = r
	}
	n, err := p.pending.Read(b)
	if err == io.EOF {
		p.pending = nil
		if n == 0 {
			return p.Read(b) // message exhausted with nothing read; pull the next one
		}
		err = nil
	}
	return n, err
}

func (p *wsPipe) Write(b []byte) (int, error) {
	if err := p.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (p *wsPipe) Close() error {
	return p.conn.Close()
}

func (p *wsPipe) SetDeadline(t time.Time) error {
	if err := p.conn.SetReadDeadline(t); err != nil {
		return err
	}
	return p.conn.SetWriteDeadline(t)
}

// dialWebSocket opens the MQTT-over-WebSocket leg: subprotocol "mqtt",
// resource path cfg.Path, TLS config cfg.TLSConfig when scheme is wss.
func dialWebSocket(url string, subprotocol string, header http.Header, dialer *websocket.Dialer) (*wsPipe, error) {
	dialer.Subprotocols = []string{subprotocol}
	conn, _, err := dialer.Dial(url, header)
	if err != nil {
		return nil, err
	}
	return newWSPipe(conn), nil
}
