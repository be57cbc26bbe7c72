// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package transport

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/relaymesh/sockagent/internal/scheduler"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

func newTestAdapter(t *testing.T) (*Adapter, net.Conn) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	t.Cleanup(func() { serverConn.Close() })

	sched := scheduler.New()
	t.Cleanup(sched.Stop)

	a := New(Config{
		Mode:      ModeRawTLS,
		Scheduler: sched,
		Logger:    slog.Default(),
	})
	a.pipe = clientConn
	a.outWriter = newThrottledWriter(nil, clientConn, 0)
	a.startPumps()
	t.Cleanup(func() { clientConn.Close() })
	return a, serverConn
}

func TestAdapter_SendDeliversBytesToPeer(t *testing.T) {
	a, peer := newTestAdapter(t)

	done := make(chan sockerr.Kind, 1)
	a.Send([]byte("hello"), func(status sockerr.Kind) { done <- status })

	buf := make([]byte, 5)
	peer.SetReadDeadline(time.Now().Add(time.Second))
	if _, err := io.ReadFull(peer, buf); err != nil {
		t.Fatalf("peer read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}

	select {
	case status := <-done:
		if status != sockerr.KindOK {
			t.Fatalf("completion status = %v, want OK", status)
		}
	case <-time.After(time.Second):
		t.Fatal("send completion never fired")
	}
}

func TestAdapter_ReceiveDeliversPeerBytes(t *testing.T) {
	a, peer := newTestAdapter(t)

	received := make(chan string, 1)
	a.onBytes = func(payload []byte, status sockerr.Kind) {
		if status == sockerr.KindOK {
			received <- string(payload)
		}
	}

	peer.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := peer.Write([]byte("world")); err != nil {
		t.Fatalf("peer write: %v", err)
	}

	select {
	case got := <-received:
		if got != "world" {
			t.Fatalf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("onBytes never fired")
	}
}

func TestAdapter_ReceiveEnableFalseSuspendsDelivery(t *testing.T) {
	a, peer := newTestAdapter(t)
	a.ReceiveEnable(false)

	received := make(chan struct{}, 1)
	a.onBytes = func(payload []byte, status sockerr.Kind) { received <- struct{}{} }

	peer.SetWriteDeadline(time.Now().Add(time.Second))
	peer.Write([]byte("x"))

	select {
	case <-received:
		t.Fatal("delivery happened while receive disabled")
	case <-time.After(100 * time.Millisecond):
	}

	a.ReceiveEnable(true)
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("delivery never resumed after re-enabling")
	}
}

func TestParseScheme(t *testing.T) {
	cases := []struct {
		scheme string
		mode   Mode
		ok     bool
	}{
		{"", ModeRawTLS, false},
		{"ws", ModeWebSocket, true},
		{"WSS", ModeWebSocket, true},
		{"ssl", ModeRawTLS, true},
		{"mqtt", ModeRawTLS, true},
	}
	for _, c := range cases {
		mode, ok := ParseScheme(c.scheme)
		if mode != c.mode || ok != c.ok {
			t.Errorf("ParseScheme(%q) = (%v, %v), want (%v, %v)", c.scheme, mode, ok, c.mode, c.ok)
		}
	}
}
