// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package transport implements the uniform byte-pipe adapter (component E)
// wrapping either a raw-TLS socket or a WebSocket connection, with paired
// begin/end recv/send callbacks over two internal/ioqueue queues.
//
// Grounded on internal/agent/control_channel.go's connect()/pingLoop() full
// duplex reader/writer goroutine split, and original_source/src/xio_sk.c
// and src/xio_ws.c for the begin/end recv/send callback contract.
package transport

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaymesh/sockagent/internal/buffer"
	"github.com/relaymesh/sockagent/internal/ioqueue"
	"github.com/relaymesh/sockagent/internal/scheduler"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// rawReceiveSize and wsReceiveSize are the fixed inbound allocation sizes
// per spec §4.4 ("≥16KB for WebSocket, ≥64KB for raw socket").
const (
	rawReceiveSize = 64 * 1024
	wsReceiveSize  = 16 * 1024
)

// Config configures one Adapter instance.
type Config struct {
	Mode      Mode
	Host      string
	Port      int
	Path      string // WebSocket resource path
	TLSConfig *tls.Config

	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger

	InboundBytesPerSec  int64 // not consulted; inbound flow is gated only by ReceiveEnable
	OutboundBytesPerSec int64 // 0 disables outbound credit-flow shaping

	DialTimeout time.Duration
}

// OnBytes is invoked on the scheduler thread for each inbound buffer,
// carrying the received payload and the terminal status (KindOK on a
// normal chunk, KindClosed on EOF, KindComm on any other read error).
type OnBytes func(payload []byte, status sockerr.Kind)

// Adapter is one transport instance: inbound queue, outbound queue, and
// a scheduler-bound pump goroutine pair.
type Adapter struct {
	cfg  Config
	pool *buffer.Pool

	inbound  *ioqueue.Queue
	outbound *ioqueue.Queue

	pipe io.ReadWriteCloser

	receiveEnabled atomic.Bool
	readyNotify    chan struct{}

	onBytes   OnBytes
	onError   func(error)
	errFired  atomic.Bool
	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup

	outWriter io.Writer
}

// New constructs an Adapter. Open must be called before Send/Receive work.
func New(cfg Config) *Adapter {
	pool := buffer.NewPool("transport")
	a := &Adapter{
		cfg:         cfg,
		pool:        pool,
		inbound:     ioqueue.NewQueue("inbound", pool),
		outbound:    ioqueue.NewQueue("outbound", pool),
		readyNotify: make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
	a.receiveEnabled.Store(true)
	return a
}

func (a *Adapter) receiveSize() int {
	if a.cfg.Mode == ModeWebSocket {
		return wsReceiveSize
	}
	return rawReceiveSize
}

// Open asynchronously dials the configured transport leg and, on success,
// starts the read/write pumps. on_open fires exactly once, on the
// scheduler thread.
func (a *Adapter) Open(onOpen func(error), onBytes OnBytes, onError func(error)) {
	go func() {
		pipe, err := a.dial()
		a.cfg.Scheduler.Post(func() {
			if err != nil {
				onOpen(err)
				return
			}
			a.pipe = pipe
			a.onBytes = onBytes
			a.onError = onError
			a.outWriter = newThrottledWriter(context.Background(), pipe, a.cfg.OutboundBytesPerSec)
			a.startPumps()
			onOpen(nil)
		})
	}()
}

func (a *Adapter) dial() (io.ReadWriteCloser, error) {
	timeout := a.cfg.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	addr := net.JoinHostPort(a.cfg.Host, portString(a.cfg.Port))

	switch a.cfg.Mode {
	case ModeWebSocket:
		scheme := "wss"
		if a.cfg.TLSConfig == nil {
			scheme = "ws"
		}
		url := scheme + "://" + addr + a.cfg.Path
		dialer := &websocket.Dialer{
			TLSClientConfig:  a.cfg.TLSConfig,
			HandshakeTimeout: timeout,
		}
		return dialWebSocket(url, "mqtt", nil, dialer)
	default:
		dialer := &net.Dialer{Timeout: timeout}
		raw, err := dialer.Dial("tcp", addr)
		if err != nil {
			return nil, err
		}
		if a.cfg.TLSConfig == nil {
			return raw, nil
		}
		tlsConn := tls.Client(raw, a.cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			raw.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

func (a *Adapter) startPumps() {
	a.wg.Add(2)
	go a.readPump()
	go a.writePump()
}

// Send accepts a copy of bytes into the outbound queue and returns
// immediately; onComplete fires (on the scheduler thread) once the bytes
// have been handed to the transport or the queue is aborted.
func (a *Adapter) Send(payload []byte, onComplete func(sockerr.Kind)) {
	buf := a.outbound.CreateBuffer(payload, len(payload))
	buf.SetCompletion(func(b *ioqueue.Buffer, status sockerr.Kind) {
		a.cfg.Scheduler.Post(func() { onComplete(status) })
	}, nil)
	a.outbound.PushReady(buf)
	a.notifyReady()
}

func (a *Adapter) notifyReady() {
	select {
	case a.readyNotify <- struct{}{}:
	default:
	}
}

// RollbackOutbound restores any buffer left in-progress by a broken
// connection back to the head of ready, so a reconnecting caller can reopen
// this Adapter (or hand the queue to a fresh one) without losing unsent
// data or reordering it.
func (a *Adapter) RollbackOutbound() {
	a.outbound.Rollback()
}

// ReceiveEnable toggles inbound admission control (the "xon" option).
func (a *Adapter) ReceiveEnable(enable bool) {
	a.receiveEnabled.Store(enable)
}

// Close shuts down the transport asynchronously. It stops both pumps and
// closes the pipe at once, without waiting for queued outbound data to be
// written; buffers still queued have their completion fired with
// KindAborted.
func (a *Adapter) Close(onClose func()) {
	a.closeOnce.Do(func() {
		close(a.stopCh)
		if a.pipe != nil {
			a.pipe.Close()
		}
	})
	go func() {
		a.wg.Wait()
		a.inbound.Abort()
		a.outbound.Abort()
		a.cfg.Scheduler.Post(onClose)
	}()
}

// --- begin/end recv/send pairs (spec §4.4) ------------------------------

// beginRecv hands out a fresh inbound buffer of the fixed receive size.
func (a *Adapter) beginRecv() (*ioqueue.Buffer, int) {
	size := a.receiveSize()
	buf := a.inbound.CreateBuffer(nil, size)
	return buf, size
}

// endRecv classifies the read result: on retry the buffer is released
// silently; otherwise it is stamped and pushed to done for delivery.
func (a *Adapter) endRecv(buf *ioqueue.Buffer, n int, result sockerr.Kind) {
	if result == sockerr.KindRetry {
		a.inbound.Discard(buf)
		return
	}
	buf.Status = result
	buf.Length = n
	buf.WriteOffset = n
	a.inbound.PushDone(buf)
	a.cfg.Scheduler.Post(a.deliverInbound)
}

// beginSend returns the head of in-progress (resuming a partially-sent
// buffer) or of ready, preserving outbound queue insertion order.
func (a *Adapter) beginSend() (*ioqueue.Buffer, bool) {
	if buf, ok := a.outbound.PopInProgress(); ok {
		a.outbound.PushInProgress(buf) // peek semantics: keep at head until send completes
		return buf, true
	}
	buf, ok := a.outbound.PopReady()
	if !ok {
		return nil, false
	}
	a.outbound.PushInProgress(buf)
	return buf, true
}

// endSend classifies the write result: retry keeps buf at the head of
// in-progress; anything else stamps and delivers it.
func (a *Adapter) endSend(buf *ioqueue.Buffer, n int, result sockerr.Kind) {
	buf.ReadOffset += n
	if result == sockerr.KindRetry {
		return // already at head of in-progress
	}
	buf.Status = result
	a.outbound.PushDone(buf)
	a.cfg.Scheduler.Post(a.deliverOutbound)
}

// deliverInbound drains done inbound buffers in arrival order into the
// user callback, then releases each one.
func (a *Adapter) deliverInbound() {
	for {
		buf, ok := a.inbound.PopDone()
		if !ok {
			return
		}
		payload := buf.Payload[:buf.Length]
		status := buf.Status
		if a.onBytes != nil {
			a.onBytes(payload, status)
		}
		a.inbound.ReleaseDone(buf, status)
	}
}

// deliverOutbound fires completion callbacks for sent buffers, in queue
// order, then releases them.
func (a *Adapter) deliverOutbound() {
	for {
		buf, ok := a.outbound.PopDone()
		if !ok {
			return
		}
		a.outbound.ReleaseDone(buf, buf.Status)
	}
}

func (a *Adapter) readPump() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}

		if !a.receiveEnabled.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		buf, size := a.beginRecv()
		n, err := a.pipe.Read(buf.Payload[:size])
		// A read already in flight when receive was disabled is held here
		// until receive is enabled again.
		for !a.receiveEnabled.Load() {
			select {
			case <-a.stopCh:
				a.inbound.Discard(buf)
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
		result := classifyIOError(err)
		a.endRecv(buf, n, result)

		if err != nil {
			a.fireError(err)
			return
		}
	}
}

func (a *Adapter) writePump() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		case <-a.readyNotify:
		case <-time.After(50 * time.Millisecond):
		}

		for {
			buf, ok := a.beginSend()
			if !ok {
				break
			}
			remaining := buf.Payload[buf.ReadOffset:buf.WriteOffset]
			if len(remaining) == 0 {
				a.endSend(buf, 0, sockerr.KindOK)
				continue
			}
			n, err := a.outWriter.Write(remaining)
			result := classifyIOError(err)
			a.endSend(buf, n, result)
			if err != nil {
				a.fireError(err)
				return
			}
		}
	}
}

// fireError invokes on_error at most once per transport session.
func (a *Adapter) fireError(err error) {
	if a.errFired.CompareAndSwap(false, true) {
		if a.onError != nil {
			a.cfg.Scheduler.Post(func() { a.onError(err) })
		}
	}
}

func classifyIOError(err error) sockerr.Kind {
	if err == nil {
		return sockerr.KindOK
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return sockerr.KindRetry
	}
	if err == io.EOF {
		return sockerr.KindClosed
	}
	return sockerr.KindComm
}

func portString(p int) string {
	return strconv.Itoa(p)
}
