// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package ioqueue implements the tri-state (ready / in-progress / done)
// buffer queue used uniformly by the socket, WebSocket, and MQTT transports
// for inbound and outbound data, plus the stream view over a queued buffer.
//
// Grounded on original_source/src/io_queue.c: the queue is a set of three
// doubly-linked lists protected by one mutex, and a buffer carries a
// back-reference to its queue so release can traverse atomically.
package ioqueue

import (
	"sync"
	"unsafe"

	"github.com/relaymesh/sockagent/internal/buffer"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// listKind identifies which of the three queue lists a buffer currently
// belongs to, or none.
type listKind int

const (
	listNone listKind = iota
	listReady
	listInProgress
	listDone
)

// CompletionFunc is invoked at most once per buffer, when the buffer
// reaches done (normal completion) or is aborted/released early.
type CompletionFunc func(buf *Buffer, status sockerr.Kind)

// Buffer is a queued payload with embedded stream cursors. The header
// fields mirror original_source/inc/io_queue.h's io_queue_buffer_t.
type Buffer struct {
	Queue *Queue // back-reference; nil once unlinked from an owning queue

	Payload []byte // the payload region
	Length  int    // valid payload length (<= len(Payload))

	ReadOffset  int
	WriteOffset int

	Status sockerr.Kind

	onComplete CompletionFunc
	ctx        any

	kind listKind
	elem *listElem // linkage; exactly one of ready/in-progress/done when Queue != nil
}

// listElem is a minimal doubly-linked list node. A hand-rolled list (rather
// than container/list) is used so Buffer can hold a direct pointer to its
// own node for O(1) unlink without an interface-boxing allocation per
// operation — the same shape original_source's DLIST_ENTRY gives the C
// implementation.
type listElem struct {
	buf        *Buffer
	prev, next *listElem
}

var (
	registryMu sync.Mutex
	registry   = make(map[uintptr]*Buffer)
)

func registerBuffer(buf *Buffer) {
	if len(buf.Payload) == 0 {
		return
	}
	key := uintptr(unsafe.Pointer(&buf.Payload[0]))
	registryMu.Lock()
	registry[key] = buf
	registryMu.Unlock()
}

func unregisterBuffer(buf *Buffer) {
	if len(buf.Payload) == 0 {
		return
	}
	key := uintptr(unsafe.Pointer(&buf.Payload[0]))
	registryMu.Lock()
	delete(registry, key)
	registryMu.Unlock()
}

// BufferToPtr returns the payload region of buf — the pointer applications
// hand to a transport's send/recv call.
func BufferToPtr(buf *Buffer) []byte {
	return buf.Payload
}

// BufferFromPtr recovers the owning Buffer from a payload slice previously
// returned by BufferToPtr, mirroring io_queue_buffer_from_ptr's
// header-from-payload round trip. Returns (nil, false) if ptr does not
// originate from a live queue buffer.
func BufferFromPtr(ptr []byte) (*Buffer, bool) {
	if len(ptr) == 0 {
		return nil, false
	}
	key := uintptr(unsafe.Pointer(&ptr[0]))
	registryMu.Lock()
	buf, ok := registry[key]
	registryMu.Unlock()
	return buf, ok
}

// fireOnce invokes the completion callback exactly once, clearing it on
// first fire so a subsequent abort/release is a no-op.
func (b *Buffer) fireOnce(status sockerr.Kind) {
	cb := b.onComplete
	if cb == nil {
		return
	}
	b.onComplete = nil
	cb(b, status)
}

// Pool backing the byte allocation.
func (b *Buffer) release(pool *buffer.Pool) {
	unregisterBuffer(b)
	if pool != nil && b.Payload != nil {
		pool.Release(b.Payload)
	}
	b.Payload = nil
}
