// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package ioqueue

import (
	"sync"

	"github.com/relaymesh/sockagent/internal/buffer"
	"github.com/relaymesh/sockagent/internal/sockerr"
)

// Queue is a tri-state FIFO of buffers: ready, in-progress, done. All
// operations are thread-safe unless documented otherwise. The mutex here
// guards the three lists only; internal/buffer.Pool and the buffer pointer
// registry each have their own lock.
type Queue struct {
	Name string

	mu   sync.Mutex
	pool *buffer.Pool

	readyHead, readyTail       *listElem
	progressHead, progressTail *listElem
	doneHead, doneTail         *listElem
}

// NewQueue creates a queue backed by pool.
func NewQueue(name string, pool *buffer.Pool) *Queue {
	return &Queue{Name: name, pool: pool}
}

// Destroy releases every buffer linked in any of the three lists, in a
// single critical section.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, head := range []*listElem{q.readyHead, q.progressHead, q.doneHead} {
		for e := head; e != nil; {
			next := e.next
			e.buf.fireOnce(sockerr.KindAborted)
			e.buf.release(q.pool)
			e.buf.Queue = nil
			e.buf.elem = nil
			e.buf.kind = listNone
			e = next
		}
	}
	q.readyHead, q.readyTail = nil, nil
	q.progressHead, q.progressTail = nil, nil
	q.doneHead, q.doneTail = nil, nil
}

// CreateBuffer allocates a payload of length bytes from the pool,
// initializes the header, installs the stream cursors, and optionally
// copies length bytes from payload (leaving WriteOffset == length). The
// buffer is not linked into any list yet.
func (q *Queue) CreateBuffer(payload []byte, length int) *Buffer {
	mem := q.pool.Allocate(length)
	buf := &Buffer{
		Payload: mem,
		Length:  length,
		Status:  sockerr.KindOK,
		kind:    listNone,
	}
	registerBuffer(buf)

	if payload != nil {
		s := Stream{buf: buf}
		s.Write(payload[:min(length, len(payload))])
	}

	return buf
}

// SetCompletion installs the completion callback + opaque context for a
// buffer. Must be called before the buffer is handed to a transport.
func (b *Buffer) SetCompletion(fn CompletionFunc, ctx any) {
	b.onComplete = fn
	b.ctx = ctx
}

// Ctx returns the opaque context installed via SetCompletion.
func (b *Buffer) Ctx() any { return b.ctx }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// --- list bookkeeping -------------------------------------------------

func (q *Queue) headTail(kind listKind) (**listElem, **listElem) {
	switch kind {
	case listReady:
		return &q.readyHead, &q.readyTail
	case listInProgress:
		return &q.progressHead, &q.progressTail
	case listDone:
		return &q.doneHead, &q.doneTail
	default:
		return nil, nil
	}
}

// unlinkLocked removes buf from whichever list it is currently in. Must be
// called with q.mu held.
func (q *Queue) unlinkLocked(buf *Buffer) {
	if buf.kind == listNone || buf.elem == nil {
		return
	}
	head, tail := q.headTail(buf.kind)
	e := buf.elem

	if e.prev != nil {
		e.prev.next = e.next
	} else {
		*head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		*tail = e.prev
	}

	buf.elem = nil
	buf.kind = listNone
}

// appendLocked appends buf to the tail of kind's list. Must be called with
// q.mu held.
func (q *Queue) appendLocked(buf *Buffer, kind listKind) {
	head, tail := q.headTail(kind)
	e := &listElem{buf: buf}

	if *tail == nil {
		*head, *tail = e, e
	} else {
		e.prev = *tail
		(*tail).next = e
		*tail = e
	}

	buf.elem = e
	buf.kind = kind
	buf.Queue = q
}

// prependListLocked splices an entire sub-list (given by its head/tail,
// with elements already carrying kind==listReady) onto the front of
// ready, preserving internal order. Used by Rollback.
func (q *Queue) prependListLocked(head, tail *listElem) {
	if head == nil {
		return
	}
	tail.next = q.readyHead
	if q.readyHead != nil {
		q.readyHead.prev = tail
	} else {
		q.readyTail = tail
	}
	q.readyHead = head
}

func (q *Queue) pushLocked(buf *Buffer, kind listKind) {
	if buf.Queue == q {
		q.unlinkLocked(buf)
	} else {
		// Buffer arrives from elsewhere (freshly created, or reassigned);
		// ensure no stale linkage.
		buf.elem = nil
		buf.kind = listNone
	}
	q.appendLocked(buf, kind)
}

// PushReady unlinks buf from its current list (if any) and appends it to
// ready.
func (q *Queue) PushReady(buf *Buffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(buf, listReady)
}

// PushInProgress unlinks buf from its current list and appends it to
// in-progress.
func (q *Queue) PushInProgress(buf *Buffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(buf, listInProgress)
}

// PushDone unlinks buf from its current list and appends it to done.
func (q *Queue) PushDone(buf *Buffer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(buf, listDone)
}

// HasReady reports whether the ready list is non-empty.
func (q *Queue) HasReady() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.readyHead != nil
}

// HasInProgress reports whether the in-progress list is non-empty.
func (q *Queue) HasInProgress() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.progressHead != nil
}

// HasDone reports whether the done list is non-empty.
func (q *Queue) HasDone() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.doneHead != nil
}

func (q *Queue) popLocked(kind listKind) (*Buffer, bool) {
	head, _ := q.headTail(kind)
	if *head == nil {
		return nil, false
	}
	buf := (*head).buf
	q.unlinkLocked(buf)
	buf.Queue = nil
	return buf, true
}

// PopReady unlinks and returns the head of ready, or (nil, false).
func (q *Queue) PopReady() (*Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(listReady)
}

// PopInProgress unlinks and returns the head of in-progress, or (nil, false).
func (q *Queue) PopInProgress() (*Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(listInProgress)
}

// PopDone unlinks and returns the head of done, or (nil, false).
func (q *Queue) PopDone() (*Buffer, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked(listDone)
}

// Rollback appends the entire in-progress list to the front of ready, in
// order, atomically. Stream cursors are left untouched so partially-sent
// buffers resume from where the transport left them. Idempotent: calling
// Rollback with an empty in-progress list is a no-op.
func (q *Queue) Rollback() {
	q.mu.Lock()
	defer q.mu.Unlock()

	head, tail := q.progressHead, q.progressTail
	if head == nil {
		return
	}

	for e := head; e != nil; e = e.next {
		e.buf.kind = listReady
	}

	q.progressHead, q.progressTail = nil, nil
	q.prependListLocked(head, tail)
}

// Abort invokes every buffer's completion callback with aborted status,
// across all three lists, without removing them. This detaches
// application-visible state so a subsequent Release is safe. Idempotent:
// callbacks are cleared on first fire, so repeated Abort calls are no-ops.
func (q *Queue) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, head := range []*listElem{q.readyHead, q.progressHead, q.doneHead} {
		for e := head; e != nil; e = e.next {
			e.buf.fireOnce(sockerr.KindAborted)
		}
	}
}

// ReleaseDone fires buf's completion callback with status — the buffer's
// real outcome, unlike Release's forced aborted status — and returns its
// memory to the pool. For use by a caller that already popped buf off done
// (via PopDone) and knows how the operation actually finished.
func (q *Queue) ReleaseDone(buf *Buffer, status sockerr.Kind) {
	buf.fireOnce(status)
	buf.release(q.pool)
}

// Discard returns a freshly created buffer's memory to the pool without
// ever having linked it into ready/in-progress/done — for a transport that
// allocated a receive buffer, found nothing usable in it (e.g. a retryable
// short read), and wants to hand the memory back immediately.
func (q *Queue) Discard(buf *Buffer) {
	buf.fireOnce(sockerr.KindAborted)
	buf.release(q.pool)
}

// Release unlinks buf from its owning queue, fires its completion callback
// with aborted status if one is still armed, and returns its memory to the
// pool. Release(nil-queue buffer) is a no-op, matching original_source's
// "release with queue=null is a no-op" — callers address a buffer, not a
// queue, exactly as io_queue_buffer_release(buffer) does in the C source.
func Release(buf *Buffer) {
	if buf == nil || buf.Queue == nil {
		return
	}
	q := buf.Queue

	q.mu.Lock()
	q.unlinkLocked(buf)
	buf.Queue = nil
	q.mu.Unlock()

	buf.fireOnce(sockerr.KindAborted)
	buf.release(q.pool)
}
