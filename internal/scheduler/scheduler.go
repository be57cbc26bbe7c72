// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package scheduler implements the single-threaded cooperative task
// scheduler every connection and transport adapter owns. A single goroutine
// drains a channel of closures (buffered to 256 tasks; Post blocks while it
// is full), so every task posted to one Scheduler instance runs to
// completion before the next — this is the concurrency boundary the rest of
// the agent is built around. Other packages still keep their own locks and
// atomics (internal/ioqueue, internal/buffer, internal/sockapi,
// internal/transport).
//
// Grounded on internal/agent/control_channel.go's run()/pingLoop() goroutine
// and channel-based dispatch, generalized from a hardcoded ping/reconnect
// loop into an arbitrary posted-task queue.
package scheduler

import (
	"sync"
	"time"
)

// Task is a unit of work posted to a Scheduler.
type Task func()

// Scheduler is a single-threaded cooperative task queue.
type Scheduler struct {
	tasks chan Task
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup

	timersMu sync.Mutex
	timers   map[any][]*time.Timer
}

// New creates and starts a Scheduler. Stop must be called to release its
// goroutine.
func New() *Scheduler {
	s := &Scheduler{
		tasks:  make(chan Task, 256),
		stop:   make(chan struct{}),
		timers: make(map[any][]*time.Timer),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case t := <-s.tasks:
			t()
		}
	}
}

// drain runs any tasks still queued at shutdown, so in-flight completion
// callbacks (e.g. aborts) are not silently dropped.
func (s *Scheduler) drain() {
	for {
		select {
		case t := <-s.tasks:
			t()
		default:
			return
		}
	}
}

// Post enqueues a task for execution on the scheduler goroutine. Never
// blocks the caller beyond channel admission.
func (s *Scheduler) Post(t Task) {
	select {
	case s.tasks <- t:
	case <-s.stop:
	}
}

// PostAfter schedules t to run after d, tagged with key so CancelAll(key)
// can cancel it before it fires.
func (s *Scheduler) PostAfter(d time.Duration, key any, t Task) {
	timer := time.AfterFunc(d, func() {
		s.Post(t)
	})

	s.timersMu.Lock()
	s.timers[key] = append(s.timers[key], timer)
	s.timersMu.Unlock()
}

// CancelAll stops every outstanding PostAfter timer registered under key.
// Tasks already handed to Post (i.e. already fired) cannot be recalled.
func (s *Scheduler) CancelAll(key any) {
	s.timersMu.Lock()
	timers := s.timers[key]
	delete(s.timers, key)
	s.timersMu.Unlock()

	for _, timer := range timers {
		timer.Stop()
	}
}

// WaitQuiescent blocks until every task posted before this call has run,
// for use in tests.
func (s *Scheduler) WaitQuiescent() {
	done := make(chan struct{})
	s.Post(func() { close(done) })
	<-done
}

// Stop halts the scheduler goroutine after draining any already-queued
// tasks. Outstanding PostAfter timers are not implicitly cancelled; callers
// should CancelAll first if that matters.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}
