// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package buffer implements the variable-length buffer allocator backing
// the tri-state I/O queue (internal/ioqueue). It is a size-classed slab
// allocator, not a general malloc replacement: allocations are rounded up
// to the nearest size class and recycled through per-class free lists.
//
// Pool is safe for concurrent use: it guards its own bookkeeping with a
// mutex, and internal/ioqueue calls it without holding the queue mutex.
package buffer

import "sync"

// sizeClasses are the slab bucket sizes, smallest first. A request larger
// than the biggest class falls back to a one-off allocation that is never
// recycled, matching the behavior of a size-classed allocator under
// oversized requests.
var sizeClasses = []int{1 << 10, 4 << 10, 16 << 10, 64 << 10, 256 << 10}

// Pool is a debug-named slab allocator.
type Pool struct {
	Name string

	mu      sync.Mutex
	classes []*sync.Pool
	live    map[*byte]int // tracks the size class index per live allocation, keyed by the address of its first byte
	stats   struct {
		allocated int64
		released  int64
	}
}

// NewPool creates a buffer pool identified by name (used only for
// diagnostics and log correlation).
func NewPool(name string) *Pool {
	p := &Pool{
		Name: name,
		live: make(map[*byte]int),
	}
	p.classes = make([]*sync.Pool, len(sizeClasses))
	for i, sz := range sizeClasses {
		sz := sz
		p.classes[i] = &sync.Pool{
			New: func() any { return make([]byte, sz) },
		}
	}
	return p
}

func classFor(size int) int {
	for i, sz := range sizeClasses {
		if size <= sz {
			return i
		}
	}
	return -1
}

// Allocate returns a slice sized at least size bytes. The returned slice's
// length equals size; its capacity may exceed size when drawn from a slab
// class.
func (p *Pool) Allocate(size int) []byte {
	if size <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := classFor(size)
	if idx < 0 {
		// Oversized: one-off allocation, not tracked in any free list.
		buf := make([]byte, size)
		p.live[&buf[0]] = -1
		p.stats.allocated++
		return buf
	}

	raw := p.classes[idx].Get().([]byte)
	buf := raw[:size]
	p.live[&buf[0]] = idx
	p.stats.allocated++
	return buf
}

// Resize grows or shrinks an allocation, copying the overlapping region
// into a freshly allocated buffer when growing past the current class.
func (p *Pool) Resize(buf []byte, newSize int) []byte {
	if newSize <= cap(buf) {
		grown := buf[:newSize]
		return grown
	}
	fresh := p.Allocate(newSize)
	copy(fresh, buf)
	p.Release(buf)
	return fresh
}

// Release returns an allocation to its size class free list, or drops it
// (for the garbage collector to reclaim) if it was an oversized one-off.
func (p *Pool) Release(buf []byte) {
	if len(buf) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	key := &buf[:1][0]
	idx, ok := p.live[key]
	if !ok {
		return
	}
	delete(p.live, key)
	p.stats.released++

	if idx < 0 {
		return // oversized one-off, let GC reclaim
	}
	full := buf[:cap(buf)][:sizeClasses[idx]]
	p.classes[idx].Put(full)
}

// SizeOf reports the usable (class) size of an allocation, or -1 if it is
// not a live allocation from this pool.
func (p *Pool) SizeOf(buf []byte) int {
	if len(buf) == 0 {
		return -1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.live[&buf[:1][0]]
	if !ok {
		return -1
	}
	if idx < 0 {
		return cap(buf)
	}
	return sizeClasses[idx]
}

// Destroy releases every tracked allocation. Callers must not use the pool
// afterward.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live = make(map[*byte]int)
	p.classes = nil
}

// Stats returns a point-in-time (allocated, released) counter snapshot,
// used by internal/maintenance to decide whether a compaction sweep is
// worthwhile.
func (p *Pool) Stats() (allocated, released int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats.allocated, p.stats.released
}
