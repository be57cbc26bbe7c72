// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package ioqueue

// Stream views a buffer as a random-access read/write byte stream. It is a
// thin capability bag — all state lives on the Buffer itself so the view
// can be constructed freely and discarded without side effects.
//
// Grounded on original_source/src/io_queue.c's
// io_queue_buffer_stream_{writer,reader,readable,writeable,reset}.
type Stream struct {
	buf *Buffer
}

// NewStream binds a Stream to buf.
func NewStream(buf *Buffer) Stream { return Stream{buf: buf} }

// Write copies up to writable() bytes from p into the buffer, advancing
// WriteOffset. Writing zero bytes is a no-op that returns 0, nil.
func (s Stream) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	avail := s.Writable()
	n := len(p)
	if n > avail {
		n = avail
	}
	if n > 0 {
		copy(s.buf.Payload[s.buf.WriteOffset:], p[:n])
		s.buf.WriteOffset += n
	}
	return n, nil
}

// Read copies up to len(p) bytes from the buffer (bounded by readable())
// into p, advancing ReadOffset. Reading into a zero-length p is a no-op
// that returns 0, nil.
func (s Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	avail := s.Readable()
	n := len(p)
	if n > avail {
		n = avail
	}
	if n > 0 {
		copy(p, s.buf.Payload[s.buf.ReadOffset:s.buf.ReadOffset+n])
		s.buf.ReadOffset += n
	}
	return n, nil
}

// Readable returns the number of bytes available to Read.
func (s Stream) Readable() int {
	return s.buf.Length - s.buf.ReadOffset
}

// Writable returns the number of bytes available to Write.
func (s Stream) Writable() int {
	return s.buf.Length - s.buf.WriteOffset
}

// Reset sets both cursors to zero, allowing a buffer that has been
// written-then-read to be rewritten from the start.
func (s Stream) Reset() {
	s.buf.ReadOffset = 0
	s.buf.WriteOffset = 0
}
