package logging

import (
	"strings"
	"sync"
)

// DefaultTapCapacity is the number of log lines kept for the diagnostics tap.
const DefaultTapCapacity = 500

// RingBuffer keeps the most recent log lines in memory. It implements
// io.Writer so it can sit behind an io.MultiWriter next to the real sink.
type RingBuffer struct {
	lines []string
	next  int
	full  bool
	mu    sync.Mutex
}

// NewRingBuffer creates a ring buffer holding up to capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultTapCapacity
	}
	return &RingBuffer{lines: make([]string, capacity)}
}

// Write appends each newline-terminated record to the buffer.
func (b *RingBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		b.lines[b.next] = line
		b.next++
		if b.next == len(b.lines) {
			b.next = 0
			b.full = true
		}
	}
	return len(p), nil
}

// Recent returns up to limit lines in chronological order. A non-empty tag
// filters to lines containing it (case-insensitive).
func (b *RingBuffer) Recent(tag string, limit int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	start := 0
	if b.full {
		size = len(b.lines)
		start = b.next
	}

	tagLower := strings.ToLower(tag)
	out := make([]string, 0, size)
	for i := 0; i < size; i++ {
		line := b.lines[(start+i)%len(b.lines)]
		if tag != "" && !strings.Contains(strings.ToLower(line), tagLower) {
			continue
		}
		out = append(out, line)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Len reports how many lines are currently buffered.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.lines)
	}
	return b.next
}
