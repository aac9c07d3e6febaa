package stream

// Buffer accumulates inbound audio chunks until the flush threshold is
// reached. It is owned by exactly one connection and only touched from
// that connection's read loop, so no locking is needed; flushes in
// flight work on the snapshot TakeAndClear returned while new chunks
// keep accumulating here.
type Buffer struct {
	chunks    [][]byte
	byteCount int
	threshold int
}

// NewBuffer creates a buffer flushing after threshold chunks.
func NewBuffer(threshold int) *Buffer {
	if threshold <= 0 {
		threshold = 10
	}
	return &Buffer{threshold: threshold}
}

// Append adds one chunk. O(1) bookkeeping only.
func (b *Buffer) Append(chunk []byte) {
	b.chunks = append(b.chunks, chunk)
	b.byteCount += len(chunk)
}

// ShouldFlush reports whether the accumulated chunk count has reached
// the threshold.
func (b *Buffer) ShouldFlush() bool {
	return len(b.chunks) >= b.threshold
}

// Len returns the number of buffered chunks.
func (b *Buffer) Len() int {
	return len(b.chunks)
}

// Bytes returns the number of buffered bytes.
func (b *Buffer) Bytes() int {
	return b.byteCount
}

// TakeAndClear concatenates all buffered chunks into one payload and
// resets the buffer to empty. Returns nil when nothing is buffered.
func (b *Buffer) TakeAndClear() []byte {
	if len(b.chunks) == 0 {
		return nil
	}

	combined := make([]byte, 0, b.byteCount)
	for _, c := range b.chunks {
		combined = append(combined, c...)
	}

	b.chunks = nil
	b.byteCount = 0
	return combined
}
