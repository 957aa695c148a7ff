package core

// RingBuffer retains the most recent samples. Write overwrites the oldest
// sample when full; TryWrite is the reject-on-full variant.
type RingBuffer struct {
	buf   []Sample
	head  int // next write position
	tail  int // oldest element
	count int
	full  bool
}

// NewRingBuffer allocates storage for capacity samples. No further
// allocation happens after construction.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{buf: make([]Sample, capacity)}
}

// Write appends s, discarding the oldest sample if the buffer is full.
// It always succeeds.
func (r *RingBuffer) Write(s Sample) bool {
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)

	if r.full {
		r.tail = r.head
		return true
	}

	r.count++
	if r.count == len(r.buf) {
		r.full = true
	}
	return true
}

// TryWrite appends s only if there is room. A false return means the sample
// was rejected and the caller should report ErrBufferOverflow.
func (r *RingBuffer) TryWrite(s Sample) bool {
	if r.full {
		return false
	}
	return r.Write(s)
}

// Read pops the oldest sample.
func (r *RingBuffer) Read() (Sample, bool) {
	if r.count == 0 {
		return Sample{}, false
	}
	s := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	r.full = false
	return s, true
}

// Peek returns the sample offset positions after the oldest without removing it.
func (r *RingBuffer) Peek(offset int) (Sample, bool) {
	if offset < 0 || offset >= r.count {
		return Sample{}, false
	}
	return r.buf[(r.tail+offset)%len(r.buf)], true
}

func (r *RingBuffer) Count() int {
	return r.count
}

func (r *RingBuffer) Capacity() int {
	return len(r.buf)
}

func (r *RingBuffer) IsEmpty() bool {
	return r.count == 0
}

func (r *RingBuffer) IsFull() bool {
	return r.full
}

// Clear drops all samples. Storage is not zeroed.
func (r *RingBuffer) Clear() {
	r.head = 0
	r.tail = 0
	r.count = 0
	r.full = false
}

// Snapshot copies the retained samples, oldest first, into dst.
func (r *RingBuffer) Snapshot(dst []Sample) []Sample {
	dst = dst[:0]
	for i := 0; i < r.count; i++ {
		dst = append(dst, r.buf[(r.tail+i)%len(r.buf)])
	}
	return dst
}
