package audio

import (
	"sync"
	"time"
)

// Queue is an unbounded thread-safe FIFO of frame blocks. It is written by
// exactly one producer (the capture goroutine) and read by exactly one
// consumer; insertion order is preserved and blocks are never split or
// merged by the queue itself.
type Queue struct {
	mu     sync.Mutex
	blocks [][]float32
	signal chan struct{}
}

// NewQueue creates an empty delivery queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push appends a block. It never blocks the producer.
func (q *Queue) Push(block []float32) {
	q.mu.Lock()
	q.blocks = append(q.blocks, block)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest block, waiting up to timeout for one to
// arrive. It returns false on timeout rather than blocking forever. A
// non-positive timeout checks once without waiting.
func (q *Queue) Pop(timeout time.Duration) ([]float32, bool) {
	if block, ok := q.take(); ok {
		return block, true
	}
	if timeout <= 0 {
		return nil, false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-q.signal:
			if block, ok := q.take(); ok {
				return block, true
			}
		case <-deadline.C:
			return nil, false
		}
	}
}

func (q *Queue) take() ([]float32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.blocks) == 0 {
		return nil, false
	}
	block := q.blocks[0]
	q.blocks = q.blocks[1:]
	return block, true
}

// Len returns the number of queued blocks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.blocks)
}

// Drain discards all pending blocks and returns how many were dropped.
func (q *Queue) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.blocks)
	q.blocks = nil
	return n
}
