package audio

import "fmt"

// Assembler accumulates capture blocks and emits fixed-size windows where
// the last overlapSize samples of one window repeat as the head of the next,
// so no sample span falls between two windows. The assembler is owned by the
// consumer side of the queue and is not safe for concurrent use.
type Assembler struct {
	chunkSize   int
	overlapSize int
	buf         []float32
}

// NewAssembler creates a window assembler. The overlap must satisfy
// 0 <= overlapSize < chunkSize; anything else is a configuration error.
func NewAssembler(chunkSize, overlapSize int) (*Assembler, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlapSize < 0 || overlapSize >= chunkSize {
		return nil, fmt.Errorf("overlap size must be in [0, %d), got %d", chunkSize, overlapSize)
	}
	return &Assembler{
		chunkSize:   chunkSize,
		overlapSize: overlapSize,
		buf:         make([]float32, 0, chunkSize+overlapSize),
	}, nil
}

// Push appends samples to the accumulated buffer. Once a full window's worth
// has accumulated it extracts the first chunkSize samples as a window,
// retaining the window's trailing overlapSize samples plus any remainder as
// the head of the next window. Returns nil while there is insufficient data.
func (a *Assembler) Push(samples []float32) []float32 {
	a.buf = append(a.buf, samples...)
	if len(a.buf) < a.chunkSize {
		return nil
	}

	window := make([]float32, a.chunkSize)
	copy(window, a.buf[:a.chunkSize])

	rest := a.buf[a.chunkSize-a.overlapSize:]
	next := make([]float32, len(rest), a.chunkSize+a.overlapSize)
	copy(next, rest)
	a.buf = next

	return window
}

// Flush returns whatever remains in the buffer, possibly shorter than one
// window, and resets the buffer to empty. Returns nil if nothing is pending.
func (a *Assembler) Flush() []float32 {
	if len(a.buf) == 0 {
		return nil
	}
	remainder := a.buf
	a.buf = make([]float32, 0, a.chunkSize+a.overlapSize)
	return remainder
}

// Buffered returns the number of accumulated samples not yet emitted.
func (a *Assembler) Buffered() int {
	return len(a.buf)
}
