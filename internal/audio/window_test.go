package audio

import "testing"

func ramp(n int, start float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + float32(i)
	}
	return out
}

func TestNewAssemblerValidation(t *testing.T) {
	if _, err := NewAssembler(0, 0); err == nil {
		t.Error("expected error for zero chunk size")
	}
	if _, err := NewAssembler(100, -1); err == nil {
		t.Error("expected error for negative overlap")
	}
	if _, err := NewAssembler(100, 100); err == nil {
		t.Error("expected error for overlap == chunk size")
	}
	if _, err := NewAssembler(100, 150); err == nil {
		t.Error("expected error for overlap > chunk size")
	}
	if _, err := NewAssembler(100, 0); err != nil {
		t.Errorf("zero overlap is valid: %v", err)
	}
}

func TestAssemblerEmitsFullWindow(t *testing.T) {
	a, err := NewAssembler(8, 2)
	if err != nil {
		t.Fatal(err)
	}

	if w := a.Push(ramp(5, 0)); w != nil {
		t.Fatalf("expected no window after 5 samples, got %d", len(w))
	}
	w := a.Push(ramp(5, 5))
	if w == nil {
		t.Fatal("expected a window after 10 samples")
	}
	if len(w) != 8 {
		t.Fatalf("window length: got %d, want 8", len(w))
	}
	for i := range w {
		if w[i] != float32(i) {
			t.Fatalf("window sample %d: got %f, want %d", i, w[i], i)
		}
	}
	// Retained tail: overlap of the emitted window plus the remainder.
	if a.Buffered() != 4 {
		t.Errorf("buffered after emission: got %d, want 4", a.Buffered())
	}
}

func TestAssemblerOverlapContinuity(t *testing.T) {
	a, err := NewAssembler(8, 3)
	if err != nil {
		t.Fatal(err)
	}

	var windows [][]float32
	next := float32(0)
	for len(windows) < 4 {
		w := a.Push(ramp(5, next))
		next += 5
		if w != nil {
			windows = append(windows, w)
		}
	}

	for i := 0; i < len(windows)-1; i++ {
		tail := windows[i][len(windows[i])-3:]
		head := windows[i+1][:3]
		for j := range tail {
			if tail[j] != head[j] {
				t.Fatalf("window %d tail[%d]=%f != window %d head[%d]=%f",
					i, j, tail[j], i+1, j, head[j])
			}
		}
	}
}

func TestAssemblerCanonicalScenario(t *testing.T) {
	// 2.0s windows with 0.5s overlap at 16kHz.
	a, err := NewAssembler(32000, 8000)
	if err != nil {
		t.Fatal(err)
	}

	w := a.Push(ramp(40000, 0))
	if w == nil {
		t.Fatal("expected a window from 40000 samples")
	}
	if len(w) != 32000 {
		t.Fatalf("window length: got %d, want 32000", len(w))
	}
	// remainder = total - chunk + overlap
	if a.Buffered() != 16000 {
		t.Fatalf("remainder: got %d, want 16000", a.Buffered())
	}

	rest := a.Flush()
	if len(rest) != 16000 {
		t.Fatalf("flush length: got %d, want 16000", len(rest))
	}
	// The flushed region starts overlapSize before the end of the window.
	if rest[0] != 24000 {
		t.Errorf("flush head: got %f, want 24000", rest[0])
	}
	if rest[len(rest)-1] != 39999 {
		t.Errorf("flush tail: got %f, want 39999", rest[len(rest)-1])
	}

	if again := a.Flush(); again != nil {
		t.Errorf("second flush should return nil, got %d samples", len(again))
	}
}

func TestAssemblerFlushEmpty(t *testing.T) {
	a, err := NewAssembler(100, 10)
	if err != nil {
		t.Fatal(err)
	}
	if w := a.Flush(); w != nil {
		t.Errorf("flush of empty buffer should return nil, got %d samples", len(w))
	}
}

func TestAssemblerWindowIsACopy(t *testing.T) {
	a, err := NewAssembler(4, 1)
	if err != nil {
		t.Fatal(err)
	}
	w := a.Push([]float32{1, 2, 3, 4, 5})
	if w == nil {
		t.Fatal("expected a window")
	}
	w[3] = 99
	rest := a.Flush()
	if rest[0] != 4 {
		t.Errorf("mutating an emitted window leaked into the buffer: %f", rest[0])
	}
}
