package signal

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
)

// #region buffer
// Buffer is one acquisition window. It is immutable: the constructor copies its
// input and Samples returns a copy.
type Buffer struct {
	samples []float64
}

// NewBuffer captures a window from the given samples.
func NewBuffer(samples []float64) Buffer {
	cp := make([]float64, len(samples))
	copy(cp, samples)
	return Buffer{samples: cp}
}

// Len returns the number of samples in the window.
func (b Buffer) Len() int {
	return len(b.samples)
}

// At returns sample i.
func (b Buffer) At(i int) float64 {
	return b.samples[i]
}

// Samples returns a copy of the window.
func (b Buffer) Samples() []float64 {
	cp := make([]float64, len(b.samples))
	copy(cp, b.samples)
	return cp
}

// #endregion buffer

// #region validate
// Validate reports ErrInvalidInput for an empty window, a window whose length
// differs from want (when want > 0), or any non-finite sample.
func (b Buffer) Validate(want int) error {
	if len(b.samples) == 0 {
		return fmt.Errorf("empty buffer: %w", cycleerr.ErrInvalidInput)
	}
	if want > 0 && len(b.samples) != want {
		return fmt.Errorf("buffer length %d, session expects %d: %w", len(b.samples), want, cycleerr.ErrInvalidInput)
	}
	for i, v := range b.samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("sample %d is %v: %w", i, v, cycleerr.ErrInvalidInput)
		}
	}
	return nil
}

// #endregion validate
