package signal

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
)

// #region source-interface

// Source supplies acquisition windows. Implementations return io.EOF when
// no further windows will arrive.
type Source interface {
	Next(ctx context.Context) (Buffer, error)
}

// #endregion source-interface

// #region synthetic

// SyntheticConfig shapes the generated baseline.
type SyntheticConfig struct {
	Length    int     // samples per window
	Seed      uint64  // PCG seed; equal seeds give equal streams
	Noise     float64 // peak-to-peak amplitude of uniform noise
	DriftAmp  float64 // amplitude of the slow drift component
	DriftFreq float64 // radians per sample of the drift component
}

// DefaultSyntheticConfig returns a 256-sample low-noise baseline.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Length:    256,
		Seed:      1,
		Noise:     0.1,
		DriftAmp:  0.05,
		DriftFreq: 0.02,
	}
}

// SyntheticSource generates windows of seeded noise over a slow drift. It stands
// in for an acquisition device in demos, tests and the acquisition bridge.
type SyntheticSource struct {
	mu     sync.Mutex
	cfg    SyntheticConfig
	rng    *rand.Rand
	offset int
}

// NewSyntheticSource creates a generator.
func NewSyntheticSource(cfg SyntheticConfig) *SyntheticSource {
	return &SyntheticSource{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// Next returns the next window. The drift phase continues across windows.
// A non-positive Length fails with ErrInvalidInput.
func (s *SyntheticSource) Next(ctx context.Context) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return Buffer{}, err
	}
	if s.cfg.Length <= 0 {
		return Buffer{}, fmt.Errorf("synthetic window length %d: %w", s.cfg.Length, cycleerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	samples := make([]float64, s.cfg.Length)
	for i := range samples {
		pos := float64(s.offset + i)
		drift := s.cfg.DriftAmp * math.Sin(pos*s.cfg.DriftFreq)
		noise := (s.rng.Float64() - 0.5) * s.cfg.Noise
		samples[i] = drift + noise
	}
	s.offset += s.cfg.Length
	return Buffer{samples: samples}, nil
}

// #endregion synthetic

// #region slice-source

// SliceSource replays recorded windows in order.
type SliceSource struct {
	mu      sync.Mutex
	buffers []Buffer
	pos     int
}

// NewSliceSource creates a source over the given windows.
func NewSliceSource(buffers ...Buffer) *SliceSource {
	return &SliceSource{buffers: buffers}
}

// Next returns the next recorded window, or io.EOF when exhausted.
func (s *SliceSource) Next(ctx context.Context) (Buffer, error) {
	if err := ctx.Err(); err != nil {
		return Buffer{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.buffers) {
		return Buffer{}, io.EOF
	}
	b := s.buffers[s.pos]
	s.pos++
	return b, nil
}

// #endregion slice-source
