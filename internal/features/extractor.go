package features

import (
	"math"
	"sync"

	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

// #region extractor

// Jitter draws uniform values in [0, 1). *rand.Rand satisfies it.
type Jitter interface {
	Float64() float64
}

// Extractor turns an acquisition window into a FeatureSet.
type Extractor struct {
	config Config

	mu     sync.Mutex
	jitter Jitter
}

// NewExtractor creates an Extractor. jitter may be nil, which disables the
// jitter term regardless of JitterAmplitude.
func NewExtractor(config Config, jitter Jitter) (*Extractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{config: config, jitter: jitter}, nil
}

// Config returns the extractor's configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// #endregion extractor

// #region extract

// Extract computes the FeatureSet of one window. Traits are read, never written.
// Only malformed buffers fail (ErrInvalidInput); scalars are clamped.
func (e *Extractor) Extract(buf signal.Buffer, sc Scalars, traits state.Traits) (FeatureSet, Stats, error) {
	stats, err := e.Statistics(buf, sc)
	if err != nil {
		return FeatureSet{}, Stats{}, err
	}

	var fs FeatureSet
	for _, r := range e.config.Rules {
		v := r.Attention*stats.Attention + r.Stability*stats.Stability + r.Adaptation*stats.Adaptation
		// fixed order keeps the sum bit-identical across calls
		for _, name := range state.TraitNames {
			if w, ok := r.Traits[name]; ok {
				tv, _ := traits.Get(name)
				v += w * tv
			}
		}
		fs.set(r.Feature, clampTo(v, r.Cap))
	}
	return fs, stats, nil
}

// Statistics computes the intermediate statistics of the composite signal.
func (e *Extractor) Statistics(buf signal.Buffer, sc Scalars) (Stats, error) {
	if err := buf.Validate(e.config.BufferLength); err != nil {
		return Stats{}, err
	}
	composite := e.composite(buf, clamp(sc.InputComplexity), clamp(sc.TypingSpeed))
	attention := meanAbs(composite)
	return Stats{
		Attention:  clamp(attention),
		Stability:  stability(composite, attention),
		Adaptation: clamp(trend(composite, e.config.TrendWindow, e.config.TrendWindows)),
	}, nil
}

// #endregion extract

// #region composite

// composite sums the window, the band terms and the jitter term per sample.
func (e *Extractor) composite(buf signal.Buffer, complexity, typing float64) []float64 {
	out := buf.Samples()

	for _, b := range e.config.Bands {
		amp := b.ComplexityGain*complexity + b.TypingGain*typing
		if amp == 0 {
			continue
		}
		for i := range out {
			out[i] += amp * math.Sin(b.Freq*float64(i))
		}
	}

	if e.jitter != nil && e.config.JitterAmplitude > 0 {
		e.mu.Lock()
		for i := range out {
			out[i] += (e.jitter.Float64() - 0.5) * e.config.JitterAmplitude
		}
		e.mu.Unlock()
	}
	return out
}

// #endregion composite

// #region statistics

// meanAbs returns the mean absolute value of xs.
func meanAbs(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += math.Abs(x)
	}
	return sum / float64(len(xs))
}

// stability is one minus the mean absolute first difference relative to the
// mean magnitude, floored at 0. A silent window carries no stability evidence.
func stability(xs []float64, attention float64) float64 {
	if len(xs) < 2 || attention == 0 {
		return 0
	}
	var sum float64
	for i := 1; i < len(xs); i++ {
		sum += math.Abs(xs[i] - xs[i-1])
	}
	diff := sum / float64(len(xs)-1)
	return clamp(1 - diff/attention)
}

// trend averages the change in mean magnitude between consecutive trailing
// windows of the given size, looking back at most windows+1 windows.
func trend(xs []float64, size, windows int) float64 {
	full := len(xs) / size
	if full > windows+1 {
		full = windows + 1
	}
	if full < 2 {
		return 0
	}
	means := make([]float64, full)
	for j := range means {
		hi := len(xs) - j*size
		means[j] = meanAbs(xs[hi-size : hi])
	}
	var sum float64
	for j := 0; j < full-1; j++ {
		sum += math.Abs(means[j] - means[j+1])
	}
	return sum / float64(full-1)
}

// #endregion statistics

// #region helpers

// clamp restricts v to [0, 1].
func clamp(v float64) float64 {
	return clampTo(v, 1)
}

// clampTo restricts v to [0, ceiling]. NaN maps to 0.
func clampTo(v, ceiling float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}

// #endregion helpers
