package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/signal"
	"github.com/danielpatrickdp/neuroadapt/internal/state"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region fixture-types

// Fixture is the top-level structure of a replay fixture (JSON or YAML).
type Fixture struct {
	Description     string                  `json:"description" yaml:"description"`
	SessionID       string                  `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	StartTraits     state.Traits            `json:"start_traits" yaml:"start_traits"`
	Session         FixtureSession          `json:"session" yaml:"session"`
	Cycles          []FixtureCycle          `json:"cycles" yaml:"cycles"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results,omitempty" yaml:"expected_results,omitempty"`
}

// FixtureSession holds the session scalars a fixture was recorded with.
// Zero values select the package defaults.
type FixtureSession struct {
	BufferLength    int     `json:"buffer_length,omitempty" yaml:"buffer_length,omitempty"`
	ReviewBaseHours float64 `json:"review_base_hours,omitempty" yaml:"review_base_hours,omitempty"`
}

// FixtureSignal regenerates a window from the synthetic source.
type FixtureSignal struct {
	Seed   uint64 `json:"seed" yaml:"seed"`
	Length int    `json:"length" yaml:"length"`
}

// FixtureInteraction mirrors update.InteractionSummary with elapsed time in seconds.
type FixtureInteraction struct {
	InputLength    int     `json:"input_length" yaml:"input_length"`
	TypingSpeed    float64 `json:"typing_speed" yaml:"typing_speed"`
	Complexity     float64 `json:"complexity" yaml:"complexity"`
	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`
	WordCount      int     `json:"word_count" yaml:"word_count"`
}

// FixtureCycle is one recorded cycle. Exactly one of Samples or Signal
// supplies the window.
type FixtureCycle struct {
	Cycle       int                     `json:"cycle" yaml:"cycle"`
	Samples     []float64               `json:"samples,omitempty" yaml:"samples,omitempty,flow"`
	Signal      *FixtureSignal          `json:"signal,omitempty" yaml:"signal,omitempty"`
	Scalars     features.Scalars        `json:"scalars" yaml:"scalars"`
	Interaction FixtureInteraction      `json:"interaction" yaml:"interaction"`
	Content     outcome.ContentAnalysis `json:"content" yaml:"content"`
}

// FixtureExpectedResult captures the expected decision per cycle.
type FixtureExpectedResult struct {
	Cycle       int    `json:"cycle" yaml:"cycle"`
	Decision    string `json:"decision" yaml:"decision"`
	ReviewHours int    `json:"review_hours" yaml:"review_hours"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads a fixture, choosing YAML for .yaml/.yml and JSON otherwise.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if isYAML(path) {
		err = yaml.Unmarshal(data, &f)
	} else {
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes a fixture in the format its extension selects.
func WriteFixture(path string, f *Fixture) error {
	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(f)
	} else {
		data, err = json.MarshalIndent(f, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ToCycle converts a FixtureCycle to a domain Cycle. A cycle with neither
// samples nor a signal gets an empty buffer, which fails extraction.
func (fc *FixtureCycle) ToCycle() (Cycle, error) {
	c := Cycle{
		Number:  fc.Cycle,
		Scalars: fc.Scalars,
		Interaction: update.InteractionSummary{
			InputLength: fc.Interaction.InputLength,
			TypingSpeed: fc.Interaction.TypingSpeed,
			Complexity:  fc.Interaction.Complexity,
			Elapsed:     time.Duration(fc.Interaction.ElapsedSeconds * float64(time.Second)),
			WordCount:   fc.Interaction.WordCount,
		},
		Content: fc.Content,
	}
	switch {
	case len(fc.Samples) > 0:
		c.Buffer = signal.NewBuffer(fc.Samples)
	case fc.Signal != nil:
		if fc.Signal.Length <= 0 {
			return Cycle{}, fmt.Errorf("cycle %d: signal length %d: %w", fc.Cycle, fc.Signal.Length, cycleerr.ErrInvalidInput)
		}
		cfg := signal.DefaultSyntheticConfig()
		cfg.Seed = fc.Signal.Seed
		cfg.Length = fc.Signal.Length
		buf, err := signal.NewSyntheticSource(cfg).Next(context.Background())
		if err != nil {
			return Cycle{}, fmt.Errorf("cycle %d: synthesize window: %w", fc.Cycle, err)
		}
		c.Buffer = buf
	}
	return c, nil
}

// ToCycles converts every fixture cycle.
func (f *Fixture) ToCycles() ([]Cycle, error) {
	out := make([]Cycle, 0, len(f.Cycles))
	for i := range f.Cycles {
		c, err := f.Cycles[i].ToCycle()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ToReplayConfig applies the fixture's session scalars to the default tables.
func (f *Fixture) ToReplayConfig() Config {
	cfg := DefaultConfig()
	if f.Session.BufferLength > 0 {
		cfg.Features.BufferLength = f.Session.BufferLength
	}
	if f.Session.ReviewBaseHours > 0 {
		cfg.Outcome.BaseReviewHours = f.Session.ReviewBaseHours
	}
	return cfg
}

// #endregion fixture-loader
