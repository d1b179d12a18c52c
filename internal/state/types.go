package state

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
)

// #region trait-names
// TraitName identifies one persistent trait.
type TraitName string

const (
	Curiosity          TraitName = "curiosity"
	Persistence        TraitName = "persistence"
	Openness           TraitName = "openness"
	ProcessingSpeed    TraitName = "processing_speed"
	LearningEfficiency TraitName = "learning_efficiency"
)

// TraitNames lists every trait in storage order.
var TraitNames = []TraitName{Curiosity, Persistence, Openness, ProcessingSpeed, LearningEfficiency}

// InitialTraitValue is the value every trait starts a session with.
const InitialTraitValue = 0.5

// #endregion trait-names

// #region traits
// Traits is the per-session trait state. Every value stays in [0, 1].
type Traits struct {
	Curiosity          float64 `json:"curiosity" yaml:"curiosity"`
	Persistence        float64 `json:"persistence" yaml:"persistence"`
	Openness           float64 `json:"openness" yaml:"openness"`
	ProcessingSpeed    float64 `json:"processing_speed" yaml:"processing_speed"`
	LearningEfficiency float64 `json:"learning_efficiency" yaml:"learning_efficiency"`
}

// InitialTraits returns a state with every trait at InitialTraitValue.
func InitialTraits() Traits {
	return Traits{
		Curiosity:          InitialTraitValue,
		Persistence:        InitialTraitValue,
		Openness:           InitialTraitValue,
		ProcessingSpeed:    InitialTraitValue,
		LearningEfficiency: InitialTraitValue,
	}
}

// Get returns the value of the named trait.
func (t Traits) Get(name TraitName) (float64, bool) {
	switch name {
	case Curiosity:
		return t.Curiosity, true
	case Persistence:
		return t.Persistence, true
	case Openness:
		return t.Openness, true
	case ProcessingSpeed:
		return t.ProcessingSpeed, true
	case LearningEfficiency:
		return t.LearningEfficiency, true
	}
	return 0, false
}

// Set assigns the named trait. Unknown names report false.
func (t *Traits) Set(name TraitName, v float64) bool {
	switch name {
	case Curiosity:
		t.Curiosity = v
	case Persistence:
		t.Persistence = v
	case Openness:
		t.Openness = v
	case ProcessingSpeed:
		t.ProcessingSpeed = v
	case LearningEfficiency:
		t.LearningEfficiency = v
	default:
		return false
	}
	return true
}

// AsMap returns the traits keyed by name.
func (t Traits) AsMap() map[string]float64 {
	m := make(map[string]float64, len(TraitNames))
	for _, n := range TraitNames {
		v, _ := t.Get(n)
		m[string(n)] = v
	}
	return m
}

// Validate reports ErrInvalidState if any trait is non-finite or outside [0, 1].
func (t Traits) Validate() error {
	for _, n := range TraitNames {
		v, _ := t.Get(n)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("trait %s = %v: %w", n, v, cycleerr.ErrInvalidState)
		}
	}
	return nil
}

// TraitsFromMap builds Traits from a keyed map. Every trait name must be present.
func TraitsFromMap(m map[string]float64) (Traits, error) {
	var t Traits
	for _, n := range TraitNames {
		v, ok := m[string(n)]
		if !ok {
			return Traits{}, fmt.Errorf("missing trait %s: %w", n, cycleerr.ErrInvalidState)
		}
		t.Set(n, v)
	}
	if err := t.Validate(); err != nil {
		return Traits{}, err
	}
	return t, nil
}

// #endregion traits

// #region trait-record
// TraitRecord is a versioned snapshot of one session's traits.
type TraitRecord struct {
	VersionID   string
	SessionID   string
	ParentID    string
	Traits      Traits
	CreatedAt   time.Time
	MetricsJSON string
}

// #endregion trait-record

// #region version-with-cycle
// VersionWithCycle pairs a trait version with the cycle_log row that produced it.
type VersionWithCycle struct {
	TraitRecord
	Cycle      int
	Decision   string
	Reason     string
	RecordJSON string
}

// #endregion version-with-cycle
