package state

import (
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/neuroadapt/internal/cycleerr"
)

func TestInitialTraitsAreHalf(t *testing.T) {
	tr := InitialTraits()
	for _, n := range TraitNames {
		v, ok := tr.Get(n)
		if !ok {
			t.Fatalf("trait %s not addressable", n)
		}
		if v != 0.5 {
			t.Errorf("trait %s = %f, want 0.5", n, v)
		}
	}
}

func TestTraitsFromMapMissingKey(t *testing.T) {
	m := InitialTraits().AsMap()
	delete(m, string(Openness))

	_, err := TraitsFromMap(m)
	if !errors.Is(err, cycleerr.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestTraitsFromMapRoundTrip(t *testing.T) {
	want := Traits{Curiosity: 0.9, Persistence: 0.1, Openness: 0.2, ProcessingSpeed: 0.3, LearningEfficiency: 0.4}
	got, err := TraitsFromMap(want.AsMap())
	if err != nil {
		t.Fatalf("TraitsFromMap: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestValidateRejectsNaNAndRange(t *testing.T) {
	cases := []float64{math.NaN(), -0.01, 1.01}
	for _, v := range cases {
		tr := InitialTraits()
		tr.ProcessingSpeed = v
		if err := tr.Validate(); !errors.Is(err, cycleerr.ErrInvalidState) {
			t.Errorf("value %v: expected ErrInvalidState, got %v", v, err)
		}
	}
}

func TestSetUnknownTrait(t *testing.T) {
	var tr Traits
	if tr.Set("mood", 1) {
		t.Fatal("expected unknown trait to be rejected")
	}
	if _, ok := tr.Get("mood"); ok {
		t.Fatal("expected unknown trait lookup to fail")
	}
}
