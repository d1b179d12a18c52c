package session

import (
	"github.com/danielpatrickdp/neuroadapt/internal/features"
	"github.com/danielpatrickdp/neuroadapt/internal/outcome"
	"github.com/danielpatrickdp/neuroadapt/internal/update"
)

// #region pipeline
// Pipeline holds the three stateless cycle stages. It is safe to share
// between sessions.
type Pipeline struct {
	Extractor *features.Extractor
	Adapter   *update.Adapter
	Estimator *outcome.Estimator
}

// NewPipeline validates each stage config and builds the pipeline.
// A nil jitter disables the extractor's jitter term.
func NewPipeline(fc features.Config, uc update.Config, oc outcome.Config, jitter features.Jitter) (Pipeline, error) {
	ex, err := features.NewExtractor(fc, jitter)
	if err != nil {
		return Pipeline{}, err
	}
	ad, err := update.NewAdapter(uc)
	if err != nil {
		return Pipeline{}, err
	}
	es, err := outcome.NewEstimator(oc)
	if err != nil {
		return Pipeline{}, err
	}
	return Pipeline{Extractor: ex, Adapter: ad, Estimator: es}, nil
}

// DefaultPipeline builds a pipeline from the package defaults.
func DefaultPipeline(jitter features.Jitter) (Pipeline, error) {
	return NewPipeline(features.DefaultConfig(), update.DefaultConfig(), outcome.DefaultConfig(), jitter)
}

// #endregion pipeline
