package pricing

import (
	"errors"
	"fmt"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/pkg/features"
	"github.com/donaldgifford/surplus-ml/pkg/gbm"
)

// Artifact file names.
const (
	ModelFile   = "price_model.json"
	ScalerFile  = "price_scaler.json"
	EncoderFile = "price_encoder.json"
)

// ArtifactSet is the file set that makes up a stored price model.
var ArtifactSet = artifact.Set{Name: "price", Files: []string{ModelFile, ScalerFile, EncoderFile}}

// Artifact is the fitted regressor, scaler and category encoder triple.
type Artifact struct {
	Regressor *gbm.Regressor
	Scaler    *gbm.Scaler
	Encoder   *features.CategoryEncoder
}

// Validate checks that the three parts agree on the feature layout.
func (a *Artifact) Validate() error {
	if a.Regressor == nil || a.Scaler == nil || a.Encoder == nil {
		return errors.New("incomplete price artifact")
	}
	if err := a.Regressor.Validate(); err != nil {
		return fmt.Errorf("regressor: %w", err)
	}
	width := len(features.Names)
	if a.Regressor.NFeatures != width || len(a.Scaler.Mean) != width || len(a.Scaler.Scale) != width {
		return fmt.Errorf("price artifact must have %d features", width)
	}
	if !a.Encoder.Valid() {
		return errors.New("encoder has no fallback category")
	}
	return nil
}

// LoadArtifact reads and validates the price model from s.
func LoadArtifact(s artifact.Store) (*Artifact, error) {
	a := &Artifact{}
	err := s.Load(ArtifactSet, artifact.Files{
		ModelFile:   &a.Regressor,
		ScalerFile:  &a.Scaler,
		EncoderFile: &a.Encoder,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid price artifact: %w", err)
	}
	return a, nil
}

// SaveArtifact writes the price model to s.
func SaveArtifact(s artifact.Store, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	return s.Save(ArtifactSet, artifact.Files{
		ModelFile:   a.Regressor,
		ScalerFile:  a.Scaler,
		EncoderFile: a.Encoder,
	})
}
