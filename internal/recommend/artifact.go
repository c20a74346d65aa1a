package recommend

import (
	"errors"
	"fmt"

	"github.com/donaldgifford/surplus-ml/internal/artifact"
	"github.com/donaldgifford/surplus-ml/pkg/tfidf"
)

// Artifact file names.
const (
	VectorizerFile = "recommendation_vectorizer.json"
	ModelFile      = "recommendation_model.json"
)

// ArtifactSet is the file set that makes up a stored recommendation model.
var ArtifactSet = artifact.Set{Name: "recommendation", Files: []string{VectorizerFile, ModelFile}}

// Preferences bundles the learned per-user and global category weights.
type Preferences struct {
	UserPreferences map[int64]map[string]float64 `json:"user_preferences"`
	CategoryWeights map[string]float64           `json:"category_weights"`
}

// Artifact is the fitted vectorizer plus preference weights.
type Artifact struct {
	Vectorizer  *tfidf.Vectorizer
	Preferences Preferences
}

// Validate checks the artifact is usable for inference.
func (a *Artifact) Validate() error {
	if a.Vectorizer == nil {
		return errors.New("missing vectorizer")
	}
	if err := a.Vectorizer.Validate(); err != nil {
		return fmt.Errorf("vectorizer: %w", err)
	}
	return nil
}

// LoadArtifact reads and validates the recommendation model from s.
func LoadArtifact(s artifact.Store) (*Artifact, error) {
	a := &Artifact{}
	err := s.Load(ArtifactSet, artifact.Files{
		VectorizerFile: &a.Vectorizer,
		ModelFile:      &a.Preferences,
	})
	if err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid recommendation artifact: %w", err)
	}
	if a.Preferences.UserPreferences == nil {
		a.Preferences.UserPreferences = map[int64]map[string]float64{}
	}
	if a.Preferences.CategoryWeights == nil {
		a.Preferences.CategoryWeights = map[string]float64{}
	}
	return a, nil
}

// SaveArtifact writes the recommendation model to s.
func SaveArtifact(s artifact.Store, a *Artifact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	return s.Save(ArtifactSet, artifact.Files{
		VectorizerFile: a.Vectorizer,
		ModelFile:      a.Preferences,
	})
}
