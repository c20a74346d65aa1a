// Package artifact persists fitted model parameters. A model is stored as a
// named set of files that must all be present for the model to load.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// ErrNotFound is returned when one or more files of a set are missing.
var ErrNotFound = errors.New("artifact not found")

// Set names a model and the files that make it up.
type Set struct {
	Name  string
	Files []string
}

// Files maps a file name in a Set to the value encoded in it.
type Files map[string]any

// Store is the persistence contract used by trainers and predictors.
type Store interface {
	// Exists reports whether every file of the set is present.
	Exists(set Set) bool
	// Load decodes each file of the set into the matching target pointer.
	Load(set Set, targets Files) error
	// Save writes every file of the set.
	Save(set Set, payloads Files) error
}

// FileStore keeps artifacts as JSON documents in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a FileStore rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the root directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Exists reports whether every file of the set is present.
func (s *FileStore) Exists(set Set) bool {
	if len(set.Files) == 0 {
		return false
	}
	for _, f := range set.Files {
		info, err := os.Stat(filepath.Join(s.dir, f))
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// Load decodes each file of set into targets. Partial presence is reported
// as ErrNotFound; undecodable content is a wrapped decode error.
func (s *FileStore) Load(set Set, targets Files) error {
	if !s.Exists(set) {
		return fmt.Errorf("%s: %w", set.Name, ErrNotFound)
	}
	for _, f := range set.Files {
		target, ok := targets[f]
		if !ok {
			return fmt.Errorf("%s: no target for %s", set.Name, f)
		}
		data, err := os.ReadFile(filepath.Join(s.dir, f)) //nolint:gosec // fixed file names under the models dir
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		if err := json.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decoding %s: %w", f, err)
		}
	}
	return nil
}

// Save encodes every payload first, then writes each file through a temp
// file and rename so readers never observe a partially written file.
func (s *FileStore) Save(set Set, payloads Files) error {
	encoded := make(map[string][]byte, len(set.Files))
	for _, f := range set.Files {
		p, ok := payloads[f]
		if !ok {
			return fmt.Errorf("%s: no payload for %s", set.Name, f)
		}
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding %s: %w", f, err)
		}
		encoded[f] = data
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("creating models dir: %w", err)
	}
	for _, f := range set.Files {
		if err := writeAtomic(filepath.Join(s.dir, f), encoded[f]); err != nil {
			return fmt.Errorf("writing %s: %w", f, err)
		}
	}
	return nil
}

// WriteJSON writes an arbitrary document, such as model metadata, into dir.
func WriteJSON(dir, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := writeAtomic(path, data); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec // already failing
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
