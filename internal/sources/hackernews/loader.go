package hackernews

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Loader reads the scout yaml file.
type Loader struct {
	fs       afero.Fs
	filePath string
}

func NewLoader(fsys afero.Fs, filePath string) *Loader {
	return &Loader{fs: fsys, filePath: filePath}
}

// Load reads and validates the file. It is re-read on every scan so edits
// apply without a restart.
func (l *Loader) Load() (ScoutFile, error) {
	data, err := afero.ReadFile(l.fs, l.filePath)
	if err != nil {
		return ScoutFile{}, fmt.Errorf("failed to read scout file: %w", err)
	}

	var f ScoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ScoutFile{}, fmt.Errorf("failed to parse scout yaml: %w", err)
	}
	if len(f.Keywords) == 0 {
		return ScoutFile{}, errors.New("scout file has no keywords")
	}
	if f.Limit < 0 {
		return ScoutFile{}, fmt.Errorf("scout file limit must be >= 0, got %d", f.Limit)
	}
	return f, nil
}
