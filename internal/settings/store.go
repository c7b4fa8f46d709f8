package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FileName is the name of the last-applied settings file.
const FileName = "recently.json"

// credentialKeys are never restored from a previous save.
var credentialKeys = []string{KeyServer, KeyKey, KeyCustomAudioSource, KeyAudioSource}

// Store persists the last-applied settings in a module-private directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

// Save writes d as JSON. The new content goes to a temp file first, the
// previous file is kept as a ".bak" and the temp file is renamed in place.
func (s *Store) Save(d Data) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := d.JSON()
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	path := s.Path()
	tmpPath := path + ".tmp"
	bakPath := path + ".bak"

	if writeErr := os.WriteFile(tmpPath, data, 0o644); writeErr != nil {
		return fmt.Errorf("failed to write settings: %w", writeErr)
	}

	if _, statErr := os.Stat(path); statErr == nil {
		_ = os.Remove(bakPath)
		if renameErr := os.Rename(path, bakPath); renameErr != nil {
			_ = os.Remove(tmpPath)
			return fmt.Errorf("failed to back up settings: %w", renameErr)
		}
	}

	if renameErr := os.Rename(tmpPath, path); renameErr != nil {
		return fmt.Errorf("failed to replace settings: %w", renameErr)
	}

	return nil
}

// Load reads the saved settings. A missing file yields an empty object.
func (s *Store) Load() (Data, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	d, err := FromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	return d, nil
}

// LoadRecent applies the previously saved settings onto into, minus the
// connection target and audio source selection.
func (s *Store) LoadRecent(into Data) error {
	s.logger.Debug("Recently settings loading", "path", s.Path())

	recent, err := s.Load()
	if err != nil {
		return err
	}

	for _, key := range credentialKeys {
		recent.Erase(key)
	}
	into.Apply(recent)

	s.logger.Info("Recently settings loaded", "keys", len(recent))
	return nil
}
