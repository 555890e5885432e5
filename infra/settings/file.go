// Package settings persists fare settings to a YAML or JSON file.
package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/lastmile/core/fare"
	"github.com/kilianp07/lastmile/core/logger"
	"github.com/kilianp07/lastmile/core/model"
)

// ErrPersist is returned when an update was applied in memory but could not
// be written to disk.
var ErrPersist = errors.New("settings not persisted")

type format int

const (
	formatYAML format = iota
	formatJSON
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".json":
		return formatJSON, nil
	default:
		return 0, fmt.Errorf("unsupported settings file extension %q", filepath.Ext(path))
	}
}

// FileStore is a fare.SettingsStore backed by a file. Values in the file
// override the built-in defaults.
type FileStore struct {
	*fare.MemoryStore

	path     string
	format   format
	autosave bool
	log      logger.Logger
	saveMu   sync.Mutex
}

// Load reads path into a new FileStore. A missing file yields the defaults
// and is created when autosave is on.
func Load(path string, autosave bool, log logger.Logger) (*FileStore, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	s, existed, err := read(path, f)
	if err != nil {
		return nil, err
	}
	mem, err := fare.NewMemoryStore(s)
	if err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	store := &FileStore{MemoryStore: mem, path: path, format: f, autosave: autosave, log: log}
	if !existed {
		log.Infof("settings file %s not found, using defaults", path)
		if autosave {
			if err := store.Save(); err != nil {
				return nil, err
			}
		}
	}
	return store, nil
}

func read(path string, f format) (fare.Settings, bool, error) {
	s := fare.Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("read settings: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, true, nil
	}
	switch f {
	case formatJSON:
		err = json.Unmarshal(data, &s)
	default:
		err = yaml.Unmarshal(data, &s)
	}
	if err != nil {
		return s, true, fmt.Errorf("decode settings %s: %w", path, err)
	}
	return s, true, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Reload re-reads the file and swaps the settings in if they validate.
func (s *FileStore) Reload() error {
	next, _, err := read(s.path, s.format)
	if err != nil {
		return err
	}
	return s.Replace(next)
}

// Save writes the current settings atomically through a temp file and rename.
func (s *FileStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	cur := s.Settings()
	var (
		data []byte
		err  error
	)
	switch s.format {
	case formatJSON:
		data, err = json.MarshalIndent(cur, "", "  ")
	default:
		data, err = yaml.Marshal(cur)
	}
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersist, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersist, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrPersist, err)
	}
	s.log.Debugf("settings saved to %s", s.path)
	return nil
}

// UpdateSchedule validates and applies the schedule, then persists it when
// autosave is on.
func (s *FileStore) UpdateSchedule(class model.VehicleClass, sc fare.TieredRateSchedule) error {
	if err := s.MemoryStore.UpdateSchedule(class, sc); err != nil {
		return err
	}
	return s.persist()
}

// UpdateSurcharges validates and applies p, then persists it when autosave is
// on.
func (s *FileStore) UpdateSurcharges(p fare.SurchargeParams) error {
	if err := s.MemoryStore.UpdateSurcharges(p); err != nil {
		return err
	}
	return s.persist()
}

func (s *FileStore) persist() error {
	if !s.autosave {
		return nil
	}
	if err := s.Save(); err != nil {
		s.log.Errorf("persist settings: %v", err)
		return err
	}
	return nil
}
