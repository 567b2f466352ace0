package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// codec encodes settings for one file format
type codec struct {
	name      string
	marshal   func(models.ConnectionSettings) ([]byte, error)
	unmarshal func([]byte, *models.ConnectionSettings) error
}

var jsonCodec = codec{
	name: "json",
	marshal: func(s models.ConnectionSettings) ([]byte, error) {
		return json.MarshalIndent(s, "", "  ")
	},
	unmarshal: func(b []byte, s *models.ConnectionSettings) error {
		return json.Unmarshal(b, s)
	},
}

var yamlCodec = codec{
	name: "yaml",
	marshal: func(s models.ConnectionSettings) ([]byte, error) {
		return yaml.Marshal(s)
	},
	unmarshal: func(b []byte, s *models.ConnectionSettings) error {
		return yaml.Unmarshal(b, s)
	},
}

var tomlCodec = codec{
	name: "toml",
	marshal: func(s models.ConnectionSettings) ([]byte, error) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(s); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	},
	unmarshal: func(b []byte, s *models.ConnectionSettings) error {
		_, err := toml.Decode(string(b), s)
		return err
	},
}

// codecFor picks the codec by file extension, defaulting to JSON
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec
	case ".toml":
		return tomlCodec
	default:
		return jsonCodec
	}
}

// FileStore persists settings to a single file. The format follows the file
// extension: .json, .yaml/.yml or .toml.
type FileStore struct {
	path     string
	codec    codec
	defaults models.ConnectionSettings
	logger   *zap.Logger

	mu     sync.RWMutex
	cached *models.ConnectionSettings
}

// NewFileStore creates a file store. defaults are returned whenever the file
// is missing or cannot be parsed.
func NewFileStore(path string, defaults models.ConnectionSettings, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		path:     path,
		codec:    codecFor(path),
		defaults: defaults,
		logger:   logger,
	}
}

// Path returns the settings file location
func (f *FileStore) Path() string {
	return f.path
}

// Load returns the cached settings, reading the file on first use
func (f *FileStore) Load(ctx context.Context) (models.ConnectionSettings, error) {
	f.mu.RLock()
	if f.cached != nil {
		s := *f.cached
		f.mu.RUnlock()
		return s, nil
	}
	f.mu.RUnlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cached != nil {
		return *f.cached, nil
	}

	s, err := f.read()
	if err != nil {
		f.logger.Debug("Using default connection settings",
			zap.String("path", f.path),
			zap.Error(err))
		s = f.defaults
	}
	f.cached = &s
	return s, nil
}

func (f *FileStore) read() (models.ConnectionSettings, error) {
	var s models.ConnectionSettings

	data, err := os.ReadFile(f.path)
	if err != nil {
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := f.codec.unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse %s settings file: %w", f.codec.name, err)
	}
	return s, nil
}

// Save replaces the cached settings and overwrites the file
func (f *FileStore) Save(ctx context.Context, s models.ConnectionSettings) error {
	data, err := f.codec.marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := writeFileAtomic(f.path, data); err != nil {
		return err
	}

	saved := s
	f.cached = &saved

	f.logger.Info("Saved connection settings",
		zap.String("path", f.path),
		zap.String("server_url", s.ServerURL))
	return nil
}

// writeFileAtomic writes data next to path and renames it into place
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp settings file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set settings file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
