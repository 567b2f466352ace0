package settings

import (
	"context"
	"sync"

	"github.com/koios/octodash/pkg/models"
)

// Store persists the single ConnectionSettings value.
//
// Load never fails because of missing or unreadable data: implementations fall
// back to their defaults. Save overwrites the stored value wholesale.
type Store interface {
	Load(ctx context.Context) (models.ConnectionSettings, error)
	Save(ctx context.Context, s models.ConnectionSettings) error
}

// MemoryStore keeps settings in process memory only
type MemoryStore struct {
	mu       sync.RWMutex
	settings models.ConnectionSettings
}

// NewMemoryStore creates a memory store seeded with defaults
func NewMemoryStore(defaults models.ConnectionSettings) *MemoryStore {
	return &MemoryStore{settings: defaults}
}

// Load returns the current settings
func (m *MemoryStore) Load(ctx context.Context) (models.ConnectionSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

// Save replaces the current settings
func (m *MemoryStore) Save(ctx context.Context, s models.ConnectionSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}
