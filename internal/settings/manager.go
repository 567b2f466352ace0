package settings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koios/octodash/internal/octoprint"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

// Manager owns the settings store and the upstream client built from it.
// Handlers receive the Manager instead of reaching for process-wide state.
type Manager struct {
	store   Store
	timeout time.Duration
	logger  *zap.Logger

	// saveMu keeps the stored settings and the current client in step
	saveMu sync.Mutex

	// client is replaced, never mutated, when settings are saved
	client atomic.Pointer[octoprint.Client]
}

// NewManager loads the settings once and builds a client when an API key is present
func NewManager(ctx context.Context, store Store, timeout time.Duration, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}

	s, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load connection settings: %w", err)
	}

	if s.Configured() {
		m.client.Store(octoprint.NewClient(s.ServerURL, s.APIKey, timeout, logger))
		logger.Info("OctoPrint client initialized", zap.String("server_url", s.ServerURL))
	} else {
		logger.Warn("No OctoPrint API key configured, relay endpoints disabled until settings are saved")
	}

	return m, nil
}

// Client returns the current upstream client or octoprint.ErrNotConfigured
func (m *Manager) Client() (*octoprint.Client, error) {
	c := m.client.Load()
	if c == nil {
		return nil, octoprint.ErrNotConfigured
	}
	return c, nil
}

// Settings returns the stored settings
func (m *Manager) Settings(ctx context.Context) (models.ConnectionSettings, error) {
	return m.store.Load(ctx)
}

// Save validates and persists s, then swaps in a client built from it
func (m *Manager) Save(ctx context.Context, s models.ConnectionSettings) (*octoprint.Client, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	if err := m.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to save connection settings: %w", err)
	}

	c := octoprint.NewClient(s.ServerURL, s.APIKey, m.timeout, m.logger)
	m.client.Store(c)

	m.logger.Info("OctoPrint client reinitialized", zap.String("server_url", s.ServerURL))
	return c, nil
}
