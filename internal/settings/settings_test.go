package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/koios/octodash/internal/octoprint"
	"github.com/koios/octodash/pkg/models"
	"go.uber.org/zap"
)

var testDefaults = models.ConnectionSettings{ServerURL: "http://localhost:5000", APIKey: ""}

func TestFileStoreRoundTrip(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml", "settings.yml", "settings.toml", "settings"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := models.ConnectionSettings{ServerURL: "http://host:9000", APIKey: "k"}

			store := NewFileStore(path, testDefaults, zap.NewNop())
			if err := store.Save(context.Background(), want); err != nil {
				t.Fatalf("Save: %v", err)
			}

			got, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != want {
				t.Errorf("cached round trip: got %+v, want %+v", got, want)
			}

			// A fresh store must read the same value back from disk
			fresh := NewFileStore(path, testDefaults, zap.NewNop())
			got, err = fresh.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != want {
				t.Errorf("disk round trip: got %+v, want %+v", got, want)
			}
		})
	}
}

func TestFileStoreFallsBackToDefaults(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), testDefaults, zap.NewNop())
		got, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got != testDefaults {
			t.Errorf("got %+v, want defaults", got)
		}
	})

	for _, tc := range []struct {
		name    string
		file    string
		content string
	}{
		{"corrupt json", "settings.json", `{"serverUrl": "http://x",`},
		{"corrupt yaml", "settings.yaml", "serverUrl: [unterminated"},
		{"corrupt toml", "settings.toml", "serverUrl = "},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tc.file)
			if err := os.WriteFile(path, []byte(tc.content), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}

			defaults := models.ConnectionSettings{ServerURL: "http://octopi.local", APIKey: "env-key"}
			store := NewFileStore(path, defaults, zap.NewNop())
			got, err := store.Load(context.Background())
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got != defaults {
				t.Errorf("got %+v, want defaults %+v", got, defaults)
			}
		})
	}
}

func TestFileStoreCachesFirstRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte(`{"serverUrl":"http://a","apiKey":"1"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewFileStore(path, testDefaults, zap.NewNop())
	first, _ := store.Load(context.Background())

	if err := os.WriteFile(path, []byte(`{"serverUrl":"http://b","apiKey":"2"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	second, _ := store.Load(context.Background())

	if first != second || second.ServerURL != "http://a" {
		t.Errorf("expected cached value, got %+v then %+v", first, second)
	}
}

func TestFileStoreSaveOverwritesWholesale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewFileStore(path, testDefaults, zap.NewNop())
	ctx := context.Background()

	if err := store.Save(ctx, models.ConnectionSettings{ServerURL: "http://a", APIKey: "1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, models.ConnectionSettings{ServerURL: "http://b"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := NewFileStore(path, testDefaults, zap.NewNop()).Load(ctx)
	if got.ServerURL != "http://b" || got.APIKey != "" {
		t.Errorf("expected full overwrite, got %+v", got)
	}

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("temp files left behind: %v", matches)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(testDefaults)
	ctx := context.Background()

	got, _ := store.Load(ctx)
	if got != testDefaults {
		t.Errorf("got %+v, want defaults", got)
	}

	want := models.ConnectionSettings{ServerURL: "http://host:9000", APIKey: "k"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, _ := store.Load(ctx); got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestManagerWithoutAPIKey(t *testing.T) {
	m, err := NewManager(context.Background(), NewMemoryStore(testDefaults), time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	c, err := m.Client()
	if c != nil {
		t.Error("expected no client")
	}
	if !errors.Is(err, octoprint.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestManagerWithAPIKey(t *testing.T) {
	store := NewMemoryStore(models.ConnectionSettings{ServerURL: "http://octopi.local/", APIKey: "abc"})
	m, err := NewManager(context.Background(), store, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	c, err := m.Client()
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if c.ServerURL() != "http://octopi.local" {
		t.Errorf("server url = %q", c.ServerURL())
	}
}

func TestManagerSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(testDefaults)
	m, err := NewManager(ctx, store, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	t.Run("invalid settings are rejected", func(t *testing.T) {
		if _, err := m.Save(ctx, models.ConnectionSettings{ServerURL: "not a url", APIKey: "k"}); err == nil {
			t.Fatal("expected validation error")
		}
		if _, err := m.Client(); err == nil {
			t.Error("client should still be unconfigured")
		}
		if got, _ := store.Load(ctx); got != testDefaults {
			t.Errorf("store modified on invalid save: %+v", got)
		}
	})

	t.Run("valid settings replace the client", func(t *testing.T) {
		want := models.ConnectionSettings{ServerURL: "http://host:9000", APIKey: "k"}
		saved, err := m.Save(ctx, want)
		if err != nil {
			t.Fatalf("Save: %v", err)
		}

		current, err := m.Client()
		if err != nil {
			t.Fatalf("Client: %v", err)
		}
		if current != saved {
			t.Error("Client() should return the client built by Save")
		}

		got, _ := m.Settings(ctx)
		if got != want {
			t.Errorf("settings = %+v, want %+v", got, want)
		}

		again, _ := m.Save(ctx, want)
		if again == saved {
			t.Error("each save should build a new client")
		}
	})
}

func TestManagerConcurrentSavesLeaveStoreAndClientInStep(t *testing.T) {
	ctx := context.Background()
	m, err := NewManager(ctx, NewMemoryStore(testDefaults), time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := models.ConnectionSettings{ServerURL: fmt.Sprintf("http://printer-%d:5000", i), APIKey: "k"}
			if _, err := m.Save(ctx, s); err != nil {
				t.Errorf("Save %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	stored, err := m.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	c, err := m.Client()
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if c.ServerURL() != stored.ServerURL {
		t.Errorf("client points at %s, stored settings at %s", c.ServerURL(), stored.ServerURL)
	}
}
