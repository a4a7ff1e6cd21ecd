package zonestore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

const defaultReloadDelay = 500 * time.Millisecond

type fileDocument struct {
	Zones []record `yaml:"zones"`
}

// FileStore serves zones from a YAML file:
//
//	zones:
//	  - name: office
//	    lat: 51.5007
//	    lon: -0.1246
//	    radius_meters: 75
//
// The file is read once at construction and again by Watch on change. A
// reload that fails keeps the previous zone set.
type FileStore struct {
	path          string
	defaultRadius float64
	reloadDelay   time.Duration
	logger        *slog.Logger

	mu    sync.RWMutex
	zones []domain.Zone
}

// NewFileStore loads path and returns a store serving its zones.
func NewFileStore(path string, defaultRadius float64, logger *slog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:          path,
		defaultRadius: defaultRadius,
		reloadDelay:   defaultReloadDelay,
		logger:        logger,
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Zones returns a copy of the current zone set in file order.
func (s *FileStore) Zones(_ context.Context) ([]domain.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.zones), nil
}

// Reload re-reads the file and swaps in its zones.
func (s *FileStore) Reload() error {
	zones, err := LoadFile(s.path, s.defaultRadius)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.zones = zones
	s.mu.Unlock()
	s.logger.Info("zones loaded", "path", s.path, "count", len(zones))
	return nil
}

// LoadFile reads and validates a zone file once.
func LoadFile(path string, defaultRadius float64) ([]domain.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read zone file: %w", err)
	}
	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse zone file %s: %w", path, err)
	}
	zones, err := toZones(doc.Zones, defaultRadius)
	if err != nil {
		return nil, fmt.Errorf("zone file %s: %w", path, err)
	}
	return zones, nil
}

// Watch reloads the file whenever it changes. Blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors which
// replace the file by rename are still noticed.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.reloadDelay, func() {
				if err := s.Reload(); err != nil {
					s.logger.Error("zone reload failed, keeping previous zones", "error", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("zone file watcher error", "error", err)
		}
	}
}
