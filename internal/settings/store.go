package settings

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"director/internal/config"
	"director/internal/logging"
)

// saveDebounce is how long edits coalesce before hitting disk.
const saveDebounce = 500 * time.Millisecond

// Store owns the live config. Writes are debounced; a file watcher picks up
// external edits while a session runs. Reload only ever replaces config
// values: run state (current round, running flag) is process-owned and
// never read from disk.
type Store struct {
	path      string
	debouncer *Debouncer

	mu  sync.RWMutex
	cfg *config.Config

	// OnReload fires after an external edit is loaded.
	OnReload func(*config.Config)

	watcher  *fsnotify.Watcher
	lastSave time.Time
	done     chan struct{}
}

// Open loads the config at path into a new store.
func Open(path string) (*Store, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		path:      path,
		cfg:       cfg,
		debouncer: NewDebouncer(saveDebounce),
		done:      make(chan struct{}),
	}, nil
}

// Get returns a snapshot of the current config.
func (s *Store) Get() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// Update applies fn to the config and schedules a debounced save.
func (s *Store) Update(fn func(*config.Config)) {
	s.mu.Lock()
	fn(s.cfg)
	s.mu.Unlock()
	s.debouncer.Debounce(func() {
		if err := s.SaveNow(); err != nil {
			logging.SettingsError("debounced save failed: %v", err)
		}
	})
}

// SaveNow flushes the config to disk immediately.
func (s *Store) SaveNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSave = time.Now()
	if err := s.cfg.Save(s.path); err != nil {
		return err
	}
	logging.Settings("config saved to %s", s.path)
	return nil
}

// Watch starts the file watcher. External edits to the config file are
// reloaded and reported through OnReload.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would
	// invalidate a watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}
	s.watcher = watcher

	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	reload := NewDebouncer(250 * time.Millisecond)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.mu.RLock()
			selfWrite := time.Since(s.lastSave) < time.Second
			s.mu.RUnlock()
			if selfWrite {
				continue
			}
			reload.Debounce(s.reload)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.SettingsWarn("watcher error: %v", err)
		case <-s.done:
			return
		}
	}
}

// reload replaces the in-memory config with the on-disk one.
func (s *Store) reload() {
	cfg, err := config.Load(s.path)
	if err != nil {
		logging.SettingsWarn("external edit ignored, reload failed: %v", err)
		return
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	logging.Settings("config reloaded after external edit")

	if s.OnReload != nil {
		s.OnReload(cfg)
	}
}

// Close flushes any pending save and stops the watcher.
func (s *Store) Close() error {
	s.debouncer.Cancel()
	err := s.SaveNow()
	close(s.done)
	if s.watcher != nil {
		s.watcher.Close()
	}
	return err
}
