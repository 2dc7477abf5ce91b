// Package preset persists director presets and tracks which one is active.
package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"director/internal/logging"
	"director/internal/prompt"
)

// DefaultName is the preset seeded on first run.
const DefaultName = "default"

// file is the on-disk shape of the preset store.
type file struct {
	Current string                   `yaml:"current"`
	Presets map[string]prompt.Preset `yaml:"presets"`
}

// Store holds named presets and the current selection, persisted as YAML.
// All methods are safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
	data file
}

// Open loads the store at path, seeding a default preset when the file does
// not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read presets: %w", err)
		}
		s.data = file{
			Current: DefaultName,
			Presets: map[string]prompt.Preset{DefaultName: prompt.DefaultPreset(DefaultName)},
		}
		if err := s.save(); err != nil {
			return nil, err
		}
		logging.Preset("seeded default preset at %s", path)
		return s, nil
	}

	if err := yaml.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	if s.data.Presets == nil {
		s.data.Presets = make(map[string]prompt.Preset)
	}
	return s, nil
}

// save writes the store to disk. Caller holds the lock.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preset directory: %w", err)
	}
	data, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("failed to marshal presets: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write presets: %w", err)
	}
	return nil
}

// Names returns all preset names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.data.Presets))
	for name := range s.data.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named preset.
func (s *Store) Get(name string) (prompt.Preset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Presets[name]
	if !ok {
		return prompt.Preset{}, fmt.Errorf("preset %q not found", name)
	}
	return p, nil
}

// Current returns the selected preset, or ok=false when nothing is
// selected. Directing requires a selection.
func (s *Store) Current() (prompt.Preset, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Current == "" {
		return prompt.Preset{}, false
	}
	p, ok := s.data.Presets[s.data.Current]
	return p, ok
}

// CurrentName returns the selected preset's name, empty when none.
func (s *Store) CurrentName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Current
}

// Select makes the named preset current.
func (s *Store) Select(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Presets[name]; !ok {
		return fmt.Errorf("preset %q not found", name)
	}
	s.data.Current = name
	logging.Preset("selected preset %q", name)
	return s.save()
}

// Put creates or replaces a preset under its own name.
func (s *Store) Put(p prompt.Preset) error {
	if p.Name == "" {
		return fmt.Errorf("preset name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Presets[p.Name] = p
	return s.save()
}

// Rename changes a preset's name, following the selection if it pointed at
// the old name.
func (s *Store) Rename(oldName, newName string) error {
	if newName == "" {
		return fmt.Errorf("preset name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.Presets[oldName]
	if !ok {
		return fmt.Errorf("preset %q not found", oldName)
	}
	if _, exists := s.data.Presets[newName]; exists {
		return fmt.Errorf("preset %q already exists", newName)
	}
	p.Name = newName
	delete(s.data.Presets, oldName)
	s.data.Presets[newName] = p
	if s.data.Current == oldName {
		s.data.Current = newName
	}
	return s.save()
}

// Delete removes a preset. Deleting the current preset clears the
// selection, which disables directing until a new preset is selected.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.Presets[name]; !ok {
		return fmt.Errorf("preset %q not found", name)
	}
	delete(s.data.Presets, name)
	if s.data.Current == name {
		s.data.Current = ""
		logging.Preset("deleted current preset %q, selection cleared", name)
	}
	return s.save()
}

// Export writes a single preset to path as YAML.
func (s *Store) Export(name, path string) error {
	p, err := s.Get(name)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write preset: %w", err)
	}
	return nil
}

// Import reads a preset from a YAML file and stores it. Returns the
// imported preset's name.
func (s *Store) Import(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read preset: %w", err)
	}
	var p prompt.Preset
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return "", fmt.Errorf("failed to parse preset: %w", err)
	}
	if p.Name == "" {
		return "", fmt.Errorf("imported preset has no name")
	}
	if err := s.Put(p); err != nil {
		return "", err
	}
	logging.Preset("imported preset %q from %s", p.Name, path)
	return p.Name, nil
}
