// Package registry keeps the named proguard mappings a server answers for,
// loading each one the first time it is asked for.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/yousuf/unproguard-mcp/internal/config"
	"github.com/yousuf/unproguard-mcp/internal/proguard"
)

// ErrUnknownMapping is returned for a mapping name that is not configured.
var ErrUnknownMapping = errors.New("unknown mapping")

// MappingInfo describes a configured mapping
type MappingInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Files       []string `json:"files"`
	Default     bool     `json:"default,omitempty"`
	Loaded      bool     `json:"loaded"`
	Classes     int      `json:"classes,omitempty"`
}

// Manager manages the loaded mappings
type Manager struct {
	mappings map[string]*proguard.Map
	mu       sync.RWMutex
	config   *config.Config

	// loads collapses concurrent first loads of the same mapping. Files are
	// parsed without holding mu.
	loads singleflight.Group
}

// NewManager creates a new mapping manager
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		mappings: make(map[string]*proguard.Map),
		config:   cfg,
	}
}

// Default returns the name used when a request does not name a mapping
func (m *Manager) Default() string {
	return m.config.DefaultMapping
}

// resolve picks the default mapping for an empty name and checks the name is configured
func (m *Manager) resolve(name string) (string, config.MappingConfig, error) {
	if name == "" {
		name = m.config.DefaultMapping
		if name == "" {
			return "", config.MappingConfig{}, fmt.Errorf("no mapping named and no default mapping configured")
		}
	}

	mappingCfg, ok := m.config.Mappings[name]
	if !ok {
		return "", config.MappingConfig{}, fmt.Errorf("%w %q", ErrUnknownMapping, name)
	}
	return name, mappingCfg, nil
}

// Get returns the named mapping, loading it on first use
func (m *Manager) Get(ctx context.Context, name string) (*proguard.Map, error) {
	name, mappingCfg, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	// Try to get an already loaded mapping
	m.mu.RLock()
	mapping, exists := m.mappings[name]
	m.mu.RUnlock()

	if exists {
		return mapping, nil
	}

	v, err, _ := m.loads.Do(name, func() (any, error) {
		// Double-check: a load may have finished since the read above
		m.mu.RLock()
		mapping, exists := m.mappings[name]
		m.mu.RUnlock()
		if exists {
			return mapping, nil
		}

		mapping, err := m.load(ctx, name, mappingCfg)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		// A Reload that finished meanwhile holds newer data
		if current, exists := m.mappings[name]; exists {
			return current, nil
		}
		m.mappings[name] = mapping
		return mapping, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*proguard.Map), nil
}

// Reload reads the named mapping again, replacing the loaded copy on success
func (m *Manager) Reload(ctx context.Context, name string) (*proguard.Map, error) {
	name, mappingCfg, err := m.resolve(name)
	if err != nil {
		return nil, err
	}

	mapping, err := m.load(ctx, name, mappingCfg)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.mappings[name] = mapping
	m.mu.Unlock()

	return mapping, nil
}

// Names returns the configured mapping names, sorted
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.config.Mappings))
	for name := range m.config.Mappings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// List describes every configured mapping
func (m *Manager) List() []MappingInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]MappingInfo, 0, len(m.config.Mappings))
	for _, name := range m.Names() {
		mappingCfg := m.config.Mappings[name]
		info := MappingInfo{
			Name:        name,
			Description: mappingCfg.Description,
			Files:       mappingCfg.Files,
			Default:     name == m.config.DefaultMapping,
		}
		if mapping, ok := m.mappings[name]; ok {
			info.Loaded = true
			info.Classes = mapping.Len()
		}
		infos = append(infos, info)
	}
	return infos
}

// load parses every file of a mapping concurrently and merges them in file order
func (m *Manager) load(ctx context.Context, name string, mappingCfg config.MappingConfig) (*proguard.Map, error) {
	start := time.Now()

	parts := make([]*proguard.Map, len(mappingCfg.Files))
	g, gctx := errgroup.WithContext(ctx)
	if m.config.LoadConcurrency > 0 {
		g.SetLimit(m.config.LoadConcurrency)
	}

	for i, file := range mappingCfg.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			b := proguard.NewBuilder()
			if err := b.ReadFile(file); err != nil {
				return fmt.Errorf("mapping %q: %w", name, err)
			}
			parts[i] = b.Build()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := proguard.NewBuilder()
	for _, part := range parts {
		merged.Merge(part)
	}
	mapping := merged.Build()

	log.Printf("[REGISTRY] Loaded mapping %q: %d classes from %d file(s) in %v",
		name, mapping.Len(), len(mappingCfg.Files), time.Since(start))

	return mapping, nil
}
