// Package assets handles asset loading and caching.
package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/logger"
)

// ErrNotFound is returned when no source holds the requested file.
var ErrNotFound = errors.New("asset not found")

// Source is one mounted location assets are read from.
type Source interface {
	Name() string
	Read(ctx context.Context, path string) ([]byte, error)
	Close() error
}

// Manager handles asset loading from mounted sources.
type Manager struct {
	sources []Source
	cache   *Cache
	mu      sync.RWMutex

	// deliver runs fetch callbacks; it defaults to a direct call.
	deliver func(func())
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		cache:   NewCache(DefaultCacheBytes),
		deliver: func(fn func()) { fn() },
	}
}

// SetDeliver sets the function used to run Fetch callbacks, e.g. one that
// queues them onto the render thread.
func (m *Manager) SetDeliver(fn func(func())) {
	m.mu.Lock()
	m.deliver = fn
	m.mu.Unlock()
}

// Mount adds a source. Sources are searched in reverse order
// (last added = highest priority).
func (m *Manager) Mount(src Source) {
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()

	// The new source may shadow cached files.
	m.cache.Clear()

	logger.Debug("mounted asset source", zap.String("source", src.Name()))
}

// AddArchive mounts a VPK directory file.
func (m *Manager) AddArchive(path string) error {
	src, err := OpenVPK(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	m.Mount(src)
	return nil
}

// Load loads a file from the mounted sources.
func (m *Manager) Load(path string) ([]byte, error) {
	return m.LoadContext(context.Background(), path)
}

// LoadContext is Load with a context for network-backed sources.
func (m *Manager) LoadContext(ctx context.Context, path string) ([]byte, error) {
	key := normalizePath(path)

	// Check cache first
	if data, ok := m.cache.Get(key); ok {
		return data, nil
	}

	m.mu.RLock()
	sources := m.sources
	m.mu.RUnlock()

	for i := len(sources) - 1; i >= 0; i-- {
		data, err := sources[i].Read(ctx, key)
		if err == nil {
			m.cache.Set(key, data)
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, ErrNotFound) {
			logger.Warn("asset source read failed",
				zap.String("source", sources[i].Name()),
				zap.String("path", key),
				zap.Error(err))
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
}

// Fetch loads path in a goroutine and hands the result to done through
// the deliver function.
func (m *Manager) Fetch(ctx context.Context, path string, done func([]byte, error)) {
	m.mu.RLock()
	deliver := m.deliver
	m.mu.RUnlock()

	go func() {
		data, err := m.LoadContext(ctx, path)
		deliver(func() { done(data, err) })
	}()
}

// Stats returns cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.cache.Stats()
}

// Close closes all sources.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, src := range m.sources {
		if err := src.Close(); err != nil {
			logger.Warn("closing asset source", zap.String("source", src.Name()), zap.Error(err))
		}
	}
	m.sources = nil
	m.cache.Clear()
}
