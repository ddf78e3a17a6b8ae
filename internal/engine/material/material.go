// Package material resolves texture names referenced by a map into
// materials, loading their VMT definitions asynchronously.
package material

import (
	"context"
	"fmt"
	"hash/fnv"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
)

// maxIncludeDepth bounds chains of patch materials.
const maxIncludeDepth = 8

// Material is the render-facing description of a texture name.
type Material struct {
	Name        string
	Shader      string
	BaseTexture string
	Translucent bool

	// Color is a flat RGBA colour derived from the name, used in place of
	// the decoded base texture.
	Color [4]float32

	// Missing is set when no VMT could be loaded.
	Missing bool
}

// Fetcher loads a file asynchronously. *assets.Manager implements it.
type Fetcher interface {
	Fetch(ctx context.Context, path string, done func([]byte, error))
}

// Manager owns every material of the current map.
type Manager struct {
	fetch Fetcher
	ctx   context.Context

	mu        sync.Mutex
	materials map[string]*Material
	pending   int

	// OnComplete is called once all requested materials have settled.
	OnComplete func()
}

// NewManager creates a manager loading through f.
func NewManager(ctx context.Context, f Fetcher) *Manager {
	return &Manager{
		fetch:     f,
		ctx:       ctx,
		materials: make(map[string]*Material),
	}
}

// Key normalizes a texture name the way materials are stored.
func Key(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimPrefix(name, "materials/")
	return strings.TrimSuffix(name, ".vmt")
}

// FilePath returns the asset path of a material's VMT file.
func FilePath(name string) string {
	return path.Join("materials", Key(name)+".vmt")
}

// Request starts loading names. Names already known are not fetched
// again. OnComplete fires when the last outstanding load settles; if
// nothing needs loading it fires immediately.
func (m *Manager) Request(names []string) {
	var start []*Material

	m.mu.Lock()
	for _, n := range names {
		key := Key(n)
		if _, ok := m.materials[key]; ok {
			continue
		}
		mat := &Material{Name: key, Color: flatColor(key)}
		m.materials[key] = mat
		start = append(start, mat)
	}
	m.pending += len(start)
	idle := m.pending == 0
	m.mu.Unlock()

	logger.Debug("requesting materials", zap.Int("new", len(start)), zap.Int("total", len(names)))

	if idle {
		m.complete()
		return
	}
	for _, mat := range start {
		m.load(mat, mat.Name, 0)
	}
}

// load fetches the VMT for name and fills mat, following patch includes.
func (m *Manager) load(mat *Material, name string, depth int) {
	m.fetch.Fetch(m.ctx, FilePath(name), func(data []byte, err error) {
		if err != nil {
			m.settle(mat, nil, fmt.Errorf("loading %s: %w", name, err))
			return
		}
		vmt, err := formats.ParseVMT(data)
		if err != nil {
			m.settle(mat, nil, fmt.Errorf("parsing %s: %w", name, err))
			return
		}
		if inc := vmt.Include(); inc != "" {
			if depth >= maxIncludeDepth {
				m.settle(mat, nil, fmt.Errorf("%s: include chain too deep", mat.Name))
				return
			}
			// Patch values override the included material's.
			m.mu.Lock()
			overlay(mat, vmt)
			m.mu.Unlock()
			m.load(mat, inc, depth+1)
			return
		}
		m.settle(mat, vmt, nil)
	})
}

// overlay applies the parameters a patch material sets itself. The
// include target only fills fields left empty.
func overlay(mat *Material, vmt *formats.VMT) {
	if tex := vmt.BaseTexture(); tex != "" {
		mat.BaseTexture = tex
	}
	if vmt.Translucent() {
		mat.Translucent = true
	}
}

func (m *Manager) settle(mat *Material, vmt *formats.VMT, err error) {
	m.mu.Lock()
	if err != nil {
		mat.Missing = true
		logger.Warn("material unavailable", zap.String("material", mat.Name), zap.Error(err))
	} else {
		mat.Shader = vmt.Shader
		if mat.BaseTexture == "" {
			mat.BaseTexture = vmt.BaseTexture()
		}
		mat.Translucent = mat.Translucent || vmt.Translucent()
	}
	m.pending--
	done := m.pending == 0
	m.mu.Unlock()

	if done {
		m.complete()
	}
}

func (m *Manager) complete() {
	logger.Debug("materials complete", zap.Int("count", m.Len()))
	if m.OnComplete != nil {
		m.OnComplete()
	}
}

// Lookup returns the material for a texture name, or nil if it was never
// requested.
func (m *Manager) Lookup(name string) *Material {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.materials[Key(name)]
}

// Pending returns the number of loads still in flight.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Len returns the number of known materials.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.materials)
}

// flatColor derives a stable mid-range colour from a name.
func flatColor(name string) [4]float32 {
	h := fnv.New32a()
	h.Write([]byte(name))
	v := h.Sum32()
	c := func(shift uint) float32 {
		return 0.35 + 0.5*float32((v>>shift)&0xff)/255
	}
	return [4]float32{c(0), c(8), c(16), 1}
}
