package viewer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/assets"
	"github.com/Faultbox/srcview/internal/config"
	"github.com/Faultbox/srcview/internal/engine/bsptree"
	"github.com/Faultbox/srcview/internal/engine/material"
	"github.com/Faultbox/srcview/internal/engine/scene"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/formats"
)

// remoteTimeout bounds one request to the HTTP asset mirror.
const remoteTimeout = 15 * time.Second

// Map is a loaded map ready to draw.
type Map struct {
	Name      string
	BSP       *formats.BSP
	Tree      *bsptree.Tree
	Scene     *scene.Scene
	Flagger   *scene.Flagger
	Materials *material.Manager
}

// MountData mounts the configured asset sources. Later mounts win, so the
// remote mirror is searched last and loose directories first.
func MountData(am *assets.Manager, cfg config.DataConfig) error {
	if cfg.RemoteURL != "" {
		src, err := assets.NewHTTPSource(cfg.RemoteURL, &http.Client{Timeout: remoteTimeout})
		if err != nil {
			return fmt.Errorf("mounting %s: %w", cfg.RemoteURL, err)
		}
		am.Mount(src)
	}
	for _, p := range cfg.VPKPaths {
		if err := am.AddArchive(p); err != nil {
			return fmt.Errorf("mounting %s: %w", p, err)
		}
	}
	for _, d := range cfg.Dirs {
		am.Mount(assets.NewDirSource(d))
	}
	return nil
}

// ReadMap parses a map from disk, falling back to the mounted sources so
// a name like "maps/foo.bsp" resolves inside a VPK.
func ReadMap(am *assets.Manager, path string) (*formats.BSP, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		data, err = am.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading map %s: %w", path, err)
	}
	b, err := formats.ParseBSP(data)
	if err != nil {
		return nil, fmt.Errorf("parsing map %s: %w", path, err)
	}
	return b, nil
}

// MapName returns the display name of a map path.
func MapName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Loader turns a parsed map into a Map. Materials load asynchronously;
// once they settle the world is partitioned off the caller's thread and
// the result is handed back through deliver.
type Loader struct {
	assets  *assets.Manager
	opts    scene.Options
	deliver func(func())

	// build runs the partitioner; it defaults to a new goroutine.
	build func(func())
}

// NewLoader creates a loader. deliver must run callbacks on the thread
// that owns the viewer state.
func NewLoader(am *assets.Manager, opts scene.Options, deliver func(func())) *Loader {
	return &Loader{
		assets:  am,
		opts:    opts,
		deliver: deliver,
		build:   func(fn func()) { go fn() },
	}
}

// Load builds the tree, mounts the map's pakfile and requests every
// material. done is called once through deliver.
func (l *Loader) Load(ctx context.Context, name string, b *formats.BSP, done func(*Map, error)) {
	tree, err := bsptree.Build(bsptree.InputFromBSP(b))
	if err != nil {
		l.deliver(func() { done(nil, fmt.Errorf("building tree for %s: %w", name, err)) })
		return
	}

	if len(b.Pakfile) > 0 {
		pak, err := assets.OpenPakfile(name, b.Pakfile)
		if err != nil {
			logger.Warn("ignoring embedded pakfile", zap.String("map", name), zap.Error(err))
		} else {
			logger.Debug("mounted pakfile", zap.String("map", name), zap.Int("files", pak.Len()))
			l.assets.Mount(pak)
		}
	}

	mats := material.NewManager(ctx, l.assets)
	mats.OnComplete = func() {
		logger.Info("materials loaded", zap.String("map", name), zap.Int("count", mats.Len()))
		l.build(func() {
			s, err := scene.Build(b, tree, mats, l.opts)
			if err != nil {
				l.deliver(func() { done(nil, fmt.Errorf("partitioning %s: %w", name, err)) })
				return
			}
			m := &Map{
				Name:      name,
				BSP:       b,
				Tree:      tree,
				Scene:     s,
				Flagger:   scene.NewFlagger(s),
				Materials: mats,
			}
			l.deliver(func() { done(m, nil) })
		})
	}
	mats.Request(b.TexNames)
}
