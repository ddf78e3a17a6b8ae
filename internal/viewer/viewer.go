// Package viewer implements the map viewer's frame loop.
package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/gopxl/mainthread/v2"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/assets"
	"github.com/Faultbox/srcview/internal/config"
	"github.com/Faultbox/srcview/internal/engine/camera"
	"github.com/Faultbox/srcview/internal/engine/input"
	"github.com/Faultbox/srcview/internal/engine/render"
	"github.com/Faultbox/srcview/internal/engine/scene"
	"github.com/Faultbox/srcview/internal/engine/window"
	"github.com/Faultbox/srcview/internal/export"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/pkg/math"
)

// Viewer is the main viewer instance. Its state is only touched on the
// main thread: frames run through mainthread.Call and asset callbacks
// through mainthread.CallNonBlock.
type Viewer struct {
	cfg     *config.Config
	running bool
	cull    bool
	capture bool
	shoot   bool

	window *window.Window
	ctx    *render.Context
	input  *input.Input
	camera *camera.FlyCamera
	assets *assets.Manager
	loader *Loader
	shots  *export.Screenshots

	current *Map
	leaf    int
	stats   render.Stats
}

// New creates the window and GL context. It must run on the main thread.
func New(cfg *config.Config) (*Viewer, error) {
	logger.Info("initializing viewer",
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height),
		zap.Bool("cull", cfg.Render.Cull),
	)

	v := &Viewer{
		cfg:    cfg,
		cull:   cfg.Render.Cull,
		input:  input.New(),
		camera: newCamera(cfg.Camera),
		assets: assets.NewManager(),
		shots:  export.NewScreenshots(cfg.Data.Screenshots, "srcview"),
		leaf:   -1,
	}
	v.camera.SetAspect(cfg.Window.Width, cfg.Window.Height)

	if err := MountData(v.assets, cfg.Data); err != nil {
		return nil, err
	}
	v.assets.SetDeliver(mainthread.CallNonBlock)
	v.loader = NewLoader(v.assets, scene.Options{
		PageSize:    cfg.Render.LightmapPage,
		MaxVertices: cfg.Render.MaxVertices,
	}, mainthread.CallNonBlock)

	var err error
	v.window, err = window.New(window.Config{
		Title:      "srcview",
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	})
	if err != nil {
		v.assets.Close()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// GL context must exist first
	v.ctx, err = render.NewContext()
	if err != nil {
		v.window.Close()
		v.assets.Close()
		return nil, fmt.Errorf("failed to create render context: %w", err)
	}
	v.ctx.Resize(v.window.GetSize())

	logger.Info("viewer initialized successfully")
	return v, nil
}

func newCamera(cfg config.CameraConfig) *camera.FlyCamera {
	c := camera.NewFlyCamera()
	c.FovY = math.Radians(cfg.FOV)
	c.Speed = cfg.Speed
	c.LookSensitivity = cfg.Sensitivity
	c.Near = cfg.Near
	c.Far = cfg.Far
	return c
}

// Open starts loading a map. The previous map stays on screen until the
// new one is ready. Call on the main thread.
func (v *Viewer) Open(ctx context.Context, path string) error {
	b, err := ReadMap(v.assets, path)
	if err != nil {
		return err
	}
	name := MapName(path)
	if ws := b.Worldspawn(); ws != nil {
		logger.Info("map opened", zap.String("map", name), zap.String("skyname", ws.Get("skyname")))
	}

	v.loader.Load(ctx, name, b, func(m *Map, err error) {
		if err != nil {
			logger.Error("map load failed", zap.String("map", name), zap.Error(err))
			return
		}
		v.install(m)
	})
	return nil
}

// install makes m the drawn map.
func (v *Viewer) install(m *Map) {
	v.ctx.Upload(m.Scene)
	v.current = m
	v.leaf = -1
	v.shots.Prefix = m.Name

	pos, yaw, ok := SpawnPoint(m.BSP)
	v.camera.Position = pos
	v.camera.Yaw = math.Radians(yaw)
	v.camera.Pitch = 0

	logger.Info("map ready",
		zap.String("map", m.Name),
		zap.Bool("spawn", ok),
		zap.Int("leaves", m.Tree.NumLeaves()),
		zap.Int("clusters", m.Tree.NumClusters()))
}

// Run drives the frame loop until quit. It runs on the goroutine started
// by mainthread.Run.
func (v *Viewer) Run(ctx context.Context) error {
	v.running = true

	lastTime := time.Now()
	frameCount := 0
	fpsTimer := time.Now()

	logger.Info("starting frame loop")

	for v.running {
		if err := ctx.Err(); err != nil {
			return nil
		}

		now := time.Now()
		dt := float32(now.Sub(lastTime).Seconds())
		lastTime = now

		mainthread.Call(func() { v.frame(dt) })

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			mainthread.Call(func() { v.report(frameCount) })
			frameCount = 0
			fpsTimer = time.Now()
		}
	}
	return nil
}

// frame processes input, reflags visibility and draws one frame.
func (v *Viewer) frame(dt float32) {
	if v.input.Update() {
		v.running = false
		return
	}
	v.handleEvents()
	v.move(dt)

	v.ctx.Begin(v.camera.ViewProjection())
	if m := v.current; m != nil {
		leaf, cull := m.Flagger.Update(v.camera.Position)
		v.leaf = leaf
		v.stats = render.Draw(v.ctx, render.Frame{
			Scene: m.Scene,
			Vis:   m.Flagger,
			Cull:  cull && v.cull,
		})
	}
	if v.shoot {
		v.shoot = false
		v.screenshot()
	}
	v.window.SwapBuffers()
}

// screenshot saves the back buffer before it is swapped.
func (v *Viewer) screenshot() {
	w, h := v.window.GetSize()
	path, err := v.shots.Save(v.ctx.ReadPixels(w, h), w, h)
	if err != nil {
		logger.Warn("screenshot failed", zap.Error(err))
		return
	}
	logger.Info("screenshot saved", zap.String("path", path))
}

func (v *Viewer) handleEvents() {
	for _, event := range v.input.Events() {
		switch event.Type {
		case input.EventWindowResize:
			v.ctx.Resize(v.window.GetSize())
			v.camera.SetAspect(event.Width, event.Height)
		case input.EventKeyDown:
			switch event.Key {
			case sdl.SCANCODE_ESCAPE:
				v.running = false
			case sdl.SCANCODE_F12:
				v.shoot = true
			case sdl.SCANCODE_C:
				v.cull = !v.cull
				logger.Info("culling toggled", zap.Bool("cull", v.cull))
			}
		case input.EventMouseDown:
			if event.Button == sdl.BUTTON_RIGHT {
				v.capture = !v.capture
				v.window.SetMouseCaptured(v.capture)
			}
		}
	}
}

func (v *Viewer) move(dt float32) {
	if v.capture {
		dx, dy := v.input.MouseDelta()
		v.camera.HandleLook(float32(dx), float32(dy))
	}
	v.camera.HandleMovement(
		v.input.Axis(sdl.SCANCODE_W, sdl.SCANCODE_S),
		v.input.Axis(sdl.SCANCODE_D, sdl.SCANCODE_A),
		v.input.Axis(sdl.SCANCODE_SPACE, sdl.SCANCODE_LCTRL),
		dt,
		v.input.IsKeyDown(sdl.SCANCODE_LSHIFT),
	)
}

// report logs frame statistics and updates the title.
func (v *Viewer) report(frames int) {
	name := "no map"
	flags := 0
	if v.current != nil {
		name = v.current.Name
		flags = v.current.Flagger.Flags()
	}
	v.window.SetTitle(fmt.Sprintf("srcview - %s - %d fps - leaf %d - %d patches %d props",
		name, frames, v.leaf, v.stats.Patches, v.stats.Props))

	logger.Debug("frame stats",
		zap.Int("fps", frames),
		zap.Int("leaf", v.leaf),
		zap.Int("patches", v.stats.Patches),
		zap.Int("props", v.stats.Props),
		zap.Int("skipped", v.stats.Skipped),
		zap.Int("flagPasses", flags),
		zap.Bool("cull", v.cull))
}

// Close releases GPU, window and asset resources. Call on the main thread.
func (v *Viewer) Close() {
	logger.Info("closing viewer")

	if v.ctx != nil {
		v.ctx.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
	v.assets.Close()
}
