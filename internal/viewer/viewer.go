// Package viewer implements the main render loop and wires the host
// bridge to the scene manager, camera and sun.
package viewer

import (
	"fmt"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/sunward/terrainview/internal/bridge"
	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/elevation"
	"github.com/sunward/terrainview/internal/engine/camera"
	"github.com/sunward/terrainview/internal/engine/input"
	"github.com/sunward/terrainview/internal/engine/renderer"
	"github.com/sunward/terrainview/internal/engine/scene"
	"github.com/sunward/terrainview/internal/engine/window"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/imagery"
	"github.com/sunward/terrainview/internal/logger"
	pkgmath "github.com/sunward/terrainview/pkg/math"
)

const (
	fovY     = 1.0472 // 60 degrees
	nearClip = 10.0
	farClip  = 500000.0
)

// Engine is the viewer application.
type Engine struct {
	cfg     *config.Config
	running bool

	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input

	cam      *camera.OrbitCamera
	terrains *scene.TerrainRenderer
	sun      *scene.SunRenderer
	manager  *scene.Manager
	bridge   *bridge.Bridge

	dragging     bool
	locationName string
}

// New creates the viewer: window, GL state, renderers, scene manager
// and the host bridge on stdin/stdout.
func New(cfg *config.Config) (*Engine, error) {
	e := &Engine{cfg: cfg}

	var err error
	e.window, err = window.New(window.Config{
		Title:      "Terrain Viewer",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Renderer must come after the window: it needs the GL context
	drawW, drawH := e.window.GetDrawableSize()
	e.renderer, err = renderer.New(renderer.Config{Width: drawW, Height: drawH})
	if err != nil {
		e.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	e.terrains, err = scene.NewTerrainRenderer()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create terrain renderer: %w", err)
	}

	e.sun, err = scene.NewSunRenderer()
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create sun renderer: %w", err)
	}

	e.input = input.New()
	e.cam = camera.NewOrbitCamera()

	e.manager = scene.NewManager(
		e.terrains,
		elevation.NewFetcher(cfg.Elevation),
		imagery.NewLoader(cfg.Imagery),
		cfg.Terrain,
		cfg.Engine,
	)

	e.bridge = bridge.New(os.Stdin, os.Stdout, cfg.Engine.CommandBuffer)

	logger.Info("viewer initialized")
	return e, nil
}

// Run drives the cooperative loop: input, host commands, load
// lifecycle, then the frame. Returns when the host disconnects or
// sends cleanup, the window closes, or ESC is pressed.
func (e *Engine) Run() error {
	e.running = true

	frameCount := 0
	fpsTimer := time.Now()
	lastTime := time.Now()

	logger.Info("starting render loop")

	for e.running {
		now := time.Now()
		dt := now.Sub(lastTime).Seconds()
		lastTime = now

		if e.input.Update() {
			break
		}
		e.handleInput()
		e.drainCommands()
		e.settleLoads()

		e.render()
		e.window.SwapBuffers()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			logger.Debug("fps",
				zap.Int("count", frameCount),
				zap.String("frame_time", fmt.Sprintf("%.2fms", dt*1000)),
			)
			frameCount = 0
			fpsTimer = time.Now()
		}
	}

	return nil
}

// handleInput applies window and camera events.
func (e *Engine) handleInput() {
	for _, ev := range e.input.Events() {
		switch ev.Type {
		case input.EventWindowResize:
			w, h := e.window.GetDrawableSize()
			e.renderer.Resize(w, h)

		case input.EventKeyDown:
			if ev.Key == sdl.SCANCODE_ESCAPE {
				e.running = false
			}

		case input.EventMouseDown:
			if ev.Button == sdl.BUTTON_LEFT {
				e.dragging = true
			}

		case input.EventMouseUp:
			if ev.Button == sdl.BUTTON_LEFT {
				e.dragging = false
			}

		case input.EventMouseMove:
			if e.dragging {
				e.cam.HandleDrag(float32(ev.DeltaX), float32(ev.DeltaY))
			}

		case input.EventMouseWheel:
			e.cam.HandleZoom(ev.Wheel)

		case input.EventPinch:
			e.cam.HandlePinch(ev.Pinch)
		}
	}
}

// drainCommands applies all queued host commands without blocking the
// frame. A closed command channel means the host is gone.
func (e *Engine) drainCommands() {
	for {
		select {
		case cmd, ok := <-e.bridge.Commands():
			if !ok {
				logger.Info("host disconnected, shutting down")
				e.running = false
				return
			}
			e.apply(cmd)
		default:
			return
		}
	}
}

func (e *Engine) apply(cmd bridge.Command) {
	switch cmd.Type {
	case bridge.CmdLoadLocation:
		radius := cmd.RadiusKm
		if radius == 0 {
			radius = e.cfg.Terrain.DefaultRadiusKm
		}
		if err := e.manager.Request(geo.Point{Lat: cmd.Lat, Lon: cmd.Lon}, radius); err != nil {
			e.bridge.SendError(err.Error())
			return
		}
		e.locationName = cmd.Name

	case bridge.CmdUpdateRadius:
		if err := e.manager.UpdateRadius(cmd.RadiusKm); err != nil {
			e.bridge.SendError(err.Error())
		}

	case bridge.CmdUpdateSun:
		e.sun.SetAngles(cmd.Azimuth, cmd.Altitude)
		e.terrains.LightDir = e.sun.Direction()

	case bridge.CmdToggleSun:
		if cmd.Visible != nil {
			e.sun.SetVisible(*cmd.Visible)
		}

	case bridge.CmdCleanup:
		// Full teardown: release the scene now, then let the loop exit
		// so Close disposes the renderers, window and bridge.
		e.manager.Clear()
		e.locationName = ""
		e.running = false
	}
}

// settleLoads polls the scene manager and reports outcomes to the host.
func (e *Engine) settleLoads() {
	u := e.manager.Poll()
	if u == nil {
		return
	}

	if u.Err != nil {
		e.bridge.SendError(u.Err.Error())
		return
	}

	info := u.Scene.Info
	e.cam.FrameScene(info.WorldSize, info.MaxHeight)
	e.sun.FitScene(info.WorldSize)
	e.terrains.LightDir = e.sun.Direction()

	surface := "fallback terrain colors"
	if info.Textured {
		surface = "satellite imagery"
	}
	msg := fmt.Sprintf("terrain ready (%s)", surface)
	if e.locationName != "" {
		msg = fmt.Sprintf("terrain ready for %s (%s)", e.locationName, surface)
	}

	center, _ := e.manager.Location()
	if err := e.bridge.Send(bridge.Event{
		Type:         bridge.EventReady,
		Message:      msg,
		Name:         e.locationName,
		Lat:          center.Lat,
		Lon:          center.Lon,
		MinElevation: info.MinElevation,
		MaxElevation: info.MaxElevation,
		Textured:     info.Textured,
	}); err != nil {
		logger.Error("failed to send ready event", zap.Error(err))
	}
}

func (e *Engine) render() {
	e.renderer.Begin()

	proj := pkgmath.Perspective(fovY, e.renderer.Aspect(), nearClip, farClip)
	viewProj := proj.Mul(e.cam.ViewMatrix())

	e.terrains.Draw(e.manager.Scene(), viewProj)
	e.sun.Draw(viewProj)
}

// Close releases everything in reverse creation order.
func (e *Engine) Close() {
	logger.Info("closing viewer")

	if e.bridge != nil {
		e.bridge.Close()
	}
	if e.manager != nil {
		e.manager.Shutdown()
	}
	if e.sun != nil {
		e.sun.Destroy()
	}
	if e.terrains != nil {
		e.terrains.Destroy()
	}
	if e.window != nil {
		e.window.Close()
	}
}
