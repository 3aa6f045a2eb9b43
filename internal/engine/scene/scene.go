package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/elevation"
	"github.com/sunward/terrainview/internal/engine/terrain"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/imagery"
	"github.com/sunward/terrainview/internal/logger"
)

// Phase is the load lifecycle state of the manager.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseInstalled
	PhaseFailed
)

// ErrLoadInProgress is returned when a load is requested while another
// is still running. The watchdog clears a load that never finishes.
var ErrLoadInProgress = errors.New("scene load already in progress")

// GPU abstracts scene upload and release so the lifecycle can be
// exercised without a GL context.
type GPU interface {
	UploadTerrain(mesh *terrain.Mesh, tile *image.RGBA) (*TerrainScene, error)
	ReleaseScene(s *TerrainScene)
}

// Update is the outcome Poll reports when a load settles.
type Update struct {
	Scene *TerrainScene // non-nil when a new scene was installed
	Err   error         // non-nil when the load failed
}

type loadResult struct {
	generation uint64
	mesh       *terrain.Mesh
	tile       *image.RGBA
}

// Manager drives the scene load lifecycle. Fetching and mesh building
// run in a goroutine per request; GPU work happens only inside Poll,
// which the render loop calls from the GL thread.
type Manager struct {
	gpu        GPU
	elev       *elevation.Fetcher
	tiles      *imagery.Loader
	terrainCfg config.TerrainConfig
	watchdog   time.Duration

	phase      Phase
	scene      *TerrainScene
	generation uint64
	loadStart  time.Time
	cancel     context.CancelFunc
	results    chan loadResult

	center      geo.Point
	radiusKm    float64
	hasLocation bool
}

// NewManager creates a scene manager.
func NewManager(gpu GPU, elev *elevation.Fetcher, tiles *imagery.Loader, terrainCfg config.TerrainConfig, engineCfg config.EngineConfig) *Manager {
	return &Manager{
		gpu:        gpu,
		elev:       elev,
		tiles:      tiles,
		terrainCfg: terrainCfg,
		watchdog:   time.Duration(engineCfg.LoadWatchdog),
		results:    make(chan loadResult, 2),
		radiusKm:   terrainCfg.DefaultRadiusKm,
	}
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase { return m.phase }

// Scene returns the installed scene, or nil.
func (m *Manager) Scene() *TerrainScene { return m.scene }

// Location returns the last requested center point.
func (m *Manager) Location() (geo.Point, bool) { return m.center, m.hasLocation }

// Request starts loading terrain for a location. The previous scene is
// released before the fetch begins so its VRAM is not held across the
// load. Returns ErrLoadInProgress while another load is running.
func (m *Manager) Request(center geo.Point, radiusKm float64) error {
	if m.phase == PhaseLoading {
		if m.watchdog <= 0 || time.Since(m.loadStart) <= m.watchdog {
			return ErrLoadInProgress
		}
		// The guard expired: abandon the stuck load and take over
		// without waiting for Poll to notice.
		logger.Warn("replacing load stuck past the watchdog",
			zap.Duration("watchdog", m.watchdog))
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
	}

	radiusKm = m.clampRadius(radiusKm)

	m.releaseCurrent()

	m.generation++
	gen := m.generation

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.phase = PhaseLoading
	m.loadStart = time.Now()
	m.center = center
	m.radiusKm = radiusKm
	m.hasLocation = true

	logger.Info("loading terrain",
		zap.Float64("lat", center.Lat),
		zap.Float64("lon", center.Lon),
		zap.Float64("radius_km", radiusKm),
		zap.Uint64("generation", gen),
	)

	go m.load(ctx, gen, center, radiusKm)
	return nil
}

// UpdateRadius reloads the current location with a new coverage radius.
func (m *Manager) UpdateRadius(radiusKm float64) error {
	if !m.hasLocation {
		return errors.New("no location loaded")
	}
	return m.Request(m.center, radiusKm)
}

// load runs off the GL thread: elevation and imagery fetch in parallel,
// then the CPU mesh build.
func (m *Manager) load(ctx context.Context, gen uint64, center geo.Point, radiusKm float64) {
	var tile *image.RGBA
	tileDone := make(chan struct{})
	go func() {
		defer close(tileDone)
		tile = m.tiles.Load(ctx, center)
	}()

	grid := m.elev.Fetch(ctx, center, radiusKm, m.terrainCfg.GridSize)
	<-tileDone

	mesh := terrain.Build(grid, terrain.Params{
		RadiusKm:      radiusKm,
		WorldScale:    m.terrainCfg.WorldScale,
		AmplifyFloorM: m.terrainCfg.AmplifyFloorM,
		Textured:      tile != nil,
	})

	select {
	case m.results <- loadResult{generation: gen, mesh: mesh, tile: tile}:
	case <-ctx.Done():
	}
}

// Poll settles a finished load and runs the watchdog. Must be called
// from the GL thread; it is the only place scenes are uploaded.
func (m *Manager) Poll() *Update {
	select {
	case res := <-m.results:
		if res.generation != m.generation {
			logger.Debug("dropping stale scene result", zap.Uint64("generation", res.generation))
			return nil
		}

		sc, err := m.gpu.UploadTerrain(res.mesh, res.tile)
		if err != nil {
			m.phase = PhaseFailed
			logger.Error("scene upload failed", zap.Error(err))
			return &Update{Err: err}
		}

		m.scene = sc
		m.phase = PhaseInstalled
		logger.Info("scene installed",
			zap.Float32("world_size", sc.Info.WorldSize),
			zap.Float64("min_elevation", sc.Info.MinElevation),
			zap.Float64("max_elevation", sc.Info.MaxElevation),
			zap.Bool("textured", sc.Info.Textured),
		)
		return &Update{Scene: sc}
	default:
	}

	if m.phase == PhaseLoading && m.watchdog > 0 && time.Since(m.loadStart) > m.watchdog {
		m.cancel()
		// The abandoned load's result must never install
		m.generation++
		m.phase = PhaseFailed
		err := fmt.Errorf("terrain load timed out after %s", m.watchdog)
		logger.Error("load watchdog fired",
			zap.Float64("lat", m.center.Lat),
			zap.Float64("lon", m.center.Lon),
		)
		return &Update{Err: err}
	}

	return nil
}

// Clear releases the installed scene and cancels any in-flight load.
func (m *Manager) Clear() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.generation++
	m.releaseCurrent()
	m.phase = PhaseIdle
}

// Shutdown is Clear plus dropping any queued results.
func (m *Manager) Shutdown() {
	m.Clear()
	for {
		select {
		case <-m.results:
		default:
			return
		}
	}
}

func (m *Manager) releaseCurrent() {
	if m.scene != nil {
		m.gpu.ReleaseScene(m.scene)
		m.scene = nil
	}
}

func (m *Manager) clampRadius(r float64) float64 {
	if r < m.terrainCfg.MinRadiusKm {
		return m.terrainCfg.MinRadiusKm
	}
	if r > m.terrainCfg.MaxRadiusKm {
		return m.terrainCfg.MaxRadiusKm
	}
	return r
}
