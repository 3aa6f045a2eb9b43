package viewer

import (
	"image"
	"os"
	"testing"

	"github.com/sunward/terrainview/internal/bridge"
	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/elevation"
	"github.com/sunward/terrainview/internal/engine/scene"
	"github.com/sunward/terrainview/internal/engine/terrain"
	"github.com/sunward/terrainview/internal/imagery"
	"github.com/sunward/terrainview/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

// nullGPU satisfies scene.GPU so command handling can run headless.
type nullGPU struct{}

func (nullGPU) UploadTerrain(*terrain.Mesh, *image.RGBA) (*scene.TerrainScene, error) {
	return &scene.TerrainScene{}, nil
}

func (nullGPU) ReleaseScene(*scene.TerrainScene) {}

// newTestEngine builds an Engine with just the pieces apply needs.
// The renderers and window stay nil: a handler touching them panics,
// which is the point of the toggle test below.
func newTestEngine() *Engine {
	cfg := config.Default()
	return &Engine{
		cfg:     cfg,
		running: true,
		manager: scene.NewManager(
			nullGPU{},
			elevation.NewFetcher(cfg.Elevation),
			imagery.NewLoader(cfg.Imagery),
			cfg.Terrain,
			cfg.Engine,
		),
	}
}

func TestCleanupStopsLoopAndClearsScene(t *testing.T) {
	e := newTestEngine()
	e.locationName = "Lausanne"

	e.apply(bridge.Command{Type: bridge.CmdCleanup})

	if e.running {
		t.Error("cleanup should stop the render loop")
	}
	if e.manager.Phase() != scene.PhaseIdle {
		t.Errorf("phase after cleanup = %v, want PhaseIdle", e.manager.Phase())
	}
	if e.locationName != "" {
		t.Errorf("location name after cleanup = %q, want empty", e.locationName)
	}
}

func TestToggleSunWithoutVisibleKeepsState(t *testing.T) {
	// The sun renderer is nil here, so any visibility write would panic.
	e := newTestEngine()
	e.apply(bridge.Command{Type: bridge.CmdToggleSun})

	if !e.running {
		t.Error("toggleSun should not stop the loop")
	}
}
