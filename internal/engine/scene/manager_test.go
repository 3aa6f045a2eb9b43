package scene

import (
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/elevation"
	"github.com/sunward/terrainview/internal/engine/terrain"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/imagery"
	"github.com/sunward/terrainview/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

// fakeGPU counts uploads and releases so lifecycle invariants can be
// checked without a GL context.
type fakeGPU struct {
	uploads    int
	releases   int
	failUpload bool
}

func (g *fakeGPU) UploadTerrain(mesh *terrain.Mesh, tile *image.RGBA) (*TerrainScene, error) {
	if g.failUpload {
		return nil, errors.New("upload failed")
	}
	g.uploads++
	return &TerrainScene{vao: 1, indexCount: int32(len(mesh.Indices)), Info: mesh.Info}, nil
}

func (g *fakeGPU) ReleaseScene(s *TerrainScene) {
	g.releases++
	s.vao = 0
	s.vbo = 0
	s.ebo = 0
	s.texture = 0
}

// newTestManager wires a manager to an unreachable elevation API, so
// loads complete quickly via the synthetic fallback, and to an empty
// imagery source list.
func newTestManager(gpu GPU) *Manager {
	cfg := config.Default()
	elev := elevation.NewFetcher(config.ElevationConfig{
		APIURL:    "http://127.0.0.1:1",
		BatchSize: 100,
		Timeout:   config.Duration(time.Second),
	})
	tiles := imagery.NewLoader(config.ImageryConfig{Zoom: 13, Timeout: config.Duration(time.Second)})
	cfg.Terrain.GridSize = 8
	return NewManager(gpu, elev, tiles, cfg.Terrain, cfg.Engine)
}

// pollUntil drives Poll until it reports an update or the deadline hits.
func pollUntil(t *testing.T, m *Manager, timeout time.Duration) *Update {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if u := m.Poll(); u != nil {
			return u
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no update before deadline")
	return nil
}

func TestRequestInstallsScene(t *testing.T) {
	gpu := &fakeGPU{}
	m := newTestManager(gpu)

	if err := m.Request(geo.Point{Lat: 46.85, Lon: -121.76}, 5.0); err != nil {
		t.Fatal(err)
	}
	if m.Phase() != PhaseLoading {
		t.Fatalf("phase = %v, want loading", m.Phase())
	}

	u := pollUntil(t, m, 10*time.Second)
	if u.Err != nil {
		t.Fatalf("load failed: %v", u.Err)
	}
	if u.Scene == nil || m.Scene() != u.Scene {
		t.Fatal("installed scene not exposed")
	}
	if m.Phase() != PhaseInstalled {
		t.Errorf("phase = %v, want installed", m.Phase())
	}
	if gpu.uploads != 1 {
		t.Errorf("uploads = %d, want 1", gpu.uploads)
	}
	if u.Scene.Info.WorldSize != 10000 {
		t.Errorf("WorldSize = %f, want 10000 for 5km radius", u.Scene.Info.WorldSize)
	}
}

func TestRequestGuardWhileLoading(t *testing.T) {
	m := newTestManager(&fakeGPU{})

	if err := m.Request(geo.Point{Lat: 1, Lon: 1}, 5.0); err != nil {
		t.Fatal(err)
	}
	if err := m.Request(geo.Point{Lat: 2, Lon: 2}, 5.0); !errors.Is(err, ErrLoadInProgress) {
		t.Errorf("second request err = %v, want ErrLoadInProgress", err)
	}
	m.Shutdown()
}

func TestPreviousSceneReleasedBeforeFetch(t *testing.T) {
	gpu := &fakeGPU{}
	m := newTestManager(gpu)

	if err := m.Request(geo.Point{Lat: 10, Lon: 10}, 5.0); err != nil {
		t.Fatal(err)
	}
	pollUntil(t, m, 10*time.Second)

	// The installed scene must be released the moment a new load starts
	if err := m.Request(geo.Point{Lat: 20, Lon: 20}, 5.0); err != nil {
		t.Fatal(err)
	}
	if gpu.releases != 1 {
		t.Errorf("releases = %d after new request, want 1", gpu.releases)
	}
	if m.Scene() != nil {
		t.Error("stale scene still exposed during load")
	}

	pollUntil(t, m, 10*time.Second)
	if gpu.uploads != 2 {
		t.Errorf("uploads = %d, want 2", gpu.uploads)
	}
	// Every release matches an upload once the manager shuts down
	m.Shutdown()
	if gpu.releases != gpu.uploads {
		t.Errorf("releases = %d, uploads = %d, want equal", gpu.releases, gpu.uploads)
	}
}

func TestWatchdogClearsStuckLoad(t *testing.T) {
	// An elevation server that never answers keeps the load in flight
	// until its context is cancelled
	hang := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-hang:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(hang)

	gpu := &fakeGPU{}
	m := newTestManager(gpu)
	m.elev = elevation.NewFetcher(config.ElevationConfig{
		APIURL:    srv.URL,
		BatchSize: 100,
		Timeout:   config.Duration(time.Hour),
	})

	if err := m.Request(geo.Point{Lat: 5, Lon: 5}, 5.0); err != nil {
		t.Fatal(err)
	}
	// Pretend the load has been running past the watchdog
	m.loadStart = time.Now().Add(-time.Hour)

	u := m.Poll()
	if u == nil || u.Err == nil {
		t.Fatal("watchdog should report a timeout error")
	}
	if m.Phase() != PhaseFailed {
		t.Errorf("phase = %v, want failed", m.Phase())
	}

	// A late result from the abandoned load must never install
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 10; i++ {
		if u := m.Poll(); u != nil {
			t.Fatalf("stale result installed: %+v", u)
		}
	}
	if gpu.uploads != 0 {
		t.Errorf("uploads = %d, want 0", gpu.uploads)
	}
}

func TestRequestReplacesExpiredLoad(t *testing.T) {
	hang := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-hang:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(hang)

	m := newTestManager(&fakeGPU{})
	m.elev = elevation.NewFetcher(config.ElevationConfig{
		APIURL:    srv.URL,
		BatchSize: 100,
		Timeout:   config.Duration(time.Hour),
	})

	if err := m.Request(geo.Point{Lat: 1, Lon: 1}, 5.0); err != nil {
		t.Fatal(err)
	}
	gen := m.generation

	// Within the watchdog window the guard still holds
	if err := m.Request(geo.Point{Lat: 2, Lon: 2}, 5.0); !errors.Is(err, ErrLoadInProgress) {
		t.Fatalf("request err = %v, want ErrLoadInProgress", err)
	}

	// Past the watchdog a new request takes over without waiting for Poll
	m.loadStart = time.Now().Add(-time.Hour)
	if err := m.Request(geo.Point{Lat: 2, Lon: 2}, 5.0); err != nil {
		t.Fatalf("request past the watchdog should replace the stuck load: %v", err)
	}
	if m.Phase() != PhaseLoading {
		t.Errorf("phase = %v, want loading", m.Phase())
	}
	if m.generation == gen {
		t.Error("replacement load must advance the generation")
	}
	m.Shutdown()
}

func TestUploadFailureSetsFailedPhase(t *testing.T) {
	gpu := &fakeGPU{failUpload: true}
	m := newTestManager(gpu)

	if err := m.Request(geo.Point{Lat: 3, Lon: 3}, 5.0); err != nil {
		t.Fatal(err)
	}
	u := pollUntil(t, m, 10*time.Second)
	if u.Err == nil {
		t.Fatal("expected upload error")
	}
	if m.Phase() != PhaseFailed {
		t.Errorf("phase = %v, want failed", m.Phase())
	}
	if m.Scene() != nil {
		t.Error("failed load should not expose a scene")
	}
}

func TestClearReleasesScene(t *testing.T) {
	gpu := &fakeGPU{}
	m := newTestManager(gpu)

	if err := m.Request(geo.Point{Lat: 7, Lon: 7}, 5.0); err != nil {
		t.Fatal(err)
	}
	u := pollUntil(t, m, 10*time.Second)
	if u.Scene == nil {
		t.Fatal("no scene installed")
	}

	m.Clear()
	if gpu.releases != 1 {
		t.Errorf("releases = %d, want 1", gpu.releases)
	}
	if m.Scene() != nil || m.Phase() != PhaseIdle {
		t.Error("clear should drop the scene and return to idle")
	}
	if !u.Scene.Released() {
		t.Error("released scene still holds handles")
	}

	// Clear twice must not double-release
	m.Clear()
	if gpu.releases != 1 {
		t.Errorf("releases after second clear = %d, want 1", gpu.releases)
	}
}

func TestRadiusClamped(t *testing.T) {
	m := newTestManager(&fakeGPU{})

	if err := m.Request(geo.Point{Lat: 1, Lon: 1}, 100.0); err != nil {
		t.Fatal(err)
	}
	if m.radiusKm != m.terrainCfg.MaxRadiusKm {
		t.Errorf("radius = %f, want clamped to %f", m.radiusKm, m.terrainCfg.MaxRadiusKm)
	}
	m.Shutdown()

	if err := m.Request(geo.Point{Lat: 1, Lon: 1}, 0.01); err != nil {
		t.Fatal(err)
	}
	if m.radiusKm != m.terrainCfg.MinRadiusKm {
		t.Errorf("radius = %f, want clamped to %f", m.radiusKm, m.terrainCfg.MinRadiusKm)
	}
	m.Shutdown()
}

func TestUpdateRadiusRequiresLocation(t *testing.T) {
	m := newTestManager(&fakeGPU{})
	if err := m.UpdateRadius(8.0); err == nil {
		t.Error("expected error before any location is loaded")
	}

	if err := m.Request(geo.Point{Lat: 4, Lon: 4}, 5.0); err != nil {
		t.Fatal(err)
	}
	pollUntil(t, m, 10*time.Second)

	if err := m.UpdateRadius(8.0); err != nil {
		t.Fatalf("UpdateRadius after install: %v", err)
	}
	if m.radiusKm != 8.0 {
		t.Errorf("radius = %f, want 8", m.radiusKm)
	}
	pollUntil(t, m, 10*time.Second)
	m.Shutdown()
}
