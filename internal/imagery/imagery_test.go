package imagery

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/logger"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithFileConfig("error", logger.FileConfig{}, false)
	os.Exit(m.Run())
}

func pngTile(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testLoader(sources ...config.ImagerySource) *Loader {
	return NewLoader(config.ImageryConfig{
		Zoom:    13,
		Timeout: config.Duration(5 * time.Second),
		Sources: sources,
	})
}

func TestLoadFirstSource(t *testing.T) {
	tileData := pngTile(t, color.RGBA{R: 200, G: 50, B: 10, A: 255})
	var requestedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write(tileData)
	}))
	defer srv.Close()

	l := testLoader(config.ImagerySource{Name: "test", URLTemplate: srv.URL + "/{z}/{x}/{y}.png"})
	img := l.Load(context.Background(), geo.Point{Lat: 37.7749, Lon: -122.4194})

	if img == nil {
		t.Fatal("expected an image")
	}
	if requestedPath != "/13/1310/3166.png" {
		t.Errorf("requested %q, want /13/1310/3166.png", requestedPath)
	}
	if got := img.RGBAAt(0, 0); got.R != 200 || got.G != 50 || got.B != 10 {
		t.Errorf("pixel = %v, want the tile color", got)
	}
}

func TestLoadFallsThroughToSecondSource(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()

	tileData := pngTile(t, color.RGBA{G: 255, A: 255})
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(tileData)
	}))
	defer good.Close()

	l := testLoader(
		config.ImagerySource{Name: "bad", URLTemplate: bad.URL + "/{z}/{x}/{y}"},
		config.ImagerySource{Name: "good", URLTemplate: good.URL + "/{z}/{x}/{y}"},
	)
	img := l.Load(context.Background(), geo.Point{Lat: 48.85, Lon: 2.35})

	if img == nil {
		t.Fatal("expected fallback source to provide an image")
	}
	if got := img.RGBAAt(1, 1); got.G != 255 {
		t.Errorf("pixel = %v, want green fallback tile", got)
	}
}

func TestLoadAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	l := testLoader(
		config.ImagerySource{Name: "a", URLTemplate: srv.URL + "/{z}/{x}/{y}"},
		config.ImagerySource{Name: "b", URLTemplate: srv.URL + "/{z}/{x}/{y}"},
	)
	if img := l.Load(context.Background(), geo.Point{Lat: 0, Lon: 0}); img != nil {
		t.Error("expected nil image when every source fails")
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not an image"))
	}))
	defer srv.Close()

	l := testLoader(config.ImagerySource{Name: "garbage", URLTemplate: srv.URL + "/{z}/{x}/{y}"})
	if img := l.Load(context.Background(), geo.Point{Lat: 10, Lon: 10}); img != nil {
		t.Error("expected nil image for undecodable response")
	}
}

func TestToRGBAConvertsOtherFormats(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(0, 0, color.Gray{Y: 128})

	rgba := toRGBA(gray)
	if rgba.Bounds().Dx() != 2 || rgba.Bounds().Dy() != 2 {
		t.Fatalf("bounds = %v, want 2x2", rgba.Bounds())
	}
	if got := rgba.RGBAAt(0, 0); got.R != 128 || got.G != 128 || got.B != 128 {
		t.Errorf("pixel = %v, want gray 128", got)
	}
}
