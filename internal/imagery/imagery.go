// Package imagery loads map tile textures for terrain draping.
//
// Providers are tried in configured order; the terrain renders with a
// procedural color ramp when every source fails, so loading is best-effort.
package imagery

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"net/http"
	"time"

	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // some providers serve webp tiles

	_ "image/jpeg"
	_ "image/png"

	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/logger"
)

// Loader fetches a single map tile covering the scene center.
type Loader struct {
	client  *http.Client
	zoom    int
	sources []config.ImagerySource
}

// NewLoader creates a tile loader from imagery config.
func NewLoader(cfg config.ImageryConfig) *Loader {
	return &Loader{
		client:  &http.Client{Timeout: time.Duration(cfg.Timeout)},
		zoom:    cfg.Zoom,
		sources: cfg.Sources,
	}
}

// Load fetches the tile containing center, trying each source in order.
// It returns nil when no source yields a decodable image; callers treat
// nil as "render untextured".
func (l *Loader) Load(ctx context.Context, center geo.Point) *image.RGBA {
	tile := geo.TileAt(center, l.zoom)

	for _, src := range l.sources {
		img, err := l.fetchTile(ctx, src, tile)
		if err != nil {
			logger.Warn("tile source failed",
				zap.String("source", src.Name),
				zap.Int("z", tile.Z),
				zap.Int("x", tile.X),
				zap.Int("y", tile.Y),
				zap.Error(err),
			)
			continue
		}
		logger.Debug("tile loaded",
			zap.String("source", src.Name),
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()),
		)
		return img
	}

	logger.Warn("all tile sources failed, terrain will be untextured")
	return nil
}

func (l *Loader) fetchTile(ctx context.Context, src config.ImagerySource, tile geo.Tile) (*image.RGBA, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, geo.TileURL(src.URLTemplate, tile), nil)
	if err != nil {
		return nil, fmt.Errorf("building tile request: %w", err)
	}
	// Some public tile servers reject requests without a user agent
	req.Header.Set("User-Agent", "terrainview/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding tile: %w", err)
	}
	return toRGBA(img), nil
}

// toRGBA normalizes any decoded image to RGBA for GL upload.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}
