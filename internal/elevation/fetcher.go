package elevation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sunward/terrainview/internal/config"
	"github.com/sunward/terrainview/internal/geo"
	"github.com/sunward/terrainview/internal/logger"
)

// Fetcher retrieves elevation samples from a batched DEM API.
type Fetcher struct {
	client     *http.Client
	apiURL     string
	batchSize  int
	batchDelay time.Duration
}

// NewFetcher creates a fetcher from elevation config.
func NewFetcher(cfg config.ElevationConfig) *Fetcher {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Fetcher{
		client:     &http.Client{Timeout: time.Duration(cfg.Timeout)},
		apiURL:     cfg.APIURL,
		batchSize:  batchSize,
		batchDelay: time.Duration(cfg.BatchDelay),
	}
}

// Fetch samples a gridSize x gridSize height grid covering +/- radiusKm
// around center. It never fails: any data-source error falls back to
// deterministic synthetic terrain so the pipeline always has a grid.
func (f *Fetcher) Fetch(ctx context.Context, center geo.Point, radiusKm float64, gridSize int) *Grid {
	points := geo.SampleGrid(center, radiusKm, gridSize)

	heights, err := f.fetchBatched(ctx, points)
	if err != nil {
		logger.Warn("elevation fetch failed, using synthetic terrain",
			zap.Float64("lat", center.Lat),
			zap.Float64("lon", center.Lon),
			zap.Error(err),
		)
		return Synthesize(center, gridSize)
	}

	return NewGrid(gridSize, heights)
}

// fetchBatched issues sequential batched requests, preserving request
// order, with a small delay between batches to respect API rate limits.
func (f *Fetcher) fetchBatched(ctx context.Context, points []geo.Point) ([]float64, error) {
	heights := make([]float64, 0, len(points))

	for start := 0; start < len(points); start += f.batchSize {
		if start > 0 && f.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.batchDelay):
			}
		}

		end := start + f.batchSize
		if end > len(points) {
			end = len(points)
		}

		batch, err := f.fetchBatch(ctx, points[start:end])
		if err != nil {
			return nil, err
		}
		heights = append(heights, batch...)
	}

	if len(heights) != len(points) {
		return nil, fmt.Errorf("elevation count mismatch: got %d, want %d", len(heights), len(points))
	}
	return heights, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, points []geo.Point) ([]float64, error) {
	var locations strings.Builder
	for i, p := range points {
		if i > 0 {
			locations.WriteByte('|')
		}
		fmt.Fprintf(&locations, "%.6f,%.6f", p.Lat, p.Lon)
	}

	query := url.Values{"locations": {locations.String()}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building elevation request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevation API returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Elevation *float64 `json:"elevation"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding elevation response: %w", err)
	}

	if len(payload.Results) != len(points) {
		return nil, fmt.Errorf("elevation response length %d, want %d", len(payload.Results), len(points))
	}

	heights := make([]float64, len(payload.Results))
	for i, r := range payload.Results {
		// Missing samples (ocean, voids) come back as null
		if r.Elevation != nil {
			heights[i] = *r.Elevation
		}
	}
	return heights, nil
}
