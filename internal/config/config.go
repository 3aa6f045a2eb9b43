// Package config handles engine configuration loading and management.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML as a
// string like "250ms" or "30s".
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds all engine settings.
type Config struct {
	Graphics  GraphicsConfig  `yaml:"graphics"`
	Terrain   TerrainConfig   `yaml:"terrain"`
	Elevation ElevationConfig `yaml:"elevation"`
	Imagery   ImageryConfig   `yaml:"imagery"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// TerrainConfig holds terrain grid and mesh scaling settings.
type TerrainConfig struct {
	GridSize        int     `yaml:"grid_size"`         // Samples per grid axis
	DefaultRadiusKm float64 `yaml:"default_radius_km"` // Coverage radius before the host sets one
	MinRadiusKm     float64 `yaml:"min_radius_km"`
	MaxRadiusKm     float64 `yaml:"max_radius_km"`
	WorldScale      float64 `yaml:"world_scale"`           // World units per km of radius
	AmplifyFloorM   float64 `yaml:"amplification_floor_m"` // Minimum vertical exaggeration span
}

// ElevationConfig holds elevation data source settings.
type ElevationConfig struct {
	APIURL     string   `yaml:"api_url"`
	BatchSize  int      `yaml:"batch_size"`
	BatchDelay Duration `yaml:"batch_delay"`
	Timeout    Duration `yaml:"timeout"`
}

// ImagerySource is one tile provider in the ordered fallback chain.
type ImagerySource struct {
	Name        string `yaml:"name"`
	URLTemplate string `yaml:"url_template"`
}

// ImageryConfig holds satellite/street tile settings.
type ImageryConfig struct {
	Zoom    int             `yaml:"zoom"`
	Timeout Duration        `yaml:"timeout"`
	Sources []ImagerySource `yaml:"sources"`
}

// EngineConfig holds load lifecycle settings.
type EngineConfig struct {
	LoadWatchdog  Duration `yaml:"load_watchdog"`  // Force-clears a stuck load guard
	CommandBuffer int      `yaml:"command_buffer"` // Bounded host command channel size
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Terrain: TerrainConfig{
			GridSize:        64,
			DefaultRadiusKm: 5.0,
			MinRadiusKm:     1.0,
			MaxRadiusKm:     15.0,
			WorldScale:      2000.0,
			AmplifyFloorM:   1000.0,
		},
		Elevation: ElevationConfig{
			APIURL:     "https://api.opentopodata.org/v1/srtm90m",
			BatchSize:  100,
			BatchDelay: Duration(100 * time.Millisecond),
			Timeout:    Duration(10 * time.Second),
		},
		Imagery: ImageryConfig{
			Zoom:    13,
			Timeout: Duration(10 * time.Second),
			Sources: []ImagerySource{
				{
					Name:        "esri-satellite",
					URLTemplate: "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
				},
				{
					Name:        "osm",
					URLTemplate: "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
				},
				{
					Name:        "carto-voyager",
					URLTemplate: "https://basemaps.cartocdn.com/rastertiles/voyager/{z}/{x}/{y}.png",
				},
			},
		},
		Engine: EngineConfig{
			LoadWatchdog:  Duration(30 * time.Second),
			CommandBuffer: 16,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
