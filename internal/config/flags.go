package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagWidth    = flag.Int("width", 0, "Window width")
	flagHeight   = flag.Int("height", 0, "Window height")
	flagRadius   = flag.Float64("radius", 0, "Initial coverage radius in km")
	flagGridSize = flag.Int("grid-size", 0, "Elevation samples per grid axis")
	flagElevURL  = flag.String("elevation-url", "", "Elevation API base URL")
	flagWriteCfg = flag.Bool("write-config", false, "Write the effective config to the user config dir and exit")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// WriteConfigRequested reports whether --write-config was passed.
func WriteConfigRequested() bool {
	return *flagWriteCfg
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagRadius > 0 {
		cfg.Terrain.DefaultRadiusKm = *flagRadius
	}
	if *flagGridSize > 0 {
		cfg.Terrain.GridSize = *flagGridSize
	}
	if *flagElevURL != "" {
		cfg.Elevation.APIURL = *flagElevURL
	}
}
