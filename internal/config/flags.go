package config

import "flag"

var (
	flagConfig = flag.String("config", "", "Path to config file")
	flagMap    = flag.String("map", "", "Path to the .bsp map")
	flagData   = flag.String("data", "", "Extra game data directory or *_dir.vpk")
	flagDebug  = flag.Bool("debug", false, "Enable debug logging")
	flagWidth  = flag.Int("width", 0, "Window width")
	flagHeight = flag.Int("height", 0, "Window height")
	flagNoCull = flag.Bool("nocull", false, "Disable PVS culling")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagMap != "" {
		cfg.Data.Map = *flagMap
	} else if flag.NArg() > 0 {
		cfg.Data.Map = flag.Arg(0)
	}
	if *flagData != "" {
		if isVPK(*flagData) {
			cfg.Data.VPKPaths = append(cfg.Data.VPKPaths, *flagData)
		} else {
			cfg.Data.Dirs = append(cfg.Data.Dirs, *flagData)
		}
	}
	if *flagNoCull {
		cfg.Render.Cull = false
	}
	if *flagWidth > 0 {
		cfg.Window.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Window.Height = *flagHeight
	}
}
