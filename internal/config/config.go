// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Window  WindowConfig  `yaml:"window"`
	Render  RenderConfig  `yaml:"render"`
	Camera  CameraConfig  `yaml:"camera"`
	Data    DataConfig    `yaml:"data"`
	Logging LoggingConfig `yaml:"logging"`
}

// WindowConfig holds display settings.
type WindowConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
}

// RenderConfig holds partitioning and culling settings.
type RenderConfig struct {
	Cull         bool `yaml:"cull"`          // PVS culling; false draws everything
	LightmapPage int  `yaml:"lightmap_page"` // lightmap page edge in texels
	MaxVertices  int  `yaml:"max_vertices"`  // per lock group
}

// CameraConfig holds fly camera settings.
type CameraConfig struct {
	FOV         float32 `yaml:"fov"` // vertical, degrees
	Speed       float32 `yaml:"speed"`
	Sensitivity float32 `yaml:"sensitivity"`
	Near        float32 `yaml:"near"`
	Far         float32 `yaml:"far"`
}

// DataConfig holds map and asset locations.
type DataConfig struct {
	Map       string   `yaml:"map"`        // .bsp file to open
	VPKPaths  []string `yaml:"vpk_paths"`  // *_dir.vpk archives
	Dirs      []string `yaml:"dirs"`       // loose game directories
	RemoteURL string   `yaml:"remote_url"` // optional HTTP asset mirror

	Screenshots string `yaml:"screenshots"` // output directory for F12 captures
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
		},
		Render: RenderConfig{
			Cull:         true,
			LightmapPage: 512,
			MaxVertices:  65536,
		},
		Camera: CameraConfig{
			FOV:         75,
			Speed:       320,
			Sensitivity: 0.003,
			Near:        4,
			Far:         16384,
		},
		Data: DataConfig{
			Dirs:        []string{"."},
			Screenshots: "screenshots",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
