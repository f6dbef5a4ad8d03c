// Package config handles viewer and tool configuration loading and management.
package config

// Config holds all settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Details  DetailsConfig  `yaml:"details"`
	Culling  CullingConfig  `yaml:"culling"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// DetailsConfig holds the streaming settings and the scene terrains.
type DetailsConfig struct {
	LoadToGPUDistance float32  `yaml:"load_to_gpu_distance"`
	UpdateData        bool     `yaml:"update_data"`
	EnableEdit        bool     `yaml:"enable_edit"`
	AssetDir          string   `yaml:"asset_dir"`
	Terrains          []string `yaml:"terrains"` // terrain description files
}

// CullingConfig holds the culling pass settings.
type CullingConfig struct {
	BoundingBoxRadius     float32 `yaml:"bounding_box_radius"`
	MaxCullingDistance    float32 `yaml:"max_culling_distance"`
	EnableCull            bool    `yaml:"enable_cull"`
	EnableCullInSceneView bool    `yaml:"enable_cull_in_scene_view"`
	EnableRealtimeGI      bool    `yaml:"enable_realtime_gi"`
	UpdateProbesPerFrame  int     `yaml:"update_probes_per_frame"`
	Backend               string  `yaml:"backend"` // "gl" or "software"
}

// Backend names.
const (
	BackendGL       = "gl"
	BackendSoftware = "software"
)

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
			FPSLimit:   0,
		},
		Details: DetailsConfig{
			LoadToGPUDistance: 200,
			UpdateData:        true,
			EnableEdit:        false,
			AssetDir:          "assets",
		},
		Culling: CullingConfig{
			BoundingBoxRadius:     0.2,
			MaxCullingDistance:    100,
			EnableCull:            true,
			EnableCullInSceneView: false,
			EnableRealtimeGI:      true,
			UpdateProbesPerFrame:  100,
			Backend:               BackendGL,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
