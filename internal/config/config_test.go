package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Test graphics defaults
	if cfg.Graphics.Width != 1280 {
		t.Errorf("expected width 1280, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected height 720, got %d", cfg.Graphics.Height)
	}
	if cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be false by default")
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}

	// Test details defaults
	if cfg.Details.LoadToGPUDistance != 200 {
		t.Errorf("expected streaming radius 200, got %v", cfg.Details.LoadToGPUDistance)
	}
	if !cfg.Details.UpdateData {
		t.Error("expected update_data to be true by default")
	}
	if cfg.Details.EnableEdit {
		t.Error("expected enable_edit to be false by default")
	}

	// Test culling defaults
	if cfg.Culling.BoundingBoxRadius != 0.2 {
		t.Errorf("expected bounding box radius 0.2, got %v", cfg.Culling.BoundingBoxRadius)
	}
	if cfg.Culling.MaxCullingDistance != 100 {
		t.Errorf("expected max culling distance 100, got %v", cfg.Culling.MaxCullingDistance)
	}
	if !cfg.Culling.EnableCull || cfg.Culling.EnableCullInSceneView {
		t.Error("expected culling on for game cameras only")
	}
	if cfg.Culling.UpdateProbesPerFrame != 100 {
		t.Errorf("expected 100 probes per frame, got %d", cfg.Culling.UpdateProbesPerFrame)
	}
	if cfg.Culling.Backend != BackendGL {
		t.Errorf("expected backend gl, got %s", cfg.Culling.Backend)
	}

	// Test logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "" {
		t.Errorf("expected empty log file, got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true
  vsync: false
  fps_limit: 144

details:
  load_to_gpu_distance: 350
  update_data: false
  enable_edit: true
  asset_dir: "baked"
  terrains:
    - "terrains/meadow.yaml"
    - "terrains/hills.yaml"

culling:
  bounding_box_radius: 0.5
  max_culling_distance: 250
  enable_cull: false
  enable_realtime_gi: false
  update_probes_per_frame: 32
  backend: "software"

logging:
  level: "debug"
  log_file: "details.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 1080 {
		t.Errorf("expected height 1080, got %d", cfg.Graphics.Height)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if cfg.Graphics.FPSLimit != 144 {
		t.Errorf("expected fps limit 144, got %d", cfg.Graphics.FPSLimit)
	}

	if cfg.Details.LoadToGPUDistance != 350 {
		t.Errorf("expected streaming radius 350, got %v", cfg.Details.LoadToGPUDistance)
	}
	if cfg.Details.UpdateData || !cfg.Details.EnableEdit {
		t.Error("details switches not loaded")
	}
	if cfg.Details.AssetDir != "baked" {
		t.Errorf("expected asset dir 'baked', got %s", cfg.Details.AssetDir)
	}
	if len(cfg.Details.Terrains) != 2 || cfg.Details.Terrains[1] != "terrains/hills.yaml" {
		t.Errorf("unexpected terrains %v", cfg.Details.Terrains)
	}

	if cfg.Culling.BoundingBoxRadius != 0.5 {
		t.Errorf("expected bounding box radius 0.5, got %v", cfg.Culling.BoundingBoxRadius)
	}
	if cfg.Culling.MaxCullingDistance != 250 {
		t.Errorf("expected max culling distance 250, got %v", cfg.Culling.MaxCullingDistance)
	}
	if cfg.Culling.EnableCull || cfg.Culling.EnableRealtimeGI {
		t.Error("culling switches not loaded")
	}
	if cfg.Culling.UpdateProbesPerFrame != 32 {
		t.Errorf("expected 32 probes per frame, got %d", cfg.Culling.UpdateProbesPerFrame)
	}
	if cfg.Culling.Backend != BackendSoftware {
		t.Errorf("expected software backend, got %s", cfg.Culling.Backend)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.LogFile != "details.log" {
		t.Errorf("expected log file 'details.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
details:
  load_to_gpu_distance: not a number
  invalid syntax here
`

	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	err := loadFromFile(cfg, configPath)
	if err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := Default()
	err := loadFromFile(cfg, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"software backend", func(c *Config) { c.Culling.Backend = BackendSoftware }, true},
		{"unknown backend", func(c *Config) { c.Culling.Backend = "vulkan" }, false},
		{"zero radius", func(c *Config) { c.Details.LoadToGPUDistance = 0 }, false},
		{"negative culling distance", func(c *Config) { c.Culling.MaxCullingDistance = -1 }, false},
		{"negative probes", func(c *Config) { c.Culling.UpdateProbesPerFrame = -5 }, false},
		{"probes off", func(c *Config) { c.Culling.UpdateProbesPerFrame = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()

	// Actual path depends on OS
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	origDir, _ := os.Getwd()
	defer os.Chdir(origDir)

	tmpDir := t.TempDir()
	os.Chdir(tmpDir)

	// The per-user config dir may hold a file on a developer machine.
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := findConfigFile()
	if path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	path = findConfigFile()
	if path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*testing.T, *Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "edit flag",
			setup: func() { *flagEdit = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Details.EnableEdit {
					t.Error("expected edit mode with edit flag")
				}
			},
			teardown: func() { *flagEdit = false },
		},
		{
			name:  "distance flag",
			setup: func() { *flagDistance = 64 },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Details.LoadToGPUDistance != 64 {
					t.Errorf("expected streaming radius 64, got %v", cfg.Details.LoadToGPUDistance)
				}
			},
			teardown: func() { *flagDistance = 0 },
		},
		{
			name:  "backend flag",
			setup: func() { *flagBackend = BackendSoftware },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Culling.Backend != BackendSoftware {
					t.Errorf("expected software backend, got %s", cfg.Culling.Backend)
				}
			},
			teardown: func() { *flagBackend = "" },
		},
		{
			name:  "windowed flag",
			setup: func() { *flagWindowed = true },
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be false with windowed flag")
				}
			},
			teardown: func() { *flagWindowed = false },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Graphics.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 2560
				*flagHeight = 1440
			},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Graphics.Width != 2560 {
					t.Errorf("expected width 2560, got %d", cfg.Graphics.Width)
				}
				if cfg.Graphics.Height != 1440 {
					t.Errorf("expected height 1440, got %d", cfg.Graphics.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)

			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
graphics:
  width: 1600
  height: 900
details:
  load_to_gpu_distance: 120
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	// Width should be from flag (1920), not file (1600)
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
	if cfg.Details.LoadToGPUDistance != 120 {
		t.Errorf("expected streaming radius 120 from file, got %v", cfg.Details.LoadToGPUDistance)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("culling:\n  backend: metal\n"), 0644); err != nil {
		t.Fatal(err)
	}
	*flagConfig = configPath
	defer func() { *flagConfig = "" }()

	if _, err := Load(); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Details.Terrains = []string{"meadow.yaml"}
	cfg.Culling.Backend = BackendSoftware
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Culling.Backend != BackendSoftware || len(loaded.Details.Terrains) != 1 {
		t.Errorf("saved config not reloaded: %+v", loaded)
	}
}

func TestSaveToRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Default()
	cfg.Details.LoadToGPUDistance = 0
	if err := cfg.SaveTo(path); err == nil {
		t.Fatal("expected error for invalid config")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("invalid config was written: %v", err)
	}
}
