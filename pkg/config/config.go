package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	DB      DBConfig      `yaml:"db"`
	Log     LogConfig     `yaml:"log"`
	Request RequestConfig `yaml:"request"`
	Predict PredictConfig `yaml:"predict"`
	Layers  LayersConfig  `yaml:"layers"`
	Assess  AssessConfig  `yaml:"assess"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address   string `yaml:"address"`
	StaticDir string `yaml:"static_dir"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// PredictConfig holds settings for the shoreline prediction services.
type PredictConfig struct {
	LineURL      string       `yaml:"line_url"`
	PointURL     string       `yaml:"point_url"`
	UploadURL    string       `yaml:"upload_url"`
	SegmentsURL  string       `yaml:"segments_url"`
	BuildingsURL string       `yaml:"buildings_url"`
	Local        RunnerConfig `yaml:"local"`
}

// RunnerConfig holds settings for the local prediction runner, used
// when the remote service is unavailable.
type RunnerConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Interpreter string   `yaml:"interpreter"`
	Script      string   `yaml:"script"`
	WorkDir     string   `yaml:"workdir"`
	Timeout     Duration `yaml:"timeout"`
}

// LayersConfig holds layer presentation settings.
type LayersConfig struct {
	// Palette is cycled through for predicted-line layer colors.
	Palette []string `yaml:"palette"`
	// WorkingEPSG is the projected CRS all geometry is normalized into.
	WorkingEPSG int `yaml:"working_epsg"`
}

// AssessConfig holds risk assessment settings.
type AssessConfig struct {
	// BufferDistances are the selectable buffer radii.
	BufferDistances []Distance `yaml:"buffer_distances"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:   "localhost:1948",
			StaticDir: "./internal/ui/static",
		},
		DB: DBConfig{
			Path: "./data/coastwatch.db",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		Request: RequestConfig{
			Retries: 5,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Predict: PredictConfig{
			LineURL:      "http://127.0.0.1:5000/predict",
			PointURL:     "http://127.0.0.1:5000/predict_point",
			UploadURL:    "http://127.0.0.1:5000/upload_layer",
			SegmentsURL:  "http://127.0.0.1:25883/api/Coastline/segments",
			BuildingsURL: "https://services2.arcgis.com/NYP47KhmyPanSbgo/arcgis/rest/services/Buildings_features_checked1/FeatureServer/57/query",
			Local: RunnerConfig{
				Enabled:     false,
				Interpreter: "python3",
				Script:      "./scripts/predict_shoreline.py",
				WorkDir:     "./data/predictions",
				Timeout:     Duration(120 * time.Second),
			},
		},
		Layers: LayersConfig{
			Palette: []string{
				"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
				"#f58231", "#911eb4", "#46f0f0", "#f032e6",
			},
			WorkingEPSG: 32635,
		},
		Assess: AssessConfig{
			BufferDistances: []Distance{200, 500, 1000},
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	// Optional .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		applyEnv(cfg)
		if err := validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides selected settings from the environment, so deployments
// can point at a different prediction service without editing the file.
func applyEnv(cfg *Config) {
	if addr := os.Getenv("COASTWATCH_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}
	if url := os.Getenv("COASTWATCH_PREDICT_URL"); url != "" {
		cfg.Predict.LineURL = url
	}
	if url := os.Getenv("COASTWATCH_PREDICT_POINT_URL"); url != "" {
		cfg.Predict.PointURL = url
	}
	if path := os.Getenv("COASTWATCH_DB_PATH"); path != "" {
		cfg.DB.Path = path
	}
}

func validate(cfg *Config) error {
	if !isValidEPSG(cfg.Layers.WorkingEPSG) {
		return fmt.Errorf("invalid working_epsg %d: must be 4326 or a UTM code (326xx/327xx)", cfg.Layers.WorkingEPSG)
	}
	if len(cfg.Layers.Palette) == 0 {
		return fmt.Errorf("layers.palette must not be empty")
	}
	return nil
}

func isValidEPSG(epsg int) bool {
	if epsg == 4326 {
		return true
	}
	zone := epsg % 100
	base := epsg - zone
	return (base == 32600 || base == 32700) && zone >= 1 && zone <= 60
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# CoastWatch Configuration
# ------------------------
# Supported Units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles)

`)
	data = append(header, data...)

	// Inject comments for fields whose values are not self-explanatory.
	reEPSG := regexp.MustCompile(`(?m)^(\s+)working_epsg:`)
	data = reEPSG.ReplaceAll(data, []byte("${1}# 4326 (WGS84) or a UTM code, e.g. 32635 for zone 35N\n${1}working_epsg:"))

	reInterp := regexp.MustCompile(`(?m)^(\s+)interpreter:`)
	data = reInterp.ReplaceAll(data, []byte("${1}# Used only when enabled; must be on PATH or absolute\n${1}interpreter:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
