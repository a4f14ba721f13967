package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkerConfig configures the agent that runs next to the printers.
type WorkerConfig struct {
	ServerURL  string        `yaml:"server_url"`
	Credential string        `yaml:"credential"`
	Intervals  IntervalsConf `yaml:"intervals"`
	Render     RenderConfig  `yaml:"render"`
	Logging    LoggingConfig `yaml:"logging"`
}

type IntervalsConf struct {
	Heartbeat       time.Duration `yaml:"heartbeat"`
	Sync            time.Duration `yaml:"sync"`
	Poll            time.Duration `yaml:"poll"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
}

type RenderConfig struct {
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	LPPath           string        `yaml:"lp_path"`
	LPStatPath       string        `yaml:"lpstat_path"`
	LPOptionsPath    string        `yaml:"lpoptions_path"`
	GhostscriptPath  string        `yaml:"ghostscript_path"`
	RasterDPI        int           `yaml:"raster_dpi"`
	DefaultLabelSize string        `yaml:"default_label_size"`
	LabelPatterns    []string      `yaml:"label_patterns"`
	TempDir          string        `yaml:"temp_dir"`
}

func workerDefaults() *WorkerConfig {
	return &WorkerConfig{
		ServerURL: "http://localhost:8080",
		Intervals: IntervalsConf{
			Heartbeat:       30 * time.Second,
			Sync:            3 * time.Minute,
			Poll:            5 * time.Second,
			RequestTimeout:  30 * time.Second,
			DownloadTimeout: 10 * time.Minute,
		},
		Render: RenderConfig{
			ToolTimeout:      30 * time.Second,
			LPPath:           "lp",
			LPStatPath:       "lpstat",
			LPOptionsPath:    "lpoptions",
			GhostscriptPath:  "gs",
			RasterDPI:        203,
			DefaultLabelSize: "4x6",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func LoadWorker(configPath string) (*WorkerConfig, error) {
	cfg := workerDefaults()

	data, err := os.ReadFile(configPath)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if v := os.Getenv("RPRINT_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("RPRINT_WORKER_CREDENTIAL"); v != "" {
		cfg.Credential = v
	}
	if v := os.Getenv("RPRINT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RPRINT_TEMP_DIR"); v != "" {
		cfg.Render.TempDir = v
	}

	return cfg, nil
}

func (c *WorkerConfig) Validate() error {
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server url must start with http:// or https://, got %q", c.ServerURL)
	}

	if id, secret, ok := strings.Cut(c.Credential, "."); !ok || id == "" || secret == "" {
		return fmt.Errorf("worker credential must have the form <worker-id>.<secret>")
	}

	if c.Intervals.Heartbeat <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}

	if c.Intervals.Sync <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	if c.Intervals.Poll <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}

	if c.Intervals.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Intervals.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive")
	}

	if c.Render.ToolTimeout <= 0 {
		return fmt.Errorf("render tool timeout must be positive")
	}

	if c.Render.RasterDPI < 72 {
		return fmt.Errorf("raster dpi must be at least 72, got %d", c.Render.RasterDPI)
	}

	if c.Render.LPPath == "" || c.Render.GhostscriptPath == "" {
		return fmt.Errorf("lp and ghostscript paths are required")
	}

	return c.Logging.Validate()
}
