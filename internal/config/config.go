package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/roi"

	"gopkg.in/yaml.v3"
)

// Config carries every tunable the modes read. Flags override file values,
// file values override Default.
type Config struct {
	ImagePath   string       `yaml:"image_path"`
	Blur        blur.Params  `yaml:"blur"`
	Iterations  int          `yaml:"iterations"`
	Sigmas      []blur.Sigma `yaml:"sigmas"` // sweep mode, one panel each
	Region      roi.Rect     `yaml:"region"`
	Camera      CameraConfig `yaml:"camera"`
	Figure      FigureConfig `yaml:"figure"`
	Display     bool         `yaml:"display"`
	MaxAttempts int          `yaml:"max_attempts"` // 0 re-prompts forever
	LogLevel    string       `yaml:"log_level"`
}

// CameraConfig selects the capture device and its window.
type CameraConfig struct {
	Index   int    `yaml:"index"`
	Window  string `yaml:"window"`
	QuitKey string `yaml:"quit_key"`
}

// FigureConfig controls the saved figures.
type FigureConfig struct {
	OutputPath  string `yaml:"output_path"`
	SweepPath   string `yaml:"sweep_path"`
	BlurredPath string `yaml:"blurred_path"` // optional raw blurred buffer
	PanelWidth  int    `yaml:"panel_width"`  // pixels per panel
	Quality     int    `yaml:"quality"`      // JPEG quality, 1-100
	Columns     int    `yaml:"columns"`
}

func Default() *Config {
	return &Config{
		ImagePath: "test.png",
		Blur: blur.Params{
			Kernel: blur.KernelSize{X: 5, Y: 5},
			Sigma:  0,
		},
		Iterations: 5,
		Sigmas:     []blur.Sigma{0, 1, 2, 5},
		Camera: CameraConfig{
			Index:   0,
			Window:  "Gaussian Blur",
			QuitKey: "q",
		},
		Figure: FigureConfig{
			OutputPath: "gaussian_blur_comparison.png",
			SweepPath:  "gaussian_blur_sigma_sweep.jpg",
			PanelWidth: 480,
			Quality:    95,
		},
		Display: true,
	}
}

// ForMode is Default with the per-mode starting values: roi blurs with a
// 15x15 kernel and iterate with sigma 1.
func ForMode(mode string) *Config {
	cfg := Default()
	switch mode {
	case "roi":
		cfg.Blur.Kernel = blur.KernelSize{X: 15, Y: 15}
	case "iterate":
		cfg.Blur.Sigma = 1
	}
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	return LoadMode("", path)
}

// LoadMode reads a YAML file over the defaults of mode.
func LoadMode(mode, path string) (*Config, error) {
	cfg := ForMode(mode)
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filepath.Base(path), err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if err := c.Blur.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Iterations < 1 {
		errs = append(errs, fmt.Errorf("iterations must be at least 1, got %d", c.Iterations))
	}
	if len(c.Sigmas) == 0 {
		errs = append(errs, errors.New("sigmas must list at least one value"))
	}
	for _, s := range c.Sigmas {
		if err := blur.ValidateSigma(float64(s)); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Camera.Index < 0 {
		errs = append(errs, fmt.Errorf("camera index must not be negative, got %d", c.Camera.Index))
	}
	if len(c.Camera.QuitKey) != 1 {
		errs = append(errs, fmt.Errorf("quit key must be a single character, got %q", c.Camera.QuitKey))
	}
	if c.Figure.PanelWidth <= 0 {
		errs = append(errs, fmt.Errorf("figure panel width must be positive, got %d", c.Figure.PanelWidth))
	}
	if c.Figure.Quality < 1 || c.Figure.Quality > 100 {
		errs = append(errs, fmt.Errorf("figure quality must be in [1, 100], got %d", c.Figure.Quality))
	}
	if c.Figure.Columns < 0 {
		errs = append(errs, fmt.Errorf("figure columns must not be negative, got %d", c.Figure.Columns))
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("max attempts must not be negative, got %d", c.MaxAttempts))
	}
	if !c.Region.IsZero() && (c.Region.W <= 0 || c.Region.H <= 0 || c.Region.X < 0 || c.Region.Y < 0) {
		errs = append(errs, fmt.Errorf("region %s is malformed", c.Region))
	}
	if strings.TrimSpace(c.ImagePath) == "" {
		errs = append(errs, errors.New("image path must not be empty"))
	}

	return errors.Join(errs...)
}

// QuitKeyCode is the key code the capture loop compares WaitKey results with.
func (c *Config) QuitKeyCode() int {
	if c.Camera.QuitKey == "" {
		return 'q'
	}
	return int(c.Camera.QuitKey[0])
}
