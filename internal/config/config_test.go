package config

import (
	"os"
	"path/filepath"
	"testing"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/roi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blurlab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "test.png", cfg.ImagePath)
	assert.Equal(t, blur.KernelSize{X: 5, Y: 5}, cfg.Blur.Kernel)
	assert.Equal(t, 'q', rune(cfg.QuitKeyCode()))
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := writeConfig(t, `
image_path: lena.jpg
blur:
  kernel: {x: 9, y: 3}
  sigma: 1.5
iterations: 3
region: {x: 10, y: 10, w: 40, h: 20}
camera:
  index: 2
figure:
  output_path: out.jpg
  quality: 80
max_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "lena.jpg", cfg.ImagePath)
	assert.Equal(t, blur.Params{Kernel: blur.KernelSize{X: 9, Y: 3}, Sigma: 1.5}, cfg.Blur)
	assert.Equal(t, 3, cfg.Iterations)
	assert.Equal(t, roi.Rect{X: 10, Y: 10, W: 40, H: 20}, cfg.Region)
	assert.Equal(t, 2, cfg.Camera.Index)
	assert.Equal(t, "Gaussian Blur", cfg.Camera.Window)
	assert.Equal(t, "out.jpg", cfg.Figure.OutputPath)
	assert.Equal(t, 80, cfg.Figure.Quality)
	assert.Equal(t, 480, cfg.Figure.PanelWidth)
	assert.Equal(t, 3, cfg.MaxAttempts)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, `
blur:
  kernel: {x: 4, y: 5}
  sigma: -1
iterations: 0
figure:
  quality: 101
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, blur.ErrInvalidParams)
	assert.Contains(t, err.Error(), "iterations")
	assert.Contains(t, err.Error(), "quality")
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "blur: [not, a, map"))
	assert.Error(t, err)
}

func TestValidateRegion(t *testing.T) {
	cfg := Default()
	cfg.Region = roi.Rect{X: 1, Y: 1, W: 0, H: 3}
	assert.Error(t, cfg.Validate())

	cfg.Region = roi.Rect{}
	assert.NoError(t, cfg.Validate())
}

func TestForModeStartingValues(t *testing.T) {
	assert.Equal(t, blur.KernelSize{X: 15, Y: 15}, ForMode("roi").Blur.Kernel)
	assert.Equal(t, blur.Sigma(1), ForMode("iterate").Blur.Sigma)
	assert.Equal(t, Default(), ForMode("compare"))

	path := writeConfig(t, "blur:\n  kernel: {x: 7, y: 7}\n")
	cfg, err := LoadMode("roi", path)
	require.NoError(t, err)
	assert.Equal(t, blur.KernelSize{X: 7, Y: 7}, cfg.Blur.Kernel)
}

func TestLogLevelDefersToEnvironment(t *testing.T) {
	assert.Empty(t, Default().LogLevel)
}

func TestSigmasOverlayAndValidate(t *testing.T) {
	assert.Equal(t, []blur.Sigma{0, 1, 2, 5}, Default().Sigmas)

	cfg, err := Load(writeConfig(t, "sigmas: [0.5, 3]\n"))
	require.NoError(t, err)
	assert.Equal(t, []blur.Sigma{0.5, 3}, cfg.Sigmas)

	_, err = Load(writeConfig(t, "sigmas: [1, -2]\n"))
	assert.ErrorIs(t, err, blur.ErrInvalidParams)

	cfg = Default()
	cfg.Sigmas = nil
	assert.Error(t, cfg.Validate())
}
