// Package pipeline runs one blur mode end to end: load, validate, transform,
// display.
package pipeline

import (
	"context"
	"fmt"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/capture"
	"gaussian-blur-lab/internal/config"
	"gaussian-blur-lab/internal/figure"
	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"
	"gaussian-blur-lab/internal/prompt"
)

// ImageStore reads and writes still images.
type ImageStore interface {
	Load(path string) (*safe.Mat, error)
	Save(path string, m *safe.Mat) error
}

// CameraOpener opens the capture device with the given index.
type CameraOpener func(index int) (capture.FrameSource, error)

// Env is everything a Strategy may use. Fields a strategy does not need may
// be nil.
type Env struct {
	Config     *config.Config
	Logger     logger.Logger
	Viewer     capture.Viewer
	Prompter   *prompt.Prompter
	Filter     *blur.GaussianFilter
	Images     ImageStore
	OpenCamera CameraOpener
	// FigurePath, when set, receives the composed figure of the shown panes.
	FigurePath string
}

// Strategy is one mode of the tool.
type Strategy interface {
	Name() string
	Run(ctx context.Context, env *Env) error
}

// Run validates the configuration and executes s.
func Run(ctx context.Context, env *Env, s Strategy) error {
	if err := env.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	env.Logger.Info("Pipeline", "mode started", map[string]interface{}{
		"mode":   s.Name(),
		"kernel": env.Config.Blur.Kernel.String(),
		"sigma":  float64(env.Config.Blur.Sigma),
	})

	if err := s.Run(ctx, env); err != nil {
		return fmt.Errorf("%s: %w", s.Name(), err)
	}

	env.Logger.Info("Pipeline", "mode finished", map[string]interface{}{
		"mode": s.Name(),
	})
	return nil
}

type pane struct {
	title string
	mat   *safe.Mat
}

func (e *Env) loadImage() (*safe.Mat, error) {
	return e.Images.Load(e.Config.ImagePath)
}

// present shows every pane, writes the figure and the final buffer when
// configured, then waits for a key press.
func (e *Env) present(panes []pane, result *safe.Mat) error {
	return e.presentGrid(panes, result, e.Config.Figure.Columns)
}

// presentGrid is present with an explicit figure column count.
func (e *Env) presentGrid(panes []pane, result *safe.Mat, columns int) error {
	for _, p := range panes {
		if err := e.Viewer.Show(p.title, p.mat); err != nil {
			return fmt.Errorf("show %q: %w", p.title, err)
		}
	}

	if e.FigurePath != "" {
		if err := e.saveFigure(panes, columns); err != nil {
			return err
		}
	}

	if path := e.Config.Figure.BlurredPath; path != "" && result != nil {
		if err := e.Images.Save(path, result); err != nil {
			return err
		}
	}

	if e.Config.Display {
		e.Logger.Info("Pipeline", "press any key in an image window to close", nil)
	}
	e.Viewer.PollKey(0)
	return nil
}

func (e *Env) saveFigure(panes []pane, columns int) error {
	panels := make([]figure.Panel, 0, len(panes))
	for _, p := range panes {
		img, err := p.mat.ToImage()
		if err != nil {
			return fmt.Errorf("convert %q for figure: %w", p.title, err)
		}
		panels = append(panels, figure.Panel{Title: p.title, Image: img})
	}

	opts := figure.Options{
		PanelWidth: e.Config.Figure.PanelWidth,
		Columns:    columns,
		Quality:    e.Config.Figure.Quality,
	}

	img, err := figure.Compose(panels, opts)
	if err != nil {
		return fmt.Errorf("compose figure: %w", err)
	}

	if err := figure.Save(img, e.FigurePath, opts); err != nil {
		return err
	}

	e.Logger.Info("Pipeline", "figure saved", map[string]interface{}{
		"path":   e.FigurePath,
		"panels": len(panels),
	})
	return nil
}
