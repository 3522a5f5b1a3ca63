package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/capture"
	"gaussian-blur-lab/internal/opencv/safe"
	"gaussian-blur-lab/internal/roi"
)

// Compare shows the image next to its blurred version.
type Compare struct{}

func (Compare) Name() string { return "compare" }

func (Compare) Run(ctx context.Context, env *Env) error {
	img, err := env.loadImage()
	if err != nil {
		return err
	}
	defer img.Close()

	p := env.Config.Blur
	out, err := env.Filter.Apply(ctx, img, p)
	if err != nil {
		return err
	}
	defer out.Close()

	return env.present([]pane{
		{title: "Original", mat: img},
		{title: fmt.Sprintf("Gaussian Blur (%s)", p), mat: out},
	}, out)
}

// Interactive asks for kernel and sigma on the console before blurring.
type Interactive struct{}

func (Interactive) Name() string { return "interactive" }

func (Interactive) Run(ctx context.Context, env *Env) error {
	img, err := env.loadImage()
	if err != nil {
		return err
	}
	defer img.Close()

	if env.Prompter == nil {
		return errors.New("interactive mode needs a console")
	}

	p, err := env.Prompter.Params()
	if err != nil {
		return fmt.Errorf("read blur parameters: %w", err)
	}

	out, err := env.Filter.Apply(ctx, img, p)
	if err != nil {
		return err
	}
	defer out.Close()

	return env.present([]pane{
		{title: "Original", mat: img},
		{title: fmt.Sprintf("Gaussian Blur (%s)", p), mat: out},
	}, out)
}

// Region blurs a rectangle of the image. The rectangle comes from the
// configuration, or from the console when none is configured or it does not
// fit the image.
type Region struct{}

func (Region) Name() string { return "roi" }

func (Region) Run(ctx context.Context, env *Env) error {
	img, err := env.loadImage()
	if err != nil {
		return err
	}
	defer img.Close()

	r := env.Config.Region
	if !r.IsZero() {
		if err := r.Validate(img.Cols(), img.Rows()); err != nil {
			env.Logger.Warning("Pipeline", "configured region rejected", map[string]interface{}{
				"region": r.String(),
				"reason": err.Error(),
			})
			r = roi.Rect{}
		}
	}

	if r.IsZero() {
		if env.Prompter == nil {
			return errors.New("no region configured and no console to ask for one")
		}
		if r, err = env.Prompter.Rect(img.Cols(), img.Rows()); err != nil {
			return fmt.Errorf("read region: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := roi.Blur(img, r, env.Config.Blur)
	if err != nil {
		return err
	}
	defer out.Close()

	env.Logger.Info("Pipeline", "region blurred", map[string]interface{}{
		"region": r.String(),
	})

	return env.present([]pane{
		{title: "Original", mat: img},
		{title: fmt.Sprintf("ROI Blur %s", r), mat: out},
	}, out)
}

// Iterate blurs the image repeatedly, each pass over the previous result.
type Iterate struct{}

func (Iterate) Name() string { return "iterate" }

func (Iterate) Run(ctx context.Context, env *Env) error {
	img, err := env.loadImage()
	if err != nil {
		return err
	}
	defer img.Close()

	results, err := env.Filter.ApplyN(ctx, img, env.Config.Blur, env.Config.Iterations)
	if err != nil {
		return err
	}
	defer safe.CloseAll(results...)

	panes := make([]pane, 0, len(results)+1)
	panes = append(panes, pane{title: "Original", mat: img})
	for i, m := range results {
		panes = append(panes, pane{title: fmt.Sprintf("Iteration %d", i+1), mat: m})
	}

	return env.present(panes, results[len(results)-1])
}

// Sweep blurs the image once per configured sigma at the configured kernel
// and lays the results out in a single row after the original.
type Sweep struct{}

func (Sweep) Name() string { return "sweep" }

func (Sweep) Run(ctx context.Context, env *Env) error {
	img, err := env.loadImage()
	if err != nil {
		return err
	}
	defer img.Close()

	cfg := env.Config
	results := make([]*safe.Mat, 0, len(cfg.Sigmas))
	defer func() { safe.CloseAll(results...) }()

	panes := make([]pane, 0, len(cfg.Sigmas)+1)
	panes = append(panes, pane{title: "Original", mat: img})
	for _, sigma := range cfg.Sigmas {
		p := blur.Params{Kernel: cfg.Blur.Kernel, Sigma: sigma}
		out, err := env.Filter.Apply(ctx, img, p)
		if err != nil {
			return fmt.Errorf("sigma %g: %w", float64(sigma), err)
		}
		results = append(results, out)
		panes = append(panes, pane{title: fmt.Sprintf("sigma = %g", float64(sigma)), mat: out})
	}

	columns := cfg.Figure.Columns
	if columns <= 0 {
		columns = len(panes)
	}
	return env.presentGrid(panes, results[len(results)-1], columns)
}

// Stream blurs camera frames live until the quit key, cancellation or a
// failed read. The device is released on every path.
type Stream struct {
	// PollDelay is how long each iteration waits for a key press.
	PollDelay time.Duration
}

func (Stream) Name() string { return "webcam" }

func (s Stream) Run(ctx context.Context, env *Env) error {
	cfg := env.Config

	cam, err := env.OpenCamera(cfg.Camera.Index)
	if err != nil {
		return err
	}
	defer func() {
		if err := cam.Close(); err != nil {
			env.Logger.Error("Pipeline", err, map[string]interface{}{"step": "close camera"})
		}
	}()
	defer func() {
		if err := env.Viewer.Close(); err != nil {
			env.Logger.Error("Pipeline", err, map[string]interface{}{"step": "close viewer"})
		}
	}()

	delay := s.PollDelay
	if delay <= 0 {
		delay = time.Millisecond
	}

	quit := cfg.QuitKeyCode()
	frames := 0
	reason := "quit key"

	for {
		if err := ctx.Err(); err != nil {
			reason = "cancelled"
			break
		}

		frame, err := cam.Read()
		if err != nil {
			env.Logger.Error("Pipeline", err, map[string]interface{}{"frames": frames})
			reason = "read failed"
			break
		}

		if err := s.showFrame(ctx, env, frame); err != nil {
			if errors.Is(err, context.Canceled) {
				reason = "cancelled"
				break
			}
			return err
		}
		frames++

		if env.Viewer.PollKey(delay) == quit {
			break
		}
	}

	env.Logger.Info("Pipeline", "capture loop ended", map[string]interface{}{
		"reason":      reason,
		"frames":      frames,
		"avg_blur_ms": float64(env.Filter.Tracker().GetAverageTime(env.Filter.Name()).Microseconds()) / 1000,
	})
	return nil
}

func (s Stream) showFrame(ctx context.Context, env *Env, frame *safe.Mat) error {
	defer frame.Close()

	blurred, err := env.Filter.Apply(ctx, frame, env.Config.Blur)
	if err != nil {
		return err
	}
	defer blurred.Close()

	if err := capture.Label(frame, "Original"); err != nil {
		return err
	}
	if err := capture.Label(blurred, fmt.Sprintf("Blurred %s", env.Config.Blur)); err != nil {
		return err
	}

	both, err := capture.SideBySide(frame, blurred)
	if err != nil {
		return err
	}
	defer both.Close()

	return env.Viewer.Show(env.Config.Camera.Window, both)
}
