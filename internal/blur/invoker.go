package blur

import (
	"context"
	"fmt"
	"image"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"
	"gaussian-blur-lab/internal/timing"

	"gocv.io/x/gocv"
)

// Apply blurs src into a new buffer of the same size and type. src is not
// modified. Borders follow OpenCV's BORDER_DEFAULT (reflect-101).
func Apply(src *safe.Mat, p Params) (*safe.Mat, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := safe.ValidateMatForOperation(src, "GaussianBlur"); err != nil {
		return nil, err
	}

	dst := gocv.NewMat()

	// A zero sigma is handed through on both axes so the library derives each
	// axis from its own kernel size.
	sigma := float64(p.Sigma)
	ksize := image.Point{X: p.Kernel.X, Y: p.Kernel.Y}
	if err := gocv.GaussianBlur(src.GetMat(), &dst, ksize, sigma, sigma, gocv.BorderDefault); err != nil {
		dst.Close()
		return nil, fmt.Errorf("gaussian blur %s: %w", p, err)
	}

	out, err := safe.Wrap(dst, src.Tag()+"_blurred")
	if err != nil {
		return nil, fmt.Errorf("gaussian blur %s produced no output: %w", p, err)
	}

	if out.Rows() != src.Rows() || out.Cols() != src.Cols() || out.Type() != src.Type() {
		out.Close()
		return nil, fmt.Errorf("gaussian blur changed buffer shape from %dx%d to %dx%d",
			src.Cols(), src.Rows(), out.Cols(), out.Rows())
	}

	return out, nil
}

// GaussianFilter wraps Apply with logging and timing.
type GaussianFilter struct {
	logger  logger.Logger
	tracker *timing.Tracker
}

func NewGaussianFilter(log logger.Logger, tracker *timing.Tracker) *GaussianFilter {
	if tracker == nil {
		tracker = timing.NewTracker()
	}
	return &GaussianFilter{logger: log, tracker: tracker}
}

func (g *GaussianFilter) Name() string {
	return "gaussian_filter"
}

func (g *GaussianFilter) Tracker() *timing.Tracker {
	return g.tracker
}

func (g *GaussianFilter) Apply(ctx context.Context, input *safe.Mat, p Params) (*safe.Mat, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tctx := g.tracker.StartTiming(g.Name())
	out, err := Apply(input, p)
	elapsed := g.tracker.EndTiming(tctx)
	if err != nil {
		g.logger.Error("GaussianFilter", err, map[string]interface{}{
			"kernel": p.Kernel.String(),
			"sigma":  float64(p.Sigma),
		})
		return nil, err
	}

	sx, sy := p.Effective()
	g.logger.Debug("GaussianFilter", "blur applied", map[string]interface{}{
		"kernel":   p.Kernel.String(),
		"sigma_x":  sx,
		"sigma_y":  sy,
		"width":    out.Cols(),
		"height":   out.Rows(),
		"duration": elapsed.String(),
	})

	return out, nil
}

// ApplyN blurs input n times, each pass consuming the previous output, and
// returns every intermediate result. The caller owns the returned buffers.
func (g *GaussianFilter) ApplyN(ctx context.Context, input *safe.Mat, p Params, n int) ([]*safe.Mat, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: iteration count %d must be at least 1", ErrInvalidParams, n)
	}

	results := make([]*safe.Mat, 0, n)
	current := input
	for i := 0; i < n; i++ {
		out, err := g.Apply(ctx, current, p)
		if err != nil {
			safe.CloseAll(results...)
			return nil, fmt.Errorf("iteration %d: %w", i+1, err)
		}
		results = append(results, out)
		current = out
	}

	g.logger.Info("GaussianFilter", "iterative blur complete", map[string]interface{}{
		"iterations": n,
		"kernel":     p.Kernel.String(),
	})

	return results, nil
}
