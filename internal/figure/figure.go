// Package figure lays captioned images out in a grid and writes the result
// to disk.
package figure

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	captionHeight = 28
	gutter        = 12
	maxColumns    = 4
)

var ErrNoPanels = errors.New("figure has no panels")

type Panel struct {
	Title string
	Image image.Image
}

type Options struct {
	PanelWidth int // each panel is scaled to this width
	Columns    int // 0 picks min(len(panels), 4)
	Quality    int // JPEG quality
}

func (o Options) columns(n int) int {
	c := o.Columns
	if c <= 0 {
		c = min(n, maxColumns)
	}
	return max(1, min(c, n))
}

// Compose draws panels left to right, top to bottom on a white background,
// each under its title.
func Compose(panels []Panel, opts Options) (image.Image, error) {
	if len(panels) == 0 {
		return nil, ErrNoPanels
	}
	if opts.PanelWidth <= 0 {
		return nil, fmt.Errorf("panel width must be positive, got %d", opts.PanelWidth)
	}

	scaled := make([]image.Image, len(panels))
	cellHeight := 0
	for i, p := range panels {
		if p.Image == nil || p.Image.Bounds().Empty() {
			return nil, fmt.Errorf("panel %d (%q) has no image", i, p.Title)
		}
		b := p.Image.Bounds()
		h := max(1, b.Dy()*opts.PanelWidth/b.Dx())
		scaled[i] = imaging.Resize(p.Image, opts.PanelWidth, h, imaging.Lanczos)
		cellHeight = max(cellHeight, h)
	}

	cols := opts.columns(len(panels))
	rows := (len(panels) + cols - 1) / cols
	cellWidth := opts.PanelWidth + gutter
	rowHeight := cellHeight + captionHeight + gutter

	canvas := imaging.New(cols*cellWidth+gutter, rows*rowHeight+gutter, color.White)
	for i, img := range scaled {
		x := gutter + (i%cols)*cellWidth
		y := gutter + (i/cols)*rowHeight + captionHeight
		canvas = imaging.Paste(canvas, img, image.Pt(x, y))
	}

	dc := gg.NewContextForImage(canvas)
	dc.SetColor(color.Black)
	for i, p := range panels {
		cx := float64(gutter + (i%cols)*cellWidth + opts.PanelWidth/2)
		cy := float64(gutter + (i/cols)*rowHeight + captionHeight/2)
		dc.DrawStringAnchored(p.Title, cx, cy, 0.5, 0.5)
	}

	return dc.Image(), nil
}

// Save encodes img by the extension of path; JPEG output uses opts.Quality.
func Save(img image.Image, path string, opts Options) error {
	if _, err := imaging.FormatFromFilename(path); err != nil {
		return fmt.Errorf("unsupported figure format %q: %w", strings.ToLower(filepath.Ext(path)), err)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = 95
	}

	if err := imaging.Save(img, path, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("failed to save figure to %s: %w", path, err)
	}
	return nil
}
