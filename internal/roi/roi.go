// Package roi blurs a rectangular region of an image and leaves the rest
// untouched.
package roi

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/opencv/safe"
)

var (
	ErrEmptyRect   = errors.New("region has non-positive size")
	ErrOutOfBounds = errors.New("region exceeds image bounds")
	ErrMalformed   = errors.New("malformed region")
)

// Rect is a region in pixel coordinates: top-left corner plus width and height.
type Rect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

func Full(width, height int) Rect {
	return Rect{W: width, H: height}
}

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H)
}

func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Validate checks r against a width x height image.
func (r Rect) Validate(width, height int) error {
	if r.W <= 0 || r.H <= 0 {
		return fmt.Errorf("%w: %s", ErrEmptyRect, r)
	}
	if r.X < 0 || r.Y < 0 {
		return fmt.Errorf("%w: %s has a negative origin", ErrOutOfBounds, r)
	}
	if r.X > width || r.W > width-r.X || r.Y > height || r.H > height-r.Y {
		return fmt.Errorf("%w: %s does not fit in %dx%d", ErrOutOfBounds, r, width, height)
	}
	return nil
}

// ParseRect reads exactly four integers: x y w h.
func ParseRect(line string) (Rect, error) {
	fields := strings.FieldsFunc(line, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t' || c == '\r' || c == '\n'
	})
	if len(fields) != 4 {
		return Rect{}, fmt.Errorf("%w: expected 4 integers (x y w h), got %d values", ErrMalformed, len(fields))
	}

	var v [4]int
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return Rect{}, fmt.Errorf("%w: %q is not an integer", ErrMalformed, f)
		}
		v[i] = n
	}
	return Rect{X: v[0], Y: v[1], W: v[2], H: v[3]}, nil
}

// Blur returns a copy of src whose region r is replaced by its blurred
// pixels. The region is cut out before blurring, so border handling sees only
// the region. src is never modified, including on error.
func Blur(src *safe.Mat, r Rect, p blur.Params) (*safe.Mat, error) {
	if err := safe.ValidateMatForOperation(src, "RegionBlur"); err != nil {
		return nil, err
	}
	if err := r.Validate(src.Cols(), src.Rows()); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	sub, err := src.CloneRegion(r.Image())
	if err != nil {
		return nil, fmt.Errorf("extract region %s: %w", r, err)
	}
	defer sub.Close()

	blurred, err := blur.Apply(sub, p)
	if err != nil {
		return nil, fmt.Errorf("blur region %s: %w", r, err)
	}
	defer blurred.Close()

	out, err := src.Clone()
	if err != nil {
		return nil, err
	}

	if err := out.Paste(blurred, image.Pt(r.X, r.Y)); err != nil {
		out.Close()
		return nil, fmt.Errorf("reinsert region %s: %w", r, err)
	}

	return out, nil
}
