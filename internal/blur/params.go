package blur

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidParams is wrapped by every kernel or sigma validation failure.
var ErrInvalidParams = errors.New("invalid blur parameters")

// KernelSize is the Gaussian window in pixels, X horizontal and Y vertical.
type KernelSize struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (k KernelSize) String() string {
	return fmt.Sprintf("%dx%d", k.X, k.Y)
}

// Sigma is the Gaussian standard deviation. Zero derives it from the kernel size.
type Sigma float64

// Params is a kernel and sigma pair ready for the blur primitive.
type Params struct {
	Kernel KernelSize `yaml:"kernel"`
	Sigma  Sigma      `yaml:"sigma"`
}

func (p Params) String() string {
	return fmt.Sprintf("k=%s, sigma=%g", p.Kernel, float64(p.Sigma))
}

// ValidateKernel accepts only odd sizes strictly greater than one on both axes.
func ValidateKernel(k KernelSize) error {
	for _, dim := range []struct {
		name string
		v    int
	}{{"width", k.X}, {"height", k.Y}} {
		if dim.v <= 1 {
			return fmt.Errorf("%w: kernel %s %d must be greater than 1", ErrInvalidParams, dim.name, dim.v)
		}
		if dim.v%2 == 0 {
			return fmt.Errorf("%w: kernel %s %d must be odd", ErrInvalidParams, dim.name, dim.v)
		}
	}
	return nil
}

func ValidateSigma(s float64) error {
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return fmt.Errorf("%w: sigma must be a finite number", ErrInvalidParams)
	}
	if s < 0 {
		return fmt.Errorf("%w: sigma %g must not be negative", ErrInvalidParams, s)
	}
	return nil
}

func (p Params) Validate() error {
	if err := ValidateKernel(p.Kernel); err != nil {
		return err
	}
	return ValidateSigma(float64(p.Sigma))
}

// AutoSigma is the sigma OpenCV derives for one axis when none is given.
func AutoSigma(ksize int) float64 {
	return 0.3*((float64(ksize)-1)*0.5-1) + 0.8
}

// Effective returns the per-axis sigma the blur actually uses.
func (p Params) Effective() (sigmaX, sigmaY float64) {
	if p.Sigma == 0 {
		return AutoSigma(p.Kernel.X), AutoSigma(p.Kernel.Y)
	}
	return float64(p.Sigma), float64(p.Sigma)
}

// ParseKernel reads exactly two integers separated by whitespace or commas.
func ParseKernel(line string) (KernelSize, error) {
	fields := splitFields(line)
	if len(fields) != 2 {
		return KernelSize{}, fmt.Errorf("%w: expected 2 integers for kernel size, got %d values", ErrInvalidParams, len(fields))
	}

	var vals [2]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return KernelSize{}, fmt.Errorf("%w: kernel size %q is not an integer", ErrInvalidParams, f)
		}
		vals[i] = v
	}

	k := KernelSize{X: vals[0], Y: vals[1]}
	if err := ValidateKernel(k); err != nil {
		return KernelSize{}, err
	}
	return k, nil
}

// ParseSigma reads exactly one non-negative float.
func ParseSigma(line string) (Sigma, error) {
	fields := splitFields(line)
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: expected 1 number for sigma, got %d values", ErrInvalidParams, len(fields))
	}

	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: sigma %q is not a number", ErrInvalidParams, fields[0])
	}
	if err := ValidateSigma(v); err != nil {
		return 0, err
	}
	return Sigma(v), nil
}

// ParseSigmas reads one or more non-negative floats, e.g. "0,1,2,5".
func ParseSigmas(line string) ([]Sigma, error) {
	fields := splitFields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: expected at least one sigma", ErrInvalidParams)
	}

	sigmas := make([]Sigma, 0, len(fields))
	for _, f := range fields {
		s, err := ParseSigma(f)
		if err != nil {
			return nil, err
		}
		sigmas = append(sigmas, s)
	}
	return sigmas, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\r' || r == '\n'
	})
}

// KernelFlag adapts KernelSize to flag.Value, e.g. -kernel 5,5.
type KernelFlag struct {
	Size *KernelSize
}

func (f KernelFlag) String() string {
	if f.Size == nil {
		return ""
	}
	return fmt.Sprintf("%d,%d", f.Size.X, f.Size.Y)
}

func (f KernelFlag) Set(s string) error {
	k, err := ParseKernel(s)
	if err != nil {
		return err
	}
	*f.Size = k
	return nil
}

// SigmasFlag adapts a sigma list to flag.Value, e.g. -sigmas 0,1,2,5.
type SigmasFlag struct {
	Sigmas *[]Sigma
}

func (f SigmasFlag) String() string {
	if f.Sigmas == nil {
		return ""
	}
	parts := make([]string, len(*f.Sigmas))
	for i, s := range *f.Sigmas {
		parts[i] = strconv.FormatFloat(float64(s), 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (f SigmasFlag) Set(s string) error {
	sigmas, err := ParseSigmas(s)
	if err != nil {
		return err
	}
	*f.Sigmas = sigmas
	return nil
}
