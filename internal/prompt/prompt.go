// Package prompt asks for values on a line-based console and re-asks until
// the answer parses.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"gaussian-blur-lab/internal/blur"
	"gaussian-blur-lab/internal/roi"
)

var ErrTooManyAttempts = errors.New("too many invalid answers")

type Prompter struct {
	out         io.Writer
	scanner     *bufio.Scanner
	maxAttempts int
}

// New reads answers from in and writes questions to out. maxAttempts 0
// keeps asking until a valid answer or end of input.
func New(in io.Reader, out io.Writer, maxAttempts int) *Prompter {
	return &Prompter{
		out:         out,
		scanner:     bufio.NewScanner(in),
		maxAttempts: maxAttempts,
	}
}

// Ask prints question, reads one line and hands it to parse. A parse error is
// reported on one line and the question is asked again.
func Ask[T any](p *Prompter, question string, parse func(string) (T, error)) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		fmt.Fprint(p.out, question)

		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return zero, fmt.Errorf("read answer: %w", err)
			}
			return zero, fmt.Errorf("read answer: %w", io.EOF)
		}

		v, err := parse(strings.TrimSpace(p.scanner.Text()))
		if err == nil {
			return v, nil
		}

		fmt.Fprintf(p.out, "Invalid input: %v\n", err)

		if p.maxAttempts > 0 && attempt >= p.maxAttempts {
			return zero, fmt.Errorf("%w: gave up after %d attempts: %v", ErrTooManyAttempts, attempt, err)
		}
	}
}

func (p *Prompter) Kernel() (blur.KernelSize, error) {
	return Ask(p, "Enter kernel size as two odd integers greater than 1 (e.g. 5 5): ", blur.ParseKernel)
}

func (p *Prompter) Sigma() (blur.Sigma, error) {
	return Ask(p, "Enter sigma (0 derives it from the kernel size): ", blur.ParseSigma)
}

func (p *Prompter) Params() (blur.Params, error) {
	k, err := p.Kernel()
	if err != nil {
		return blur.Params{}, err
	}
	s, err := p.Sigma()
	if err != nil {
		return blur.Params{}, err
	}
	return blur.Params{Kernel: k, Sigma: s}, nil
}

// Rect asks for a region that fits a width x height image.
func (p *Prompter) Rect(width, height int) (roi.Rect, error) {
	question := fmt.Sprintf("Enter region as x y w h (image is %dx%d): ", width, height)
	return Ask(p, question, func(line string) (roi.Rect, error) {
		r, err := roi.ParseRect(line)
		if err != nil {
			return roi.Rect{}, err
		}
		if err := r.Validate(width, height); err != nil {
			return roi.Rect{}, err
		}
		return r, nil
	})
}
