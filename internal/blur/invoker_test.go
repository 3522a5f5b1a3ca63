package blur

import (
	"context"
	"image"
	"testing"

	"gaussian-blur-lab/internal/logger"
	"gaussian-blur-lab/internal/opencv/safe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// synthetic builds a rows x cols BGR buffer whose channels are x, y and a
// checker pattern.
func synthetic(t *testing.T, rows, cols int) *safe.Mat {
	t.Helper()

	data := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := (y*cols + x) * 3
			data[i] = byte(x)
			data[i+1] = byte(y)
			if (x/8+y/8)%2 == 0 {
				data[i+2] = 220
			} else {
				data[i+2] = 30
			}
		}
	}

	m, err := safe.FromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestApplyPreservesDimensions(t *testing.T) {
	src := synthetic(t, 37, 53)

	for _, k := range []KernelSize{{3, 3}, {5, 5}, {3, 9}, {11, 7}, {21, 21}} {
		for _, s := range []Sigma{0, 0.5, 3} {
			out, err := Apply(src, Params{Kernel: k, Sigma: s})
			require.NoError(t, err, "kernel %s sigma %g", k, float64(s))
			assert.Equal(t, src.Rows(), out.Rows())
			assert.Equal(t, src.Cols(), out.Cols())
			assert.Equal(t, src.Type(), out.Type())
			out.Close()
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	src := synthetic(t, 40, 40)
	before := src.Bytes()

	out, err := Apply(src, Params{Kernel: KernelSize{9, 9}, Sigma: 2})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, before, src.Bytes())
	assert.NotEqual(t, before, out.Bytes())
}

func TestZeroSigmaMatchesDerivedSigma(t *testing.T) {
	src := synthetic(t, 64, 64)

	for _, k := range []KernelSize{{9, 9}, {11, 11}, {15, 9}} {
		auto, err := Apply(src, Params{Kernel: k})
		require.NoError(t, err)

		sx, sy := Params{Kernel: k}.Effective()
		explicit := gocv.NewMat()
		require.NoError(t, gocv.GaussianBlur(src.GetMat(), &explicit,
			image.Point{X: k.X, Y: k.Y}, sx, sy, gocv.BorderDefault))

		got := auto.Bytes()
		want := explicit.ToBytes()
		require.Equal(t, len(want), len(got))
		for i := range want {
			diff := int(got[i]) - int(want[i])
			if diff < -1 || diff > 1 {
				t.Fatalf("kernel %s: byte %d differs by %d", k, i, diff)
			}
		}

		auto.Close()
		explicit.Close()
	}
}

func TestApplyUsesReflectedBorder(t *testing.T) {
	src := synthetic(t, 100, 100)

	out, err := Apply(src, Params{Kernel: KernelSize{5, 5}})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 100, out.Rows())
	assert.Equal(t, 100, out.Cols())
	assert.Equal(t, 3, out.Channels())

	// Channel 0 holds the column index. With a reflect-101 border the left
	// edge sees columns 2,1,0,1,2, weighted 1,4,6,4,1 / 16, giving 0.75.
	// Replicating the edge instead would give 0.375.
	edge, err := out.GetUCharAt3(50, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), edge)

	interior, err := out.GetUCharAt3(50, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, uint8(50), interior)
}

func TestApplyRejectsInvalidParams(t *testing.T) {
	src := synthetic(t, 10, 10)

	_, err := Apply(src, Params{Kernel: KernelSize{4, 5}})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Apply(src, Params{Kernel: KernelSize{5, 5}, Sigma: -1})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Apply(nil, Params{Kernel: KernelSize{5, 5}})
	assert.Error(t, err)
}

func TestGaussianFilterApplyN(t *testing.T) {
	src := synthetic(t, 32, 32)
	f := NewGaussianFilter(logger.Nop(), nil)

	results, err := f.ApplyN(context.Background(), src, Params{Kernel: KernelSize{5, 5}}, 4)
	require.NoError(t, err)
	require.Len(t, results, 4)
	defer safe.CloseAll(results...)

	again, err := Apply(results[0], Params{Kernel: KernelSize{5, 5}})
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, again.Bytes(), results[1].Bytes())

	assert.Equal(t, 4, f.Tracker().Count(f.Name()))

	_, err = f.ApplyN(context.Background(), src, Params{Kernel: KernelSize{5, 5}}, 0)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestGaussianFilterHonoursCancellation(t *testing.T) {
	src := synthetic(t, 8, 8)
	f := NewGaussianFilter(logger.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Apply(ctx, src, Params{Kernel: KernelSize{3, 3}})
	assert.ErrorIs(t, err, context.Canceled)
}
