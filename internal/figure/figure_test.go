package figure

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filled(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestComposeLaysOutGrid(t *testing.T) {
	red := color.NRGBA{R: 255, A: 255}
	panels := []Panel{
		{Title: "Original", Image: filled(200, 100, red)},
		{Title: "Blurred", Image: filled(200, 100, red)},
		{Title: "Again", Image: filled(200, 100, red)},
	}

	img, err := Compose(panels, Options{PanelWidth: 100, Columns: 2})
	require.NoError(t, err)

	b := img.Bounds()
	assert.Equal(t, 2*(100+gutter)+gutter, b.Dx())
	assert.Equal(t, 2*(50+captionHeight+gutter)+gutter, b.Dy())

	// centre of the first panel is red, the empty fourth cell stays white
	r, g, _, _ := img.At(gutter+50, gutter+captionHeight+25).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Zero(t, g)

	r, g, _, _ = img.At(gutter+100+gutter+50, gutter+(50+captionHeight+gutter)+captionHeight+25).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0xffff), g)
}

func TestComposeDefaultColumns(t *testing.T) {
	panels := make([]Panel, 6)
	for i := range panels {
		panels[i] = Panel{Title: "p", Image: filled(10, 10, color.Black)}
	}

	img, err := Compose(panels, Options{PanelWidth: 10})
	require.NoError(t, err)
	assert.Equal(t, 4*(10+gutter)+gutter, img.Bounds().Dx())
	assert.Equal(t, 2*(10+captionHeight+gutter)+gutter, img.Bounds().Dy())
}

func TestComposeDrawsCaptions(t *testing.T) {
	img, err := Compose([]Panel{{Title: "Gaussian Blur", Image: filled(50, 50, color.White)}}, Options{PanelWidth: 120})
	require.NoError(t, err)

	dark := 0
	for y := gutter; y < gutter+captionHeight; y++ {
		for x := gutter; x < gutter+120; x++ {
			if r, _, _, _ := img.At(x, y).RGBA(); r < 0x8000 {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestComposeErrors(t *testing.T) {
	_, err := Compose(nil, Options{PanelWidth: 10})
	assert.ErrorIs(t, err, ErrNoPanels)

	_, err = Compose([]Panel{{Title: "x", Image: filled(5, 5, color.White)}}, Options{})
	assert.Error(t, err)

	_, err = Compose([]Panel{{Title: "x"}}, Options{PanelWidth: 10})
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	img := filled(30, 20, color.Black)
	dir := t.TempDir()

	for _, name := range []string{"fig.png", "fig.jpg"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(img, path, Options{Quality: 80}))

		got, err := imaging.Open(path)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 30, 20), got.Bounds())
	}

	err := Save(img, filepath.Join(dir, "fig.xyz"), Options{})
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "fig.xyz"))
	assert.True(t, os.IsNotExist(statErr))
}
