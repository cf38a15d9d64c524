package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/farellandr/hadir/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blank(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func inkBounds(img image.Image) image.Rectangle {
	var box image.Rectangle
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r < 0x8000 && g < 0x8000 && bl < 0x8000 {
				box = box.Union(image.Rect(x, y, x+1, y+1))
			}
		}
	}
	return box
}

func TestComposeKeepsBackgroundSize(t *testing.T) {
	fonts, err := NewFontSet()
	require.NoError(t, err)
	defer fonts.Close()

	out, err := Compose(blank(640, 480), fonts, []Field{{
		Placement: models.FieldPlacement{Key: "name", X: 20, Y: 20, Width: 600, FontSize: 32},
		Value:     "Ada Lovelace",
	}})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 480), out.Bounds())
	assert.False(t, inkBounds(out).Empty(), "text should leave ink on the canvas")
}

func TestComposeAlignment(t *testing.T) {
	fonts, err := NewFontSet()
	require.NoError(t, err)
	defer fonts.Close()

	render := func(align string) image.Rectangle {
		out, err := Compose(blank(600, 100), fonts, []Field{{
			Placement: models.FieldPlacement{Key: "name", X: 0, Y: 10, Width: 600, FontSize: 30, TextAlign: align},
			Value:     "Hi",
		}})
		require.NoError(t, err)
		return inkBounds(out)
	}

	left, center, right := render("left"), render("center"), render("right")
	assert.Less(t, left.Min.X, center.Min.X)
	assert.Less(t, center.Min.X, right.Min.X)
	assert.InDelta(t, 300, (center.Min.X+center.Max.X)/2, 10)
	assert.InDelta(t, 600, right.Max.X, 10)
}

func TestComposeScaleAndSpacingWiden(t *testing.T) {
	fonts, err := NewFontSet()
	require.NoError(t, err)
	defer fonts.Close()

	width := func(p models.FieldPlacement) int {
		out, err := Compose(blank(800, 200), fonts, []Field{{Placement: p, Value: "ABCDEF"}})
		require.NoError(t, err)
		return inkBounds(out).Dx()
	}

	base := models.FieldPlacement{Key: "name", X: 10, Y: 10, FontSize: 30}
	spaced := base
	spaced.CharSpacing = 500
	scaled := base
	scaled.ScaleX = 2

	assert.Greater(t, width(spaced), width(base))
	assert.InDelta(t, 2*width(base), width(scaled), 6)
}

func TestWrapTextBreaksOnWidth(t *testing.T) {
	fonts, err := NewFontSet()
	require.NoError(t, err)
	defer fonts.Close()

	out, err := Compose(blank(300, 300), fonts, []Field{{
		Placement: models.FieldPlacement{Key: "event", X: 0, Y: 0, Width: 120, FontSize: 20, LineHeight: 1.5},
		Value:     "Workshop on Distributed Systems Engineering",
	}})
	require.NoError(t, err)
	box := inkBounds(out)
	assert.LessOrEqual(t, box.Max.X, 140)
	assert.Greater(t, box.Dy(), 40, "text should span several lines")
}

func TestCustomFontFallback(t *testing.T) {
	fonts, err := NewFontSet()
	require.NoError(t, err)
	defer fonts.Close()

	assert.Error(t, fonts.LoadCustom("Broken", []byte("not a font")))
	assert.False(t, fonts.HasCustom())

	face, err := fonts.Face("Broken", 20)
	require.NoError(t, err)
	assert.NotNil(t, face)
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}, parseColor("#111"))
	assert.Equal(t, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, parseColor("#123456"))
	r, g, b, _ := parseColor("white").RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, g, b})
	assert.Equal(t, color.Black, parseColor("nonsense"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, blank(10, 12)))
	img, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 12, img.Bounds().Dy())
}
