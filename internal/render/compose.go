package render

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/farellandr/hadir/internal/models"
	"github.com/fogleman/gg"
	"golang.org/x/image/colornames"
	_ "golang.org/x/image/webp"
)

const (
	defaultFontSize   = 24
	defaultLineHeight = 1.1
	defaultColor      = "#000000"
)

// Field is one placement with its resolved text.
type Field struct {
	Placement models.FieldPlacement
	Value     string
}

func DecodeImage(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// Compose draws fields on a copy of background. The canvas takes the
// background's pixel dimensions.
func Compose(background image.Image, fonts *FontSet, fields []Field) (image.Image, error) {
	dc := gg.NewContextForImage(background)
	for _, field := range fields {
		if field.Value == "" {
			continue
		}
		if err := drawField(dc, fonts, field); err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Placement.Key, err)
		}
	}
	return dc.Image(), nil
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func drawField(dc *gg.Context, fonts *FontSet, field Field) error {
	p := field.Placement
	size := orDefault(p.FontSize, defaultFontSize)

	face, err := fonts.Face(p.FontFamily, size)
	if err != nil {
		return err
	}

	dc.Push()
	defer dc.Pop()

	dc.ScaleAbout(orDefault(p.ScaleX, 1), orDefault(p.ScaleY, 1), p.X, p.Y)
	dc.SetFontFace(face)
	dc.SetColor(parseColor(p.Color))

	spacing := p.CharSpacing * size / 1000
	lineStep := size * orDefault(p.LineHeight, defaultLineHeight)
	ascent := float64(face.Metrics().Ascent) / 64

	for i, line := range wrapText(dc, field.Value, p.Width, spacing) {
		w := measure(dc, line, spacing)
		x := p.X
		switch strings.ToLower(p.TextAlign) {
		case "center":
			if p.Width > 0 {
				x = p.X + (p.Width-w)/2
			} else {
				x = p.X - w/2
			}
		case "right":
			if p.Width > 0 {
				x = p.X + p.Width - w
			} else {
				x = p.X - w
			}
		}
		drawLine(dc, line, x, p.Y+ascent+float64(i)*lineStep, spacing)
	}
	return nil
}

func parseColor(value string) color.Color {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		value = defaultColor
	}
	if named, ok := colornames.Map[value]; ok {
		return named
	}
	if strings.HasPrefix(value, "#") {
		return hexColor(value)
	}
	return color.Black
}

func hexColor(hex string) color.Color {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.Black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.Black
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}

func measure(dc *gg.Context, s string, spacing float64) float64 {
	w, _ := dc.MeasureString(s)
	if n := len([]rune(s)); spacing != 0 && n > 1 {
		w += spacing * float64(n-1)
	}
	return w
}

func drawLine(dc *gg.Context, line string, x, y, spacing float64) {
	if spacing == 0 {
		dc.DrawString(line, x, y)
		return
	}
	for _, r := range line {
		s := string(r)
		dc.DrawString(s, x, y)
		w, _ := dc.MeasureString(s)
		x += w + spacing
	}
}

// wrapText breaks explicit newlines and then greedily fills width.
// Words wider than the box keep their own line.
func wrapText(dc *gg.Context, text string, width, spacing float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if width <= 0 {
			lines = append(lines, paragraph)
			continue
		}
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			candidate := current + " " + word
			if measure(dc, candidate, spacing) <= width {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}
