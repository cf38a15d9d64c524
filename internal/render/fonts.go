package render

import (
	"fmt"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

type faceKey struct {
	custom bool
	size   float64
}

// FontSet holds the fonts for a single render. It is not shared between
// renders, so templates with different custom fonts never see each other's
// registrations. Close releases the cached faces.
type FontSet struct {
	fallback   *opentype.Font
	custom     *opentype.Font
	customName string
	faces      map[faceKey]font.Face
}

func NewFontSet() (*FontSet, error) {
	fallback, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse default font: %w", err)
	}
	return &FontSet{
		fallback: fallback,
		faces:    make(map[faceKey]font.Face),
	}, nil
}

// LoadCustom parses a TrueType/OpenType font and makes it available under name.
func (fs *FontSet) LoadCustom(name string, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", name, err)
	}
	fs.custom = f
	fs.customName = name
	return nil
}

func (fs *FontSet) HasCustom() bool {
	return fs.custom != nil
}

// Face returns a face for family at size pixels. An empty family or the
// custom font's name selects the custom font when one is loaded; any other
// family falls back to the default font.
func (fs *FontSet) Face(family string, size float64) (font.Face, error) {
	useCustom := fs.custom != nil && (family == "" || strings.EqualFold(family, fs.customName))
	key := faceKey{custom: useCustom, size: size}
	if face, ok := fs.faces[key]; ok {
		return face, nil
	}

	f := fs.fallback
	if useCustom {
		f = fs.custom
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, err
	}
	fs.faces[key] = face
	return face, nil
}

func (fs *FontSet) Close() {
	for key, face := range fs.faces {
		face.Close()
		delete(fs.faces, key)
	}
}
