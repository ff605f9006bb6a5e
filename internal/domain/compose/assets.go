package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	_ "golang.org/x/image/webp"

	"poap-og-server/internal/platform/logging"
)

// AssetPaths names the static layer files inside Dir.
type AssetPaths struct {
	Dir          string
	Background   string
	Foreground   string
	DefaultBadge string
	Font         string
}

// Assets are the static inputs shared by every render. Load once at startup.
type Assets struct {
	Background   image.Image
	Foreground   image.Image
	DefaultBadge image.Image
	Font         *opentype.Font
}

// LoadAssets reads each configured file. A missing file is replaced by a built-in
// fallback and logged; a file that exists but cannot be decoded is an error.
func LoadAssets(paths AssetPaths, logger *logging.Logger) (*Assets, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	assets := &Assets{}

	bg, err := loadImage(paths.Dir, paths.Background)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WarnTag("RENDER", "background %q not found, using generated gradient", paths.Background)
		assets.Background = FallbackBackground()
	case err != nil:
		return nil, err
	default:
		assets.Background = bg
	}

	fg, err := loadImage(paths.Dir, paths.Foreground)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WarnTag("RENDER", "foreground %q not found, drawing without frame", paths.Foreground)
	case err != nil:
		return nil, err
	default:
		assets.Foreground = fg
	}

	badge, err := loadImage(paths.Dir, paths.DefaultBadge)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WarnTag("RENDER", "default badge %q not found, using accent disc", paths.DefaultBadge)
		assets.DefaultBadge = FallbackBadge()
	case err != nil:
		return nil, err
	default:
		assets.DefaultBadge = badge
	}

	fontBytes, err := readAsset(paths.Dir, paths.Font)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.WarnTag("RENDER", "font %q not found, using Go Regular", paths.Font)
		fontBytes = goregular.TTF
	case err != nil:
		return nil, err
	}
	assets.Font, err = ParseFont(fontBytes)
	if err != nil {
		return nil, err
	}
	return assets, nil
}

// ParseFont parses TrueType or OpenType bytes.
func ParseFont(data []byte) (*opentype.Font, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// DefaultFont is Go Regular, always available.
func DefaultFont() *opentype.Font {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
	return f
}

// FallbackBackground is a vertical gradient the size of the canvas.
func FallbackBackground() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))
	top := fallbackBGColor
	bottom := color.RGBA{R: 0x4A, G: 0x2C, B: 0x6E, A: 0xFF}
	for y := 0; y < CanvasHeight; y++ {
		t := float64(y) / float64(CanvasHeight-1)
		c := color.RGBA{
			R: lerp(top.R, bottom.R, t),
			G: lerp(top.G, bottom.G, t),
			B: lerp(top.B, bottom.B, t),
			A: 0xFF,
		}
		draw.Draw(img, image.Rect(0, y, CanvasWidth, y+1), image.NewUniform(c), image.Point{}, draw.Src)
	}
	return img
}

// FallbackBadge is a flat accent disc used when no default badge file exists.
func FallbackBadge() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, BadgeSize, BadgeSize))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x2D, G: 0x1F, B: 0x45, A: 0xFF}), image.Point{}, draw.Src)
	disc := &circle{center: image.Pt(BadgeSize/2, BadgeSize/2), radius: BadgeSize / 3}
	draw.DrawMask(img, img.Bounds(), image.NewUniform(accent), image.Point{}, disc, image.Point{}, draw.Over)
	return img
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

func readAsset(dir, name string) ([]byte, error) {
	if name == "" {
		return nil, os.ErrNotExist
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, name)
	}
	return os.ReadFile(path)
}

func loadImage(dir, name string) (image.Image, error) {
	data, err := readAsset(dir, name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode asset %s: %w", name, err)
	}
	return img, nil
}
