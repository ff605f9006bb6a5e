package compose

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	FontSize      = 42
	letterSpacing = -0.1 * FontSize
	maxAddressLen = 32
	keepChars     = 16
)

// TextBox is where the address is drawn, right aligned and vertically centred.
var TextBox = image.Rect(475, 545, CanvasWidth-180, 545+93)

// FormatAddress abbreviates addresses longer than 32 characters to first16...last16.
func FormatAddress(address string) string {
	runes := []rune(address)
	if len(runes) <= maxAddressLen {
		return address
	}
	return string(runes[:keepChars]) + "..." + string(runes[len(runes)-keepChars:])
}

func drawAddress(dst *image.RGBA, f *opentype.Font, text string) error {
	if text == "" {
		return nil
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("compose: font face: %w", err)
	}
	defer face.Close()

	spacing := fixed.Int26_6(math.Round(letterSpacing * 64))
	width := textWidth(face, text, spacing)

	metrics := face.Metrics()
	height := metrics.Ascent + metrics.Descent
	baseline := fixed.I(TextBox.Min.Y) + (fixed.I(TextBox.Dy())-height)/2 + metrics.Ascent

	clip, ok := dst.SubImage(TextBox).(*image.RGBA)
	if !ok {
		return fmt.Errorf("compose: unexpected canvas type")
	}
	d := &font.Drawer{
		Dst:  clip,
		Src:  image.White,
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(TextBox.Max.X) - width, Y: baseline},
	}
	for i, r := range text {
		if i > 0 {
			d.Dot.X += spacing
		}
		d.DrawString(string(r))
	}
	return nil
}

func textWidth(face font.Face, text string, spacing fixed.Int26_6) fixed.Int26_6 {
	var w fixed.Int26_6
	n := 0
	for _, r := range text {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			adv, _ = face.GlyphAdvance('?')
		}
		w += adv
		n++
	}
	if n > 1 {
		w += spacing * fixed.Int26_6(n-1)
	}
	return w
}
