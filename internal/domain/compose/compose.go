// Package compose renders the 1200×630 preview card.
package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font/opentype"
)

const (
	CanvasWidth  = 1200
	CanvasHeight = 630
	MaxBadges    = 7
	BadgeSize    = 160
	BorderWidth  = 2
)

// Anchors are the top-left corners of the badge slots, left to right.
var Anchors = [MaxBadges]image.Point{
	{X: 310, Y: 435},
	{X: 380, Y: 415},
	{X: 450, Y: 435},
	{X: 520, Y: 415},
	{X: 590, Y: 395},
	{X: 660, Y: 415},
	{X: 730, Y: 435},
}

var (
	accent          = color.RGBA{R: 0xFF, G: 0x94, B: 0x00, A: 0xFF}
	fallbackBGColor = color.RGBA{R: 0x1B, G: 0x12, B: 0x2E, A: 0xFF}
)

// Input is everything one render needs. Badges are drawn in slice order; only the
// first MaxBadges are used. Foreground may be nil.
type Input struct {
	Background image.Image
	Foreground image.Image
	Badges     []image.Image
	Address    string
	Font       *opentype.Font
}

var encoder = &png.Encoder{
	CompressionLevel: png.BestSpeed,
	BufferPool:       &encoderPool{},
}

type encoderPool struct {
	pool sync.Pool
}

func (p *encoderPool) Get() *png.EncoderBuffer {
	b, _ := p.pool.Get().(*png.EncoderBuffer)
	return b
}

func (p *encoderPool) Put(b *png.EncoderBuffer) {
	p.pool.Put(b)
}

// Render composes the card and returns it PNG encoded.
func Render(in Input) ([]byte, error) {
	canvas, err := Compose(in)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(CanvasWidth * CanvasHeight)
	if err := encoder.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Compose draws the layers onto a fresh canvas.
func Compose(in Input) (*image.RGBA, error) {
	if in.Font == nil {
		return nil, fmt.Errorf("compose: font is required")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, CanvasHeight))

	if in.Background != nil {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), in.Background, in.Background.Bounds(), draw.Src, nil)
	} else {
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(fallbackBGColor), image.Point{}, draw.Src)
	}

	n := len(in.Badges)
	if n > MaxBadges {
		n = MaxBadges
	}
	for i := 0; i < n; i++ {
		if in.Badges[i] == nil {
			return nil, fmt.Errorf("compose: badge %d is nil", i)
		}
		drawBadge(canvas, Anchors[i], in.Badges[i])
	}

	if in.Foreground != nil {
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), in.Foreground, in.Foreground.Bounds(), draw.Over, nil)
	}

	if err := drawAddress(canvas, in.Font, FormatAddress(in.Address)); err != nil {
		return nil, err
	}
	return canvas, nil
}

func drawBadge(dst *image.RGBA, at image.Point, badge image.Image) {
	box := image.Rect(at.X, at.Y, at.X+BadgeSize, at.Y+BadgeSize)
	center := image.Pt(at.X+BadgeSize/2, at.Y+BadgeSize/2)
	outer := float64(BadgeSize) / 2

	drawShadow(dst, center, outer)

	border := &circle{center: center, radius: outer}
	draw.DrawMask(dst, box, image.NewUniform(accent), image.Point{}, border, box.Min, draw.Over)

	src := badge
	if b := badge.Bounds(); b.Dx() != BadgeSize || b.Dy() != BadgeSize {
		scaled := image.NewRGBA(image.Rect(0, 0, BadgeSize, BadgeSize))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), badge, b, draw.Src, nil)
		src = scaled
	}
	inner := &circle{center: center, radius: outer - BorderWidth}
	draw.DrawMask(dst, box, src, src.Bounds().Min, inner, box.Min, draw.Over)
}
