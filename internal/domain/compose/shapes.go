package compose

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

const (
	shadowOffsetY = 8
	shadowBlur    = 12
	shadowAlpha   = 0.8
)

// circle is an anti-aliased disc usable as a draw mask.
type circle struct {
	center image.Point
	radius float64
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	r := int(math.Ceil(c.radius))
	return image.Rect(c.center.X-r, c.center.Y-r, c.center.X+r, c.center.Y+r)
}

func (c *circle) At(x, y int) color.Color {
	dx := float64(x) + 0.5 - float64(c.center.X)
	dy := float64(y) + 0.5 - float64(c.center.Y)
	coverage := c.radius - math.Sqrt(dx*dx+dy*dy) + 0.5
	return color.Alpha{A: uint8(255 * clamp01(coverage))}
}

// drawShadow paints a soft black disc below the badge at center, offset down.
func drawShadow(dst *image.RGBA, center image.Point, radius float64) {
	c := image.Pt(center.X, center.Y+shadowOffsetY)
	reach := int(math.Ceil(radius)) + shadowBlur
	area := image.Rect(c.X-reach, c.Y-reach, c.X+reach, c.Y+reach).Intersect(dst.Bounds())
	if area.Empty() {
		return
	}

	mask := image.NewAlpha(area)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			dx := float64(x) + 0.5 - float64(c.X)
			dy := float64(y) + 0.5 - float64(c.Y)
			// linear falloff across the blur band centred on the edge
			t := (radius + shadowBlur/2 - math.Sqrt(dx*dx+dy*dy)) / shadowBlur
			mask.SetAlpha(x, y, color.Alpha{A: uint8(255 * shadowAlpha * clamp01(t))})
		}
	}
	draw.DrawMask(dst, area, image.Black, image.Point{}, mask, area.Min, draw.Over)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
