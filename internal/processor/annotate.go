package processor

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// MatchColor outlines a matched face
var MatchColor = color.NRGBA{R: 0, G: 255, B: 0, A: 255}

// MatchLineWidth is the outline thickness in pixels
const MatchLineWidth = 2

// Annotate returns a copy of img with box outlined in c. The outline is drawn
// inside the box, clamped to the image.
func Annotate(img image.Image, box vision.BoundingBox, c color.Color, width int) *image.NRGBA {
	out := imaging.Clone(img)
	r := box.Clamp(out.Bounds()).Rect()
	if r.Empty() {
		return out
	}
	if width < 1 {
		width = 1
	}

	for t := 0; t < width; t++ {
		top, bottom := r.Min.Y+t, r.Max.Y-1-t
		left, right := r.Min.X+t, r.Max.X-1-t
		if top > bottom || left > right {
			break
		}
		for x := left; x <= right; x++ {
			out.Set(x, top, c)
			out.Set(x, bottom, c)
		}
		for y := top; y <= bottom; y++ {
			out.Set(left, y, c)
			out.Set(right, y, c)
		}
	}

	return out
}
