package processor

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"testing"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

type stubDetector struct {
	result vision.DetectionResult
	err    error
}

func (s *stubDetector) Infer(ctx context.Context, img image.Image) (vision.DetectionResult, error) {
	return s.result, s.err
}

// stubFaceDetector returns fixed boxes keyed by image width
type stubFaceDetector struct {
	boxesByWidth map[int][]vision.BoundingBox
	err          error
}

func (s *stubFaceDetector) Detect(ctx context.Context, img image.Image) ([]vision.BoundingBox, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.boxesByWidth[img.Bounds().Dx()], nil
}

// colorEmbedder maps a face's average color to a one-hot embedding, so faces
// of the same color have similarity 1 and faces of different colors 0.
type colorEmbedder struct {
	mu    sync.Mutex
	calls int
	sizes []image.Point
	err   error
}

func (e *colorEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.sizes = append(e.sizes, face.Bounds().Size())
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}

	r, g, b := averageColor(face)
	idx := (r/64)*16 + (g/64)*4 + b/64
	vec := make([]float32, vision.EmbeddingSize)
	vec[idx] = 1
	return vec, nil
}

func averageColor(img image.Image) (r, g, b int) {
	bounds := img.Bounds()
	var sr, sg, sb, n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sr += int(c.R)
			sg += int(c.G)
			sb += int(c.B)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return sr / n, sg / n, sb / n
}

type grayEnhancer struct {
	err error
}

func (e *grayEnhancer) Enhance(ctx context.Context, crop image.Image) (*image.Gray, error) {
	if e.err != nil {
		return nil, e.err
	}
	b := crop.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), crop, b.Min, draw.Src)
	return out, nil
}

type stubOCR struct {
	mu     sync.Mutex
	text   string
	err    error
	gotCfg vision.OCRConfig
}

func (s *stubOCR) Extract(ctx context.Context, img image.Image, cfg vision.OCRConfig) (string, error) {
	s.mu.Lock()
	s.gotCfg = cfg
	s.mu.Unlock()
	return s.text, s.err
}

func solidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

func paint(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

func mustPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	data, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return data
}
