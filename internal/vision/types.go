/**
 * Vision data model and inference capability contracts
 *
 * Everything in this package is request-scoped: boxes, detections and face
 * records are created, consumed and discarded within a single request.
 */

package vision

import (
	"context"
	"image"
)

// EmbeddingSize is the length of every face embedding
const EmbeddingSize = 512

// FaceInputSize is the fixed side length a face crop is resized to before embedding
const FaceInputSize = 160

// BoundingBox is a pixel rectangle with X1 < X2 and Y1 < Y2
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Empty reports whether the box has zero area
func (b BoundingBox) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Clamp intersects the box with bounds
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	r := b.Rect().Intersect(bounds)
	return BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// BoxFromRect converts an image.Rectangle to a BoundingBox
func BoxFromRect(r image.Rectangle) BoundingBox {
	r = r.Canon()
	return BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// Detection is a single detector output
type Detection struct {
	Box        BoundingBox `json:"box"`
	Confidence float32     `json:"confidence"`
}

// DetectionResult keeps the detector's native ranking (descending confidence)
type DetectionResult []Detection

// FaceRecord pairs a detected face with its embedding
type FaceRecord struct {
	Box       BoundingBox
	Embedding []float32
}

// MatchDecision is the terminal output of face matching. Box is nil when Found is false.
type MatchDecision struct {
	Found      bool
	Box        *BoundingBox
	Similarity float64
	Index      int
}

// OCRConfig carries the engine settings passed to an OCR backend
type OCRConfig struct {
	EngineMode  int
	PageSegMode int
	Language    string
}

// ObjectDetector localizes objects, pre-configured with its confidence floor
type ObjectDetector interface {
	Infer(ctx context.Context, img image.Image) (DetectionResult, error)
}

// FaceDetector returns face boxes in detection order
type FaceDetector interface {
	Detect(ctx context.Context, img image.Image) ([]BoundingBox, error)
}

// FaceEmbedder maps a FaceInputSize x FaceInputSize face crop to an EmbeddingSize vector.
// Implementations apply their own pixel normalization.
type FaceEmbedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// OCREngine extracts raw text from an image
type OCREngine interface {
	Extract(ctx context.Context, img image.Image, cfg OCRConfig) (string, error)
}

// Enhancer turns a color crop into a single-channel image of the same size
type Enhancer interface {
	Enhance(ctx context.Context, crop image.Image) (*image.Gray, error)
}
