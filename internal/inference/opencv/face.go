package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// FaceDetector finds frontal faces with a Haar cascade
type FaceDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
}

// NewFaceDetector loads the cascade at path, falling back to the usual OpenCV install locations
func NewFaceDetector(path string) (*FaceDetector, error) {
	classifier := gocv.NewCascadeClassifier()

	candidates := []string{
		path,
		"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
		"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
		"/opt/homebrew/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	}
	for _, p := range candidates {
		if p != "" && classifier.Load(p) {
			return &FaceDetector{classifier: classifier}, nil
		}
	}

	classifier.Close()
	return nil, fmt.Errorf("failed to load face cascade classifier from %s or alternative paths", path)
}

// Detect returns face boxes in the order the cascade reports them
func (d *FaceDetector) Detect(ctx context.Context, img image.Image) ([]vision.BoundingBox, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to Mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	gocv.EqualizeHist(gray, &gray)

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(gray)
	d.mu.Unlock()

	boxes := make([]vision.BoundingBox, 0, len(rects))
	for _, r := range rects {
		box := vision.BoxFromRect(r)
		if !box.Empty() {
			boxes = append(boxes, box)
		}
	}
	return boxes, nil
}

// Close releases the classifier
func (d *FaceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifier.Close()
}

// FaceEmbedder computes FaceNet embeddings from an ONNX export
type FaceEmbedder struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewFaceEmbedder loads the FaceNet model at modelPath
func NewFaceEmbedder(modelPath string) (*FaceEmbedder, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load face embedding model from %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &FaceEmbedder{net: net}, nil
}

// Embed normalizes pixels to (x-127.5)/128 and returns the network output
func (e *FaceEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	mat, err := gocv.ImageToMatRGB(face)
	if err != nil {
		return nil, fmt.Errorf("failed to convert face to Mat: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/128.0,
		image.Pt(vision.FaceInputSize, vision.FaceInputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	e.mu.Lock()
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	e.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding output: %w", err)
	}
	if len(data) != vision.EmbeddingSize {
		return nil, fmt.Errorf("embedding model returned %d values, expected %d", len(data), vision.EmbeddingSize)
	}

	embedding := make([]float32, len(data))
	copy(embedding, data)
	return embedding, nil
}

// Close releases the network
func (e *FaceEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
