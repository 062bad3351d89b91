package opencv

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	"github.com/adverant/nexus/vision-service/internal/inference/yolo"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// PlateDetectorConfig configures a YOLOv5 ONNX plate detector
type PlateDetectorConfig struct {
	ModelPath    string
	InputSize    int
	Confidence   float32
	NMSThreshold float32
}

// PlateDetector runs a YOLOv5 ONNX export through the OpenCV DNN module.
// A gocv.Net is not safe for concurrent use, so calls are serialized.
type PlateDetector struct {
	mu  sync.Mutex
	net gocv.Net
	cfg PlateDetectorConfig
}

// NewPlateDetector loads the model at cfg.ModelPath
func NewPlateDetector(cfg PlateDetectorConfig) (*PlateDetector, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("model path is required")
	}
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.Confidence <= 0 {
		cfg.Confidence = 0.25
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = 0.45
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load plate model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &PlateDetector{net: net, cfg: cfg}, nil
}

// Infer returns plate detections above the confidence floor, highest confidence first
func (d *PlateDetector) Infer(ctx context.Context, img image.Image) (vision.DetectionResult, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("cannot run detection on an empty image")
	}

	// Pad to a square so one scale factor maps network coordinates back
	side := bounds.Dx()
	if bounds.Dy() > side {
		side = bounds.Dy()
	}
	square := imaging.New(side, side, color.Black)
	square = imaging.Paste(square, img, image.Pt(0, 0))

	mat, err := gocv.ImageToMatRGB(square)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image to Mat: %w", err)
	}
	defer mat.Close()

	size := d.cfg.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	shape := out.Size()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected plate model output shape %v", shape)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read plate model output: %w", err)
	}

	dets, err := yolo.Decode(data, shape[1], shape[2], yolo.DecodeConfig{
		Confidence: d.cfg.Confidence,
		Scale:      float64(side) / float64(size),
		Bounds:     image.Rect(0, 0, bounds.Dx(), bounds.Dy()),
	})
	if err != nil {
		return nil, err
	}

	return yolo.NMS(dets, float64(d.cfg.NMSThreshold)), nil
}

// Close releases the network
func (d *PlateDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
