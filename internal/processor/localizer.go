package processor

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// ErrNoDetection is returned when the detector finds nothing above its confidence floor
var ErrNoDetection = errors.New("no detection above confidence floor")

// PlateLocalizer selects the plate box from detector output.
// The detector's first result is taken as-is: no re-ranking, no extra NMS.
type PlateLocalizer struct {
	detector vision.ObjectDetector
}

// NewPlateLocalizer wraps a detector that already applies its confidence floor
func NewPlateLocalizer(detector vision.ObjectDetector) *PlateLocalizer {
	return &PlateLocalizer{detector: detector}
}

// Localize returns the detector's first detection or ErrNoDetection
func (l *PlateLocalizer) Localize(ctx context.Context, img image.Image) (vision.Detection, error) {
	result, err := l.detector.Infer(ctx, img)
	if err != nil {
		return vision.Detection{}, fmt.Errorf("plate detection failed: %w", err)
	}

	return SelectDetection(result)
}

// SelectDetection applies the selection policy to a DetectionResult
func SelectDetection(result vision.DetectionResult) (vision.Detection, error) {
	if len(result) == 0 {
		return vision.Detection{}, ErrNoDetection
	}
	return result[0], nil
}
