/**
 * YOLOv5 output decoding
 *
 * A YOLOv5 export produces rows of [cx, cy, w, h, objectness, class scores...]
 * in network input coordinates. Decode turns those rows into image-space
 * detections above the confidence floor and NMS keeps the best box per object.
 */

package yolo

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// DecodeConfig controls output decoding
type DecodeConfig struct {
	Confidence float32
	// Scale maps network input coordinates back to image coordinates
	Scale float64
	// Bounds clamps decoded boxes to the source image
	Bounds image.Rectangle
}

// Decode converts rows*dims raw network outputs into detections. The result is
// not yet suppressed and keeps row order.
func Decode(data []float32, rows, dims int, cfg DecodeConfig) ([]vision.Detection, error) {
	if dims < 6 {
		return nil, fmt.Errorf("unexpected YOLO output width %d", dims)
	}
	if len(data) < rows*dims {
		return nil, fmt.Errorf("YOLO output has %d values, expected %d", len(data), rows*dims)
	}

	var dets []vision.Detection
	for i := 0; i < rows; i++ {
		row := data[i*dims : (i+1)*dims]

		objectness := row[4]
		if objectness < cfg.Confidence {
			continue
		}

		var best float32
		for _, s := range row[5:] {
			if s > best {
				best = s
			}
		}
		score := objectness * best
		if score < cfg.Confidence {
			continue
		}

		cx, cy, w, h := float64(row[0]), float64(row[1]), float64(row[2]), float64(row[3])
		box := vision.BoundingBox{
			X1: int(math.Round((cx - w/2) * cfg.Scale)),
			Y1: int(math.Round((cy - h/2) * cfg.Scale)),
			X2: int(math.Round((cx + w/2) * cfg.Scale)),
			Y2: int(math.Round((cy + h/2) * cfg.Scale)),
		}
		if !cfg.Bounds.Empty() {
			box = box.Clamp(cfg.Bounds)
		}
		if box.Empty() {
			continue
		}

		dets = append(dets, vision.Detection{Box: box, Confidence: score})
	}

	return dets, nil
}

// IoU returns the intersection over union of two boxes
func IoU(a, b vision.BoundingBox) float64 {
	inter := a.Rect().Intersect(b.Rect())
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Rect().Dx()*a.Rect().Dy()+b.Rect().Dx()*b.Rect().Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// NMS sorts detections by descending confidence and greedily drops any box
// overlapping an already kept box by more than iouThreshold.
func NMS(dets []vision.Detection, iouThreshold float64) vision.DetectionResult {
	sorted := make([]vision.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make(vision.DetectionResult, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if IoU(d.Box, k.Box) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}
