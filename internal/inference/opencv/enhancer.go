/**
 * OpenCV-backed vision capabilities
 *
 * Plate enhancement, YOLOv5 plate detection, Haar cascade face detection and
 * FaceNet embedding, all running in-process through gocv.
 */

package opencv

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"gocv.io/x/gocv"
)

// Enhancement parameters for plate crops
const (
	denoiseStrength     = 30
	denoiseTemplateSize = 7
	denoiseSearchSize   = 21
	blurSigma           = 3
	sharpenWeight       = 1.5
	blurWeight          = -0.5
)

// Enhancer denoises and sharpens plate crops for OCR
type Enhancer struct{}

// NewEnhancer creates an enhancer
func NewEnhancer() *Enhancer {
	return &Enhancer{}
}

// Enhance converts crop to grayscale, applies non-local-means denoising and
// unsharp-masks the result: 1.5*denoised - 0.5*blur(denoised).
func (e *Enhancer) Enhance(ctx context.Context, crop image.Image) (*image.Gray, error) {
	if crop.Bounds().Empty() {
		return nil, fmt.Errorf("cannot enhance empty crop")
	}

	src, err := gocv.ImageToMatRGB(crop)
	if err != nil {
		return nil, fmt.Errorf("failed to convert crop to Mat: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.FastNlMeansDenoisingWithParams(gray, &denoised, denoiseStrength, denoiseTemplateSize, denoiseSearchSize)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(denoised, &blurred, image.Pt(0, 0), blurSigma, blurSigma, gocv.BorderDefault)

	sharpened := gocv.NewMat()
	defer sharpened.Close()
	gocv.AddWeighted(denoised, sharpenWeight, blurred, blurWeight, 0, &sharpened)

	if sharpened.Empty() {
		return nil, fmt.Errorf("enhancement produced an empty image")
	}

	return matToGray(sharpened)
}

func matToGray(m gocv.Mat) (*image.Gray, error) {
	img, err := m.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert Mat to image: %w", err)
	}
	if g, ok := img.(*image.Gray); ok {
		return g, nil
	}

	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g, nil
}
