package processor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// ErrInvalidCrop is returned when a box has no area inside the image
var ErrInvalidCrop = errors.New("crop has zero area")

// DecodeImage decodes an uploaded image, applying its EXIF orientation
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Crop cuts box out of img. The box is clamped to the image bounds first.
func Crop(img image.Image, box vision.BoundingBox) (*image.NRGBA, error) {
	clamped := box.Clamp(img.Bounds())
	if clamped.Empty() {
		return nil, fmt.Errorf("%w: box %+v in %v", ErrInvalidCrop, box, img.Bounds())
	}
	return imaging.Crop(img, clamped.Rect()), nil
}

// PrepareFace resizes a face crop to the embedder's fixed input size
func PrepareFace(face image.Image) *image.NRGBA {
	return imaging.Resize(face, vision.FaceInputSize, vision.FaceInputSize, imaging.Linear)
}

// EncodeJPEG encodes img at high quality
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img losslessly
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
