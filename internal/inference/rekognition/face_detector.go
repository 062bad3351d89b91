/**
 * Amazon Rekognition face detection
 *
 * Detects faces with the DetectFaces API. Rekognition reports boxes as ratios
 * of the image size; they are converted to pixel boxes here.
 */

package rekognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// maxImageBytes is the DetectFaces limit for inline image bytes
const maxImageBytes = 5 << 20

// DetectFacesAPI is the subset of the Rekognition client used here
type DetectFacesAPI interface {
	DetectFaces(ctx context.Context, params *awsrekognition.DetectFacesInput, optFns ...func(*awsrekognition.Options)) (*awsrekognition.DetectFacesOutput, error)
}

// FaceDetector detects faces through Amazon Rekognition
type FaceDetector struct {
	client DetectFacesAPI
	logger *logging.Logger
}

// NewFaceDetector wraps an existing Rekognition client
func NewFaceDetector(client DetectFacesAPI) *FaceDetector {
	return &FaceDetector{
		client: client,
		logger: logging.NewLogger("Rekognition"),
	}
}

// NewFaceDetectorForRegion loads the default AWS credential chain for region
func NewFaceDetectorForRegion(ctx context.Context, region string) (*FaceDetector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewFaceDetector(awsrekognition.NewFromConfig(awsCfg)), nil
}

// Detect returns face boxes in the order Rekognition reports them
func (d *FaceDetector) Detect(ctx context.Context, img image.Image) ([]vision.BoundingBox, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if buf.Len() > maxImageBytes {
		return nil, fmt.Errorf("image is %d bytes, Rekognition accepts at most %d", buf.Len(), maxImageBytes)
	}

	out, err := d.client.DetectFaces(ctx, &awsrekognition.DetectFacesInput{
		Image: &types.Image{Bytes: buf.Bytes()},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectFaces failed: %w", err)
	}

	bounds := img.Bounds()
	boxes := make([]vision.BoundingBox, 0, len(out.FaceDetails))
	for _, face := range out.FaceDetails {
		if face.BoundingBox == nil {
			continue
		}
		box := toPixelBox(face.BoundingBox, bounds)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}

	d.logger.Debug("Faces detected", "count", len(boxes))
	return boxes, nil
}

// toPixelBox converts a ratio box to pixels, clamped to bounds. Rekognition
// may return slightly negative ratios for faces cut off at the edge.
func toPixelBox(b *types.BoundingBox, bounds image.Rectangle) vision.BoundingBox {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	left := float64(aws.ToFloat32(b.Left))
	top := float64(aws.ToFloat32(b.Top))
	width := float64(aws.ToFloat32(b.Width))
	height := float64(aws.ToFloat32(b.Height))

	box := vision.BoundingBox{
		X1: bounds.Min.X + int(math.Round(left*w)),
		Y1: bounds.Min.Y + int(math.Round(top*h)),
		X2: bounds.Min.X + int(math.Round((left+width)*w)),
		Y2: bounds.Min.Y + int(math.Round((top+height)*h)),
	}
	return box.Clamp(bounds)
}
