package processor

import (
	"context"
	"image"

	"github.com/adverant/nexus/vision-service/internal/queue"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// The pooled* adapters run each capability call on the inference pool so the
// pipeline logic stays a plain linear sequence of calls.

type pooledObjectDetector struct {
	pool  *queue.Pool
	inner vision.ObjectDetector
}

func (d pooledObjectDetector) Infer(ctx context.Context, img image.Image) (vision.DetectionResult, error) {
	return queue.Run(ctx, d.pool, func() (vision.DetectionResult, error) {
		return d.inner.Infer(ctx, img)
	})
}

type pooledFaceDetector struct {
	pool  *queue.Pool
	inner vision.FaceDetector
}

func (d pooledFaceDetector) Detect(ctx context.Context, img image.Image) ([]vision.BoundingBox, error) {
	return queue.Run(ctx, d.pool, func() ([]vision.BoundingBox, error) {
		return d.inner.Detect(ctx, img)
	})
}

type pooledFaceEmbedder struct {
	pool  *queue.Pool
	inner vision.FaceEmbedder
}

func (e pooledFaceEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	return queue.Run(ctx, e.pool, func() ([]float32, error) {
		return e.inner.Embed(ctx, face)
	})
}

type pooledOCREngine struct {
	pool  *queue.Pool
	inner vision.OCREngine
}

func (o pooledOCREngine) Extract(ctx context.Context, img image.Image, cfg vision.OCRConfig) (string, error) {
	return queue.Run(ctx, o.pool, func() (string, error) {
		return o.inner.Extract(ctx, img, cfg)
	})
}

type pooledEnhancer struct {
	pool  *queue.Pool
	inner vision.Enhancer
}

func (e pooledEnhancer) Enhance(ctx context.Context, crop image.Image) (*image.Gray, error) {
	return queue.Run(ctx, e.pool, func() (*image.Gray, error) {
		return e.inner.Enhance(ctx, crop)
	})
}
