package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// DefaultMatchThreshold is the similarity a candidate must strictly exceed
const DefaultMatchThreshold = 0.6

var (
	// ErrNoReferenceFace is returned when the reference image contains no face
	ErrNoReferenceFace = errors.New("no face in reference image")
	// ErrDimensionMismatch is returned when comparing embeddings of different lengths
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// CosineSimilarity returns dot(a,b)/(|a|*|b|). A zero-norm vector yields 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Max(-1, math.Min(1, sim)), nil
}

// EmbeddingMatcher finds a reference face among crowd faces
type EmbeddingMatcher struct {
	detector  vision.FaceDetector
	embedder  vision.FaceEmbedder
	threshold float64
	logger    *logging.Logger
}

// NewEmbeddingMatcher creates a matcher. A non-positive threshold selects DefaultMatchThreshold.
func NewEmbeddingMatcher(detector vision.FaceDetector, embedder vision.FaceEmbedder, threshold float64) *EmbeddingMatcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &EmbeddingMatcher{
		detector:  detector,
		embedder:  embedder,
		threshold: threshold,
		logger:    logging.NewLogger("EmbeddingMatcher"),
	}
}

// Threshold returns the configured match threshold
func (m *EmbeddingMatcher) Threshold() float64 {
	return m.threshold
}

// Embed detects every face in img and embeds each one, in detection order
func (m *EmbeddingMatcher) Embed(ctx context.Context, img image.Image) ([]vision.FaceRecord, error) {
	boxes, err := m.detector.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	records := make([]vision.FaceRecord, 0, len(boxes))
	for i, box := range boxes {
		record, err := m.embedBox(ctx, img, box)
		if errors.Is(err, ErrInvalidCrop) {
			m.logger.Warn("Skipping degenerate face box", "index", i, "box", box)
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

// EmbedReference embeds the first detected face only
func (m *EmbeddingMatcher) EmbedReference(ctx context.Context, img image.Image) (vision.FaceRecord, error) {
	boxes, err := m.detector.Detect(ctx, img)
	if err != nil {
		return vision.FaceRecord{}, fmt.Errorf("face detection failed: %w", err)
	}
	if len(boxes) == 0 {
		return vision.FaceRecord{}, ErrNoReferenceFace
	}

	record, err := m.embedBox(ctx, img, boxes[0])
	if errors.Is(err, ErrInvalidCrop) {
		return vision.FaceRecord{}, fmt.Errorf("%w: %v", ErrNoReferenceFace, err)
	}
	return record, err
}

func (m *EmbeddingMatcher) embedBox(ctx context.Context, img image.Image, box vision.BoundingBox) (vision.FaceRecord, error) {
	crop, err := Crop(img, box)
	if err != nil {
		return vision.FaceRecord{}, err
	}

	embedding, err := m.embedder.Embed(ctx, PrepareFace(crop))
	if err != nil {
		return vision.FaceRecord{}, fmt.Errorf("face embedding failed: %w", err)
	}
	if len(embedding) != vision.EmbeddingSize {
		return vision.FaceRecord{}, fmt.Errorf("face embedding has %d dimensions, expected %d", len(embedding), vision.EmbeddingSize)
	}

	return vision.FaceRecord{Box: box.Clamp(img.Bounds()), Embedding: embedding}, nil
}

// Match returns the first candidate whose similarity to reference strictly
// exceeds the threshold. Later candidates are not examined, even if closer.
func (m *EmbeddingMatcher) Match(reference vision.FaceRecord, candidates []vision.FaceRecord) (vision.MatchDecision, error) {
	for i, candidate := range candidates {
		sim, err := CosineSimilarity(reference.Embedding, candidate.Embedding)
		if err != nil {
			return vision.MatchDecision{}, fmt.Errorf("candidate %d: %w", i, err)
		}

		m.logger.Debug("Compared candidate", "index", i, "similarity", sim)
		if sim > m.threshold {
			box := candidate.Box
			return vision.MatchDecision{Found: true, Box: &box, Similarity: sim, Index: i}, nil
		}
	}

	return vision.MatchDecision{Found: false, Index: -1}, nil
}
