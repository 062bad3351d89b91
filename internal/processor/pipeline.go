/**
 * Request pipelines for the vision service
 *
 * Plate flow:  decode -> localize -> crop -> enhance -> OCR
 * Match flow:  decode -> embed reference -> embed crowd -> match -> annotate
 *
 * Each flow is linear with a single branch point and no retries. Every image a
 * request produces is stored under its own handle, so concurrent requests
 * never share intermediate files.
 */

package processor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	vserrors "github.com/adverant/nexus/vision-service/internal/errors"
	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/queue"
	"github.com/adverant/nexus/vision-service/internal/storage"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// PipelineConfig holds the capabilities and stores a Pipeline runs on
type PipelineConfig struct {
	PlateDetector  vision.ObjectDetector
	Enhancer       vision.Enhancer
	OCR            vision.OCREngine
	FaceDetector   vision.FaceDetector
	FaceEmbedder   vision.FaceEmbedder
	Store          storage.ArtifactStore
	Pool           *queue.Pool // optional; when set every capability call runs on it
	MatchThreshold float64
	OCRLanguage    string
}

// PlateResult is the outcome of a successful plate request
type PlateResult struct {
	PlateNumber        string
	Box                vision.BoundingBox
	Confidence         float32
	InputArtifactID    string
	PlateArtifactID    string
	EnhancedArtifactID string
	ProcessingTimeMs   int64
}

// FaceMatchResult is the outcome of a match request. Box and MatchedArtifactID are
// only set when Found is true.
type FaceMatchResult struct {
	Found             bool
	Box               *vision.BoundingBox
	Similarity        float64
	CandidatesTested  int
	MatchedArtifactID string
	ProcessingTimeMs  int64
}

// Pipeline sequences the plate and face flows for single requests
type Pipeline struct {
	localizer *PlateLocalizer
	enhancer  vision.Enhancer
	extractor *TextExtractor
	matcher   *EmbeddingMatcher
	store     storage.ArtifactStore
	logger    *logging.Logger
}

// NewPipeline validates cfg and builds a pipeline
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.PlateDetector == nil {
		return nil, fmt.Errorf("plate detector is required")
	}
	if cfg.Enhancer == nil {
		return nil, fmt.Errorf("enhancer is required")
	}
	if cfg.OCR == nil {
		return nil, fmt.Errorf("OCR engine is required")
	}
	if cfg.FaceDetector == nil {
		return nil, fmt.Errorf("face detector is required")
	}
	if cfg.FaceEmbedder == nil {
		return nil, fmt.Errorf("face embedder is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}

	plateDetector := cfg.PlateDetector
	enhancer := cfg.Enhancer
	ocr := cfg.OCR
	faceDetector := cfg.FaceDetector
	embedder := cfg.FaceEmbedder
	if cfg.Pool != nil {
		plateDetector = pooledObjectDetector{pool: cfg.Pool, inner: plateDetector}
		enhancer = pooledEnhancer{pool: cfg.Pool, inner: enhancer}
		ocr = pooledOCREngine{pool: cfg.Pool, inner: ocr}
		faceDetector = pooledFaceDetector{pool: cfg.Pool, inner: faceDetector}
		embedder = pooledFaceEmbedder{pool: cfg.Pool, inner: embedder}
	}

	return &Pipeline{
		localizer: NewPlateLocalizer(plateDetector),
		enhancer:  enhancer,
		extractor: NewTextExtractor(ocr, cfg.OCRLanguage),
		matcher:   NewEmbeddingMatcher(faceDetector, embedder, cfg.MatchThreshold),
		store:     cfg.Store,
		logger:    logging.NewLogger("Pipeline"),
	}, nil
}

// Store returns the artifact store the pipeline writes to
func (p *Pipeline) Store() storage.ArtifactStore {
	return p.store
}

// DetectPlate localizes the plate in upload, enhances the crop and reads its text
func (p *Pipeline) DetectPlate(ctx context.Context, requestID string, upload []byte) (*PlateResult, error) {
	start := time.Now()
	p.logger.Info(fmt.Sprintf("[Request %s] Starting plate pipeline", requestID))

	// Step 1: Decode and store the upload
	p.logger.Info(fmt.Sprintf("[Request %s] Step 1: Decoding upload (%d bytes)", requestID, len(upload)))
	img, err := DecodeImage(upload)
	if err != nil {
		return nil, vserrors.NewInvalidImageError(requestID, "Uploaded file is not a readable image", err)
	}
	inputID, err := p.store.Put(ctx, requestID, storage.KindInput, upload, http.DetectContentType(upload))
	if err != nil {
		return nil, vserrors.NewStorageFailedError(requestID, err)
	}

	// Step 2: Localize the plate
	p.logger.Info(fmt.Sprintf("[Request %s] Step 2: Localizing plate (%dx%d)", requestID, img.Bounds().Dx(), img.Bounds().Dy()))
	detection, err := p.localizer.Localize(ctx, img)
	if err != nil {
		if errors.Is(err, ErrNoDetection) {
			p.logger.Info(fmt.Sprintf("[Request %s] No plate detected", requestID))
			return nil, vserrors.NewNoDetectionError(requestID)
		}
		return nil, vserrors.NewInferenceFailedError(requestID, "plate detector", err)
	}
	p.logger.Info(fmt.Sprintf("[Request %s] Plate detected", requestID),
		"box", detection.Box, "confidence", detection.Confidence)

	// Step 3: Crop the plate
	p.logger.Info(fmt.Sprintf("[Request %s] Step 3: Cropping plate", requestID))
	crop, err := Crop(img, detection.Box)
	if err != nil {
		return nil, vserrors.NewInvalidImageError(requestID, "Detected plate region is empty", err)
	}
	plateID, err := p.storeJPEG(ctx, requestID, storage.KindPlate, crop)
	if err != nil {
		return nil, err
	}

	// Step 4: Enhance for OCR
	p.logger.Info(fmt.Sprintf("[Request %s] Step 4: Enhancing plate", requestID))
	enhanced, err := p.enhancer.Enhance(ctx, crop)
	if err != nil {
		return nil, vserrors.NewInferenceFailedError(requestID, "enhancer", err)
	}
	if enhanced.Bounds().Size() != crop.Bounds().Size() {
		return nil, vserrors.NewInferenceFailedError(requestID, "enhancer",
			fmt.Errorf("enhanced size %v differs from crop size %v", enhanced.Bounds().Size(), crop.Bounds().Size()))
	}
	enhancedID, err := p.storeJPEG(ctx, requestID, storage.KindEnhanced, enhanced)
	if err != nil {
		return nil, err
	}

	// Step 5: Read the plate text
	p.logger.Info(fmt.Sprintf("[Request %s] Step 5: Extracting text", requestID))
	text, err := p.extractor.Extract(ctx, enhanced)
	if err != nil {
		return nil, vserrors.NewInferenceFailedError(requestID, "ocr", err)
	}

	result := &PlateResult{
		PlateNumber:        text,
		Box:                detection.Box.Clamp(img.Bounds()),
		Confidence:         detection.Confidence,
		InputArtifactID:    inputID,
		PlateArtifactID:    plateID,
		EnhancedArtifactID: enhancedID,
		ProcessingTimeMs:   time.Since(start).Milliseconds(),
	}
	p.logger.Info(fmt.Sprintf("[Request %s] Plate pipeline completed", requestID),
		"plate", text, "duration_ms", result.ProcessingTimeMs)

	return result, nil
}

// MatchFace looks for the reference face in the crowd image
func (p *Pipeline) MatchFace(ctx context.Context, requestID string, reference, crowd []byte) (*FaceMatchResult, error) {
	start := time.Now()
	p.logger.Info(fmt.Sprintf("[Request %s] Starting face match pipeline", requestID))

	// Step 1: Decode both uploads
	p.logger.Info(fmt.Sprintf("[Request %s] Step 1: Decoding uploads (%d and %d bytes)", requestID, len(reference), len(crowd)))
	refImg, err := DecodeImage(reference)
	if err != nil {
		return nil, vserrors.NewInvalidImageError(requestID, "Reference file is not a readable image", err)
	}
	crowdImg, err := DecodeImage(crowd)
	if err != nil {
		return nil, vserrors.NewInvalidImageError(requestID, "Crowd file is not a readable image", err)
	}

	// Step 2: Embed the reference face
	p.logger.Info(fmt.Sprintf("[Request %s] Step 2: Embedding reference face", requestID))
	ref, err := p.matcher.EmbedReference(ctx, refImg)
	if err != nil {
		if errors.Is(err, ErrNoReferenceFace) {
			p.logger.Info(fmt.Sprintf("[Request %s] No face in reference image", requestID))
			return nil, vserrors.NewNoReferenceFaceError(requestID)
		}
		return nil, vserrors.NewInferenceFailedError(requestID, "reference face", err)
	}

	// Step 3: Embed every crowd face
	p.logger.Info(fmt.Sprintf("[Request %s] Step 3: Embedding crowd faces", requestID))
	candidates, err := p.matcher.Embed(ctx, crowdImg)
	if err != nil {
		return nil, vserrors.NewInferenceFailedError(requestID, "crowd faces", err)
	}

	// Step 4: Match
	p.logger.Info(fmt.Sprintf("[Request %s] Step 4: Matching against %d candidates", requestID, len(candidates)))
	decision, err := p.matcher.Match(ref, candidates)
	if err != nil {
		return nil, vserrors.NewInferenceFailedError(requestID, "matcher", err)
	}

	result := &FaceMatchResult{CandidatesTested: len(candidates)}
	if !decision.Found {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		p.logger.Info(fmt.Sprintf("[Request %s] No matching face", requestID), "candidates", len(candidates))
		return result, nil
	}

	// Step 5: Annotate and store the crowd image
	p.logger.Info(fmt.Sprintf("[Request %s] Step 5: Annotating match", requestID),
		"index", decision.Index, "similarity", decision.Similarity)
	annotated := Annotate(crowdImg, *decision.Box, MatchColor, MatchLineWidth)
	data, err := EncodePNG(annotated)
	if err != nil {
		return nil, vserrors.NewStorageFailedError(requestID, err)
	}
	matchedID, err := p.store.Put(ctx, requestID, storage.KindMatched, data, "image/png")
	if err != nil {
		return nil, vserrors.NewStorageFailedError(requestID, err)
	}

	result.Found = true
	result.Box = decision.Box
	result.Similarity = decision.Similarity
	result.MatchedArtifactID = matchedID
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	p.logger.Info(fmt.Sprintf("[Request %s] Face match pipeline completed", requestID),
		"similarity", decision.Similarity, "duration_ms", result.ProcessingTimeMs)

	return result, nil
}

func (p *Pipeline) storeJPEG(ctx context.Context, requestID string, kind storage.Kind, img image.Image) (string, error) {
	data, err := EncodeJPEG(img)
	if err != nil {
		return "", vserrors.NewStorageFailedError(requestID, err)
	}
	id, err := p.store.Put(ctx, requestID, kind, data, "image/jpeg")
	if err != nil {
		return "", vserrors.NewStorageFailedError(requestID, err)
	}
	return id, nil
}
