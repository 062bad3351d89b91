package processor

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

// Tesseract engine settings for plate text
const (
	// OEMDefault lets the engine pick legacy or LSTM
	OEMDefault = 3
	// PSMSingleWord treats the image as a single word
	PSMSingleWord = 8
)

var whitespaceStripper = strings.NewReplacer(" ", "", "\n", "", "\r", "", "\t", "")

// TextExtractor runs OCR with a fixed single-word configuration
type TextExtractor struct {
	engine vision.OCREngine
	config vision.OCRConfig
}

// NewTextExtractor creates an extractor for language (default "eng")
func NewTextExtractor(engine vision.OCREngine, language string) *TextExtractor {
	if language == "" {
		language = "eng"
	}
	return &TextExtractor{
		engine: engine,
		config: vision.OCRConfig{
			EngineMode:  OEMDefault,
			PageSegMode: PSMSingleWord,
			Language:    language,
		},
	}
}

// Config returns the OCR settings passed to the engine
func (e *TextExtractor) Config() vision.OCRConfig {
	return e.config
}

// Extract reads text from img and normalizes it. Engine errors are returned unchanged in meaning; there are no retries.
func (e *TextExtractor) Extract(ctx context.Context, img image.Image) (string, error) {
	raw, err := e.engine.Extract(ctx, img, e.config)
	if err != nil {
		return "", fmt.Errorf("ocr failed: %w", err)
	}
	return NormalizePlateText(raw), nil
}

// NormalizePlateText removes every space and line break from raw OCR output
func NormalizePlateText(raw string) string {
	return whitespaceStripper.Replace(raw)
}
