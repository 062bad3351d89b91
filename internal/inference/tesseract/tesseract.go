/**
 * Tesseract OCR engine
 *
 * Local, offline OCR through gosseract. A new client is created for every
 * call, so the engine is safe for concurrent use.
 */

package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// oemDefault is Tesseract's OEM_DEFAULT, which gosseract always runs with
const oemDefault = 3

// Config holds Tesseract configuration
type Config struct {
	TessdataPrefix string
	Language       string
}

// Engine extracts text with Tesseract
type Engine struct {
	cfg    Config
	logger *logging.Logger
}

// NewEngine creates a new Tesseract engine
func NewEngine(cfg Config) *Engine {
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	return &Engine{
		cfg:    cfg,
		logger: logging.NewLogger("Tesseract"),
	}
}

// Version reports the linked Tesseract version
func (e *Engine) Version() string {
	return gosseract.Version()
}

// Extract performs OCR on img and returns the raw recognized text
func (e *Engine) Extract(ctx context.Context, img image.Image, cfg vision.OCRConfig) (string, error) {
	startTime := time.Now()

	if cfg.EngineMode != oemDefault {
		return "", fmt.Errorf("unsupported OCR engine mode %d", cfg.EngineMode)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("failed to encode image for OCR: %w", err)
	}

	// Create Tesseract client
	client := gosseract.NewClient()
	defer client.Close()

	if e.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return "", fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}

	language := cfg.Language
	if language == "" {
		language = e.cfg.Language
	}
	if err := client.SetLanguage(language); err != nil {
		return "", fmt.Errorf("failed to set language %s: %w", language, err)
	}

	if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	// Set image from bytes
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}

	// Extract text
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract OCR failed: %w", err)
	}

	e.logger.Debug("OCR completed", "chars", len(text), "duration", time.Since(startTime))
	return text, nil
}
