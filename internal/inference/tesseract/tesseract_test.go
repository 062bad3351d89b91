package tesseract

import (
	"context"
	"image"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/vision-service/internal/vision"
)

func singleWordConfig() vision.OCRConfig {
	return vision.OCRConfig{EngineMode: 3, PageSegMode: int(gosseract.PSM_SINGLE_WORD), Language: "eng"}
}

func TestExtractRejectsUnsupportedEngineMode(t *testing.T) {
	e := NewEngine(Config{})
	cfg := singleWordConfig()
	cfg.EngineMode = 1

	_, err := e.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)), cfg)
	if err == nil || !strings.Contains(err.Error(), "engine mode") {
		t.Fatalf("expected engine mode error, got %v", err)
	}
}

func TestExtractFromFixture(t *testing.T) {
	path := "testdata/plate.png"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Skipf("Skipping test - fixture not found: %s", path)
	}

	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("failed to open fixture: %v", err)
	}

	e := NewEngine(Config{TessdataPrefix: os.Getenv("TESSDATA_PREFIX")})
	text, err := e.Extract(context.Background(), img, singleWordConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		t.Error("expected text from plate fixture")
	}
}

func TestExtractBlankImage(t *testing.T) {
	if os.Getenv("TESSDATA_PREFIX") == "" {
		t.Skip("Skipping test - TESSDATA_PREFIX not set")
	}

	blank := imaging.New(120, 40, color.White)
	e := NewEngine(Config{TessdataPrefix: os.Getenv("TESSDATA_PREFIX")})
	text, err := e.Extract(context.Background(), blank, singleWordConfig())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if strings.TrimSpace(text) != "" {
		t.Errorf("expected no text from a blank image, got %q", text)
	}
}
