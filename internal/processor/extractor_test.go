package processor

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
)

func TestNormalizePlateText(t *testing.T) {
	testCases := []struct {
		raw  string
		want string
	}{
		{raw: "KA01AB1234", want: "KA01AB1234"},
		{raw: "KA 01 AB 1234\n", want: "KA01AB1234"},
		{raw: "  MH12\nDE 1433 \n\f", want: "MH12DE1433\f"},
		{raw: "\r\n\tDL 8C\tAF 5030\r\n", want: "DL8CAF5030"},
		{raw: "\n\n  \n", want: ""},
		{raw: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got := NormalizePlateText(tc.raw)
			if got != tc.want {
				t.Errorf("NormalizePlateText(%q) = %q, want %q", tc.raw, got, tc.want)
			}
			if strings.ContainsAny(got, " \n") {
				t.Errorf("output %q still contains a space or newline", got)
			}
		})
	}
}

func TestTextExtractorUsesSingleWordConfig(t *testing.T) {
	ocr := &stubOCR{text: "TN 09\nBX 4321\n"}
	e := NewTextExtractor(ocr, "")

	got, err := e.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 40, 10)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "TN09BX4321" {
		t.Errorf("expected TN09BX4321, got %q", got)
	}
	if ocr.gotCfg.EngineMode != 3 || ocr.gotCfg.PageSegMode != 8 {
		t.Errorf("expected OEM 3 / PSM 8, got %+v", ocr.gotCfg)
	}
	if ocr.gotCfg.Language != "eng" {
		t.Errorf("expected default language eng, got %q", ocr.gotCfg.Language)
	}
}

func TestTextExtractorPropagatesFailure(t *testing.T) {
	boom := errors.New("tessdata missing")
	e := NewTextExtractor(&stubOCR{err: boom}, "eng")

	_, err := e.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, boom) {
		t.Fatalf("expected OCR error, got %v", err)
	}
}
