/**
 * Inference Client - remote plate detection
 *
 * Sends images to an external YOLO inference service over multipart HTTP and
 * maps its detections into the service's data model. Used when the detector
 * model runs outside this process (GPU host, Python serving stack).
 *
 * Expected response:
 *   {"detections": [{"x1": 10, "y1": 20, "x2": 110, "y2": 60, "confidence": 0.91}, ...]}
 * with detections in the service's ranking order.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

// InferenceClient handles communication with a remote detection service
type InferenceClient struct {
	predictURL string
	confidence float32
	httpClient *http.Client
	logger     *logging.Logger
}

// RemoteDetection is one detection as returned by the inference service
type RemoteDetection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float32 `json:"confidence"`
	Class      string  `json:"class,omitempty"`
}

// PredictResponse is the inference service's response body
type PredictResponse struct {
	Detections []RemoteDetection `json:"detections"`
}

// NewInferenceClient creates a client posting to predictURL. Detections below
// confidence are dropped even if the service returns them.
func NewInferenceClient(predictURL string, confidence float32) *InferenceClient {
	return &InferenceClient{
		predictURL: predictURL,
		confidence: confidence,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logging.NewLogger("InferenceClient"),
	}
}

// Infer posts img as a JPEG and returns the service's detections in their original order
func (c *InferenceClient) Infer(ctx context.Context, img image.Image) (vision.DetectionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.predictURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("inference failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	bounds := img.Bounds()
	dets := make(vision.DetectionResult, 0, len(result.Detections))
	for _, d := range result.Detections {
		if d.Confidence < c.confidence {
			continue
		}
		box := vision.BoundingBox{X1: int(d.X1), Y1: int(d.Y1), X2: int(d.X2), Y2: int(d.Y2)}.Clamp(bounds)
		if box.Empty() {
			continue
		}
		dets = append(dets, vision.Detection{Box: box, Confidence: d.Confidence})
	}

	c.logger.Debug("Remote detection completed",
		"detections", len(dets), "returned", len(result.Detections), "duration", time.Since(startTime))
	return dets, nil
}

// HealthCheck verifies the inference service responds on /health
func (c *InferenceClient) HealthCheck(ctx context.Context) error {
	u, err := url.Parse(c.predictURL)
	if err != nil {
		return fmt.Errorf("invalid inference URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
