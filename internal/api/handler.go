package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	vserrors "github.com/adverant/nexus/vision-service/internal/errors"
	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/processor"
	"github.com/adverant/nexus/vision-service/internal/storage"
)

// Paths returned to clients for the latest artifacts
const (
	EnhancedImagePath = "/get-enhanced/"
	MatchedImagePath  = "/get-matched/"
)

// VisionService runs the request pipelines
type VisionService interface {
	DetectPlate(ctx context.Context, requestID string, upload []byte) (*processor.PlateResult, error)
	MatchFace(ctx context.Context, requestID string, reference, crowd []byte) (*processor.FaceMatchResult, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// HandlerConfig holds handler dependencies
type HandlerConfig struct {
	Service        VisionService
	Store          storage.ArtifactStore
	MaxUploadBytes int64
	HealthChecks   map[string]HealthCheck
}

// Handler serves the vision HTTP API
type Handler struct {
	service        VisionService
	store          storage.ArtifactStore
	maxUploadBytes int64
	healthChecks   map[string]HealthCheck
	logger         *logging.Logger
}

// NewHandler creates a handler
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Service == nil {
		return nil, fmt.Errorf("vision service is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	return &Handler{
		service:        cfg.Service,
		store:          cfg.Store,
		maxUploadBytes: cfg.MaxUploadBytes,
		healthChecks:   cfg.HealthChecks,
		logger:         logging.NewLogger("API"),
	}, nil
}

// GET /
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the plate & face vision service!"})
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	checks := make(map[string]string, len(h.healthChecks))
	for name, check := range h.healthChecks {
		if err := check(ctx); err != nil {
			status = "degraded"
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
	})
}

// POST /detect-plate/ with multipart field "file"
func (h *Handler) DetectPlate(c *gin.Context) {
	reqID := requestID(c)

	upload, err := h.readUpload(c, "file")
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.service.DetectPlate(c.Request.Context(), reqID, upload)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plate_number": result.PlateNumber,
		"image_url":    EnhancedImagePath,
		"artifact_id":  result.EnhancedArtifactID,
	})
}

// POST /match-face/ with multipart fields "reference" and "crowd"
func (h *Handler) MatchFace(c *gin.Context) {
	reqID := requestID(c)

	reference, err := h.readUpload(c, "reference")
	if err != nil {
		h.respondError(c, err)
		return
	}
	crowd, err := h.readUpload(c, "crowd")
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.service.MatchFace(c.Request.Context(), reqID, reference, crowd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !result.Found {
		c.JSON(http.StatusOK, gin.H{"match_found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"match_found": true,
		"image_url":   MatchedImagePath,
		"artifact_id": result.MatchedArtifactID,
	})
}

// GET /get-enhanced/[?id=<artifact_id>]
func (h *Handler) GetEnhanced(c *gin.Context) {
	h.serveKind(c, storage.KindEnhanced)
}

// GET /get-matched/[?id=<artifact_id>]
func (h *Handler) GetMatched(c *gin.Context) {
	h.serveKind(c, storage.KindMatched)
}

// GET /artifacts/:id
func (h *Handler) GetArtifact(c *gin.Context) {
	id := c.Param("id")
	artifact, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.respondArtifactError(c, id, err)
		return
	}
	h.serveArtifact(c, artifact)
}

func (h *Handler) serveKind(c *gin.Context, kind storage.Kind) {
	ctx := c.Request.Context()

	if id := c.Query("id"); id != "" {
		artifact, err := h.store.Get(ctx, id)
		if err == nil && artifact.Kind != kind {
			err = storage.ErrNotFound
		}
		if err != nil {
			h.respondArtifactError(c, id, err)
			return
		}
		h.serveArtifact(c, artifact)
		return
	}

	artifact, err := h.store.Latest(ctx, kind)
	if err != nil {
		h.respondArtifactError(c, string(kind), err)
		return
	}
	h.serveArtifact(c, artifact)
}

func (h *Handler) serveArtifact(c *gin.Context, artifact *storage.Artifact) {
	c.Header("Cache-Control", "no-store")
	c.Header("X-Artifact-ID", artifact.ID)
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

func (h *Handler) respondArtifactError(c *gin.Context, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		h.respondError(c, vserrors.NewArtifactNotFoundError(id))
		return
	}
	h.respondError(c, vserrors.NewStorageFailedError(requestID(c), err))
}

// readUpload reads one multipart file field fully into memory
func (h *Handler) readUpload(c *gin.Context, field string) ([]byte, error) {
	reqID := requestID(c)

	fh, err := c.FormFile(field)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, vserrors.NewInvalidImageError(reqID,
				fmt.Sprintf("Upload exceeds %d bytes", h.maxUploadBytes), err)
		}
		return nil, vserrors.NewInvalidImageError(reqID,
			fmt.Sprintf("Missing upload field %q", field), err)
	}

	data, err := readFileHeader(fh)
	if err != nil {
		return nil, vserrors.NewInvalidImageError(reqID,
			fmt.Sprintf("Could not read upload field %q", field), err)
	}
	if len(data) == 0 {
		return nil, vserrors.NewInvalidImageError(reqID,
			fmt.Sprintf("Upload field %q is empty", field), nil)
	}
	return data, nil
}

// isBodyTooLarge reports whether err came from the body size limit. The
// multipart parser does not always wrap the reader error.
func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

func readFileHeader(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// respondError writes {"error": message} with the status of err's code.
// Errors without a code are reported as 500.
func (h *Handler) respondError(c *gin.Context, err error) {
	ve, ok := vserrors.As(err)
	if !ok {
		ve = vserrors.NewInferenceFailedError(requestID(c), "pipeline", err)
	}

	status := ve.HTTPStatus()
	fields := []interface{}{"status", status, "path", c.FullPath()}
	for k, v := range ve.ToMap() {
		fields = append(fields, k, v)
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Info("Request rejected", fields...)
	}

	c.JSON(status, gin.H{"error": ve.Message})
}
