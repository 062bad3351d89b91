/**
 * Vision Service - Main Entry Point
 *
 * HTTP service for two image pipelines:
 * - License plates: YOLO localization -> crop -> OpenCV enhancement -> Tesseract OCR
 * - Face matching: face detection -> 512-d embeddings -> cosine match -> annotated crowd image
 *
 * Backends:
 * - Plate detector: local ONNX model through OpenCV DNN, or a remote inference server
 * - Face detector: OpenCV Haar cascade, or Amazon Rekognition
 * - Artifacts: in-memory LRU, Redis, or a local directory
 *
 * All model calls share one bounded worker pool sized by INFERENCE_CONCURRENCY.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/vision-service/internal/api"
	"github.com/adverant/nexus/vision-service/internal/clients"
	"github.com/adverant/nexus/vision-service/internal/config"
	"github.com/adverant/nexus/vision-service/internal/inference/opencv"
	"github.com/adverant/nexus/vision-service/internal/inference/rekognition"
	"github.com/adverant/nexus/vision-service/internal/inference/tesseract"
	"github.com/adverant/nexus/vision-service/internal/logging"
	"github.com/adverant/nexus/vision-service/internal/processor"
	"github.com/adverant/nexus/vision-service/internal/queue"
	"github.com/adverant/nexus/vision-service/internal/storage"
	"github.com/adverant/nexus/vision-service/internal/vision"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logCloser, err := logging.Setup(cfg.LogFile, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()

	logger := logging.NewLogger("Server")
	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	logger.Info("Vision service starting",
		"port", cfg.ServerPort,
		"detector_backend", cfg.DetectorBackend,
		"face_detector_backend", cfg.FaceDetectorBackend,
		"artifact_backend", cfg.ArtifactBackend,
		"inference_concurrency", cfg.InferenceConcurrency)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				logger.Warn("Error releasing resource", "error", err)
			}
		}
	}()

	checks := make(map[string]api.HealthCheck)

	plateDetector, err := buildPlateDetector(cfg, checks)
	if err != nil {
		return err
	}
	if c, ok := plateDetector.(io.Closer); ok {
		closers = append(closers, c)
	}

	faceDetector, err := buildFaceDetector(cfg)
	if err != nil {
		return err
	}
	if c, ok := faceDetector.(io.Closer); ok {
		closers = append(closers, c)
	}

	embedder, err := opencv.NewFaceEmbedder(cfg.FaceEmbedderModelPath)
	if err != nil {
		return fmt.Errorf("failed to load face embedder: %w", err)
	}
	closers = append(closers, embedder)
	logger.Info("Face embedder loaded", "model", cfg.FaceEmbedderModelPath)

	ocr := tesseract.NewEngine(tesseract.Config{
		TessdataPrefix: cfg.TessdataPrefix,
		Language:       cfg.OCRLanguage,
	})
	logger.Info("OCR engine ready", "tesseract", ocr.Version(), "language", cfg.OCRLanguage)

	store, err := storage.NewArtifactStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}
	closers = append(closers, store)
	if pinger, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["artifact_store"] = pinger.Ping
	}
	logger.Info("Artifact store initialized", "backend", cfg.ArtifactBackend,
		"ttl_seconds", cfg.ArtifactTTLSeconds)

	pool := queue.NewPool(cfg.InferenceConcurrency)
	pool.Start()
	defer pool.Stop()

	pipeline, err := processor.NewPipeline(&processor.PipelineConfig{
		PlateDetector:  plateDetector,
		Enhancer:       opencv.NewEnhancer(),
		OCR:            ocr,
		FaceDetector:   faceDetector,
		FaceEmbedder:   embedder,
		Store:          store,
		Pool:           pool,
		MatchThreshold: cfg.MatchThreshold,
		OCRLanguage:    cfg.OCRLanguage,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	handler, err := api.NewHandler(api.HandlerConfig{
		Service:        pipeline,
		Store:          store,
		MaxUploadBytes: cfg.MaxUploadBytes,
		HealthChecks:   checks,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handler: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.SetupRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())
	case err, ok := <-serverErr:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("Error during HTTP shutdown", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func buildPlateDetector(cfg *config.Config, checks map[string]api.HealthCheck) (vision.ObjectDetector, error) {
	switch cfg.DetectorBackend {
	case config.BackendRemote:
		client := clients.NewInferenceClient(cfg.InferenceURL, float32(cfg.PlateConfidence))
		checks["inference_server"] = client.HealthCheck
		return client, nil
	case config.BackendOpenCV:
		detector, err := opencv.NewPlateDetector(opencv.PlateDetectorConfig{
			ModelPath:    cfg.PlateModelPath,
			InputSize:    cfg.PlateInputSize,
			Confidence:   float32(cfg.PlateConfidence),
			NMSThreshold: float32(cfg.PlateNMSThreshold),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load plate detector: %w", err)
		}
		return detector, nil
	default:
		return nil, fmt.Errorf("unsupported detector backend: %s", cfg.DetectorBackend)
	}
}

func buildFaceDetector(cfg *config.Config) (vision.FaceDetector, error) {
	switch cfg.FaceDetectorBackend {
	case config.BackendRekognition:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		detector, err := rekognition.NewFaceDetectorForRegion(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Rekognition face detector: %w", err)
		}
		return detector, nil
	case config.BackendOpenCV:
		detector, err := opencv.NewFaceDetector(cfg.FaceCascadePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load face cascade: %w", err)
		}
		return detector, nil
	default:
		return nil, fmt.Errorf("unsupported face detector backend: %s", cfg.FaceDetectorBackend)
	}
}
