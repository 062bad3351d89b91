/**
 * Configuration for the vision service
 *
 * Loads configuration from environment variables (optionally seeded from .env)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Backend names
const (
	BackendOpenCV      = "opencv"
	BackendRemote      = "remote"
	BackendRekognition = "rekognition"

	ArtifactBackendMemory = "memory"
	ArtifactBackendRedis  = "redis"
	ArtifactBackendDisk   = "disk"
)

// Config holds service configuration
type Config struct {
	// HTTP server
	ServerPort     string
	MaxUploadBytes int64

	// Plate detector
	DetectorBackend   string
	PlateModelPath    string
	InferenceURL      string
	PlateConfidence   float64
	PlateNMSThreshold float64
	PlateInputSize    int

	// Face detection and embedding
	FaceDetectorBackend   string
	FaceCascadePath       string
	FaceEmbedderModelPath string
	MatchThreshold        float64
	AWSRegion             string

	// Tesseract configuration
	TessdataPrefix string
	OCRLanguage    string

	// Inference worker pool
	InferenceConcurrency int

	// Artifact storage
	ArtifactBackend    string
	ArtifactTTLSeconds int
	ArtifactCacheSize  int
	RedisURL           string
	OutputDir          string

	// Logging
	LogFile  string
	LogLevel string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerPort:            getEnvOrDefault("SERVER_PORT", "8000"),
		MaxUploadBytes:        getEnvAsInt64OrDefault("MAX_UPLOAD_BYTES", 20<<20), // 20MB
		DetectorBackend:       getEnvOrDefault("DETECTOR_BACKEND", BackendOpenCV),
		PlateModelPath:        getEnvOrDefault("PLATE_MODEL_PATH", "weights/yolov5/best.onnx"),
		InferenceURL:          getEnvOrDefault("INFERENCE_URL", "http://localhost:5000/predict"),
		PlateConfidence:       getEnvAsFloatOrDefault("PLATE_CONFIDENCE", 0.25),
		PlateNMSThreshold:     getEnvAsFloatOrDefault("PLATE_NMS_THRESHOLD", 0.45),
		PlateInputSize:        getEnvAsIntOrDefault("PLATE_INPUT_SIZE", 640),
		FaceDetectorBackend:   getEnvOrDefault("FACE_DETECTOR_BACKEND", BackendOpenCV),
		FaceCascadePath:       getEnvOrDefault("FACE_CASCADE_PATH", "weights/haarcascade_frontalface_default.xml"),
		FaceEmbedderModelPath: getEnvOrDefault("FACE_EMBEDDER_MODEL_PATH", "weights/facenet/facenet512.onnx"),
		MatchThreshold:        getEnvAsFloatOrDefault("MATCH_THRESHOLD", 0.6),
		AWSRegion:             getEnvOrDefault("AWS_REGION", "us-east-1"),
		TessdataPrefix:        getEnvOrDefault("TESSDATA_PREFIX", ""),
		OCRLanguage:           getEnvOrDefault("OCR_LANGUAGE", "eng"),
		InferenceConcurrency:  getEnvAsIntOrDefault("INFERENCE_CONCURRENCY", 4),
		ArtifactBackend:       getEnvOrDefault("ARTIFACT_BACKEND", ArtifactBackendMemory),
		ArtifactTTLSeconds:    getEnvAsIntOrDefault("ARTIFACT_TTL_SECONDS", 3600),
		ArtifactCacheSize:     getEnvAsIntOrDefault("ARTIFACT_CACHE_SIZE", 256),
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		OutputDir:             getEnvOrDefault("OUTPUT_DIR", "output"),
		LogFile:               getEnvOrDefault("LOG_FILE", ""),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.MaxUploadBytes < 1024 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be at least 1KB, got %d", c.MaxUploadBytes)
	}

	switch c.DetectorBackend {
	case BackendOpenCV:
		if c.PlateModelPath == "" {
			return fmt.Errorf("PLATE_MODEL_PATH is required for the %s detector", BackendOpenCV)
		}
	case BackendRemote:
		if c.InferenceURL == "" {
			return fmt.Errorf("INFERENCE_URL is required for the %s detector", BackendRemote)
		}
	default:
		return fmt.Errorf("DETECTOR_BACKEND must be %q or %q, got %q", BackendOpenCV, BackendRemote, c.DetectorBackend)
	}

	switch c.FaceDetectorBackend {
	case BackendOpenCV:
		if c.FaceCascadePath == "" {
			return fmt.Errorf("FACE_CASCADE_PATH is required for the %s face detector", BackendOpenCV)
		}
	case BackendRekognition:
		if c.AWSRegion == "" {
			return fmt.Errorf("AWS_REGION is required for the %s face detector", BackendRekognition)
		}
	default:
		return fmt.Errorf("FACE_DETECTOR_BACKEND must be %q or %q, got %q", BackendOpenCV, BackendRekognition, c.FaceDetectorBackend)
	}

	if c.FaceEmbedderModelPath == "" {
		return fmt.Errorf("FACE_EMBEDDER_MODEL_PATH is required")
	}

	if c.PlateConfidence <= 0 || c.PlateConfidence >= 1 {
		return fmt.Errorf("PLATE_CONFIDENCE must be between 0 and 1, got %v", c.PlateConfidence)
	}

	if c.PlateNMSThreshold <= 0 || c.PlateNMSThreshold >= 1 {
		return fmt.Errorf("PLATE_NMS_THRESHOLD must be between 0 and 1, got %v", c.PlateNMSThreshold)
	}

	if c.PlateInputSize < 32 || c.PlateInputSize%32 != 0 {
		return fmt.Errorf("PLATE_INPUT_SIZE must be a positive multiple of 32, got %d", c.PlateInputSize)
	}

	if c.MatchThreshold <= 0 || c.MatchThreshold >= 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be between 0 and 1, got %v", c.MatchThreshold)
	}

	if c.InferenceConcurrency < 1 || c.InferenceConcurrency > 64 {
		return fmt.Errorf("INFERENCE_CONCURRENCY must be between 1 and 64, got %d", c.InferenceConcurrency)
	}

	switch c.ArtifactBackend {
	case ArtifactBackendMemory:
		if c.ArtifactCacheSize < 1 {
			return fmt.Errorf("ARTIFACT_CACHE_SIZE must be positive, got %d", c.ArtifactCacheSize)
		}
	case ArtifactBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s artifact backend", ArtifactBackendRedis)
		}
	case ArtifactBackendDisk:
		if c.OutputDir == "" {
			return fmt.Errorf("OUTPUT_DIR is required for the %s artifact backend", ArtifactBackendDisk)
		}
	default:
		return fmt.Errorf("ARTIFACT_BACKEND must be one of memory, redis, disk, got %q", c.ArtifactBackend)
	}

	if c.ArtifactTTLSeconds < 1 {
		return fmt.Errorf("ARTIFACT_TTL_SECONDS must be positive, got %d", c.ArtifactTTLSeconds)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
