package api

import (
	"github.com/gin-gonic/gin"

	"github.com/adverant/nexus/vision-service/internal/logging"
)

// SetupRouter wires the HTTP routes onto a new gin engine
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logging.Writer()))
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(requestIDMiddleware())

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	limitBody := maxBodyMiddleware(h.maxUploadBytes)
	r.POST("/detect-plate/", limitBody, h.DetectPlate)
	r.POST("/match-face/", limitBody, h.MatchFace)

	r.GET("/get-enhanced/", h.GetEnhanced)
	r.GET("/get-matched/", h.GetMatched)
	r.GET("/artifacts/:id", h.GetArtifact)

	return r
}
