package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/facematch/internal/auth"
	"github.com/example/facematch/internal/matcher"
	"github.com/example/facematch/internal/usecase"
)

// MaxUploadSize caps the image accepted by /recognize.
const MaxUploadSize = 10 << 20

// multipartOverhead leaves room for form fields and part headers around the image.
const multipartOverhead = 64 << 10

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Service is the subset of the recognition use case exposed over HTTP.
type Service interface {
	Match(ctx context.Context, ownerID string, query matcher.Embedding, capture usecase.Capture) (*usecase.Outcome, error)
	Recognize(ctx context.Context, ownerID string, image []byte, capture usecase.Capture) (*usecase.Outcome, error)
	GetResult(ctx context.Context, ownerID, requestID string) (*usecase.Outcome, error)
	LastMatch(ctx context.Context, ownerID string) (*usecase.Outcome, error)
	ListIdentities(ctx context.Context, ownerID string) ([]*usecase.IdentityView, error)
	DeleteIdentity(ctx context.Context, ownerID, token string) error
	GetMetricsSummary(ctx context.Context, ownerID string) (*usecase.MetricsSummary, error)
}

type matchRequest struct {
	Embedding  []float32  `json:"embedding"`
	FilePath   string     `json:"file_path"`
	FaceID     string     `json:"face_id"`
	CapturedAt *time.Time `json:"captured_at"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc Service, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/", authMiddleware)

	api.POST("/match", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		var req matchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		capture := usecase.Capture{FilePath: req.FilePath, FaceID: req.FaceID}
		if req.CapturedAt != nil {
			capture.CapturedAt = req.CapturedAt.UTC()
		}

		outcome, err := svc.Match(c.Request.Context(), ownerID, req.Embedding, capture)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	api.POST("/recognize", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+multipartOverhead)

		file, err := c.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}
		if file.Size > MaxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return
		}
		if !allowedImageTypes[file.Header.Get("Content-Type")] {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}

		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
			return
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
			return
		}

		capture := usecase.Capture{FilePath: c.PostForm("file_path"), FaceID: c.PostForm("face_id")}
		outcome, err := svc.Recognize(c.Request.Context(), ownerID, data, capture)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	api.GET("/result/:id", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		outcome, err := svc.GetResult(c.Request.Context(), ownerID, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	api.GET("/last-match", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		outcome, err := svc.LastMatch(c.Request.Context(), ownerID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, outcome)
	})

	api.GET("/identities", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		identities, err := svc.ListIdentities(c.Request.Context(), ownerID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"identities": identities, "count": len(identities)})
	})

	api.DELETE("/identities/:token", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		if err := svc.DeleteIdentity(c.Request.Context(), ownerID, c.Param("token")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/metrics/summary", func(c *gin.Context) {
		ownerID, ok := ownerFrom(c)
		if !ok {
			return
		}

		summary, err := svc.GetMetricsSummary(c.Request.Context(), ownerID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func ownerFrom(c *gin.Context) (string, bool) {
	ownerID, ok := auth.OwnerID(c.Request.Context())
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return "", false
	}
	return ownerID, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matcher.ErrEmptyEmbedding), errors.Is(err, matcher.ErrNonFiniteEmbedding):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face usable"})
	case errors.Is(err, matcher.ErrDimensionMismatch), errors.Is(err, matcher.ErrCorruptEmbedding):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, usecase.ErrExtractorUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": "embedding extractor unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
