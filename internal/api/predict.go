package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/cozy-creator/medpredict/internal/imaging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	imageField     = "image"
	noImageMessage = "No image uploaded"
)

// Predict classifies the multipart "image" upload with the model named in
// the path.
func Predict(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	disease := diagnosis.Disease(c.Param("disease"))

	registry := app.Registry()
	if _, ok := registry.Catalog().Get(disease); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown model: %s", disease)})
		return
	}

	limit := app.Config().MaxUploadSize
	if limit > 0 && c.Request.ContentLength > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request exceeds %d bytes", limit)})
		return
	}

	data, err := readImage(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("request exceeds %d bytes", maxErr.Limit)})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": noImageMessage})
		return
	}

	ctx := c.Request.Context()
	result, err := registry.Classify(ctx, disease, data)
	if err != nil {
		status := predictionStatus(err)
		if status == http.StatusInternalServerError {
			app.Logger.Error("prediction failed", zap.String("disease", string(disease)), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if history := app.History(); history != nil {
		if _, err := history.Record(ctx, disease, result, data); err != nil {
			app.Logger.Warn("failed to record prediction", zap.String("disease", string(disease)), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, result)
}

func readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile(imageField)
	if err != nil {
		return nil, err
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

func predictionStatus(err error) int {
	switch {
	case errors.Is(err, diagnosis.ErrUnknownModel):
		return http.StatusNotFound
	case errors.Is(err, diagnosis.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, imaging.ErrInvalidImage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
