package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/services/filestorage"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GetFile serves an archived upload by its content-addressed name.
func GetFile(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	storage := app.FileStorage()
	if storage == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file storage is not configured"})
		return
	}

	file, err := storage.GetFile(c.Request.Context(), c.Param("filename"))
	if err != nil {
		switch {
		case errors.Is(err, filestorage.ErrInvalidFilename):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, fs.ErrNotExist):
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		default:
			app.Logger.Warn("failed to read file", zap.Error(err))
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		}
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(file.Content).String(), file.Content)
}
