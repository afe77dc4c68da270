package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/db/repository"
	"github.com/cozy-creator/medpredict/internal/diagnosis"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func GetPrediction(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid prediction id"})
		return
	}

	prediction, err := app.PredictionRepository.GetByID(c.Request.Context(), id.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "prediction not found"})
			return
		}

		app.Logger.Error("failed to load prediction", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, prediction)
}

func ListPredictions(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	filter := repository.PredictionFilter{Disease: c.Query("disease")}
	if filter.Disease != "" {
		if _, ok := app.Registry().Catalog().Get(diagnosis.Disease(filter.Disease)); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model: " + filter.Disease})
			return
		}
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		filter.Limit = limit
	}

	predictions, err := app.PredictionRepository.List(c.Request.Context(), filter)
	if err != nil {
		app.Logger.Error("failed to list predictions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"predictions": predictions})
}
