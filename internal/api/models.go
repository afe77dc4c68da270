package api

import (
	"net/http"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/gin-gonic/gin"
)

func ListModels(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	c.JSON(http.StatusOK, gin.H{
		"models": app.Registry().List(),
	})
}
