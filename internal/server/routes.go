package server

import (
	"net/http"

	"github.com/cozy-creator/medpredict/internal/api"
	"github.com/cozy-creator/medpredict/internal/api/middleware"
	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/gin-gonic/gin"
)

const indexMessage = "ML Disease Prediction API is running."

func (s *Server) SetupRoutes(app *app.App) {
	s.ginEngine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, indexMessage)
	})

	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := s.ginEngine.Group("/")
	if !app.Config().DisableAuth {
		protected.Use(handlerWrapper(app, middleware.AuthenticationMiddleware))
	}

	protected.POST("/predict/:disease", handlerWrapper(app, api.Predict))

	// Not an API, just a simple file server endpoint
	protected.GET("/file/:filename", handlerWrapper(app, api.GetFile))

	apiV1 := protected.Group("/api/v1")
	apiV1.GET("/models", handlerWrapper(app, api.ListModels))

	if app.PredictionRepository != nil {
		apiV1.GET("/predictions", handlerWrapper(app, api.ListPredictions))
		apiV1.GET("/predictions/:id", handlerWrapper(app, api.GetPrediction))
	}
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
