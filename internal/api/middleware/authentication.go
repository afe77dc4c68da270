package middleware

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/cozy-creator/medpredict/internal/app"
	"github.com/cozy-creator/medpredict/internal/utils/hashutil"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const APIKeyHeader = "X-API-Key"

// AuthenticationMiddleware accepts requests carrying a known, unrevoked
// X-API-Key. Keys are looked up by their sha3-256 hash.
func AuthenticationMiddleware(ctx *gin.Context) {
	app := ctx.MustGet("app").(*app.App)

	apikey := ctx.GetHeader(APIKeyHeader)
	if apikey == "" {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized access"})
		return
	}

	if app.APIKeyRepository == nil {
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "API key store is unavailable"})
		return
	}

	apikeyHash := hashutil.Sha3256Hash([]byte(apikey))
	result, err := app.APIKeyRepository.GetAPIKeyWithHash(ctx.Request.Context(), apikeyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "The provided API key is invalid"})
			return
		}

		app.Logger.Error("Database error while checking API key", zap.Error(err))
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error checking api-keys in database"})
		return
	}

	if result.IsRevoked {
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "The provided API key is revoked"})
		return
	}

	ctx.Next()
}
