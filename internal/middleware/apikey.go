package middleware

import (
	"net/http"
	"strings"

	"github.com/botblock/blocklist-api/internal/service"
	"github.com/gin-gonic/gin"
)

// APIKeyAuth resolves the X-API-Key header to an account. Every route
// behind this middleware requires a credential; quota enforcement runs
// after it and trusts the account it puts in the context.
func APIKeyAuth(apiKeyService *service.APIKeyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader("X-API-Key"))

		if key == "" {
			c.JSON(http.StatusForbidden, gin.H{
				"error":  "credential_invalid",
				"reason": "missing",
			})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		apiKey, err := apiKeyService.Validate(ctx, key)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "credential validation failed",
			})
			c.Abort()
			return
		}

		// Unknown and deactivated keys are indistinguishable on purpose
		if apiKey == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"error":  "credential_invalid",
				"reason": "invalid_or_inactive",
			})
			c.Abort()
			return
		}

		c.Set("api_key", apiKey)
		c.Set("api_key_id", apiKey.ID)
		c.Set("api_key_tier", apiKey.Tier)

		go apiKeyService.UpdateLastUsed(ctx, apiKey.ID)

		c.Next()
	}
}
