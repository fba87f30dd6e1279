package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/quota"
	"github.com/gin-gonic/gin"
)

// QuotaLimit charges one request against the account's daily quota
// before the handler runs. Requires APIKeyAuth earlier in the chain; it
// never re-validates the credential.
func QuotaLimit(ledger *quota.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKeyInterface, exists := c.Get("api_key")
		if !exists || apiKeyInterface == nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "quota check requires an authenticated key",
			})
			c.Abort()
			return
		}
		apiKey := apiKeyInterface.(*models.APIKey)

		ctx := c.Request.Context()
		admitted, resetAt := ledger.CheckAndIncrement(ctx, apiKey.ID, apiKey.Tier)

		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", resetAt.Unix()))
		c.Header("X-RateLimit-Tier", string(apiKey.Tier))
		if !apiKey.Tier.IsUnlimited() {
			c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", apiKey.Tier.DailyLimit()))
		}

		if !admitted {
			wait := time.Until(resetAt)
			retryAfter := int64(wait.Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "quota_exceeded",
				"message":             "Daily request limit reached. Resets in " + quota.FormatResetCountdown(wait),
				"tier":                apiKey.Tier,
				"retry_after_seconds": retryAfter,
				"reset_time":          resetAt.UTC().Format(time.RFC3339),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
