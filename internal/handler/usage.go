package handler

import (
	"net/http"
	"time"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/quota"
	"github.com/gin-gonic/gin"
)

type UsageHandler struct {
	ledger *quota.Ledger
}

func NewUsageHandler(ledger *quota.Ledger) *UsageHandler {
	return &UsageHandler{ledger: ledger}
}

// Get handles GET /usage. The route sits behind the quota middleware,
// so the lookup itself has already been charged; the snapshot here is
// read-only.
func (h *UsageHandler) Get(c *gin.Context) {
	apiKeyInterface, exists := c.Get("api_key")
	if !exists || apiKeyInterface == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "usage lookup requires an authenticated key"})
		return
	}
	apiKey := apiKeyInterface.(*models.APIKey)

	snap, err := h.ledger.Snapshot(c.Request.Context(), apiKey.ID, apiKey.Tier)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "persistence_unavailable",
		})
		return
	}

	var remaining interface{} = snap.Remaining
	if snap.Unlimited {
		remaining = "unlimited"
	}

	resetIn := int64(time.Until(snap.ResetAt).Seconds())
	if resetIn < 0 {
		resetIn = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":               snap.Tier,
		"used_requests":      snap.Used,
		"remaining_requests": remaining,
		"reset_in_seconds":   resetIn,
		"reset_time":         snap.ResetAt.UTC().Format(time.RFC3339),
	})
}
