package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/botblock/blocklist-api/internal/blocklist"
	"github.com/gin-gonic/gin"
)

// UpdateHandler triggers a dataset refresh. The route is guarded by a
// dedicated shared secret, separate from the tiered API credentials.
type UpdateHandler struct {
	refresher *blocklist.Refresher
	secret    string
}

func NewUpdateHandler(refresher *blocklist.Refresher, secret string) *UpdateHandler {
	return &UpdateHandler{
		refresher: refresher,
		secret:    secret,
	}
}

// Run handles GET /update-ips
func (h *UpdateHandler) Run(c *gin.Context) {
	provided := c.GetHeader("X-Update-Secret")

	// An unset secret keeps the endpoint closed rather than open
	if h.secret == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "update_secret_invalid"})
		return
	}

	result, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		if errors.Is(err, blocklist.ErrRefreshInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "refresh_in_progress"})
			return
		}

		var allFailed *blocklist.AllFailedError
		if errors.As(err, &allFailed) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":  "dataset_update_failed",
				"detail": "failed to retrieve any valid IP data: " + strings.Join(allFailed.Warnings, "; "),
			})
			return
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":  "dataset_update_failed",
			"detail": err.Error(),
		})
		return
	}

	message := "IP data update completed successfully"
	switch {
	case len(result.Warnings) > 0:
		message = "IP data update completed with partial success"
	case len(result.Updated) == 0:
		message = "IP data already up to date"
	}

	response := gin.H{
		"message": message,
		"data":    result.Data,
	}
	if len(result.Warnings) > 0 {
		response["warnings"] = result.Warnings
	}

	c.JSON(http.StatusOK, response)
}
