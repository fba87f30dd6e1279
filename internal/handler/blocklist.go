package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/botblock/blocklist-api/internal/blocklist"
	"github.com/botblock/blocklist-api/internal/cache"
	"github.com/gin-gonic/gin"
)

const (
	cacheKeyAll         = "blocklist:all"
	cacheKeyAgentPrefix = "blocklist:agent:"
)

// BlocklistHandler serves the crawler address-range dataset. Responses
// are memoized in the cache for the configured TTL; the refresher never
// invalidates them, staleness up to the TTL is accepted.
type BlocklistHandler struct {
	store    *blocklist.Store
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewBlocklistHandler(store *blocklist.Store, c cache.Cache, ttl time.Duration) *BlocklistHandler {
	return &BlocklistHandler{
		store:    store,
		cache:    c,
		cacheTTL: ttl,
	}
}

// GetAll handles GET /block-ips
func (h *BlocklistHandler) GetAll(c *gin.Context) {
	ctx := c.Request.Context()

	if body, ok := h.cache.Get(ctx, cacheKeyAll); ok {
		c.Data(http.StatusOK, "application/json", body)
		return
	}

	payload := map[string]blocklist.Dataset{blocklist.ProviderKey: h.store.All()}
	body, err := json.Marshal(payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode dataset"})
		return
	}

	h.cache.Set(ctx, cacheKeyAll, body, h.cacheTTL)
	c.Data(http.StatusOK, "application/json", body)
}

// GetAgent handles GET /block-ips/:agent. A tracked agent with zero
// ranges is a 200 with an empty list; only unknown agents 404.
func (h *BlocklistHandler) GetAgent(c *gin.Context) {
	agent := c.Param("agent")
	ctx := c.Request.Context()

	cacheKey := cacheKeyAgentPrefix + agent
	if body, ok := h.cache.Get(ctx, cacheKey); ok {
		c.Data(http.StatusOK, "application/json", body)
		return
	}

	ranges, ok := h.store.Agent(agent)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "agent_not_found",
			"message": "unknown agent: " + agent,
		})
		return
	}

	body, err := json.Marshal(map[string][]string{agent: ranges})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode dataset"})
		return
	}

	h.cache.Set(ctx, cacheKey, body, h.cacheTTL)
	c.Data(http.StatusOK, "application/json", body)
}
