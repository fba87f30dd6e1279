package middleware

import (
	"context"
	"log"
	"time"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Buffered channel for async logging
var logChannel chan models.RequestLog

// InitRequestLogger starts the background worker that batches request
// rows into the database so the hot path never waits on an insert.
func InitRequestLogger(repo *repository.RequestLogRepository, bufferSize int) {
	logChannel = make(chan models.RequestLog, bufferSize)

	go func() {
		batch := make([]models.RequestLog, 0, 100)
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case entry := <-logChannel:
				batch = append(batch, entry)

				if len(batch) >= 100 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					insertBatch(repo, batch)
					batch = make([]models.RequestLog, 0, 100)
				}
			}
		}
	}()
}

func insertBatch(repo *repository.RequestLogRepository, logs []models.RequestLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := repo.InsertBatch(ctx, logs); err != nil {
		// Log and move on, request handling must not suffer
		log.Printf("requestlogger: failed to insert %d rows: %v", len(logs), err)
	}
}

// RequestLogger records every handled request. Drops entries instead of
// blocking when the buffer is full.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		var apiKeyID *uuid.UUID
		if v, exists := c.Get("api_key_id"); exists {
			if id, ok := v.(uuid.UUID); ok {
				apiKeyID = &id
			}
		}

		entry := models.RequestLog{
			Timestamp:      start.UTC(),
			APIKeyID:       apiKeyID,
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      c.ClientIP(),
			UserAgent:      c.Request.UserAgent(),
		}

		if logChannel == nil {
			return
		}

		select {
		case logChannel <- entry:
		default:
		}
	}
}
