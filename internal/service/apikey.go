package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/repository"
	"github.com/google/uuid"
)

type APIKeyService struct {
	repository *repository.APIKeyRepository
}

func NewAPIKeyService(repo *repository.APIKeyRepository) *APIKeyService {
	return &APIKeyService{
		repository: repo,
	}
}

// Create mints a new key for an operator. The plain key is returned once
// and only its hash is stored.
func (s *APIKeyService) Create(ctx context.Context, name, createdBy string, tier models.Tier) (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate random key: %w", err)
	}

	key := "bl_" + base64.URLEncoding.EncodeToString(keyBytes)

	apiKey := models.APIKey{
		KeyHash:   hashKey(key),
		Name:      name,
		CreatedBy: createdBy,
		Tier:      tier,
		IsActive:  true,
	}

	if err := s.repository.Create(ctx, &apiKey); err != nil {
		return "", fmt.Errorf("failed to create API key: %w", err)
	}

	return key, nil
}

// Validate maps a presented key to its stored record, nil when the key
// is unknown or deactivated. Lookups always hit the database: revocation
// happens out-of-band and must be observed promptly, so validation
// results are deliberately not cached.
func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	return s.repository.FindByHash(ctx, hashKey(key))
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repository.List(ctx)
}

// Deactivate revokes a key. The next Validate observes it immediately.
func (s *APIKeyService) Deactivate(ctx context.Context, id string) error {
	return s.repository.Update(ctx, id, map[string]interface{}{"is_active": false})
}

func (s *APIKeyService) UpdateLastUsed(ctx context.Context, id uuid.UUID) {
	// Best effort, runs off the request path
	s.repository.UpdateLastUsed(ctx, id)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
