package repository

import (
	"context"

	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

// IncrementIfBelow admits and charges one request for (apiKeyID, day) in
// a single atomic statement. limit < 0 means unbounded. Returns false
// without touching the stored count when the record is already at the
// cap: a denied request is never charged.
//
// The guarded UPDATE and the ON CONFLICT DO NOTHING insert together give
// a linearizable read-modify-write per (key, day) without explicit row
// locks; two racers on a missing record resolve through the unique index
// and one retry.
func (r *UsageRepository) IncrementIfBelow(ctx context.Context, apiKeyID uuid.UUID, day string, limit int64) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		q := r.db.DB.WithContext(ctx).
			Model(&models.UsageRecord{}).
			Where("api_key_id = ? AND day = ?", apiKeyID, day)
		if limit >= 0 {
			q = q.Where("request_count < ?", limit)
		}

		res := q.Update("request_count", gorm.Expr("request_count + 1"))
		if res.Error != nil {
			return false, res.Error
		}
		if res.RowsAffected > 0 {
			return true, nil
		}

		// Nothing moved: either the row is at the cap or it does not
		// exist yet.
		var existing int64
		err := r.db.DB.WithContext(ctx).
			Model(&models.UsageRecord{}).
			Where("api_key_id = ? AND day = ?", apiKeyID, day).
			Count(&existing).Error
		if err != nil {
			return false, err
		}
		if existing > 0 {
			return false, nil
		}

		// First request of the day. A concurrent racer may create the
		// row between the UPDATE and here; DO NOTHING hands the loser
		// back to the update path on the next iteration.
		record := models.UsageRecord{
			APIKeyID:     apiKeyID,
			Day:          day,
			RequestCount: 1,
		}
		ins := r.db.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&record)
		if ins.Error != nil {
			return false, ins.Error
		}
		if ins.RowsAffected > 0 {
			return true, nil
		}
	}

	// Lost the creation race twice over; treat as denied rather than
	// charging outside the atomic path.
	return false, nil
}

// Count returns the stored request count for (apiKeyID, day), zero when
// no record exists yet. Read-only.
func (r *UsageRepository) Count(ctx context.Context, apiKeyID uuid.UUID, day string) (int64, error) {
	var record models.UsageRecord
	err := r.db.DB.WithContext(ctx).
		Where("api_key_id = ? AND day = ?", apiKeyID, day).
		First(&record).Error

	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return record.RequestCount, nil
}
