package quota

import (
	"context"
	"log"
	"time"

	"github.com/botblock/blocklist-api/internal/metrics"
	"github.com/botblock/blocklist-api/internal/models"
	"github.com/botblock/blocklist-api/internal/repository"
	"github.com/google/uuid"
)

const dayFormat = "2006-01-02"

// Usage is a read-only view of an API key's consumption for the current
// UTC day.
type Usage struct {
	Tier      models.Tier
	Used      int64
	Remaining int64
	Unlimited bool
	ResetAt   time.Time
}

// Ledger tracks per-key daily request counts and decides admit/deny.
// All mutation of usage records goes through here.
type Ledger struct {
	usage *repository.UsageRepository
	now   func() time.Time
}

func NewLedger(usage *repository.UsageRepository) *Ledger {
	return &Ledger{
		usage: usage,
		now:   time.Now,
	}
}

// WithClock overrides the ledger's clock. Tests use this to cross UTC
// day boundaries without sleeping.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// CheckAndIncrement charges one request against (key, today) and reports
// whether it was admitted. resetAt is always the next UTC midnight.
//
// When persistence is unreachable the ledger fails OPEN: the request is
// admitted without charge and the degradation is logged and counted.
// Availability over strict accounting, deliberately.
func (l *Ledger) CheckAndIncrement(ctx context.Context, apiKeyID uuid.UUID, tier models.Tier) (bool, time.Time) {
	now := l.now().UTC()
	resetAt := NextUTCMidnight(now)

	admitted, err := l.usage.IncrementIfBelow(ctx, apiKeyID, now.Format(dayFormat), tier.DailyLimit())
	if err != nil {
		log.Printf("quota: persistence unavailable for key %s, admitting without charge: %v", apiKeyID, err)
		metrics.QuotaFailOpen.Inc()
		return true, resetAt
	}

	if !admitted {
		metrics.QuotaDenied.Inc()
	}
	return admitted, resetAt
}

// Snapshot reports current usage without mutating state.
func (l *Ledger) Snapshot(ctx context.Context, apiKeyID uuid.UUID, tier models.Tier) (*Usage, error) {
	now := l.now().UTC()

	used, err := l.usage.Count(ctx, apiKeyID, now.Format(dayFormat))
	if err != nil {
		return nil, err
	}

	u := &Usage{
		Tier:      tier,
		Used:      used,
		Unlimited: tier.IsUnlimited(),
		ResetAt:   NextUTCMidnight(now),
	}
	if !u.Unlimited {
		u.Remaining = tier.DailyLimit() - used
		if u.Remaining < 0 {
			u.Remaining = 0
		}
	}
	return u, nil
}

// NextUTCMidnight returns the first instant of the next UTC calendar
// day after now.
func NextUTCMidnight(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
