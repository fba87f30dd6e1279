package models

// Subscription tier attached to an API key. The tier decides the daily
// request quota; counting resets at UTC midnight.
type Tier string

const (
	TierFree      Tier = "free"
	TierBasic     Tier = "basic"
	TierUnlimited Tier = "unlimited"
)

const (
	freeDailyLimit  = 10
	basicDailyLimit = 100
)

// DailyLimit returns the number of requests the tier may make per UTC
// day, or -1 for unlimited. Unknown tier strings get the free limit.
func (t Tier) DailyLimit() int64 {
	switch t {
	case TierBasic:
		return basicDailyLimit
	case TierUnlimited:
		return -1
	default:
		return freeDailyLimit
	}
}

func (t Tier) IsUnlimited() bool {
	return t == TierUnlimited
}
