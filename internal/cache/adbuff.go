// internal/cache/adbuff.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"business-empire/internal/models"

	"github.com/redis/go-redis/v9"
)

const adKeyPrefix = "ad:"

// AdTier describes a purchasable ad campaign. Cost is minor units, boost is
// basis points on gross product income.
type AdTier struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Cost     int64  `json:"cost"`
	BoostBps int64  `json:"boostBps"`
	Days     int    `json:"days"`
}

// AdTiers is the fixed campaign menu.
var AdTiers = []AdTier{
	{Key: "basic", Name: "Basic Promotion", Cost: 500, BoostBps: 500, Days: 3},
	{Key: "standard", Name: "Standard Campaign", Cost: 1500, BoostBps: 1000, Days: 5},
	{Key: "premium", Name: "Premium Marketing", Cost: 4000, BoostBps: 2000, Days: 7},
	{Key: "viral", Name: "Viral Blitz", Cost: 10000, BoostBps: 3500, Days: 10},
}

// TierByKey returns the tier definition for a key.
func TierByKey(key string) (AdTier, bool) {
	for _, t := range AdTiers {
		if t.Key == key {
			return t, true
		}
	}
	return AdTier{}, false
}

var ErrAdActive = errors.New("company already has an active ad campaign")

type adPayload struct {
	Tier     string `json:"tier"`
	BoostBps int64  `json:"boostBps"`
}

// AdStore keeps active ad campaigns in Redis, expiry handled by key TTL.
type AdStore struct {
	client *redis.Client
}

func NewAdStore(client *redis.Client) *AdStore {
	return &AdStore{client: client}
}

func adKey(companyID int64) string {
	return fmt.Sprintf("%s%d", adKeyPrefix, companyID)
}

// Buy starts a campaign for a company. One active campaign per company.
func (s *AdStore) Buy(ctx context.Context, companyID int64, tierKey string) (AdTier, error) {
	tier, ok := TierByKey(tierKey)
	if !ok {
		return AdTier{}, fmt.Errorf("unknown ad tier %q", tierKey)
	}

	raw, err := json.Marshal(adPayload{Tier: tier.Key, BoostBps: tier.BoostBps})
	if err != nil {
		return AdTier{}, err
	}

	ttl := time.Duration(tier.Days) * 24 * time.Hour
	set, err := s.client.SetNX(ctx, adKey(companyID), raw, ttl).Result()
	if err != nil {
		return AdTier{}, fmt.Errorf("ad store write failed: %w", err)
	}
	if !set {
		return AdTier{}, ErrAdActive
	}
	return tier, nil
}

// Active returns the company's running campaign, or nil when none is active.
func (s *AdStore) Active(ctx context.Context, companyID int64) (*models.AdBuff, error) {
	key := adKey(companyID)

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ad store read failed: %w", err)
	}

	var payload adPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// Corrupt entry: treat as no buff rather than failing settlement.
		return nil, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("ad store ttl read failed: %w", err)
	}

	return &models.AdBuff{
		Tier:      payload.Tier,
		BoostBps:  payload.BoostBps,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

// BoostBps returns the active campaign's boost, zero when none.
func (s *AdStore) BoostBps(ctx context.Context, companyID int64) (int64, error) {
	buff, err := s.Active(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if buff == nil {
		return 0, nil
	}
	return buff.BoostBps, nil
}

// Cancel drops the active campaign, used to roll back a failed purchase.
func (s *AdStore) Cancel(ctx context.Context, companyID int64) (bool, error) {
	n, err := s.client.Del(ctx, adKey(companyID)).Result()
	if err != nil {
		return false, fmt.Errorf("ad store delete failed: %w", err)
	}
	return n > 0, nil
}
