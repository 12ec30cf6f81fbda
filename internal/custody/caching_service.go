package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/stellar/anchor-deposits-processor/pkg/anchor"
)

const (
	DefaultDistributionAccountCacheMaxEntries = 100
	DefaultDistributionAccountCacheTTL        = 2 * time.Minute
)

// CachingService decorates a Custody implementation with a small expiring cache over
// GetDistributionAccount, which external custody backends resolve with a network call
// per asset.
type CachingService struct {
	anchor.Custody
	cache *expirable.LRU[string, string]
}

func NewCachingService(wrapped anchor.Custody, ttl time.Duration, maxEntries int) (*CachingService, error) {
	if wrapped == nil {
		return nil, fmt.Errorf("wrapped custody cannot be nil")
	}
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than zero")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ttl must be greater than zero")
	}

	return &CachingService{
		Custody: wrapped,
		cache:   expirable.NewLRU[string, string](maxEntries, nil, ttl),
	}, nil
}

var _ anchor.Custody = (*CachingService)(nil)

func (s *CachingService) GetDistributionAccount(ctx context.Context, asset anchor.Asset) (string, error) {
	cacheKey := fmt.Sprintf("%s:%s", asset.Code, asset.Issuer)
	if account, ok := s.cache.Get(cacheKey); ok {
		return account, nil
	}

	account, err := s.Custody.GetDistributionAccount(ctx, asset)
	if err != nil {
		// ErrDistributionAccountUnavailable included: capability answers are not cached
		// so a custody that gains an account is picked up promptly.
		return "", err
	}

	s.cache.Add(cacheKey, account)
	return account, nil
}
