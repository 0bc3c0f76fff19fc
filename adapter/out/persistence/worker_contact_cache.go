package persistence

import (
	"context"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
	"mailparser_server/pkg/cache"
)

// CachedContactAdapter wraps a contact repository with Redis caching.
type CachedContactAdapter struct {
	delegate out.ContactRepository
	cache    *cache.RedisCache
	ttl      time.Duration
}

// NewCachedContactAdapter creates a new cached contact adapter.
func NewCachedContactAdapter(delegate out.ContactRepository, redisCache *cache.RedisCache) *CachedContactAdapter {
	return &CachedContactAdapter{
		delegate: delegate,
		cache:    redisCache,
		ttl:      30 * time.Minute, // 연락처는 자주 변경되지 않음
	}
}

func contactCacheKey(email string) string {
	return "contact:" + normalizeEmail(email)
}

// Upsert writes through and drops the cached entry.
func (a *CachedContactAdapter) Upsert(ctx context.Context, contact *domain.Contact) error {
	if err := a.delegate.Upsert(ctx, contact); err != nil {
		return err
	}
	_ = a.cache.Delete(ctx, contactCacheKey(contact.Email))
	return nil
}

// GetByEmail gets a contact by email with caching.
func (a *CachedContactAdapter) GetByEmail(ctx context.Context, email string) (*domain.Contact, error) {
	key := contactCacheKey(email)

	// 캐시 확인
	var c domain.Contact
	if found, err := a.cache.GetJSON(ctx, key, &c); err == nil && found {
		return &c, nil
	}

	// DB 조회
	result, err := a.delegate.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	_ = a.cache.SetJSON(ctx, key, result, a.ttl)
	return result, nil
}

var _ out.ContactRepository = (*CachedContactAdapter)(nil)
