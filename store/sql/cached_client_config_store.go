package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/msahq/go-verification/core"
)

const clientConfigCacheKeyPrefix = "go-verification::client_config::v1"

// CachedClientConfigStore wraps a client config store with a read-through
// cache. Delivery configuration is read on every provider callback and every
// notification dispatch but changes rarely, so cache hits dominate.
type CachedClientConfigStore struct {
	base  core.ClientConfigStore
	cache repositorycache.CacheService
}

func NewCachedClientConfigStore(
	base core.ClientConfigStore,
	cacheService repositorycache.CacheService,
) (*CachedClientConfigStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base client config store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: client config cache service is required")
	}
	return &CachedClientConfigStore{base: base, cache: cacheService}, nil
}

// ClientConfigCacheKey returns the deterministic cache key for one
// credential's delivery configuration:
// go-verification::client_config::v1::<credential_id> with the credential
// segment URL-path escaped.
func ClientConfigCacheKey(credentialID string) (string, error) {
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return "", fmt.Errorf("sqlstore: credential id is required")
	}
	return clientConfigCacheKeyPrefix + "::" + url.PathEscape(credentialID), nil
}

func (s *CachedClientConfigStore) GetByCredential(ctx context.Context, credentialID string) (core.ClientWebhookConfig, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ClientWebhookConfig{}, fmt.Errorf("sqlstore: cached client config store is not configured")
	}
	credentialID = strings.TrimSpace(credentialID)
	if credentialID == "" {
		return s.base.GetByCredential(ctx, credentialID)
	}
	cacheKey, err := ClientConfigCacheKey(credentialID)
	if err != nil {
		return core.ClientWebhookConfig{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ClientWebhookConfig, error) {
		return s.base.GetByCredential(ctx, credentialID)
	})
}

// Invalidate drops the cached configuration for a credential, forcing the
// next read through to the base store.
func (s *CachedClientConfigStore) Invalidate(ctx context.Context, credentialID string) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached client config store is not configured")
	}
	cacheKey, err := ClientConfigCacheKey(credentialID)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}
