// keycache.go fetches and caches the identity provider's public signing keys.
//
// Keys are looked up by (issuer, kid). A lookup that misses the cached key set
// triggers one fetch of {issuer}/.well-known/jwks.json, which replaces the
// issuer's key set wholesale; if the kid is still absent ErrKeyNotFound is returned.
// Fetch and parse failures are returned as *KeyRetrievalError.
//
// Two fetch strategies are supported:
//   - jwk cache (default): issuers are registered lazily with a jwx jwk.Cache
//     which keeps the key set fresh in the background. Registration waits for the
//     initial fetch (at most HTTPTimeout); later kid misses force a synchronous refresh.
//   - direct (SkipJWKCache): each miss fetches the key set with jwk.Fetch and
//     the result is held in memory until the next miss.
//
// Concurrent misses may refresh the same issuer more than once; this is harmless
// because every refresh converges on the same published key set.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// SigningKeySource resolves an issuer's public signing key by key id.
type SigningKeySource interface {
	// GetKey returns ErrKeyNotFound when the kid is not published by the issuer and
	// *KeyRetrievalError when the issuer's keys could not be retrieved.
	GetKey(ctx context.Context, issuer, keyID string) (jwk.Key, error)
}

// KeyCacheConfig holds configuration for the KeyCache.
type KeyCacheConfig struct {
	// HTTPTimeout is the timeout for HTTP requests to fetch JWK sets (direct strategy).
	HTTPTimeout time.Duration

	// SkipJWKCache selects the direct fetch strategy instead of the background refreshing jwk.Cache
	SkipJWKCache bool

	// JWKCacheMinRefreshInterval is the minimum interval between background JWK cache refreshes.
	JWKCacheMinRefreshInterval time.Duration

	// JWKCacheMaxRefreshInterval is the maximum interval between background JWK cache refreshes.
	JWKCacheMaxRefreshInterval time.Duration
}

// NewKeyCacheConfig creates a new KeyCacheConfig with the specified parameters.
func NewKeyCacheConfig(httpTimeout time.Duration, skipJWKCache bool, minRefreshInterval, maxRefreshInterval time.Duration) *KeyCacheConfig {
	return &KeyCacheConfig{
		HTTPTimeout:                httpTimeout,
		SkipJWKCache:               skipJWKCache,
		JWKCacheMinRefreshInterval: minRefreshInterval,
		JWKCacheMaxRefreshInterval: maxRefreshInterval,
	}
}

// KeyCache implements SigningKeySource.
type KeyCache struct {
	// jwkCache is the auto-refreshing cache for remote JWK sets (nil with SkipJWKCache).
	jwkCache *jwk.Cache

	// keySets holds the most recently fetched key set per issuer (direct strategy).
	keySets map[string]jwk.Set

	// mu protects keySets
	mu sync.RWMutex

	// httpClient is the HTTP client used for direct fetches.
	httpClient *http.Client

	logger *slog.Logger
	config *KeyCacheConfig
}

// NewKeyCache creates a KeyCache. ctx bounds the lifetime of the background
// refresh workers when the jwk cache strategy is used.
func NewKeyCache(ctx context.Context, config *KeyCacheConfig, logger *slog.Logger) (*KeyCache, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if config.HTTPTimeout == 0 {
		return nil, fmt.Errorf("HTTPTimeout is required")
	}

	k := &KeyCache{
		keySets: make(map[string]jwk.Set),
		httpClient: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		logger: logger,
		config: config,
	}

	if config.SkipJWKCache {
		logger.Info("JWK cache disabled - signing keys are fetched on cache miss")
		return k, nil
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient(httprc.WithHTTPClient(k.httpClient)))
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK cache: %w", err)
	}
	k.jwkCache = cache

	logger.Debug("JWK cache initialized",
		slog.Duration("min_refresh", config.JWKCacheMinRefreshInterval),
		slog.Duration("max_refresh", config.JWKCacheMaxRefreshInterval))

	return k, nil
}

// GetKey implements SigningKeySource.
func (k *KeyCache) GetKey(ctx context.Context, issuer, keyID string) (jwk.Key, error) {
	if issuer == "" {
		return nil, &KeyRetrievalError{Issuer: issuer, Err: fmt.Errorf("issuer is required")}
	}
	if keyID == "" {
		return nil, fmt.Errorf("%w: kid is empty", ErrKeyNotFound)
	}

	if set, ok := k.cachedSet(ctx, issuer); ok {
		if key, found := set.LookupKeyID(keyID); found {
			return key, nil
		}
	}

	k.logger.Debug("signing key cache miss - refreshing key set",
		slog.String("issuer", issuer),
		slog.String("kid", keyID))

	set, err := k.refresh(ctx, issuer)
	if err != nil {
		return nil, &KeyRetrievalError{Issuer: issuer, Err: err}
	}

	key, found := set.LookupKeyID(keyID)
	if !found {
		return nil, fmt.Errorf("%w: kid %s not published by %s", ErrKeyNotFound, keyID, issuer)
	}
	return key, nil
}

// cachedSet returns the issuer's key set without network I/O where possible.
func (k *KeyCache) cachedSet(ctx context.Context, issuer string) (jwk.Set, bool) {
	if k.jwkCache != nil {
		u := JWKSURL(issuer)
		if !k.jwkCache.IsRegistered(ctx, u) {
			return nil, false
		}
		set, err := k.jwkCache.Lookup(ctx, u)
		if err != nil {
			k.logger.Debug("failed to lookup JWK set from cache",
				slog.String("jwk_url", u),
				slog.String("error", err.Error()))
			return nil, false
		}
		return set, true
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	set, ok := k.keySets[issuer]
	return set, ok
}

// refresh fetches the issuer's published key set and replaces the cached copy.
func (k *KeyCache) refresh(ctx context.Context, issuer string) (jwk.Set, error) {
	u := JWKSURL(issuer)

	if k.jwkCache != nil {
		if !k.jwkCache.IsRegistered(ctx, u) {
			set, registered, err := k.register(ctx, u)
			if err != nil {
				return nil, err
			}
			if registered {
				return set, nil
			}
		}

		set, err := k.jwkCache.Refresh(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh JWK set from %s: %w", u, err)
		}
		return set, nil
	}

	set, err := jwk.Fetch(ctx, u, jwk.WithHTTPClient(k.httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWK set from %s: %w", u, err)
	}

	k.mu.Lock()
	k.keySets[issuer] = set
	k.mu.Unlock()

	k.logger.Debug("JWK set refreshed",
		slog.String("jwk_url", u),
		slog.Int("keys", set.Len()))

	return set, nil
}

// register adds the JWKS endpoint u to the jwk cache and waits for its initial fetch.
// registered is false when a concurrent miss registered u first, in which case the
// caller refreshes instead.
func (k *KeyCache) register(ctx context.Context, u string) (set jwk.Set, registered bool, err error) {
	// a failed initial fetch never becomes ready, so the wait is bounded
	waitCtx, cancel := context.WithTimeout(ctx, k.config.HTTPTimeout)
	defer cancel()

	err = k.jwkCache.Register(waitCtx, u,
		jwk.WithMinInterval(k.config.JWKCacheMinRefreshInterval),
		jwk.WithMaxInterval(k.config.JWKCacheMaxRefreshInterval),
	)
	switch {
	case err == nil:
	case errors.Is(err, httprc.ErrNotReady()):
		// u stays registered; the next miss refreshes it synchronously
		return nil, false, fmt.Errorf("initial fetch of JWK set from %s did not complete: %w", u, err)
	case k.jwkCache.IsRegistered(ctx, u):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("failed to register JWK endpoint %s: %w", u, err)
	}

	k.logger.Info("registered JWK endpoint for background refresh",
		slog.String("jwk_url", u))

	set, err = k.jwkCache.Lookup(ctx, u)
	if err != nil {
		return nil, false, fmt.Errorf("failed to lookup JWK set from %s: %w", u, err)
	}
	return set, true, nil
}

// ClearCache drops every cached key set (direct strategy only)
func (k *KeyCache) ClearCache() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keySets = make(map[string]jwk.Set)
}
