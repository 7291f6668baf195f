package earnings

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"epschart/cache"
	"epschart/credential"
)

// Service resolves the request URL for a credential, fetches it and memoizes
// successful series.
type Service struct {
	client   *Client
	resolver credential.Resolver
	cache    *cache.Cache
	ttl      time.Duration
}

func NewService(client *Client, resolver credential.Resolver, c *cache.Cache, ttl time.Duration) *Service {
	return &Service{client: client, resolver: resolver, cache: c, ttl: ttl}
}

// Lookup returns the earnings series for ticker using cred.
func (s *Service) Lookup(ctx context.Context, cred credential.Credential, ticker string) (Series, error) {
	url := s.resolver.Resolve(cred, ticker)
	series, err := cache.Memoize(ctx, s.cache, cacheKey(cred, ticker), s.ttl, func() (Series, error) {
		return s.client.Fetch(ctx, url)
	})
	if err != nil {
		return Series{}, err
	}
	if series.Symbol == "" {
		series.Symbol = ticker
	}
	return series, nil
}

// cacheKey scopes direct-mode entries to a digest of the user's key, so one
// key's results are never served to another.
func cacheKey(cred credential.Credential, ticker string) string {
	if cred.Mode == credential.ModeDirect {
		sum := sha256.Sum256([]byte(cred.Key))
		return fmt.Sprintf("earnings:%s:%x:%s", cred.Mode, sum[:8], strings.ToUpper(ticker))
	}
	return fmt.Sprintf("earnings:%s:%s", cred.Mode, strings.ToUpper(ticker))
}
