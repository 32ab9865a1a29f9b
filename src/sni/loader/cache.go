package loader

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"sync"
	"time"
)

// CachingLoader wraps another Loader and memoizes its parsed results for a
// short window, so a burst of ContextBuilder runs against the same domain
// (e.g. a reload fanning out across many VIPs that share a cert) doesn't
// re-fetch and re-parse from the backing store — typically Redis via
// RedisLoader — on every call. Entries older than TTL are treated as a
// miss and re-fetched.
type CachingLoader struct {
	Inner Loader
	TTL   time.Duration

	now func() time.Time

	mu    sync.RWMutex
	certs map[string]certEntry
	keys  map[string]keyEntry
}

type certEntry struct {
	cert   *x509.Certificate
	cached time.Time
}

type keyEntry struct {
	key    *rsa.PrivateKey
	cached time.Time
}

// NewCachingLoader wraps inner with a result cache that retains parsed
// certificates and keys for ttl. A ttl of zero or less disables caching
// entirely, so the wrapper degrades to a pass-through rather than a
// permanent cache of stale material.
func NewCachingLoader(inner Loader, ttl time.Duration) *CachingLoader {
	return &CachingLoader{
		Inner: inner,
		TTL:   ttl,
		certs: map[string]certEntry{},
		keys:  map[string]keyEntry{},
	}
}

func (c *CachingLoader) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// LoadCertificate returns a cached parse of certFile if one is still within
// TTL, otherwise delegates to Inner and caches the result.
func (c *CachingLoader) LoadCertificate(ctx context.Context, certFile string) (*x509.Certificate, error) {
	if c.TTL <= 0 {
		return c.Inner.LoadCertificate(ctx, certFile)
	}

	now := c.clock()

	c.mu.RLock()
	entry, ok := c.certs[certFile]
	c.mu.RUnlock()
	if ok && now.Sub(entry.cached) < c.TTL {
		return entry.cert, nil
	}

	cert, err := c.Inner.LoadCertificate(ctx, certFile)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.certs[certFile] = certEntry{cert: cert, cached: now}
	c.mu.Unlock()

	return cert, nil
}

// LoadPrivateKey returns a cached parse of keyFile if one is still within
// TTL, otherwise delegates to Inner and caches the result.
func (c *CachingLoader) LoadPrivateKey(ctx context.Context, keyFile string) (*rsa.PrivateKey, error) {
	if c.TTL <= 0 {
		return c.Inner.LoadPrivateKey(ctx, keyFile)
	}

	now := c.clock()

	c.mu.RLock()
	entry, ok := c.keys[keyFile]
	c.mu.RUnlock()
	if ok && now.Sub(entry.cached) < c.TTL {
		return entry.key, nil
	}

	key, err := c.Inner.LoadPrivateKey(ctx, keyFile)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.keys[keyFile] = keyEntry{key: key, cached: now}
	c.mu.Unlock()

	return key, nil
}
