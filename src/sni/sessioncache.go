package sni

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionCacheManager owns TLS session state for one context's session-
// cache context ID (§4.2 step 9). crypto/tls already caches client-side
// session tickets via tls.ClientSessionCache; on the server side there is
// no equivalent built-in store, so the manager here is installed on
// tls.Config.ClientSessionCache, which crypto/tls consults only when this
// process also originates client connections under the same config (rare,
// but kept for parity with the source, which shares one cache type across
// both roles).
type SessionCacheManager interface {
	tls.ClientSessionCache

	// ContextID is the session-cache context ID this manager was
	// initialized with (config.session_context, or the cert CN).
	ContextID() string
}

// inMemorySessionCache is the default SessionCacheManager: a process-local
// map guarded by a RWMutex, with no external backing.
type inMemorySessionCache struct {
	contextID string
	mutex     sync.RWMutex
	entries   map[string]*tls.ClientSessionState
}

func newInMemorySessionCache(contextID string) *inMemorySessionCache {
	return &inMemorySessionCache{
		contextID: contextID,
		entries:   make(map[string]*tls.ClientSessionState),
	}
}

func (c *inMemorySessionCache) ContextID() string { return c.contextID }

func (c *inMemorySessionCache) Get(key string) (*tls.ClientSessionState, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	state, ok := c.entries[key]
	return state, ok
}

func (c *inMemorySessionCache) Put(key string, state *tls.ClientSessionState) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if state == nil {
		delete(c.entries, key)
		return
	}
	c.entries[key] = state
}

// CacheOptions configures the session cache installed for a freshly built
// context, mirroring the "ambient parameters" ContextBuilder takes
// alongside a ContextConfig (§4.2).
type CacheOptions struct {
	// MaxAge is passed through ContextBuilder.Build but is not read by
	// any session cache manager: Redis entries are stored without expiry
	// and are used regardless of their age.
	MaxAge time.Duration
}

// ExternalCache is the offload hook a SessionCacheManager consults before
// falling back to its own process-local map, modeling the source's
// external session-cache backing (e.g. shared across a fleet of
// terminators so a client can resume against any of them).
type ExternalCache interface {
	Get(ctx context.Context, key string) (*tls.ClientSessionState, error)
	Put(ctx context.Context, key string, state *tls.ClientSessionState) error
}

// RedisCache is an ExternalCache backed by Redis, storing each session's
// serialized state as a string value at `session:<contextID>:<key>`, following the
// same `ssl:<name>` key-namespacing idiom the certificate loader uses for
// offloaded certificates.
type RedisCache struct {
	Client    *redis.Client
	ContextID string
}

func redisSessionKey(contextID, key string) string {
	return "session:" + contextID + ":" + key
}

// Get fetches a cached session ticket. A redis.Nil miss is reported as
// (nil, nil), matching ExternalCache's "no error, no entry" contract.
func (c *RedisCache) Get(ctx context.Context, key string) (*tls.ClientSessionState, error) {
	data, err := c.Client.Get(ctx, redisSessionKey(c.ContextID, key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	state := new(tls.ClientSessionState)
	if err := state.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return state, nil
}

// Put stores a session ticket for later resumption by any terminator
// sharing this Redis instance.
func (c *RedisCache) Put(ctx context.Context, key string, state *tls.ClientSessionState) error {
	data, err := state.MarshalBinary()
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, redisSessionKey(c.ContextID, key), data, 0).Err()
}

// offloadedSessionCache wraps inMemorySessionCache with an ExternalCache
// consulted first, falling back to the local map on miss or error so an
// unreachable external store does not break session lookups.
type offloadedSessionCache struct {
	*inMemorySessionCache
	external ExternalCache
}

func newOffloadedSessionCache(contextID string, external ExternalCache) *offloadedSessionCache {
	return &offloadedSessionCache{
		inMemorySessionCache: newInMemorySessionCache(contextID),
		external:             external,
	}
}

func (c *offloadedSessionCache) Get(key string) (*tls.ClientSessionState, bool) {
	ctx := context.Background()
	if state, err := c.external.Get(ctx, key); err == nil && state != nil {
		return state, true
	}
	return c.inMemorySessionCache.Get(key)
}

func (c *offloadedSessionCache) Put(key string, state *tls.ClientSessionState) {
	c.inMemorySessionCache.Put(key, state)
	_ = c.external.Put(context.Background(), key, state)
}

// newSessionCacheManager builds the SessionCacheManager for one context,
// per §4.2 step 9: prefer the external cache when one was supplied for
// this VIP, else keep sessions process-local.
func newSessionCacheManager(contextID string, external ExternalCache) SessionCacheManager {
	if external != nil {
		return newOffloadedSessionCache(contextID, external)
	}
	return newInMemorySessionCache(contextID)
}
