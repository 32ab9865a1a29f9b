package sni

import (
	"context"
	"crypto/tls"
	"sync"

	"go.uber.org/atomic"
)

// Registry is the top-level facade of §4.5: it owns the current
// ContextIndex and default context for one VIP, and implements the
// atomic reset and ticket-key reload protocols.
//
// The index is held in an atomic.Value so handshake reads (via the
// installed SniDispatcher) never block behind the mutex that serializes
// control-plane writers: every write builds a new index and swaps it in
// (copy-on-write) rather than editing the live one.
type Registry struct {
	VipAddress string
	Strict     bool

	builder *ContextBuilder
	stats   Stats

	mu    sync.Mutex
	index atomic.Value // *ContextIndex
	def   atomic.Value // *ServerTLSContext
	coord TicketKeyCoordinator
}

// NewRegistry constructs an empty Registry for one VIP. builder supplies
// the certificate/key loaders to use for every context built through this
// Registry.
func NewRegistry(vipAddress string, strict bool, builder *ContextBuilder) *Registry {
	r := &Registry{
		VipAddress: vipAddress,
		Strict:     strict,
		builder:    builder,
	}
	r.index.Store(newContextIndex(strict))
	r.def.Store((*ServerTLSContext)(nil))
	return r
}

func (r *Registry) currentIndex() *ContextIndex {
	return r.index.Load().(*ContextIndex)
}

func (r *Registry) currentDefault() *ServerTLSContext {
	ctx, _ := r.def.Load().(*ServerTLSContext)
	return ctx
}

// AddContext builds and installs one context into the current index,
// per §4.5. Control-plane calls are serialized against each other by
// r.mu; handshake reads never take this lock.
func (r *Registry) AddContext(
	ctx context.Context,
	config ContextConfig,
	cacheOpts CacheOptions,
	seeds TicketSeeds,
	external ExternalCache,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.currentIndex()
	next := cloneIndex(current)

	built, err := r.builder.Build(ctx, config, cacheOpts, seeds, external, next, r.currentDefault() != nil)
	if err != nil {
		return err
	}

	if built.IsDefault() {
		r.def.Store(built)
	}
	r.rebindDefaultDispatcher(next)

	r.index.Store(next)
	return nil
}

// ResetContexts builds a completely new index from configs and atomically
// swaps it in, per §4.5. When seeds is empty, the current index's seeds
// are harvested first so the reload preserves session resumption.
func (r *Registry) ResetContexts(
	ctx context.Context,
	configs []ContextConfig,
	cacheOpts CacheOptions,
	seeds TicketSeeds,
	external ExternalCache,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seeds.IsEmpty() {
		seeds = r.coord.Harvest(r.currentIndex(), r.currentDefault())
	}

	next := newContextIndex(r.Strict)
	var newDefault *ServerTLSContext
	haveDefault := false

	for _, config := range configs {
		built, err := r.builder.Build(ctx, config, cacheOpts, seeds, external, next, haveDefault)
		if err != nil {
			if r.Strict {
				return err
			}
			continue
		}
		if built.IsDefault() {
			newDefault = built
			haveDefault = true
		}
	}

	if newDefault != nil {
		r.def.Store(newDefault)
	}
	r.rebindDefaultDispatcher(next)
	r.index.Store(next)
	return nil
}

// RemoveByDomain removes all entries for a raw domain name. Removing a
// name whose key is in defaultKeys fails with CannotRemoveDefault.
func (r *Registry) RemoveByDomain(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneIndex(r.currentIndex())
	if err := next.removeByDomain(name); err != nil {
		return err
	}
	r.rebindDefaultDispatcher(next)
	r.index.Store(next)
	return nil
}

// RemoveByKey removes a single ContextKey entry.
func (r *Registry) RemoveByKey(key ContextKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := cloneIndex(r.currentIndex())
	if err := next.removeByKey(key); err != nil {
		return err
	}
	r.rebindDefaultDispatcher(next)
	r.index.Store(next)
	return nil
}

// ReloadTicketKeys pushes a new (old, current, new) seed triple to every
// context's ticket manager plus the default context, per §4.6.
func (r *Registry) ReloadTicketKeys(seeds TicketSeeds) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.coord.Apply(r.currentIndex(), r.currentDefault(), seeds)
}

// Dispatch runs the SNI dispatch algorithm against the current index using
// an arbitrary Session, bypassing the tls.Config.GetConfigForClient wiring.
// It exists for tooling and tests that need to drive the dispatcher with a
// Session whose ClientHelloInfo() isn't derived from a real
// *tls.ClientHelloInfo (see stdlibSession's HadSNIExtension approximation).
func (r *Registry) Dispatch(session Session) DispatchResult {
	dispatcher := newSniDispatcher(r.currentIndex(), r.stats)
	return dispatcher.OnClientHello(session)
}

// GetDefault returns the current default context, or nil if none is set.
func (r *Registry) GetDefault() *ServerTLSContext {
	return r.currentDefault()
}

// GetByKey resolves a key to a context, following defaultKeys to the
// default context the way the dispatcher's lookup does.
func (r *Registry) GetByKey(key ContextKey) (*ServerTLSContext, bool) {
	result := r.currentIndex().lookup(key)
	if !result.found {
		return nil, false
	}
	if result.isDefault {
		return r.currentDefault(), true
	}
	return result.ctx, true
}

// GetByExact resolves key against byName only, ignoring wildcard suffix
// fallback.
func (r *Registry) GetByExact(key ContextKey) (*ServerTLSContext, bool) {
	idx := r.currentIndex()
	if ctx, ok := idx.byName[key]; ok {
		return ctx, true
	}
	if _, ok := idx.defaultKeys[key]; ok {
		return r.currentDefault(), true
	}
	return nil, false
}

// GetBySuffix resolves key's one-level wildcard suffix only.
func (r *Registry) GetBySuffix(key ContextKey) (*ServerTLSContext, bool) {
	suffix, ok := key.Name.Suffix()
	if !ok {
		return nil, false
	}
	return r.GetByExact(newContextKey(suffix, key.Crypto))
}

// SetClientHelloStats rebinds the SNI callback on the default context
// with a new Stats sink, re-capturing the current ContextIndex by shared
// reference, per §4.5 and the back-reference resolution in §9.
func (r *Registry) SetClientHelloStats(stats Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats = stats
	r.rebindDefaultDispatcher(r.currentIndex())
}

// rebindDefaultDispatcher installs a fresh SniDispatcher capturing index
// and r.stats onto the default context's GetConfigForClient hook. It must
// be called with r.mu held, and after r.def holds this operation's final
// default; the index is passed in because callers rebind before storing
// it into r.index.
func (r *Registry) rebindDefaultDispatcher(index *ContextIndex) {
	def := r.currentDefault()
	if def == nil || def.Config == nil {
		return
	}
	dispatcher := newSniDispatcher(index, r.stats)
	def.Config.GetConfigForClient = func(hello *tls.ClientHelloInfo) (*tls.Config, error) {
		session := newStdlibSession(hello)
		dispatcher.OnClientHello(session)
		// A nil config tells crypto/tls to keep using the config this
		// callback is installed on, which is exactly "stay on default".
		return session.Config(), nil
	}
}

// cloneIndex produces a shallow copy of idx suitable for incremental
// mutation by AddContext/RemoveByDomain/RemoveByKey without disturbing
// the index any in-flight handshake is still reading.
func cloneIndex(idx *ContextIndex) *ContextIndex {
	next := newContextIndex(idx.strict)
	next.contexts = append(next.contexts, idx.contexts...)
	for k, v := range idx.byName {
		next.byName[k] = v
	}
	for k := range idx.defaultKeys {
		next.defaultKeys[k] = struct{}{}
	}
	next.defaultDomain = idx.defaultDomain
	return next
}
