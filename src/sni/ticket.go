package sni

import (
	"crypto/tls"
	"sync"
)

// TicketSeeds is the (old, current, new) triple of symmetric keys used to
// mint and decrypt session-resumption tickets. Rotating through three
// seeds overlaps trust windows so tickets issued under the previous
// "current" seed still decrypt during the handover.
type TicketSeeds struct {
	Old     []byte
	Current []byte
	New     []byte
}

// IsEmpty reports whether all three seeds are unset.
func (s TicketSeeds) IsEmpty() bool {
	return len(s.Old) == 0 && len(s.Current) == 0 && len(s.New) == 0
}

// TicketManager owns the seeds backing one context's session tickets. The
// core never inspects the seed bytes beyond propagating them; the actual
// ticket encrypt/decrypt is the TLS library's concern (crypto/tls derives
// its session ticket key from config.SetSessionTicketKeys internally, so
// the manager here is the glue between TicketSeeds and that call).
type TicketManager interface {
	// SetSeeds installs a new (old, current, new) triple, replacing
	// whatever was there before. Implementations must serialize this
	// against concurrent reads.
	SetSeeds(seeds TicketSeeds)

	// Seeds returns the triple currently installed.
	Seeds() TicketSeeds
}

// stdlibTicketManager is a TicketManager backed by a mutex-guarded
// TicketSeeds value, applied to a *tls.Config via SetSessionTicketKeys.
// crypto/tls only accepts fixed-size 32-byte ticket keys and has no
// concept of "old/current/new" natively, so this manager keeps the raw
// seeds for Harvest/Apply round-tripping and derives the config's active
// key set from every non-empty seed via ticketKeysFromSeeds. An all-empty
// triple leaves the config's own automatically rotated keys in place.
type stdlibTicketManager struct {
	mu     sync.RWMutex
	seeds  TicketSeeds
	config *tls.Config
}

func newStdlibTicketManager(config *tls.Config, seeds TicketSeeds) *stdlibTicketManager {
	m := &stdlibTicketManager{config: config}
	m.SetSeeds(seeds)
	return m
}

func (m *stdlibTicketManager) SetSeeds(seeds TicketSeeds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeds = seeds
	if keys := ticketKeysFromSeeds(seeds); len(keys) > 0 {
		m.config.SetSessionTicketKeys(keys)
	}
}

func (m *stdlibTicketManager) Seeds() TicketSeeds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seeds
}

// ticketKeysFromSeeds reduces a TicketSeeds triple to the ordered list of
// 32-byte keys crypto/tls expects, most-preferred first: new (if present),
// then current, then old. tls.Config.SetSessionTicketKeys uses the first
// key to encrypt new tickets and tries every key to decrypt, which is
// exactly the overlap behavior the triple is meant to express.
func ticketKeysFromSeeds(seeds TicketSeeds) [][32]byte {
	var keys [][32]byte
	for _, seed := range [][]byte{seeds.New, seeds.Current, seeds.Old} {
		if len(seed) == 0 {
			continue
		}
		var key [32]byte
		copy(key[:], seed)
		keys = append(keys, key)
	}
	return keys
}

// TicketKeyCoordinator propagates seed rotations to every context sharing
// a VIP and harvests the current seeds for reload cycles, per §4.6.
type TicketKeyCoordinator struct{}

// Harvest checks def then iterates index's contexts in insertion order,
// returning the first non-empty seed triple found. def is checked first
// since it's the common case: index.contexts never holds the default
// context (index.go's insertCertificate only appends non-defaults), so a
// VIP whose only ticketed context is the default would otherwise always
// harvest empty. This assumes every context on a VIP shares identical
// seeds, a documented behavior carried over unchanged rather than
// tightened into an enforced invariant (see Open Question in §9: we keep
// option (a)).
func (TicketKeyCoordinator) Harvest(index *ContextIndex, def *ServerTLSContext) TicketSeeds {
	if def != nil && def.TicketManager != nil {
		if seeds := def.TicketManager.Seeds(); !seeds.IsEmpty() {
			return seeds
		}
	}
	if index == nil {
		return TicketSeeds{}
	}
	for _, ctx := range index.contexts {
		if ctx.TicketManager == nil {
			continue
		}
		if seeds := ctx.TicketManager.Seeds(); !seeds.IsEmpty() {
			return seeds
		}
	}
	return TicketSeeds{}
}

// Apply pushes the triple to every context in the index that has a ticket
// manager, plus the supplied default context if it has one. Each manager
// serializes its own update, so contexts are updated independently
// without a coordinator-wide lock.
func (TicketKeyCoordinator) Apply(index *ContextIndex, def *ServerTLSContext, seeds TicketSeeds) {
	if index != nil {
		for _, ctx := range index.contexts {
			if ctx.TicketManager != nil {
				ctx.TicketManager.SetSeeds(seeds)
			}
		}
	}
	if def != nil && def.TicketManager != nil {
		def.TicketManager.SetSeeds(seeds)
	}
}
