package sni

import (
	"sort"

	"go.uber.org/multierr"
)

// ContextIndex is the domain-name to context mapping described in §3: an
// ordered list of non-default contexts, a lookup map keyed by
// ContextKey, and the set of keys that resolve to the Registry's default
// context instead of an entry in the map.
//
// A ContextIndex is built once by a sequence of insert calls and never
// mutated afterward; the Registry swaps the whole value atomically rather
// than editing a live one, so none of its methods need their own locking.
type ContextIndex struct {
	contexts      []*ServerTLSContext
	byName        map[ContextKey]*ServerTLSContext
	defaultKeys   map[ContextKey]struct{}
	defaultDomain DomainName
	strict        bool
}

// newContextIndex returns an empty index. strict selects the §4.3/§7
// error policy applied by insertCertificate.
func newContextIndex(strict bool) *ContextIndex {
	return &ContextIndex{
		byName:      make(map[ContextKey]*ServerTLSContext),
		defaultKeys: make(map[ContextKey]struct{}),
		strict:      strict,
	}
}

// insertCertificate registers ctx under every name derived from its CN and
// DNS SANs, per §4.3. Normalization or collision failures are collected;
// in strict mode the first such error aborts immediately, in lax mode the
// offending name is skipped and the rest of the names are still tried.
func (idx *ContextIndex) insertCertificate(ctx *ServerTLSContext) error {
	names := uniqueSorted(append([]string{ctx.CommonName}, ctx.SANs...))

	var errs error
	for _, raw := range names {
		if err := idx.insertName(raw, ctx); err != nil {
			if idx.strict {
				return err
			}
			errs = multierr.Append(errs, err)
		}
	}

	if ctx.isDefault {
		if IsStarCert(ctx.CommonName) {
			idx.defaultDomain = DomainName{Key: ctx.CommonName, Unicode: ctx.CommonName}
		} else if domain, err := NewDomainName(ctx.CommonName); err == nil {
			idx.defaultDomain = domain
		}
	} else {
		for _, c := range idx.contexts {
			if c == ctx {
				return errs
			}
		}
		idx.contexts = append(idx.contexts, ctx)
	}

	return errs
}

// insertName implements insert_name from §4.3: normalize, derive the
// primary key, dispatch to insert_default or insert_map, then repeat for
// the BestAvailable fallback key when the certificate is SHA-1.
func (idx *ContextIndex) insertName(rawName string, ctx *ServerTLSContext) error {
	if IsStarCert(rawName) {
		if !ctx.isDefault {
			return newError(StarCertNotDefault, rawName)
		}
		return nil
	}

	name, err := NewDomainName(rawName)
	if err != nil {
		return err
	}

	primary := newContextKey(name, ctx.Crypto)
	if ctx.isDefault {
		idx.insertDefault(primary, true)
	} else {
		idx.insertMap(primary, ctx, true)
	}

	if ctx.Crypto == Sha1Signature {
		weak := newContextKey(name, BestAvailable)
		if ctx.isDefault {
			idx.insertDefault(weak, false)
		} else {
			idx.insertMap(weak, ctx, false)
		}
	}

	return nil
}

// insertMap is the decision table from §4.3: insert or replace an entry
// in byName, respecting whatever is already in defaultKeys.
func (idx *ContextIndex) insertMap(k ContextKey, ctx *ServerTLSContext, overwrite bool) {
	_, inMap := idx.byName[k]
	_, inDefault := idx.defaultKeys[k]

	switch {
	case !inMap && !inDefault:
		idx.byName[k] = ctx
	case inMap && !inDefault:
		if overwrite {
			idx.byName[k] = ctx
		}
		// else: keep existing entry (duplicate SAN within the same cert)
	case !inMap && inDefault:
		if overwrite {
			delete(idx.defaultKeys, k)
			idx.byName[k] = ctx
		}
		// else: leave k in defaultKeys
	}
}

// insertDefault mirrors insertMap for the defaultKeys set.
func (idx *ContextIndex) insertDefault(k ContextKey, overwrite bool) {
	_, inMap := idx.byName[k]
	_, inDefault := idx.defaultKeys[k]

	switch {
	case !inMap && !inDefault:
		idx.defaultKeys[k] = struct{}{}
	case inMap && !inDefault:
		if overwrite {
			delete(idx.byName, k)
			idx.defaultKeys[k] = struct{}{}
		}
		// else: keep k in byName
	case !inMap && inDefault:
		// no-op: already default
	}
}

// lookupResult reports the outcome of a ContextIndex lookup.
type lookupResult struct {
	ctx       *ServerTLSContext
	isDefault bool
	found     bool
}

// lookup implements ContextIndex::lookup from §4.4 step 4: an exact match
// against byName, falling back to the one-level wildcard suffix. It also
// reports a default-key hit so the caller can treat it as "found" without
// resolving to a concrete *ServerTLSContext (§4.4 step 6).
func (idx *ContextIndex) lookup(k ContextKey) lookupResult {
	if ctx, ok := idx.byName[k]; ok {
		return lookupResult{ctx: ctx, found: true}
	}
	if _, ok := idx.defaultKeys[k]; ok {
		return lookupResult{isDefault: true, found: true}
	}

	if suffix, ok := k.Name.Suffix(); ok {
		sk := newContextKey(suffix, k.Crypto)
		if ctx, ok := idx.byName[sk]; ok {
			return lookupResult{ctx: ctx, found: true}
		}
		if _, ok := idx.defaultKeys[sk]; ok {
			return lookupResult{isDefault: true, found: true}
		}
	}

	return lookupResult{}
}

// removeByKey removes a non-default entry from byName. Removing a key
// present in defaultKeys is rejected with CannotRemoveDefault, per §4.5.
func (idx *ContextIndex) removeByKey(k ContextKey) error {
	if _, ok := idx.defaultKeys[k]; ok {
		return newError(CannotRemoveDefault, k.Name.String())
	}
	ctx, ok := idx.byName[k]
	if !ok {
		return nil
	}
	delete(idx.byName, k)
	idx.removeFromContexts(ctx)
	return nil
}

// removeByDomain removes both crypto-tier keys for a raw domain name
// (translating the "*.foo" prefix the same way insertion does).
func (idx *ContextIndex) removeByDomain(rawName string) error {
	name, err := NewDomainName(rawName)
	if err != nil {
		return err
	}
	var errs error
	for _, crypto := range []CertCrypto{BestAvailable, Sha1Signature} {
		if err := idx.removeByKey(newContextKey(name, crypto)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (idx *ContextIndex) removeFromContexts(ctx *ServerTLSContext) {
	for _, k := range idx.keysFor(ctx) {
		delete(idx.byName, k)
	}
	for i, c := range idx.contexts {
		if c == ctx {
			idx.contexts = append(idx.contexts[:i], idx.contexts[i+1:]...)
			return
		}
	}
}

// keysFor returns every byName key currently pointing at ctx.
func (idx *ContextIndex) keysFor(ctx *ServerTLSContext) []ContextKey {
	var keys []ContextKey
	for k, c := range idx.byName {
		if c == ctx {
			keys = append(keys, k)
		}
	}
	return keys
}

// uniqueSorted sorts and dedupes a SAN/CN list, per the Open Question
// resolution in §9: tolerate duplicate names within one certificate.
func uniqueSorted(names []string) []string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	out := sorted[:0]
	var prev string
	for i, n := range sorted {
		if i == 0 || n != prev {
			out = append(out, n)
			prev = n
		}
	}
	return out
}
