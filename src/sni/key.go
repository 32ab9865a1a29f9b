package sni

// ContextKey identifies one entry in a ContextIndex: a domain name paired
// with the crypto tier it was registered under. Two contexts for the same
// name may coexist under different tiers.
//
// ContextKey is a plain comparable struct so it can be used directly as a
// Go map key; no separate hash function is needed the way the reference
// implementation needs SSLContextKeyHash.
type ContextKey struct {
	Name   DomainName
	Crypto CertCrypto
}

func newContextKey(name DomainName, crypto CertCrypto) ContextKey {
	return ContextKey{Name: name, Crypto: crypto}
}
