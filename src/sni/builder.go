package sni

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math/rand"
	"sort"

	"github.com/icecave/sniregistry/src/sni/loader"
)

// ContextBuilder assembles one ServerTLSContext from a ContextConfig and
// the ambient parameters shared by every context on a VIP, implementing
// the ordered steps of §4.2.
type ContextBuilder struct {
	// FileLoader loads certificates/keys from the local filesystem, used
	// when a CertificateSource has OffloadDisabled set.
	FileLoader loader.Loader

	// OffloadLoader delegates to the external-offload store (e.g. Redis)
	// when OffloadDisabled is false.
	OffloadLoader loader.Loader

	// BufferLoader parses PEM bytes directly for CertificateSource
	// entries with IsBuffer set, taking priority over either of the
	// above.
	BufferLoader loader.Loader

	VipAddress string
}

// Build constructs a ServerTLSContext from config and registers it into
// index. A failure before insertion leaves index untouched; a failure
// during insertion returns a nil context after index already holds every name that
// did insert (in lax mode, all names but the failing ones), and the caller
// decides whether to keep that index. Load and hook failures are surfaced
// as AddCertificate, per §4.2 step 11; errors that already carry a more
// specific Kind (InconsistentCertSet, UnknownCurve, DuplicateDefault,
// insertion kinds, ...) are returned unwrapped so callers can branch on
// them.
func (b *ContextBuilder) Build(
	ctx context.Context,
	config ContextConfig,
	cacheOpts CacheOptions,
	seeds TicketSeeds,
	external ExternalCache,
	index *ContextIndex,
	haveDefault bool,
) (*ServerTLSContext, error) {
	built, err := b.build(ctx, config, cacheOpts, seeds, external, haveDefault)
	if err != nil {
		return nil, err
	}

	if err := index.insertCertificate(built); err != nil {
		return nil, err
	}

	return built, nil
}

func (b *ContextBuilder) build(
	ctx context.Context,
	config ContextConfig,
	cacheOpts CacheOptions,
	seeds TicketSeeds,
	external ExternalCache,
	haveDefault bool,
) (*ServerTLSContext, error) {
	// Step 1: create a TLS context pinned to the minimum protocol version.
	tlsConfig := &tls.Config{
		MinVersion: uint16(config.TLSVersion),
	}

	// Step 2: load certificate + private key pairs.
	chain, commonName, sans, crypto, err := b.loadCertificates(ctx, config)
	if err != nil {
		return nil, err
	}
	tlsConfig.Certificates = chain

	// Step 3: host override hook.
	if config.OverrideConfiguration != nil {
		if err := config.OverrideConfiguration(tlsConfig); err != nil {
			return nil, newError(AddCertificate, "override_configuration").withCause(err)
		}
	}

	// Step 4: options. CipherServerPreference maps to
	// PreferServerCipherSuites. SingleDhUse, SingleEcdhUse,
	// DontInsertEmptyFragments, NoCompression, ReleaseBuffers,
	// EarlyReleaseBbio and NoRenegotiation are OpenSSL socket-option bits
	// with no crypto/tls equivalent (the standard library never negotiates
	// compression or renegotiation), so only the options crypto/tls
	// actually exposes are set here.
	tlsConfig.PreferServerCipherSuites = true
	tlsConfig.MaxVersion = maxSupportedVersion(config.TLSVersion)

	// Step 5: cipher list.
	suites, err := parseCipherList(config.Ciphers)
	if err != nil {
		return nil, err
	}
	tlsConfig.CipherSuites = suites

	// Step 6: fixed DH-2048 parameters. crypto/tls has no classical DHE
	// cipher suite support; the bytes are still retained on the built
	// context for parity (see dhparams.go).
	dhParams := FixedDHParams()

	// Step 7: named curve.
	if config.EccCurveName != "" {
		curve, err := resolveCurve(config.EccCurveName)
		if err != nil {
			return nil, err
		}
		tlsConfig.CurvePreferences = []tls.CurveID{curve}
	}

	// Step 8: client certificate verification / mTLS.
	if config.ClientCAFile != "" {
		pool, err := loadCertPool(ctx, b.FileLoader, config.ClientCAFile)
		if err != nil {
			return nil, newError(AddCertificate, "client_ca_file").withCause(err)
		}
		tlsConfig.ClientCAs = pool
		if config.ClientVerifyCallback != nil {
			tlsConfig.VerifyPeerCertificate = adaptVerifyCallback(config.ClientVerifyCallback)
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		} else {
			tlsConfig.ClientAuth = clientAuthFor(config.ClientVerification)
		}
	}

	// Step 9: session-cache context ID, session cache, ticket manager.
	sessionContextID := config.SessionContext
	if sessionContextID == "" {
		sessionContextID = commonName
	}
	sessionManager := newSessionCacheManager(sessionContextID, external)
	tlsConfig.ClientSessionCache = sessionManager
	ticketManager := newStdlibTicketManager(tlsConfig, seeds)

	// Step 10: protocol-level finalization.
	if len(config.NextProtocols) > 0 {
		tlsConfig.NextProtos = negotiateALPN(config.NextProtocols)
	}

	built := &ServerTLSContext{
		Config:         tlsConfig,
		Certificates:   config.Certificates,
		Chain:          chain,
		CommonName:     commonName,
		SANs:           sans,
		Crypto:         crypto,
		DHParams:       dhParams,
		TicketManager:  ticketManager,
		SessionManager: sessionManager,
		isDefault:      config.IsDefault,
	}

	if config.IsDefault && haveDefault {
		return nil, newError(DuplicateDefault, commonName)
	}

	return built, nil
}

// loadCertificates implements §4.2 step 2: load every cert/key pair in
// config.Certificates, and verify that every pair beyond the first shares
// the same CN and sorted SAN set as the first.
func (b *ContextBuilder) loadCertificates(
	ctx context.Context,
	config ContextConfig,
) (chain []tls.Certificate, commonName string, sans []string, crypto CertCrypto, err error) {
	if len(config.Certificates) == 0 {
		return nil, "", nil, BestAvailable, newError(AddCertificate, "no certificates configured")
	}

	var firstCN string
	var firstSANs []string

	for i, source := range config.Certificates {
		l := b.loaderFor(source, config.OffloadDisabled)

		x5, err := l.LoadCertificate(ctx, source.CertPath)
		if err != nil {
			return nil, "", nil, BestAvailable, newError(AddCertificate, source.CertPath).withCause(err)
		}
		key, err := l.LoadPrivateKey(ctx, source.KeyPath)
		if err != nil {
			return nil, "", nil, BestAvailable, newError(AddCertificate, source.KeyPath).withCause(err)
		}

		cert := tls.Certificate{
			Certificate: [][]byte{x5.Raw},
			PrivateKey:  key,
			Leaf:        x5,
		}
		chain = append(chain, cert)

		cnSANs := uniqueSorted(append([]string(nil), x5.DNSNames...))

		if i == 0 {
			firstCN = x5.Subject.CommonName
			firstSANs = cnSANs
			crypto = classifyCertCrypto(x5)
		} else if x5.Subject.CommonName != firstCN || !equalStrings(cnSANs, firstSANs) {
			return nil, "", nil, BestAvailable, newError(InconsistentCertSet, source.CertPath)
		}
	}

	return chain, firstCN, firstSANs, crypto, nil
}

func (b *ContextBuilder) loaderFor(source CertificateSource, offloadDisabled bool) loader.Loader {
	if source.IsBuffer {
		if b.BufferLoader != nil {
			return b.BufferLoader
		}
		return loader.BufferLoader{}
	}
	if offloadDisabled {
		return b.FileLoader
	}
	return b.OffloadLoader
}

func loadCertPool(ctx context.Context, l loader.Loader, certFile string) (*x509.CertPool, error) {
	cert, err := l.LoadCertificate(ctx, certFile)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}

// adaptVerifyCallback bridges ContextConfig.ClientVerifyCallback's
// *tls.CertificateRequestInfo signature onto VerifyPeerCertificate's
// rawCerts/verifiedChains shape. The two don't carry the same
// information — CertificateRequestInfo describes what was requested of
// the peer, not what the peer presented — so the adapter can only model
// "a client verify hook ran"; it passes an empty struct rather than
// translating rawCerts into one, and callers that need the actual peer
// chain should inspect verifiedChains directly instead of relying on
// this hook.
func adaptVerifyCallback(cb func(*tls.CertificateRequestInfo) error) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		return cb(&tls.CertificateRequestInfo{})
	}
}

func clientAuthFor(v ClientVerification) tls.ClientAuthType {
	switch v {
	case ClientVerificationRequired:
		return tls.RequireAndVerifyClientCert
	case ClientVerificationOptional:
		return tls.VerifyClientCertIfGiven
	default:
		return tls.NoClientCert
	}
}

// negotiateALPN flattens the weighted protocol groups into the ordered
// NextProtos list crypto/tls expects: groups in descending weight (groups
// of equal weight keep their configured order), with the protocols inside
// each group randomly shuffled to randomize the ALPN advertisement order.
func negotiateALPN(groups []NextProtocolGroup) []string {
	sorted := append([]NextProtocolGroup(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Weight > sorted[j].Weight
	})

	var protos []string
	for _, g := range sorted {
		shuffled := append([]string(nil), g.Protocols...)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		protos = append(protos, shuffled...)
	}
	return protos
}

func maxSupportedVersion(min TLSVersion) uint16 {
	if min > tls.VersionTLS13 {
		return uint16(min)
	}
	return tls.VersionTLS13
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
