package sni

import "crypto/tls"

// ClientHelloInfo carries the subset of a ClientHello the dispatcher
// reasons about: the requested server name and enough signature-algorithm
// evidence to pick a crypto tier. It stands in for the TLS library's own
// parsed ClientHello (§6's "SNI callback contract").
type ClientHelloInfo struct {
	ServerName       string
	SignatureSchemes []tls.SignatureScheme
	HadSNIExtension  bool
}

// Session is the TLS session handle the dispatcher operates on during a
// handshake: read the ClientHello, then switch to the resolved context.
// crypto/tls has no mutable "SSL*" to retarget mid-handshake; dispatch is
// instead modeled as returning a *tls.Config from
// tls.Config.GetConfigForClient, with stdlibSession adapting that shape
// to this interface.
type Session interface {
	ClientHelloInfo() (ClientHelloInfo, bool)
	SwitchServerContext(ctx *ServerTLSContext) error
}

// DispatchResult mirrors the two outcomes a TLS library's server-name
// callback can report.
type DispatchResult int

const (
	ServerNameFound DispatchResult = iota
	ServerNameNotFound
)

// Stats is the sink the dispatcher reports handshake-time observations
// to, per §6.
type Stats interface {
	RecordAbsentHostname()
	RecordMatch()
	RecordNotMatch()
	RecordCertCrypto(requested, served CertCrypto)
}

// noopStats discards every observation; used when a Registry is built
// without an explicit Stats sink.
type noopStats struct{}

func (noopStats) RecordAbsentHostname()            {}
func (noopStats) RecordMatch()                     {}
func (noopStats) RecordNotMatch()                  {}
func (noopStats) RecordCertCrypto(_, _ CertCrypto) {}

// SniDispatcher is the per-handshake callback of §4.4: given a Session
// exposing the current ClientHello, resolve the correct ServerTLSContext
// from a snapshot of the ContextIndex captured at construction time and
// switch the session onto it.
type SniDispatcher struct {
	index *ContextIndex
	stats Stats
}

func newSniDispatcher(index *ContextIndex, stats Stats) *SniDispatcher {
	if stats == nil {
		stats = noopStats{}
	}
	return &SniDispatcher{index: index, stats: stats}
}

// OnClientHello implements the algorithm of §4.4.
func (d *SniDispatcher) OnClientHello(session Session) DispatchResult {
	hello, hadHello := session.ClientHelloInfo()

	serverName := hello.ServerName
	reqHadSNI := hadHello && serverName != ""
	if serverName == "" {
		d.stats.RecordAbsentHostname()
		serverName = d.index.defaultDomain.Key
	}

	requested := requestedCrypto(hello, hadHello)

	name, err := NewDomainName(serverName)
	if err != nil {
		d.stats.RecordNotMatch()
		return ServerNameNotFound
	}

	result, servedCrypto, ok := d.resolve(name, requested)
	if !ok && requested == Sha1Signature {
		result, servedCrypto, ok = d.resolve(name, BestAvailable)
	}

	if !ok {
		if reqHadSNI {
			d.stats.RecordNotMatch()
		}
		return ServerNameNotFound
	}

	if !result.isDefault {
		if err := session.SwitchServerContext(result.ctx); err != nil {
			d.stats.RecordNotMatch()
			return ServerNameNotFound
		}
	}

	d.stats.RecordMatch()
	d.stats.RecordCertCrypto(requested, servedCrypto)
	return ServerNameFound
}

func (d *SniDispatcher) resolve(name DomainName, crypto CertCrypto) (lookupResult, CertCrypto, bool) {
	k := newContextKey(name, crypto)
	result := d.index.lookup(k)
	if result.found {
		return result, crypto, true
	}
	return result, crypto, false
}

// requestedCrypto implements §4.4 step 2: absent a parsed ClientHello,
// assume the strongest tier; otherwise start pessimistic and upgrade on
// any evidence of SHA-2 support.
func requestedCrypto(hello ClientHelloInfo, hadHello bool) CertCrypto {
	if !hadHello {
		return BestAvailable
	}

	req := Sha1Signature
	for _, scheme := range hello.SignatureSchemes {
		if signatureSchemeHash(scheme) >= sha256OrStronger {
			req = BestAvailable
			break
		}
	}
	if hello.HadSNIExtension {
		req = BestAvailable
	}
	return req
}

// sha256OrStronger is an arbitrary ordinal threshold used by
// signatureSchemeHash; schemes at or above it are treated as SHA-256 or
// stronger.
const sha256OrStronger = 2

// signatureSchemeHash buckets a tls.SignatureScheme by the strength of
// its hash component: 1 for SHA-1 based schemes, 2 for SHA-256 and
// stronger, matching the sigalg inspection described in §4.4 step 2.
func signatureSchemeHash(scheme tls.SignatureScheme) int {
	switch scheme {
	case tls.PKCS1WithSHA1, tls.ECDSAWithSHA1:
		return 1
	default:
		return 2
	}
}

// stdlibSession adapts crypto/tls's *tls.ClientHelloInfo (as delivered to
// tls.Config.GetConfigForClient) to the Session interface.
type stdlibSession struct {
	hello *tls.ClientHelloInfo
	chain *ServerTLSContext
}

func newStdlibSession(hello *tls.ClientHelloInfo) *stdlibSession {
	return &stdlibSession{hello: hello}
}

func (s *stdlibSession) ClientHelloInfo() (ClientHelloInfo, bool) {
	if s.hello == nil {
		return ClientHelloInfo{}, false
	}
	return ClientHelloInfo{
		ServerName:       s.hello.ServerName,
		SignatureSchemes: s.hello.SignatureSchemes,
		HadSNIExtension:  s.hello.ServerName != "",
	}, true
}

func (s *stdlibSession) SwitchServerContext(ctx *ServerTLSContext) error {
	s.chain = ctx
	return nil
}

// Config returns the *tls.Config the switched-to context resolved to, or
// nil if SwitchServerContext was never called (the default applies).
func (s *stdlibSession) Config() *tls.Config {
	if s.chain == nil {
		return nil
	}
	return s.chain.Config
}
