package sni

import "crypto/tls"

// TLSVersion is the minimum protocol version a context will negotiate.
type TLSVersion uint16

// Recognized minimum protocol versions, mirroring the tls package's own
// version constants so a ContextConfig can be populated directly from them.
const (
	TLSVersion10 TLSVersion = tls.VersionTLS10
	TLSVersion11 TLSVersion = tls.VersionTLS11
	TLSVersion12 TLSVersion = tls.VersionTLS12
	TLSVersion13 TLSVersion = tls.VersionTLS13
)

// ClientVerification controls whether and how client certificates are
// requested during the handshake.
type ClientVerification int

const (
	// ClientVerificationNone never requests a client certificate.
	ClientVerificationNone ClientVerification = iota
	// ClientVerificationOptional requests but does not require one.
	ClientVerificationOptional
	// ClientVerificationRequired rejects handshakes lacking a verified
	// client certificate.
	ClientVerificationRequired
)

// CertificateSource describes one certificate + private key pair to load,
// per the certificates[] field of a ContextConfig. When IsBuffer is set,
// CertPath/KeyPath/PasswordPath hold PEM bytes rather than filesystem
// paths.
type CertificateSource struct {
	CertPath     string
	KeyPath      string
	PasswordPath string
	IsBuffer     bool
}

// NextProtocolGroup is one ALPN advertisement weight/protocol group.
type NextProtocolGroup struct {
	Weight    int
	Protocols []string
}

// ContextConfig is the external input to a ContextBuilder: everything
// needed to construct one ServerTLSContext, per §6's field table.
type ContextConfig struct {
	TLSVersion          TLSVersion
	Certificates        []CertificateSource
	OffloadDisabled     bool
	Ciphers             string
	EccCurveName        string
	ClientCAFile        string
	ClientVerification  ClientVerification
	ClientVerifyCallback func(*tls.CertificateRequestInfo) error
	SessionContext      string
	NextProtocols       []NextProtocolGroup
	IsDefault           bool

	// OverrideConfiguration is invoked after certificate loading and
	// before options/ciphers are applied, giving the host a hook to
	// adjust the tls.Config being assembled (step 3 of §4.2).
	OverrideConfiguration func(*tls.Config) error
}

// ServerTLSContext bundles the assembled TLS configuration with the
// supporting managers a handshake may need: ticket rotation and session
// caching. The certificate chain is kept alongside for CN/SAN derivation
// during index insertion and for operational inspection.
//
// Shared ownership mirrors §3: the index, the Registry's default slot,
// and any live handshake may all hold a reference. After ContextBuilder
// hands it back, only the Registry changes it: it reinstalls the default
// context's Config.GetConfigForClient and pushes new ticket seeds through
// TicketManager.
type ServerTLSContext struct {
	Config       *tls.Config
	Certificates []CertificateSource
	Chain        []tls.Certificate
	CommonName   string
	SANs         []string
	Crypto       CertCrypto
	DHParams     DHParams

	TicketManager  TicketManager
	SessionManager SessionCacheManager

	isDefault bool
}

// IsDefault reports whether this context was built from a ContextConfig
// with IsDefault set.
func (c *ServerTLSContext) IsDefault() bool {
	return c.isDefault
}
