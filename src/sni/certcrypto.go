package sni

import "crypto/x509"

// CertCrypto classifies the cryptographic strength of a certificate's
// signature, used to route weak clients to a SHA-1 certificate while
// serving everyone else the strongest available one.
type CertCrypto int

const (
	// BestAvailable is the default tier: any certificate not signed with a
	// SHA-1 based algorithm, plus the tier requested by clients that give
	// no evidence of being outdated.
	BestAvailable CertCrypto = iota

	// Sha1Signature marks a certificate signed with sha1WithRSAEncryption
	// or ecdsa-with-SHA1, and is also the tier requested by clients whose
	// ClientHello gives no indication of SHA-2 support.
	Sha1Signature
)

func (c CertCrypto) String() string {
	if c == Sha1Signature {
		return "Sha1Signature"
	}
	return "BestAvailable"
}

// classifyCertCrypto derives the CertCrypto tier from a certificate's
// signature algorithm, mirroring the reference implementation's check of
// X509_get_signature_nid() against NID_sha1WithRSAEncryption and
// NID_ecdsa_with_SHA1.
func classifyCertCrypto(cert *x509.Certificate) CertCrypto {
	switch cert.SignatureAlgorithm {
	case x509.SHA1WithRSA, x509.ECDSAWithSHA1:
		return Sha1Signature
	default:
		return BestAvailable
	}
}
