package loader

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
)

// BufferLoader loads certificates and keys given directly as PEM bytes,
// for CertificateSource entries with IsBuffer set rather than backed by a
// file path.
type BufferLoader struct{}

func (BufferLoader) LoadCertificate(_ context.Context, pemBytes string) (*x509.Certificate, error) {
	block, _ := pem.Decode([]byte(pemBytes))
	if block == nil {
		return nil, errors.New("sni: no PEM block in certificate buffer")
	}
	return x509.ParseCertificate(block.Bytes)
}

func (BufferLoader) LoadPrivateKey(_ context.Context, pemBytes string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemBytes))
	if block == nil {
		return nil, errors.New("sni: no PEM block in key buffer")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
