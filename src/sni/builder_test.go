package sni_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/icecave/sniregistry/src/sni"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("ContextBuilder", func() {
	var (
		fl       *fakeLoader
		builder  *sni.ContextBuilder
		registry *sni.Registry
	)

	BeforeEach(func() {
		fl = newFakeLoader()
		builder = &sni.ContextBuilder{FileLoader: fl, OffloadLoader: fl}
		registry = sni.NewRegistry(":8443", true, builder)
	})

	buildSource := func(name, cn string, sans []string, sigAlg x509.SignatureAlgorithm) sni.CertificateSource {
		fl.add(name, cn, sans, sigAlg)
		return sni.CertificateSource{CertPath: name, KeyPath: name}
	}

	It("rejects a multi-cert config whose entries disagree on CN/SANs", func() {
		sourceA := buildSource("a", "www.example.com", []string{"www.example.com"}, x509.SHA256WithRSA)
		sourceB := buildSource("b", "other.example.com", []string{"other.example.com"}, x509.SHA256WithRSA)

		err := registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{sourceA, sourceB},
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).Should(HaveOccurred())
		sniErr, ok := err.(*sni.Error)
		Expect(ok).To(BeTrue())
		Expect(sniErr.Kind).To(Equal(sni.InconsistentCertSet))
	})

	It("rejects an unrecognized ecc_curve_name", func() {
		source := buildSource("c", "curve.example.com", nil, x509.SHA256WithRSA)

		err := registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{source},
				EccCurveName:    "secp256k1",
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).Should(HaveOccurred())
		sniErr, ok := err.(*sni.Error)
		Expect(ok).To(BeTrue())
		Expect(sniErr.Kind).To(Equal(sni.UnknownCurve))
	})

	It("rejects adding a second default context", func() {
		sourceA := buildSource("first-default", "www.example.com", nil, x509.SHA256WithRSA)
		sourceB := buildSource("second-default", "other.example.com", nil, x509.SHA256WithRSA)

		Expect(registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{sourceA},
				IsDefault:       true,
			},
			sni.CacheOptions{}, sni.TicketSeeds{}, nil,
		)).To(Succeed())

		err := registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{sourceB},
				IsDefault:       true,
			},
			sni.CacheOptions{}, sni.TicketSeeds{}, nil,
		)
		Expect(err).Should(HaveOccurred())
		sniErr, ok := err.(*sni.Error)
		Expect(ok).To(BeTrue())
		Expect(sniErr.Kind).To(Equal(sni.DuplicateDefault))
	})

	It("flattens weighted NextProtocolGroups into an ALPN list", func() {
		source := buildSource("alpn", "alpn.example.com", nil, x509.SHA256WithRSA)

		err := registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{source},
				IsDefault:       true,
				NextProtocols: []sni.NextProtocolGroup{
					{Weight: 1, Protocols: []string{"http/1.1"}},
					{Weight: 10, Protocols: []string{"h2"}},
				},
			},
			sni.CacheOptions{}, sni.TicketSeeds{}, nil,
		)
		Expect(err).ShouldNot(HaveOccurred())

		def := registry.GetDefault()
		Expect(def.Config.NextProtos).To(Equal([]string{"h2", "http/1.1"}))
	})

	It("wires client-certificate verification into ClientAuth", func() {
		source := buildSource("mtls", "mtls.example.com", nil, x509.SHA256WithRSA)
		caKey, err := rsa.GenerateKey(rand.Reader, 2048)
		Expect(err).ShouldNot(HaveOccurred())
		caTemplate := &x509.Certificate{
			SerialNumber: big.NewInt(1),
			Subject:      pkix.Name{CommonName: "ca"},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(time.Hour),
			IsCA:         true,
		}
		caRaw, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
		Expect(err).ShouldNot(HaveOccurred())
		caCert, err := x509.ParseCertificate(caRaw)
		Expect(err).ShouldNot(HaveOccurred())
		fl.certs["ca"] = caCert

		err = registry.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:         sni.TLSVersion12,
				OffloadDisabled:    true,
				Certificates:       []sni.CertificateSource{source},
				IsDefault:          true,
				ClientCAFile:       "ca",
				ClientVerification: sni.ClientVerificationRequired,
			},
			sni.CacheOptions{}, sni.TicketSeeds{}, nil,
		)
		Expect(err).ShouldNot(HaveOccurred())

		def := registry.GetDefault()
		Expect(def.Config.ClientAuth).To(Equal(tls.RequireAndVerifyClientCert))
		Expect(def.Config.ClientCAs).NotTo(BeNil())
	})
})
