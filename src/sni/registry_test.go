package sni_test

import (
	"context"
	"crypto/x509"

	"github.com/icecave/sniregistry/src/sni"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Registry", func() {
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

	addContext := func(reg *sni.Registry, name string, isDefault bool) {
		fl.add(name, name, nil, x509.SHA256WithRSA)
		err := reg.AddContext(
			context.Background(),
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: true,
				Certificates:    []sni.CertificateSource{{CertPath: name, KeyPath: name}},
				IsDefault:       isDefault,
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).ShouldNot(HaveOccurred())
	}

	It("removes a context by domain name", func() {
		addContext(registry, "www.example.com", true)
		addContext(registry, "api.example.com", false)

		domain, err := sni.NewDomainName("api.example.com")
		Expect(err).ShouldNot(HaveOccurred())

		Expect(registry.RemoveByDomain("api.example.com")).To(Succeed())

		_, found := registry.GetByKey(sni.ContextKey{Name: domain, Crypto: sni.BestAvailable})
		Expect(found).To(BeFalse())
	})

	It("refuses to remove a default context's key", func() {
		addContext(registry, "www.example.com", true)

		err := registry.RemoveByDomain("www.example.com")
		Expect(err).Should(HaveOccurred())
		sniErr, ok := err.(*sni.Error)
		Expect(ok).To(BeTrue())
		Expect(sniErr.Kind).To(Equal(sni.CannotRemoveDefault))
	})

	It("resets the entire index from a fresh config list", func() {
		addContext(registry, "www.example.com", true)
		addContext(registry, "api.example.com", false)

		fl.add("new-default.example.com", "new-default.example.com", nil, x509.SHA256WithRSA)
		fl.add("new-api.example.com", "new-api.example.com", nil, x509.SHA256WithRSA)

		err := registry.ResetContexts(
			context.Background(),
			[]sni.ContextConfig{
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "new-default.example.com", KeyPath: "new-default.example.com"}},
					IsDefault:       true,
				},
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "new-api.example.com", KeyPath: "new-api.example.com"}},
				},
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).ShouldNot(HaveOccurred())

		Expect(registry.GetDefault().CommonName).To(Equal("new-default.example.com"))

		domain, err := sni.NewDomainName("www.example.com")
		Expect(err).ShouldNot(HaveOccurred())
		_, found := registry.GetByKey(sni.ContextKey{Name: domain, Crypto: sni.BestAvailable})
		Expect(found).To(BeFalse())
	})

	It("preserves ticket seeds across a reset when none are supplied", func() {
		addContext(registry, "www.example.com", true)

		seeds := sni.TicketSeeds{
			Old:     []byte("11111111111111111111111111111111"),
			Current: []byte("22222222222222222222222222222222"),
			New:     []byte("33333333333333333333333333333333"),
		}
		registry.ReloadTicketKeys(seeds)

		fl.add("second.example.com", "second.example.com", nil, x509.SHA256WithRSA)
		err := registry.ResetContexts(
			context.Background(),
			[]sni.ContextConfig{
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "second.example.com", KeyPath: "second.example.com"}},
					IsDefault:       true,
				},
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(registry.GetDefault().TicketManager.Seeds()).To(Equal(seeds))
	})

	It("stops at the first error in strict mode", func() {
		fl.add("ok.example.com", "ok.example.com", nil, x509.SHA256WithRSA)

		err := registry.ResetContexts(
			context.Background(),
			[]sni.ContextConfig{
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "ok.example.com", KeyPath: "ok.example.com"}},
					IsDefault:       true,
				},
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "missing.example.com", KeyPath: "missing.example.com"}},
				},
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).Should(HaveOccurred())
	})

	It("skips errors and continues in lax mode", func() {
		lax := sni.NewRegistry(":8443", false, builder)
		fl.add("ok.example.com", "ok.example.com", nil, x509.SHA256WithRSA)

		err := lax.ResetContexts(
			context.Background(),
			[]sni.ContextConfig{
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "missing.example.com", KeyPath: "missing.example.com"}},
				},
				{
					TLSVersion:      sni.TLSVersion12,
					OffloadDisabled: true,
					Certificates:    []sni.CertificateSource{{CertPath: "ok.example.com", KeyPath: "ok.example.com"}},
					IsDefault:       true,
				},
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			nil,
		)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(lax.GetDefault().CommonName).To(Equal("ok.example.com"))
	})
})
