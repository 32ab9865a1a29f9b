package sni_test

import (
	"github.com/icecave/sniregistry/src/sni"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("CertCrypto", func() {
	Describe("String", func() {
		DescribeTable(
			"formats each tier",
			func(c sni.CertCrypto, expected string) {
				Expect(c.String()).To(Equal(expected))
			},
			Entry("best available", sni.BestAvailable, "BestAvailable"),
			Entry("sha1", sni.Sha1Signature, "Sha1Signature"),
		)
	})
})

