package sni_test

import (
	"context"
	"crypto/tls"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/icecave/sniregistry/src/sni"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("RedisCache", func() {
	var (
		mockRedis *miniredis.Miniredis
		client    *redis.Client
		cache     *sni.RedisCache
	)

	BeforeEach(func() {
		var err error
		mockRedis, err = miniredis.Run()
		Expect(err).ShouldNot(HaveOccurred())
		client = redis.NewClient(&redis.Options{Addr: mockRedis.Addr()})
		cache = &sni.RedisCache{Client: client, ContextID: "www.example.com"}
	})

	AfterEach(func() {
		client.Close()
		mockRedis.Close()
	})

	It("reports a miss as (nil, nil) rather than an error", func() {
		state, err := cache.Get(context.Background(), "ticket-1")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips a session state through Put/Get", func() {
		state := &tls.ClientSessionState{}
		Expect(cache.Put(context.Background(), "ticket-1", state)).To(Succeed())

		got, err := cache.Get(context.Background(), "ticket-1")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(got).NotTo(BeNil())
	})

	It("namespaces keys by context ID", func() {
		state := &tls.ClientSessionState{}
		Expect(cache.Put(context.Background(), "ticket-1", state)).To(Succeed())

		Expect(mockRedis.Exists("session:www.example.com:ticket-1")).To(BeTrue())
	})
})
