package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"log"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-redis/redis/v8"
	proxyproto "github.com/pires/go-proxyproto"

	"github.com/icecave/sniregistry/src/cmd"
	"github.com/icecave/sniregistry/src/sni"
	"github.com/icecave/sniregistry/src/sni/loader"
)

func main() {
	config := cmd.GetConfigFromEnvironment()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var redisClient *redis.Client
	if config.RedisAddress != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr: config.RedisAddress,
			DB:   config.RedisDB,
		})
	}

	builder := &sni.ContextBuilder{
		FileLoader: &loader.FileLoader{BasePath: config.CertificateBasePath},
		VipAddress: config.VipAddress,
	}
	if redisClient != nil {
		builder.OffloadLoader = loader.NewCachingLoader(
			&loader.RedisLoader{Client: redisClient},
			config.CertificateCacheTTL,
		)
	} else {
		builder.OffloadLoader = builder.FileLoader
	}

	registry := sni.NewRegistry(config.VipAddress, config.Strict, builder)

	var external sni.ExternalCache
	if redisClient != nil {
		external = &sni.RedisCache{Client: redisClient, ContextID: config.VipAddress}
	}

	ctx := context.Background()
	for _, entry := range config.Certificates {
		err := registry.AddContext(
			ctx,
			sni.ContextConfig{
				TLSVersion:      sni.TLSVersion12,
				OffloadDisabled: entry.OffloadDisabled,
				Certificates: []sni.CertificateSource{
					{CertPath: entry.CertPath, KeyPath: entry.KeyPath},
				},
				IsDefault: entry.IsDefault,
			},
			sni.CacheOptions{},
			sni.TicketSeeds{},
			external,
		)
		if err != nil {
			logger.Fatalln(err)
		}
	}

	go rotateTicketKeys(registry, config.TicketKeyRotation, logger)

	def := registry.GetDefault()
	if def == nil {
		logger.Fatalln("sniregistryd: no default context configured")
	}
	logger.Printf("default context %q: %s of certificate data loaded", def.CommonName, humanize.Bytes(chainSize(def)))

	listener, err := net.Listen("tcp", config.VipAddress)
	if err != nil {
		logger.Fatalln(err)
	}
	listener = &proxyproto.Listener{Listener: listener}

	logger.Printf("listening on %s", config.VipAddress)

	for {
		conn, err := listener.Accept()
		if err != nil {
			logger.Println(err)
			continue
		}
		go handleConnection(conn, def, logger)
	}
}

// rotateTicketKeys periodically shifts the ticket-key window: the current
// seed becomes old, the standby new seed becomes current, and a freshly
// generated seed stands by as new for the following rotation, matching the
// (old, current, new) overlap scheme of §4.6.
func rotateTicketKeys(registry *sni.Registry, interval time.Duration, logger *log.Logger) {
	if interval <= 0 {
		return
	}

	seeds := sni.TicketSeeds{New: newSeed(logger)}

	for range time.Tick(interval) {
		seeds = sni.TicketSeeds{
			Old:     seeds.Current,
			Current: seeds.New,
			New:     newSeed(logger),
		}
		registry.ReloadTicketKeys(seeds)
	}
}

// chainSize totals the raw certificate bytes in ctx's chain, logged in
// human-readable form at startup the way the teacher's request proxy
// logs transferred byte counts.
func chainSize(ctx *sni.ServerTLSContext) uint64 {
	var total uint64
	for _, cert := range ctx.Chain {
		for _, der := range cert.Certificate {
			total += uint64(len(der))
		}
	}
	return total
}

func newSeed(logger *log.Logger) []byte {
	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		logger.Println(err)
	}
	return seed
}

// handleConnection drives the TLS handshake on conn using def as the
// baseline context; def.Config.GetConfigForClient (installed by
// Registry.AddContext) resolves the per-handshake context via
// SniDispatcher.
func handleConnection(conn net.Conn, def *sni.ServerTLSContext, logger *log.Logger) {
	tlsConn := tls.Server(conn, def.Config)
	defer tlsConn.Close()

	if err := tlsConn.Handshake(); err != nil {
		logger.Println(err)
	}
}
