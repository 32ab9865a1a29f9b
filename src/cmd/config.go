package cmd

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration values for the sniregistryd command.
type Config struct {
	VipAddress string
	Strict     bool

	CertificateBasePath string
	TicketKeyRotation   time.Duration

	RedisAddress        string
	RedisDB             int
	CertificateCacheTTL time.Duration

	Certificates []ContextConfigEntry
}

// ContextConfigEntry is one bootstrap VIP context loaded from the
// environment. It covers the minimal single-default-cert case; richer
// deployments are expected to drive Registry.ResetContexts directly
// rather than through environment variables.
type ContextConfigEntry struct {
	CertPath        string
	KeyPath         string
	IsDefault       bool
	OffloadDisabled bool
}

// GetConfigFromEnvironment creates a Config object based on the shell
// environment.
func GetConfigFromEnvironment() *Config {
	return &Config{
		VipAddress:          env("VIP_ADDRESS", ":8443"),
		Strict:              envBool("STRICT_MODE", true),
		CertificateBasePath: env("CERTIFICATE_PATH", ""),
		TicketKeyRotation:   time.Duration(envInt("TICKET_KEY_ROTATION_SECONDS", 3600)) * time.Second,

		RedisAddress:        env("REDIS_ADDRESS", ""),
		RedisDB:             int(envInt("REDIS_DB", 0)),
		CertificateCacheTTL: time.Duration(envInt("CERTIFICATE_CACHE_TTL_SECONDS", 30)) * time.Second,

		Certificates: []ContextConfigEntry{
			{
				CertPath:        env("SERVER_CERT", "server.crt"),
				KeyPath:         env("SERVER_KEY", "server.key"),
				IsDefault:       true,
				OffloadDisabled: envBool("OFFLOAD_DISABLED", true),
			},
		},
	}
}

func env(key string, def string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return def
}

func envInt(key string, def int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		i, _ := strconv.ParseInt(value, 10, 64)
		return i
	}

	return def
}

func envBool(key string, def bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return def
		}
		return b
	}

	return def
}
