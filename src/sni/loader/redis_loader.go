package loader

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisLoader loads certificates and keys from a Redis hash, the
// external-offload path a ContextConfig delegates to when
// offload_disabled is false. Each domain's material lives at
// "ssl:<domain>" with "certificate" and "key" fields, the same layout the
// legacy offload provider used.
type RedisLoader struct {
	Client *redis.Client
}

func redisCertKey(name string) string {
	return fmt.Sprintf("ssl:%s", name)
}

// LoadCertificate fetches and parses the PEM certificate stored under the
// hash field "certificate" for the given domain name.
func (l *RedisLoader) LoadCertificate(ctx context.Context, name string) (*x509.Certificate, error) {
	raw, err := l.field(ctx, name, "certificate")
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("sni: no PEM block in offloaded certificate")
	}
	return x509.ParseCertificate(block.Bytes)
}

// LoadPrivateKey fetches and parses the PEM key stored under the hash
// field "key" for the given domain name.
func (l *RedisLoader) LoadPrivateKey(ctx context.Context, name string) (*rsa.PrivateKey, error) {
	raw, err := l.field(ctx, name, "key")
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("sni: no PEM block in offloaded key")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func (l *RedisLoader) field(ctx context.Context, name, field string) ([]byte, error) {
	values, err := l.Client.HGetAll(ctx, redisCertKey(name)).Result()
	if err != nil {
		return nil, err
	}
	value, ok := values[field]
	if !ok {
		return nil, fmt.Errorf("sni: %q missing from offloaded record for %s", field, name)
	}
	return []byte(value), nil
}
