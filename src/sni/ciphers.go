package sni

import (
	"crypto/tls"
	"strings"
)

// cipherNames maps the OpenSSL cipher-suite names a ContextConfig's
// Ciphers string may list onto the tls.CipherSuite IDs crypto/tls
// actually negotiates. OpenSSL suite names not listed here (export, RC4
// and 3DES suites among them) are silently unavailable rather than
// rejected, since the config string is a preference order, not a hard
// requirement list.
var cipherNames = map[string]uint16{
	"ECDHE-ECDSA-AES128-GCM-SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-RSA-AES128-GCM-SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"ECDHE-ECDSA-AES256-GCM-SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-AES256-GCM-SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"ECDHE-RSA-CHACHA20-POLY1305":   tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	"ECDHE-ECDSA-CHACHA20-POLY1305": tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	"ECDHE-RSA-AES128-SHA":          tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
	"ECDHE-ECDSA-AES128-SHA":        tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
	"AES128-GCM-SHA256":             tls.TLS_RSA_WITH_AES_128_GCM_SHA256,
	"AES256-GCM-SHA384":             tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	"AES128-SHA":                    tls.TLS_RSA_WITH_AES_128_CBC_SHA,
}

// parseCipherList splits an OpenSSL-style colon-separated cipher string
// into the recognized subset of tls.CipherSuite IDs, preserving order so
// CipherServerPreference still expresses the host's priority. An empty
// string leaves crypto/tls's own default list in place.
func parseCipherList(ciphers string) ([]uint16, error) {
	if ciphers == "" {
		return nil, nil
	}

	var suites []uint16
	for _, name := range strings.Split(ciphers, ":") {
		name = strings.TrimSpace(name)
		if id, ok := cipherNames[name]; ok {
			suites = append(suites, id)
		}
	}
	return suites, nil
}
