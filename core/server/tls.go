package server

import (
	"crypto/tls"
	"fmt"
	"slices"
	"strings"
)

// TLS profiles accepted by Config.TLSProfile.
const (
	TLSProfileDefault      = "default"
	TLSProfileModern       = "modern"
	TLSProfileIntermediate = "intermediate"
)

var defaultCurves = []tls.CurveID{tls.X25519, tls.CurveP256}

// tlsProfile returns the base config for name. TLS 1.3 suites are not
// configurable and are picked by the runtime.
func tlsProfile(name string) (*tls.Config, error) {
	switch strings.ToLower(name) {
	case "", TLSProfileDefault:
		return &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
			},
			CurvePreferences: slices.Clone(defaultCurves),
		}, nil
	case TLSProfileModern:
		return &tls.Config{
			MinVersion:       tls.VersionTLS13,
			CurvePreferences: slices.Clone(defaultCurves),
		}, nil
	case TLSProfileIntermediate:
		// Adds CBC suites for older clients.
		return &tls.Config{
			MinVersion: tls.VersionTLS12,
			CipherSuites: []uint16{
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
				tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
				tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
				tls.TLS_ECDHE_ECDSA_WITH_AES_128_CBC_SHA,
				tls.TLS_ECDHE_RSA_WITH_AES_128_CBC_SHA,
			},
			CurvePreferences: append(slices.Clone(defaultCurves), tls.CurveP384),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTLSProfile, name)
	}
}

func loadTLSFromFiles(certFile, keyFile, profile string) (*tls.Config, error) {
	cfg, err := tlsProfile(profile)
	if err != nil {
		return nil, err
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s, %s: %w", ErrFailedLoadCert, certFile, keyFile, err)
	}
	cfg.Certificates = []tls.Certificate{cert}
	return cfg, nil
}
