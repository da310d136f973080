// Package tlsutil builds crypto/tls configuration for the API listener and
// outbound broker connections.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig is the flag and YAML friendly form of a TLS setup.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
	CAFile   string `yaml:"ca_file" json:"ca_file"`
	// ClientAuth is one of require, request or none.
	ClientAuth string `yaml:"client_auth" json:"client_auth"`
	SkipVerify bool   `yaml:"skip_verify" json:"skip_verify"`
}

// LoadTLSConfig returns nil when cfg is disabled.
func LoadTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipVerify, //nolint:gosec // dev-only switch
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tlsutil: load key pair: %w", err)
		}
		out.Certificates = []tls.Certificate{cert}
	}

	if cfg.CAFile != "" {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		out.RootCAs = pool
		out.ClientCAs = pool
	}

	mode, err := clientAuthMode(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}
	out.ClientAuth = mode
	return out, nil
}

func loadCAPool(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsutil: read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("tlsutil: no valid certificates found in %s", path)
	}
	return pool, nil
}

func clientAuthMode(s string) (tls.ClientAuthType, error) {
	switch s {
	case "require":
		return tls.RequireAndVerifyClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "none", "":
		return tls.NoClientCert, nil
	}
	return tls.NoClientCert, fmt.Errorf("tlsutil: unknown client_auth %q (valid: require, request, none)", s)
}
