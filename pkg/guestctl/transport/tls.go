package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLSPolicy selects how server certificates are verified: the system trust store
// (zero value), a pinned CA/certificate file, or no verification at all.
type TLSPolicy struct {
	CAFile             string
	InsecureSkipVerify bool
}

func (p TLSPolicy) Validate() error {
	if p.CAFile != "" && p.InsecureSkipVerify {
		return errors.New("ca-file and insecure-skip-tls-verify are mutually exclusive")
	}
	return nil
}

func LoadTLSConfig(policy TLSPolicy) (*tls.Config, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: policy.InsecureSkipVerify} //nolint:gosec // opt-in via config
	if policy.CAFile == "" {
		return tlsConfig, nil
	}
	pool, err := loadCertPool(policy.CAFile)
	if err != nil {
		return nil, err
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	return pool, nil
}
