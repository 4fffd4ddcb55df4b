package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertsFound is returned for PEM data without a CERTIFICATE block.
var ErrNoCertsFound = errors.New("tlsroots: no certificates found")

// ClientOptions selects what a client trusts.
type ClientOptions struct {
	// CAFile holds extra PEM roots, trusted alongside the system roots.
	CAFile string

	// Insecure disables server certificate verification.
	Insecure bool
}

// ClientConfig returns a TLS 1.2+ client config for opts.
func ClientConfig(opts ClientOptions) (*tls.Config, error) {
	roots, err := x509.SystemCertPool()
	if err != nil {
		roots = x509.NewCertPool()
	}
	if opts.CAFile != "" {
		certs, err := ReadCerts(opts.CAFile)
		if err != nil {
			return nil, err
		}
		for _, c := range certs {
			roots.AddCert(c)
		}
	}
	return &tls.Config{
		RootCAs:            roots,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: opts.Insecure, //nolint:gosec // opt-in
	}, nil
}

// ReadCerts parses every certificate in the PEM file at path.
func ReadCerts(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}
	certs, err := ParseCerts(data)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	return certs, nil
}

// ParseCerts decodes the CERTIFICATE blocks of pemData, skipping keys and
// other block types.
func ParseCerts(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		pemData = rest
		if block.Type != "CERTIFICATE" {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("tlsroots: certificate %d: %w", len(certs)+1, err)
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, ErrNoCertsFound
	}
	return certs, nil
}
