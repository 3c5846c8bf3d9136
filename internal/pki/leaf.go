package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"time"
)

// RequestConfig describes the subject of a certificate signing request.
type RequestConfig struct {
	Country    string
	CommonName string
	DNSNames   []string
}

// SignConfig controls the validity window applied when signing a request.
// A zero NotBefore means now, backdated slightly for clock drift.
type SignConfig struct {
	Validity  time.Duration
	NotBefore time.Time
}

// LeafConfig describes a server identity to issue in one step. Zero values
// fall back to the reference defaults; a nil DNSNames defaults to
// DefaultServerName while an explicitly empty list is rejected at signing.
type LeafConfig struct {
	Country    string
	CommonName string
	DNSNames   []string
	Validity   time.Duration
	NotBefore  time.Time
	KeyBits    int
}

// Credentials bundles the artifacts produced for a server identity.
type Credentials struct {
	Certificate    *x509.Certificate
	CertificatePEM []byte
	Key            *rsa.PrivateKey
	KeyPEM         []byte
	RequestPEM     []byte
}

// TLSCertificate pairs the certificate and key for use in a TLS config. The
// pairing is validated, so a mismatched key surfaces here rather than at
// handshake time.
func (c *Credentials) TLSCertificate() (tls.Certificate, error) {
	cert, err := tls.X509KeyPair(c.CertificatePEM, c.KeyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to load key pair: %w", err)
	}

	return cert, nil
}

// Fingerprint returns the Base58-encoded SHA256 of the server certificate.
func (c *Credentials) Fingerprint() string {
	return fingerprint(c.Certificate.Raw)
}

// NewServerKey generates a fresh RSA key pair for a server identity.
func NewServerKey(bits int) (*rsa.PrivateKey, error) {
	if bits == 0 {
		bits = DefaultKeyBits
	}

	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: generate rsa key: %w", ErrKeyGeneration, err)
	}

	return key, nil
}

// NewRequest builds a certificate signing request for key, self-signed by the
// key to prove possession. Returns the parsed request and its PEM encoding.
func NewRequest(key *rsa.PrivateKey, cfg RequestConfig) (*x509.CertificateRequest, []byte, error) {
	if cfg.CommonName == "" {
		return nil, nil, fmt.Errorf("%w: common name is required", ErrCertificateBuild)
	}
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}

	template := &x509.CertificateRequest{
		Subject: pkix.Name{
			Country:    []string{cfg.Country},
			CommonName: cfg.CommonName,
		},
		DNSNames:           cfg.DNSNames,
		SignatureAlgorithm: x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: create certificate request: %w", ErrCertificateBuild, err)
	}

	csr, err := x509.ParseCertificateRequest(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse certificate request: %w", ErrCertificateBuild, err)
	}

	return csr, EncodeRequestPEM(der), nil
}

// Sign issues a leaf certificate for csr, consuming the next serial number.
// The certificate carries basic constraints CA=FALSE, the digital signature,
// content commitment, key encipherment and data encipherment key usages, the
// server auth extended key usage and the request's DNS names as subject
// alternative names.
func (a *Authority) Sign(csr *x509.CertificateRequest, cfg SignConfig) (*x509.Certificate, []byte, error) {
	if a.cert == nil || a.key == nil {
		return nil, nil, fmt.Errorf("%w: authority has no key material", ErrSigning)
	}

	if err := csr.CheckSignature(); err != nil {
		return nil, nil, fmt.Errorf("%w: verify request signature: %w", ErrSigning, err)
	}

	if len(csr.DNSNames) == 0 {
		return nil, nil, fmt.Errorf("%w: subject alternative name list is empty", ErrExtensionBuild)
	}

	if cfg.Validity <= 0 {
		cfg.Validity = DefaultValidity
	}

	notBefore := cfg.NotBefore
	if notBefore.IsZero() {
		notBefore = time.Now().Add(-notBeforeSkew)
	}

	template := &x509.Certificate{
		SerialNumber: a.nextSerial(),
		Subject:      csr.Subject,
		NotBefore:    notBefore,
		NotAfter:     notBefore.Add(cfg.Validity),
		KeyUsage: x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment |
			x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              csr.DNSNames,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, a.cert, csr.PublicKey, a.key)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: sign certificate: %w", ErrSigning, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse signed certificate: %w", ErrSigning, err)
	}

	return cert, EncodeCertificatePEM(der), nil
}

// IssueServer generates a server key, builds a request for it and signs the
// request in one step.
func (a *Authority) IssueServer(cfg LeafConfig) (*Credentials, error) {
	if cfg.CommonName == "" {
		cfg.CommonName = DefaultServerName
	}
	if cfg.DNSNames == nil {
		cfg.DNSNames = []string{DefaultServerName}
	}

	key, err := NewServerKey(cfg.KeyBits)
	if err != nil {
		return nil, err
	}

	csr, csrPEM, err := NewRequest(key, RequestConfig{
		Country:    cfg.Country,
		CommonName: cfg.CommonName,
		DNSNames:   cfg.DNSNames,
	})
	if err != nil {
		return nil, err
	}

	cert, certPEM, err := a.Sign(csr, SignConfig{
		Validity:  cfg.Validity,
		NotBefore: cfg.NotBefore,
	})
	if err != nil {
		return nil, err
	}

	return &Credentials{
		Certificate:    cert,
		CertificatePEM: certPEM,
		Key:            key,
		KeyPEM:         EncodePrivateKeyPEM(key),
		RequestPEM:     csrPEM,
	}, nil
}
