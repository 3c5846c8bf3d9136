package pki

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// caSerial is the serial number the authority assigns to its own certificate.
// Signed certificates consume serials from caSerial+1 upwards.
const caSerial = 1

// AuthorityConfig describes the self-signed root to generate. Zero values fall
// back to the reference defaults.
type AuthorityConfig struct {
	Country    string
	CommonName string
	Validity   time.Duration
	KeyBits    int
}

// Authority is an ephemeral certificate authority. It holds the root key pair
// in memory and tracks the next serial number to assign, so it never reissues
// a serial within its lifetime.
type Authority struct {
	cert    *x509.Certificate
	key     *rsa.PrivateKey
	certPEM []byte
	keyPEM  []byte

	mu     sync.Mutex
	serial int64
}

// NewAuthority generates a fresh root key pair and self-signed CA certificate.
func NewAuthority(cfg AuthorityConfig) (*Authority, error) {
	if cfg.Country == "" {
		cfg.Country = DefaultCountry
	}
	if cfg.CommonName == "" {
		cfg.CommonName = DefaultAuthorityName
	}
	if cfg.Validity <= 0 {
		cfg.Validity = DefaultValidity
	}
	if cfg.KeyBits == 0 {
		cfg.KeyBits = DefaultKeyBits
	}

	key, err := rsa.GenerateKey(rand.Reader, cfg.KeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: generate rsa key: %w", ErrKeyGeneration, err)
	}

	notBefore := time.Now().Add(-notBeforeSkew)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(caSerial),
		Subject: pkix.Name{
			Country:    []string{cfg.Country},
			CommonName: cfg.CommonName,
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(cfg.Validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("%w: create ca certificate: %w", ErrCertificateBuild, err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: parse ca certificate: %w", ErrCertificateBuild, err)
	}

	return &Authority{
		cert:    cert,
		key:     key,
		certPEM: EncodeCertificatePEM(der),
		keyPEM:  EncodePrivateKeyPEM(key),
		serial:  caSerial + 1,
	}, nil
}

// LoadAuthority reconstructs an Authority from PEM-encoded certificate and key
// material, for example the artifacts a previous run wrote to disk. nextSerial
// seeds the issuance counter; values at or below the CA certificate's own
// serial fall back to the serial after it.
func LoadAuthority(certPEM, keyPEM []byte, nextSerial int64) (*Authority, error) {
	cert, err := ParseCertificatePEM(certPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: load ca certificate: %w", ErrSigning, err)
	}

	if !cert.IsCA {
		return nil, fmt.Errorf("%w: certificate is not a certificate authority", ErrSigning)
	}

	key, err := ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: load ca key: %w", ErrSigning, err)
	}

	if !key.PublicKey.Equal(cert.PublicKey) {
		return nil, fmt.Errorf("%w: ca key does not match ca certificate", ErrSigning)
	}

	if nextSerial <= cert.SerialNumber.Int64() {
		nextSerial = cert.SerialNumber.Int64() + 1
	}

	return &Authority{
		cert:    cert,
		key:     key,
		certPEM: EncodeCertificatePEM(cert.Raw),
		keyPEM:  EncodePrivateKeyPEM(key),
		serial:  nextSerial,
	}, nil
}

// Certificate returns the parsed CA certificate.
func (a *Authority) Certificate() *x509.Certificate {
	return a.cert
}

// CertificatePEM returns the PEM-encoded CA certificate, usable as a trust
// anchor by test clients.
func (a *Authority) CertificatePEM() []byte {
	return a.certPEM
}

// KeyPEM returns the PEM-encoded CA private key.
func (a *Authority) KeyPEM() []byte {
	return a.keyPEM
}

// Pool returns a certificate pool containing only this authority, for clients
// that should trust nothing else.
func (a *Authority) Pool() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.cert)
	return pool
}

// Fingerprint returns the Base58-encoded SHA256 of the CA certificate.
func (a *Authority) Fingerprint() string {
	return fingerprint(a.cert.Raw)
}

// NextSerial reports the serial number the next signed certificate will be
// assigned, without consuming it.
func (a *Authority) NextSerial() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serial
}

// nextSerial consumes the next serial number for a signed certificate.
func (a *Authority) nextSerial() *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	serial := big.NewInt(a.serial)
	a.serial++
	return serial
}
