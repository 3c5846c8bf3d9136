package pki

import (
	"bytes"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthority_IssueServer(t *testing.T) {
	t.Run("issues a localhost certificate with the reference profile", func(t *testing.T) {
		authority := newTestAuthority(t)

		creds, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
		require.NoError(t, err)

		cert := creds.Certificate
		assert.Equal(t, "localhost", cert.Subject.CommonName)
		assert.Equal(t, []string{"UT"}, cert.Subject.Country)
		assert.Equal(t, authority.Certificate().RawSubject, cert.RawIssuer)
		assert.False(t, cert.IsCA)
		assert.True(t, cert.BasicConstraintsValid)
		assert.Equal(t, x509.SHA256WithRSA, cert.SignatureAlgorithm)

		wantUsage := x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment |
			x509.KeyUsageKeyEncipherment | x509.KeyUsageDataEncipherment
		assert.Equal(t, wantUsage, cert.KeyUsage)
		assert.Contains(t, cert.ExtKeyUsage, x509.ExtKeyUsageServerAuth)

		assert.Equal(t, []string{"localhost"}, cert.DNSNames)
		require.NoError(t, cert.CheckSignatureFrom(authority.Certificate()))
	})

	t.Run("validates the localhost hostname via the SAN extension", func(t *testing.T) {
		authority := newTestAuthority(t)

		creds, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
		require.NoError(t, err)

		require.NoError(t, creds.Certificate.VerifyHostname("localhost"))
		require.Error(t, creds.Certificate.VerifyHostname("127.0.0.1"))
	})

	t.Run("verifies against the authority as sole trust anchor", func(t *testing.T) {
		authority := newTestAuthority(t)

		creds, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
		require.NoError(t, err)

		_, err = creds.Certificate.Verify(x509.VerifyOptions{
			Roots:   authority.Pool(),
			DNSName: "localhost",
		})
		require.NoError(t, err)

		_, err = creds.Certificate.Verify(x509.VerifyOptions{
			Roots:   authority.Pool(),
			DNSName: "example.com",
		})
		require.Error(t, err)
	})

	t.Run("rejects an empty subject alternative name list", func(t *testing.T) {
		authority := newTestAuthority(t)

		_, err := authority.IssueServer(LeafConfig{
			DNSNames: []string{},
			KeyBits:  testKeyBits,
		})
		require.ErrorIs(t, err, ErrExtensionBuild)
	})

	t.Run("issues custom SAN lists", func(t *testing.T) {
		authority := newTestAuthority(t)

		creds, err := authority.IssueServer(LeafConfig{
			CommonName: "example.com",
			DNSNames:   []string{"example.com", "www.example.com"},
			KeyBits:    testKeyBits,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"example.com", "www.example.com"}, creds.Certificate.DNSNames)
		require.NoError(t, creds.Certificate.VerifyHostname("www.example.com"))
	})

	t.Run("generates distinct key material per issuance", func(t *testing.T) {
		authority := newTestAuthority(t)

		first, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
		require.NoError(t, err)

		second, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
		require.NoError(t, err)

		assert.False(t, first.Key.PublicKey.Equal(&second.Key.PublicKey))
		assert.NotEqual(t, first.Fingerprint(), second.Fingerprint())
	})

	t.Run("reports expiry for a validity window in the past", func(t *testing.T) {
		authority := newTestAuthority(t)

		creds, err := authority.IssueServer(LeafConfig{
			NotBefore: time.Now().Add(-48 * time.Hour),
			Validity:  24 * time.Hour,
			KeyBits:   testKeyBits,
		})
		require.NoError(t, err)
		assert.True(t, creds.Certificate.NotAfter.Before(time.Now()))

		_, err = creds.Certificate.Verify(x509.VerifyOptions{
			Roots:   authority.Pool(),
			DNSName: "localhost",
		})

		var invalidErr x509.CertificateInvalidError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, x509.Expired, invalidErr.Reason)
	})
}

func TestNewRequest(t *testing.T) {
	t.Run("self-signs to prove key possession", func(t *testing.T) {
		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		csr, csrPEM, err := NewRequest(key, RequestConfig{
			CommonName: "localhost",
			DNSNames:   []string{"localhost"},
		})
		require.NoError(t, err)

		require.NoError(t, csr.CheckSignature())
		assert.Equal(t, "localhost", csr.Subject.CommonName)
		assert.Equal(t, []string{"UT"}, csr.Subject.Country)
		assert.True(t, bytes.HasPrefix(csrPEM, []byte("-----BEGIN CERTIFICATE REQUEST-----")))
	})

	t.Run("requires a common name", func(t *testing.T) {
		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		_, _, err = NewRequest(key, RequestConfig{DNSNames: []string{"localhost"}})
		require.ErrorIs(t, err, ErrCertificateBuild)
	})
}

func TestAuthority_Sign(t *testing.T) {
	t.Run("applies the default validity window", func(t *testing.T) {
		authority := newTestAuthority(t)

		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		csr, _, err := NewRequest(key, RequestConfig{
			CommonName: "localhost",
			DNSNames:   []string{"localhost"},
		})
		require.NoError(t, err)

		cert, _, err := authority.Sign(csr, SignConfig{})
		require.NoError(t, err)
		assert.Equal(t, DefaultValidity, cert.NotAfter.Sub(cert.NotBefore))
	})

	t.Run("fails without authority key material", func(t *testing.T) {
		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		csr, _, err := NewRequest(key, RequestConfig{
			CommonName: "localhost",
			DNSNames:   []string{"localhost"},
		})
		require.NoError(t, err)

		var empty Authority
		_, _, err = empty.Sign(csr, SignConfig{})
		require.ErrorIs(t, err, ErrSigning)
	})

	t.Run("rejects a tampered request", func(t *testing.T) {
		authority := newTestAuthority(t)

		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		csr, _, err := NewRequest(key, RequestConfig{
			CommonName: "localhost",
			DNSNames:   []string{"localhost"},
		})
		require.NoError(t, err)

		// Flip a bit inside the request signature
		raw := bytes.Clone(csr.Raw)
		raw[len(raw)-1] ^= 0xff
		tampered, err := x509.ParseCertificateRequest(raw)
		require.NoError(t, err)

		_, _, err = authority.Sign(tampered, SignConfig{})
		require.ErrorIs(t, err, ErrSigning)
	})

	t.Run("rejects a request without subject alternative names", func(t *testing.T) {
		authority := newTestAuthority(t)

		key, err := NewServerKey(testKeyBits)
		require.NoError(t, err)

		csr, _, err := NewRequest(key, RequestConfig{CommonName: "localhost"})
		require.NoError(t, err)

		_, _, err = authority.Sign(csr, SignConfig{})
		require.ErrorIs(t, err, ErrExtensionBuild)
	})
}

func TestCredentials_TLSCertificate(t *testing.T) {
	authority := newTestAuthority(t)

	creds, err := authority.IssueServer(LeafConfig{KeyBits: testKeyBits})
	require.NoError(t, err)

	cert, err := creds.TLSCertificate()
	require.NoError(t, err)
	require.Len(t, cert.Certificate, 1)
	assert.Equal(t, creds.Certificate.Raw, cert.Certificate[0])
}
