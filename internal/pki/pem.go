package pki

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

const (
	certificatePEMType = "CERTIFICATE"
	requestPEMType     = "CERTIFICATE REQUEST"
	privateKeyPEMType  = "RSA PRIVATE KEY"
	pkcs8PEMType       = "PRIVATE KEY"
)

// EncodeCertificatePEM encodes a DER certificate as a PEM block.
func EncodeCertificatePEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  certificatePEMType,
		Bytes: der,
	})
}

// EncodeRequestPEM encodes a DER certificate request as a PEM block.
func EncodeRequestPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  requestPEMType,
		Bytes: der,
	})
}

// EncodePrivateKeyPEM encodes an RSA private key as a PKCS#1 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  privateKeyPEMType,
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// ParseCertificatePEM parses the first certificate PEM block in data.
func ParseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != certificatePEMType {
		return nil, errors.New("no certificate PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}

// ParsePrivateKeyPEM parses an RSA private key from a PKCS#1 or PKCS#8 PEM
// block.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no private key PEM block found")
	}

	switch block.Type {
	case privateKeyPEMType:
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case pkcs8PEMType:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}

		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("unsupported private key type %T", key)
		}

		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block type %q", block.Type)
	}
}
