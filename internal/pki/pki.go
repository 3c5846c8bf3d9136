// Package pki provisions a throwaway certificate authority and the leaf
// server certificates it signs. All key material is generated in memory;
// persisting artifacts is the caller's concern.
package pki

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/mr-tron/base58"
)

// Reference values used when a config field is left unset.
const (
	DefaultCountry       = "UT"
	DefaultAuthorityName = "ca.localhost"
	DefaultServerName    = "localhost"
	DefaultValidity      = 24 * time.Hour
	DefaultKeyBits       = 4096
)

// notBeforeSkew backdates certificates to tolerate clock drift between the
// fixture and its clients.
const notBeforeSkew = 5 * time.Minute

var (
	// ErrKeyGeneration indicates the random source failed while generating a key pair.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrCertificateBuild indicates a certificate or request template could not be built.
	ErrCertificateBuild = errors.New("certificate build failed")

	// ErrSigning indicates the authority key material is missing, malformed or
	// rejected the signing operation.
	ErrSigning = errors.New("signing failed")

	// ErrExtensionBuild indicates a required certificate extension could not be
	// produced, such as an empty subject alternative name list.
	ErrExtensionBuild = errors.New("extension build failed")
)

// fingerprint returns the Base58-encoded SHA256 of DER-encoded material.
func fingerprint(der []byte) string {
	hash := sha256.Sum256(der)
	return base58.Encode(hash[:])
}
