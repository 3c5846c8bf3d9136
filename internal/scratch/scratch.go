// Package scratch manages the transient directory of provisioning artifacts.
// Every run starts from a clean slate: prior artifacts are removed before new
// ones are written, and a missing file during cleanup is not an error.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wolfeidau/tlsfixture/internal/pki"
)

// Artifact file names within a scratch directory.
const (
	CAKeyFile      = "ca.key"
	CACertFile     = "ca.pem"
	CASerialFile   = "ca.srl"
	ServerKeyFile  = "server.key"
	ServerCSRFile  = "server.csr"
	ServerCertFile = "server.pem"
)

var artifactFiles = []string{
	CAKeyFile,
	CACertFile,
	CASerialFile,
	ServerKeyFile,
	ServerCSRFile,
	ServerCertFile,
}

// Dir is a scratch directory holding the PEM artifacts of one provisioning
// run.
type Dir struct {
	path string
}

// New returns a scratch directory rooted at path. The directory itself is
// created on first write.
func New(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the scratch directory root.
func (d *Dir) Path() string {
	return d.path
}

// File returns the path of an artifact within the directory.
func (d *Dir) File(name string) string {
	return filepath.Join(d.path, name)
}

// Reset removes the artifacts of any previous run. Missing files are expected
// and ignored; any other removal failure is reported so a stale certificate is
// never served silently.
func (d *Dir) Reset() error {
	var errs []error

	for _, name := range artifactFiles {
		if err := os.Remove(d.File(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WriteAuthority writes the CA key, certificate and serial-tracking file.
func (d *Dir) WriteAuthority(authority *pki.Authority) error {
	if err := os.MkdirAll(d.path, 0700); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	if err := os.WriteFile(d.File(CAKeyFile), authority.KeyPEM(), 0600); err != nil {
		return fmt.Errorf("failed to write ca key: %w", err)
	}

	// #nosec G306 - certificates are intentionally world-readable
	if err := os.WriteFile(d.File(CACertFile), authority.CertificatePEM(), 0644); err != nil {
		return fmt.Errorf("failed to write ca certificate: %w", err)
	}

	return d.WriteSerial(authority)
}

// WriteSerial records the serial number the authority will assign next, in
// the uppercase hex format openssl uses for .srl files.
func (d *Dir) WriteSerial(authority *pki.Authority) error {
	data := fmt.Sprintf("%02X\n", authority.NextSerial())

	// #nosec G306 - serial tracking file carries no secrets
	if err := os.WriteFile(d.File(CASerialFile), []byte(data), 0644); err != nil {
		return fmt.Errorf("failed to write ca serial: %w", err)
	}

	return nil
}

// WriteServer writes the server key, certificate and the signing request that
// produced it.
func (d *Dir) WriteServer(creds *pki.Credentials) error {
	if err := os.MkdirAll(d.path, 0700); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	if err := os.WriteFile(d.File(ServerKeyFile), creds.KeyPEM, 0600); err != nil {
		return fmt.Errorf("failed to write server key: %w", err)
	}

	// #nosec G306 - certificates are intentionally world-readable
	if err := os.WriteFile(d.File(ServerCertFile), creds.CertificatePEM, 0644); err != nil {
		return fmt.Errorf("failed to write server certificate: %w", err)
	}

	// #nosec G306 - the request carries only public material
	if err := os.WriteFile(d.File(ServerCSRFile), creds.RequestPEM, 0644); err != nil {
		return fmt.Errorf("failed to write server certificate request: %w", err)
	}

	return nil
}

// LoadAuthority reloads the CA material written by a previous run, resuming
// the serial counter from the serial-tracking file when present.
func (d *Dir) LoadAuthority() (*pki.Authority, error) {
	certPEM, err := os.ReadFile(d.File(CACertFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read ca certificate: %w", pki.ErrSigning, err)
	}

	keyPEM, err := os.ReadFile(d.File(CAKeyFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read ca key: %w", pki.ErrSigning, err)
	}

	return pki.LoadAuthority(certPEM, keyPEM, d.readSerial())
}

// readSerial parses the serial-tracking file. Returns 0 when the file is
// missing or malformed, letting LoadAuthority derive the counter from the CA
// certificate instead.
func (d *Dir) readSerial() int64 {
	data, err := os.ReadFile(d.File(CASerialFile))
	if err != nil {
		return 0
	}

	serial, err := strconv.ParseInt(strings.TrimSpace(string(data)), 16, 64)
	if err != nil {
		return 0
	}

	return serial
}
