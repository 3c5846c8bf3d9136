package commands

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/tlsfixture/internal/pki"
	"github.com/wolfeidau/tlsfixture/internal/scratch"
)

// ProvisionFlags configure the throwaway authority and the server identity it
// signs. The defaults reproduce the reference fixture, a C=UT authority named
// ca.localhost issuing a one day localhost certificate with a 4096 bit key.
type ProvisionFlags struct {
	Dir        string        `help:"Scratch directory for PEM artifacts." default:"./certs" env:"CERT_DIR"`
	Country    string        `help:"Subject country code." default:"UT"`
	CAName     string        `help:"Authority common name." default:"ca.localhost"`
	ServerName string        `help:"Server common name." default:"localhost"`
	SAN        []string      `help:"Subject alternative names for the server certificate." default:"localhost"`
	Validity   time.Duration `help:"Certificate validity window." default:"24h"`
	KeyBits    int           `help:"RSA key size in bits." default:"4096"`
	Config     string        `help:"Path to a YAML or JSON profile file." type:"path"`
}

// provision resets the scratch directory, generates a fresh authority and a
// server certificate signed by it, and writes all artifacts to disk. Stale
// artifacts that cannot be removed are reported and skipped so a previous run
// never blocks a new one.
func (f *ProvisionFlags) provision(log zerolog.Logger) (*pki.Authority, *pki.Credentials, error) {
	dir := scratch.New(f.Dir)

	if err := dir.Reset(); err != nil {
		log.Warn().Err(err).Msg("failed to remove stale artifacts, continuing")
	}

	authority, err := pki.NewAuthority(pki.AuthorityConfig{
		Country:    f.Country,
		CommonName: f.CAName,
		Validity:   f.Validity,
		KeyBits:    f.KeyBits,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to provision authority: %w", err)
	}

	creds, err := authority.IssueServer(pki.LeafConfig{
		Country:    f.Country,
		CommonName: f.ServerName,
		DNSNames:   f.SAN,
		Validity:   f.Validity,
		KeyBits:    f.KeyBits,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to issue server certificate: %w", err)
	}

	if err := dir.WriteAuthority(authority); err != nil {
		return nil, nil, fmt.Errorf("failed to write authority artifacts: %w", err)
	}

	if err := dir.WriteServer(creds); err != nil {
		return nil, nil, fmt.Errorf("failed to write server artifacts: %w", err)
	}

	log.Info().
		Str("dir", f.Dir).
		Str("ca_fingerprint", authority.Fingerprint()).
		Str("server_fingerprint", creds.Fingerprint()).
		Strs("san", creds.Certificate.DNSNames).
		Time("not_after", creds.Certificate.NotAfter).
		Msg("Provisioned certificates")

	return authority, creds, nil
}
