package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wolfeidau/tlsfixture/internal/logger"
	"github.com/wolfeidau/tlsfixture/internal/pki"
	"github.com/wolfeidau/tlsfixture/internal/scratch"
)

// IssueCmd provisions certificates without serving, for callers that only
// need the PEM artifacts on disk.
type IssueCmd struct {
	ProvisionFlags `embed:""`

	ReuseCA bool `help:"Sign with the authority from a previous run instead of generating a new one."`
}

func (c *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	if c.Config != "" {
		profile, err := loadProfile(c.Config)
		if err != nil {
			return err
		}

		if err := c.applyProfile(profile); err != nil {
			return err
		}
	}

	if c.ReuseCA {
		return c.reissue(log)
	}

	_, _, err := c.provision(log)

	return err
}

// reissue loads the authority left behind by a previous run and signs a fresh
// server certificate with it, consuming the next recorded serial.
func (c *IssueCmd) reissue(log zerolog.Logger) error {
	dir := scratch.New(c.Dir)

	authority, err := dir.LoadAuthority()
	if err != nil {
		return fmt.Errorf("failed to load authority: %w", err)
	}

	creds, err := authority.IssueServer(pki.LeafConfig{
		Country:    c.Country,
		CommonName: c.ServerName,
		DNSNames:   c.SAN,
		Validity:   c.Validity,
		KeyBits:    c.KeyBits,
	})
	if err != nil {
		return fmt.Errorf("failed to issue server certificate: %w", err)
	}

	if err := dir.WriteServer(creds); err != nil {
		return fmt.Errorf("failed to write server artifacts: %w", err)
	}

	if err := dir.WriteSerial(authority); err != nil {
		return fmt.Errorf("failed to record serial: %w", err)
	}

	log.Info().
		Str("dir", c.Dir).
		Str("ca_fingerprint", authority.Fingerprint()).
		Str("server_fingerprint", creds.Fingerprint()).
		Int64("serial", creds.Certificate.SerialNumber.Int64()).
		Msg("Issued server certificate from existing authority")

	return nil
}
