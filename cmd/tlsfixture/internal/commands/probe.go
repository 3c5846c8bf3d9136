package commands

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/wolfeidau/tlsfixture/internal/logger"
	"github.com/wolfeidau/tlsfixture/internal/probe"
)

// ProbeCmd polls a fixture endpoint until it answers over TLS, for scripts
// that need to wait for the serve command to come up.
type ProbeCmd struct {
	URL     string        `help:"Endpoint to poll." default:"https://localhost:4443/"`
	CACert  string        `help:"Path to the CA certificate to trust." default:"./certs/ca.pem" type:"path"`
	Timeout time.Duration `help:"Overall wait budget." default:"30s"`
	MinTLS  string        `help:"Minimum TLS protocol version." default:"1.2" enum:"1.2,1.3"`
}

func (c *ProbeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	caPEM, err := os.ReadFile(c.CACert)
	if err != nil {
		return fmt.Errorf("failed to read ca certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return fmt.Errorf("no certificates found in %s", c.CACert)
	}

	minVersion, err := parseTLSVersion(c.MinTLS)
	if err != nil {
		return err
	}

	log.Info().Str("url", c.URL).Dur("timeout", c.Timeout).Msg("Waiting for endpoint")

	if err := probe.Wait(ctx, c.URL, pool, probe.Options{
		Timeout:    c.Timeout,
		MinVersion: minVersion,
	}); err != nil {
		return err
	}

	log.Info().Str("url", c.URL).Msg("Endpoint ready")

	return nil
}
