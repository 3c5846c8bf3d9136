package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/tlsfixture/internal/fileserver"
	"github.com/wolfeidau/tlsfixture/internal/logger"
	"github.com/wolfeidau/tlsfixture/internal/scratch"
)

// ServeCmd provisions throwaway certificates and serves a directory read only
// over TLS. This is the default command so a bare invocation brings up the
// fixture with the reference settings.
type ServeCmd struct {
	ProvisionFlags `embed:""`

	Listen      string   `help:"HTTPS listen address." default:":4443"`
	Root        string   `help:"Directory to serve." default:"." type:"existingdir"`
	MinTLS      string   `help:"Minimum TLS protocol version." default:"1.2" enum:"1.2,1.3"`
	CORSOrigins []string `help:"Origins allowed to make cross origin requests."`
	MaxConns    int      `help:"Maximum concurrent connections, 0 for unlimited." default:"0"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Bool("debug", globals.Debug).Msg("Starting fixture")

	if c.Config != "" {
		profile, err := loadProfile(c.Config)
		if err != nil {
			return err
		}

		if err := c.applyProfile(profile); err != nil {
			return err
		}

		if profile.Listen != "" {
			c.Listen = profile.Listen
		}
		if profile.Root != "" {
			c.Root = profile.Root
		}
	}

	minVersion, err := parseTLSVersion(c.MinTLS)
	if err != nil {
		return err
	}

	_, creds, err := c.provision(log)
	if err != nil {
		return err
	}

	cert, err := creds.TLSCertificate()
	if err != nil {
		return fmt.Errorf("failed to assemble tls certificate: %w", err)
	}

	srv, err := fileserver.New(fileserver.Config{
		Addr:           c.Listen,
		Root:           c.Root,
		Certificate:    cert,
		MinVersion:     minVersion,
		AllowedOrigins: c.CORSOrigins,
		MaxConns:       c.MaxConns,
	}, log)
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	log.Info().
		Str("url", srv.URL()).
		Str("ca_cert", scratch.New(c.Dir).File(scratch.CACertFile)).
		Msg("Fixture ready")

	return srv.Serve()
}
