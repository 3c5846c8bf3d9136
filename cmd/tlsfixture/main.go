package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/tlsfixture/cmd/tlsfixture/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Serve   commands.ServeCmd `cmd:"" default:"1" help:"Provision throwaway certificates and serve a directory over TLS"`
		Issue   commands.IssueCmd `cmd:"" help:"Provision certificates without serving"`
		Probe   commands.ProbeCmd `cmd:"" help:"Wait for a fixture endpoint to answer over TLS"`
		Debug   bool              `help:"Enable debug mode."`
		Version kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
