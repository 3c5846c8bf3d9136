package commands

import (
	"crypto/tls"
	"fmt"
)

type Globals struct {
	Debug   bool
	Version string
}

// parseTLSVersion maps a protocol flag value to the crypto/tls constant.
func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version %q", version)
	}
}
