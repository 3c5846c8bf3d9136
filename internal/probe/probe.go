// Package probe polls a freshly provisioned fixture endpoint until it answers
// over TLS, so test suites can block on readiness instead of sleeping.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultTimeout bounds the total wait for the endpoint to come up.
	DefaultTimeout = 30 * time.Second

	// DefaultInterval is the initial delay between attempts.
	DefaultInterval = 250 * time.Millisecond
)

// Options tunes the polling loop. Zero values fall back to the defaults.
type Options struct {
	Timeout    time.Duration
	Interval   time.Duration
	MinVersion uint16
}

// Client returns an HTTP client that trusts only the given pool, mirroring a
// test client handed the fixture's CA certificate.
func Client(pool *x509.CertPool, minVersion uint16) *http.Client {
	if minVersion == 0 {
		minVersion = tls.VersionTLS12
	}

	return &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs:    pool,
				MinVersion: minVersion,
			},
		},
		Timeout: 10 * time.Second,
	}
}

// Wait polls url until the server answers any HTTP status, the context is
// cancelled, or the timeout elapses. Certificate verification failures cannot
// resolve by waiting and abort the loop immediately.
func Wait(ctx context.Context, url string, pool *x509.CertPool, opts Options) error {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	client := Client(pool, opts.MinVersion)

	operation := func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, backoff.Permanent(err)
		}

		resp, err := client.Do(req)
		if err != nil {
			var certErr *tls.CertificateVerificationError
			if errors.As(err, &certErr) {
				return 0, backoff.Permanent(err)
			}

			return 0, err
		}
		defer resp.Body.Close()

		// Any answer means the listener is up, readiness does not depend on
		// the requested path existing
		_, _ = io.Copy(io.Discard, resp.Body)

		return resp.StatusCode, nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = opts.Interval
	policy.MaxInterval = 2 * time.Second

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(opts.Timeout),
	)
	if err != nil {
		return fmt.Errorf("endpoint %s did not become ready: %w", url, err)
	}

	return nil
}
