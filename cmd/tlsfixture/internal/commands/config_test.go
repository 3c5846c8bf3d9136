package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfile(t *testing.T) {
	t.Run("parses YAML by default", func(t *testing.T) {
		path := writeProfile(t, "profile.yaml", `
dir: /tmp/fixture-certs
country: AU
caName: ca.example.test
serverName: example.test
san:
  - example.test
  - www.example.test
validity: 90m
keyBits: 2048
listen: 127.0.0.1:8443
root: ./public
`)

		profile, err := loadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, "/tmp/fixture-certs", profile.Dir)
		assert.Equal(t, "AU", profile.Country)
		assert.Equal(t, "ca.example.test", profile.CAName)
		assert.Equal(t, "example.test", profile.ServerName)
		assert.Equal(t, []string{"example.test", "www.example.test"}, profile.SAN)
		assert.Equal(t, "90m", profile.Validity)
		assert.Equal(t, 2048, profile.KeyBits)
		assert.Equal(t, "127.0.0.1:8443", profile.Listen)
		assert.Equal(t, "./public", profile.Root)
	})

	t.Run("parses JSON by extension", func(t *testing.T) {
		path := writeProfile(t, "profile.json", `{"serverName":"example.test","validity":"1h"}`)

		profile, err := loadProfile(path)
		require.NoError(t, err)

		assert.Equal(t, "example.test", profile.ServerName)
		assert.Equal(t, "1h", profile.Validity)
	})

	t.Run("fails on a missing file", func(t *testing.T) {
		_, err := loadProfile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
	})

	t.Run("fails on malformed YAML", func(t *testing.T) {
		path := writeProfile(t, "broken.yaml", "dir: [\n")

		_, err := loadProfile(path)
		require.Error(t, err)
	})
}

func TestApplyProfile(t *testing.T) {
	base := func() ProvisionFlags {
		return ProvisionFlags{
			Dir:        "./certs",
			Country:    "UT",
			CAName:     "ca.localhost",
			ServerName: "localhost",
			SAN:        []string{"localhost"},
			Validity:   24 * time.Hour,
			KeyBits:    4096,
		}
	}

	t.Run("overlays set values and keeps the rest", func(t *testing.T) {
		flags := base()

		err := flags.applyProfile(&Profile{ServerName: "example.test", Validity: "90m"})
		require.NoError(t, err)

		assert.Equal(t, "example.test", flags.ServerName)
		assert.Equal(t, 90*time.Minute, flags.Validity)
		assert.Equal(t, "ca.localhost", flags.CAName)
		assert.Equal(t, []string{"localhost"}, flags.SAN)
		assert.Equal(t, 4096, flags.KeyBits)
	})

	t.Run("rejects a malformed validity", func(t *testing.T) {
		flags := base()

		err := flags.applyProfile(&Profile{Validity: "one day"})
		require.Error(t, err)
	})
}

func writeProfile(t *testing.T, name, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))

	return path
}
