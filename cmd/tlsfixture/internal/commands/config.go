package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is an on-disk bundle of fixture settings, YAML or JSON by file
// extension. Values from a profile take precedence over flags.
type Profile struct {
	Dir        string   `yaml:"dir" json:"dir"`
	Country    string   `yaml:"country" json:"country"`
	CAName     string   `yaml:"caName" json:"caName"`
	ServerName string   `yaml:"serverName" json:"serverName"`
	SAN        []string `yaml:"san" json:"san"`
	Validity   string   `yaml:"validity" json:"validity"`
	KeyBits    int      `yaml:"keyBits" json:"keyBits"`
	Listen     string   `yaml:"listen" json:"listen"`
	Root       string   `yaml:"root" json:"root"`
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile

	// Determine file format by extension
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := json.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to parse JSON profile: %w", err)
		}
	} else {
		// Default to YAML
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	}

	return &profile, nil
}

// applyProfile overlays the provisioning values set in the profile onto the
// flags. The validity is a Go duration string such as "24h" or "90m".
func (f *ProvisionFlags) applyProfile(profile *Profile) error {
	if profile.Dir != "" {
		f.Dir = profile.Dir
	}
	if profile.Country != "" {
		f.Country = profile.Country
	}
	if profile.CAName != "" {
		f.CAName = profile.CAName
	}
	if profile.ServerName != "" {
		f.ServerName = profile.ServerName
	}
	if len(profile.SAN) > 0 {
		f.SAN = profile.SAN
	}
	if profile.Validity != "" {
		validity, err := time.ParseDuration(profile.Validity)
		if err != nil {
			return fmt.Errorf("failed to parse validity: %w", err)
		}
		f.Validity = validity
	}
	if profile.KeyBits != 0 {
		f.KeyBits = profile.KeyBits
	}

	return nil
}
