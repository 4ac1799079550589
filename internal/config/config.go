// Package config loads client configuration from YAML with environment
// overrides. File values land on top of defaults; env vars land on top of
// the file, so a deployment can pin a setting without editing the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pkmsg/go-client/internal/identity"
)

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
)

type Config struct {
	Network         string
	Blinding        bool
	SignRPS         float64
	SignBurst       int
	SignIdleTTL     time.Duration
	CertStorePath   string
	CertStoreSecret string
}

func DefaultConfig() Config {
	return Config{
		Network:     NetworkMainnet,
		Blinding:    true,
		SignRPS:     10,
		SignBurst:   20,
		SignIdleTTL: 10 * time.Minute,
	}
}

// Prefix maps the configured network name to its identifier prefix byte.
func (c Config) Prefix() (byte, error) {
	switch c.Network {
	case NetworkMainnet:
		return identity.NetworkPrefixMainnet, nil
	case NetworkTestnet:
		return identity.NetworkPrefixTestnet, nil
	default:
		return 0, fmt.Errorf("unknown network %q", c.Network)
	}
}

// FileConfig is the YAML shape. Bools are pointers so an absent key and an
// explicit false stay distinguishable during Merge.
type FileConfig struct {
	Client ClientFileConfig `yaml:"client"`
}

type ClientFileConfig struct {
	Network         string        `yaml:"network"`
	Blinding        *bool         `yaml:"blinding"`
	SignRPS         float64       `yaml:"signRps"`
	SignBurst       int           `yaml:"signBurst"`
	SignIdleTTL     time.Duration `yaml:"signIdleTtl"`
	CertStorePath   string        `yaml:"certStorePath"`
	CertStoreSecret string        `yaml:"certStoreSecret"`
}

func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/storeauth.yaml",
			"storeauth.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			slog.Warn("config file is not valid yaml, skipping", "path", path, "error", err.Error())
			continue
		}

		merged := cfg
		Merge(&merged, parsed.Client)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src ClientFileConfig) {
	if src.Network != "" {
		dst.Network = src.Network
	}
	if src.Blinding != nil {
		dst.Blinding = *src.Blinding
	}
	if src.SignRPS != 0 {
		dst.SignRPS = src.SignRPS
	}
	if src.SignBurst != 0 {
		dst.SignBurst = src.SignBurst
	}
	if src.SignIdleTTL != 0 {
		dst.SignIdleTTL = src.SignIdleTTL
	}
	if src.CertStorePath != "" {
		dst.CertStorePath = src.CertStorePath
	}
	if src.CertStoreSecret != "" {
		dst.CertStoreSecret = src.CertStoreSecret
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if network := strings.TrimSpace(os.Getenv("PKMSG_NETWORK")); network != "" {
		cfg.Network = network
	}
	if path := strings.TrimSpace(os.Getenv("PKMSG_CERT_STORE_PATH")); path != "" {
		cfg.CertStorePath = path
	}
	if secret := os.Getenv("PKMSG_CERT_STORE_SECRET"); secret != "" {
		cfg.CertStoreSecret = secret
	}

	raw := strings.TrimSpace(os.Getenv("PKMSG_BLINDING"))
	if raw == "" {
		return
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return
	}
	cfg.Blinding = v
}
