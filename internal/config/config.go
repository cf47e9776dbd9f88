// Package config resolves runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable knob. Defaults give a usable in-memory ledger;
// set CARDVAULT_STORE to persist across restarts.
type Config struct {
	// Addr is the TCP address the wire protocol listens on.
	Addr string `env:"CARDVAULT_ADDR" envDefault:":9000"`
	// HTTPAddr is the address the web server listens on.
	HTTPAddr string `env:"CARDVAULT_HTTP_ADDR" envDefault:":8080"`
	// CatalogPath points at the card catalog YAML. Empty means the built-in
	// default attack table only.
	CatalogPath string `env:"CARDVAULT_CATALOG" envDefault:"catalog.yaml"`
	// StorePath is the SQLite database file. Empty disables persistence.
	StorePath string `env:"CARDVAULT_STORE"`

	// RegistryOwner administers the issuer allow-list.
	RegistryOwner string `env:"CARDVAULT_REGISTRY_OWNER" envDefault:"registry-owner"`
	// MarketOperator is the identity both marketplaces transfer cards under.
	MarketOperator string `env:"CARDVAULT_MARKET_OPERATOR" envDefault:"marketplace"`

	DirectMintQuota int           `env:"CARDVAULT_DIRECT_MINT_QUOTA" envDefault:"4"`
	IssuerMintQuota int           `env:"CARDVAULT_ISSUER_MINT_QUOTA" envDefault:"30"`
	MintCooldown    time.Duration `env:"CARDVAULT_MINT_COOLDOWN" envDefault:"0s"`

	FusionCooldown time.Duration `env:"CARDVAULT_FUSION_COOLDOWN" envDefault:"300s"`
	FusionLock     time.Duration `env:"CARDVAULT_FUSION_LOCK" envDefault:"10m"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RegistryOwner == "" {
		return fmt.Errorf("registry owner must not be empty")
	}
	if c.MarketOperator == "" {
		return fmt.Errorf("market operator must not be empty")
	}
	if c.DirectMintQuota < 0 || c.IssuerMintQuota < 0 {
		return fmt.Errorf("mint quotas must not be negative")
	}
	if c.MintCooldown < 0 || c.FusionCooldown < 0 || c.FusionLock < 0 {
		return fmt.Errorf("cooldowns and locks must not be negative")
	}
	return nil
}
