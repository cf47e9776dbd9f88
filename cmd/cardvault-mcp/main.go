package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/peterkuimelis/cardvault/internal/config"
	"github.com/peterkuimelis/cardvault/internal/ledger"
	cardvaultmcp "github.com/peterkuimelis/cardvault/internal/mcp"
	"github.com/peterkuimelis/cardvault/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var catalog *ledger.Catalog
	if cfg.CatalogPath != "" {
		catalog, err = ledger.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load catalog %s: %v\n", cfg.CatalogPath, err)
		}
	}

	var st ledger.Store
	var snap ledger.Snapshot
	var restored bool
	if cfg.StorePath != "" {
		s, err := store.Open(cfg.StorePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		snap, restored, err = s.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: load store: %v\n", err)
			os.Exit(1)
		}
		st = s
	}

	l := ledger.New(ledger.Config{
		Registry: ledger.RegistryConfig{
			Owner:           ledger.AccountID(cfg.RegistryOwner),
			DirectMintQuota: cfg.DirectMintQuota,
			IssuerMintQuota: cfg.IssuerMintQuota,
			MintCooldown:    cfg.MintCooldown,
		},
		Fusion: ledger.FusionConfig{
			Cooldown:   cfg.FusionCooldown,
			ResultLock: cfg.FusionLock,
		},
		MarketOperator: ledger.AccountID(cfg.MarketOperator),
	}, catalog, nil, nil, st)
	if restored {
		l.Restore(snap)
	}

	cardvaultmcp.SetLedger(l)

	s := server.NewMCPServer("cardvault", "1.0.0")
	cardvaultmcp.RegisterTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
