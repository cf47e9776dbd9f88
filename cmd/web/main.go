// Read-only dashboard over a saved ledger store: loads the snapshot from
// SQLite and serves the HTTP view. For live state and events, use
// `cardvault serve`, which hosts the same view on the running ledger.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterkuimelis/cardvault/internal/config"
	"github.com/peterkuimelis/cardvault/internal/ledger"
	"github.com/peterkuimelis/cardvault/internal/store"
	"github.com/peterkuimelis/cardvault/internal/web"
)

func main() {
	port := flag.Int("port", 8080, "HTTP port to listen on")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.StorePath == "" {
		fmt.Fprintln(os.Stderr, "Error: CARDVAULT_STORE must point at a ledger database")
		os.Exit(1)
	}

	s, err := store.Open(cfg.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: open store: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	snap, ok, err := s.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load store: %v\n", err)
		os.Exit(1)
	}

	var catalog *ledger.Catalog
	if cfg.CatalogPath != "" {
		catalog, err = ledger.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not load catalog %s: %v\n", cfg.CatalogPath, err)
		}
	}

	l := ledger.New(ledger.Config{}, catalog, nil, nil, nil)
	if ok {
		l.Restore(snap)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("cardvault dashboard on http://localhost%s (%d cards)", addr, len(snap.Cards))
	if err := web.NewServer(l, nil).ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
