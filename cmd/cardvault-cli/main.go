package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterkuimelis/cardvault/internal/config"
	"github.com/peterkuimelis/cardvault/internal/ledger"
	"github.com/peterkuimelis/cardvault/internal/log"
	cardvaultnet "github.com/peterkuimelis/cardvault/internal/net"
	"github.com/peterkuimelis/cardvault/internal/store"
	"github.com/peterkuimelis/cardvault/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "serve":
		runServe(os.Args[2:])
	case "call":
		runCall(os.Args[2:])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  cardvault serve")
	fmt.Println("  cardvault call --op OP [--caller ACCOUNT] [flags...]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   Run the ledger server (TCP protocol + HTTP view)")
	fmt.Println("  call    Send one request to a running server and print the response")
	fmt.Println()
	fmt.Println("Configuration comes from CARDVAULT_* environment variables; see internal/config.")
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(args)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	catalog := loadCatalog(cfg.CatalogPath)

	// Text log to stdout, broadcast to websocket subscribers.
	feed := log.NewBroadcaster(log.NewTextLogger(os.Stdout))

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
	}, catalog, nil, feed, st)
	if restored {
		l.Restore(snap)
		fmt.Printf("Restored %d cards from %s\n", len(snap.Cards), cfg.StorePath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		srv := &cardvaultnet.Server{Addr: cfg.Addr, Ledger: l}
		errCh <- srv.Run(ctx)
	}()
	go func() {
		fmt.Printf("Web view on http://localhost%s\n", cfg.HTTPAddr)
		errCh <- web.NewServer(l, feed).ListenAndServe(ctx, cfg.HTTPAddr)
	}()

	if err := <-errCh; err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadCatalog(path string) *ledger.Catalog {
	if path == "" {
		return ledger.NewCatalog()
	}
	catalog, err := ledger.LoadCatalog(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load catalog %s: %v\n", path, err)
		return ledger.NewCatalog()
	}
	return catalog
}

func runCall(args []string) {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	addr := fs.String("addr", "localhost:9000", "server address to connect to")
	op := fs.String("op", "", "operation to invoke (e.g. mint, transfer, fuse, create_trade)")
	caller := fs.String("caller", "", "acting account")
	owner := fs.String("owner", "", "receiving account for mint")
	name := fs.String("name", "", "card name")
	rarity := fs.String("rarity", "", "card rarity")
	level := fs.Int("level", 0, "card level")
	lockMS := fs.Int64("lock-ms", 0, "transfer lock on the minted card, in milliseconds")
	to := fs.String("to", "", "transfer destination account")
	token := fs.Uint64("token", 0, "card id")
	token2 := fs.Uint64("token2", 0, "second card id for fusion")
	operator := fs.String("operator", "", "operator account for approvals")
	enabled := fs.Bool("enabled", true, "grant (true) or revoke (false)")
	issuer := fs.String("issuer", "", "issuer account")
	trade := fs.Uint64("trade", 0, "trade id")
	counter := fs.Uint64("counter", 0, "counter card id when accepting a trade")
	reqName := fs.String("requested-name", "", "requested card name")
	reqLevel := fs.Int("requested-level", 0, "requested card level")
	reqRarity := fs.String("requested-rarity", "", "requested card rarity")
	target := fs.String("target", "", "target account for a direct trade")
	reqToken := fs.Uint64("requested-token", 0, "requested card id for a direct trade")
	account := fs.String("account", "", "account for read operations")
	fs.Parse(args)

	if *op == "" {
		fmt.Fprintln(os.Stderr, "Error: --op is required")
		os.Exit(1)
	}

	client, err := cardvaultnet.Dial(context.Background(), *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	resp, err := client.Call(cardvaultnet.Request{
		Op:              *op,
		Caller:          *caller,
		Owner:           *owner,
		Name:            *name,
		Rarity:          *rarity,
		Level:           *level,
		LockMS:          *lockMS,
		To:              *to,
		Token:           *token,
		Token2:          *token2,
		Operator:        *operator,
		Enabled:         *enabled,
		Issuer:          *issuer,
		Trade:           *trade,
		CounterToken:    *counter,
		RequestedName:   *reqName,
		RequestedLevel:  *reqLevel,
		RequestedRarity: *reqRarity,
		Target:          *target,
		RequestedToken:  *reqToken,
		Account:         *account,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(resp, "", "  ")
	fmt.Println(string(out))

	if resp.Error != "" {
		os.Exit(1)
	}
}
