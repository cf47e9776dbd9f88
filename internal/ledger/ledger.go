// Package ledger implements the card registry, fusion engine and the two
// marketplaces behind a single serialization point: every public operation
// runs to completion under one mutex, validates fully before its first
// mutation, and either commits entirely or leaves no trace.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

// Store persists ledger snapshots. A nil store means in-memory only.
type Store interface {
	Save(snap Snapshot) error
}

// Config configures a ledger facade.
type Config struct {
	Registry       RegistryConfig
	Fusion         FusionConfig
	MarketOperator AccountID // identity the marketplaces act under
}

// Ledger is the single-writer facade over the registry, the fusion engine
// and both marketplaces. Transports (net, web, mcp) call it; they never touch
// the components directly.
type Ledger struct {
	mu     sync.Mutex
	clock  Clock
	logger log.EventLogger
	store  Store

	reg    *Registry
	fusion *FusionEngine
	market *Market
	direct *DirectMarket
}

// New creates a ledger. A nil clock means wall-clock time; a nil logger
// means an in-memory one; a nil store disables persistence.
func New(cfg Config, catalog *Catalog, clock Clock, logger log.EventLogger, store Store) *Ledger {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	if cfg.MarketOperator == "" {
		cfg.MarketOperator = "marketplace"
	}
	reg := NewRegistry(cfg.Registry, catalog, clock, logger)
	return &Ledger{
		clock:  clock,
		logger: logger,
		store:  store,
		reg:    reg,
		fusion: NewFusionEngine(reg, cfg.Fusion, clock, logger),
		market: NewMarket(reg, cfg.MarketOperator, clock, logger),
		direct: NewDirectMarket(reg, cfg.MarketOperator, clock, logger),
	}
}

// Restore replaces the ledger state with a snapshot (startup recovery).
func (l *Ledger) Restore(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.restoreLocked(snap)
}

// Snapshot captures the current state.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// MarketOperator returns the account the marketplaces act under. Holders
// grant it transfer authority before listing.
func (l *Ledger) MarketOperator() AccountID { return l.market.Operator() }

// Logger returns the event logger the ledger emits to.
func (l *Ledger) Logger() log.EventLogger { return l.logger }

// Catalog returns the card catalog.
func (l *Ledger) Catalog() *Catalog { return l.reg.Catalog() }

// mutate runs fn under the ledger mutex and, when a store is configured,
// persists the resulting snapshot in one commit-or-abort unit. If the save
// fails the in-memory state is rolled back so memory and disk never diverge.
func (l *Ledger) mutate(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var prev Snapshot
	if l.store != nil {
		prev = l.snapshotLocked()
	}
	if err := fn(); err != nil {
		return err
	}
	if l.store != nil {
		if err := l.store.Save(l.snapshotLocked()); err != nil {
			l.restoreLocked(prev)
			return fmt.Errorf("persist ledger state: %w", err)
		}
	}
	return nil
}

// --- Registry operations ---

func (l *Ledger) Mint(issuer, owner AccountID, name string, rarity Rarity, level int, lockDuration time.Duration) (TokenID, error) {
	var id TokenID
	err := l.mutate(func() (err error) {
		id, err = l.reg.Mint(issuer, owner, name, rarity, level, lockDuration)
		return err
	})
	return id, err
}

func (l *Ledger) DirectMint(caller AccountID, name string, rarity Rarity, level int, lockDuration time.Duration) (TokenID, error) {
	var id TokenID
	err := l.mutate(func() (err error) {
		id, err = l.reg.DirectMint(caller, name, rarity, level, lockDuration)
		return err
	})
	return id, err
}

func (l *Ledger) Transfer(caller, to AccountID, token TokenID) error {
	return l.mutate(func() error { return l.reg.Transfer(caller, to, token) })
}

func (l *Ledger) TransferFrom(operator, from, to AccountID, token TokenID) error {
	return l.mutate(func() error { return l.reg.TransferFrom(operator, from, to, token) })
}

func (l *Ledger) Approve(caller, operator AccountID, token TokenID) error {
	return l.mutate(func() error { return l.reg.Approve(caller, operator, token) })
}

func (l *Ledger) SetApprovalForAll(caller, operator AccountID, enabled bool) error {
	return l.mutate(func() error { return l.reg.SetApprovalForAll(caller, operator, enabled) })
}

func (l *Ledger) SetAuthorizedIssuer(caller, issuer AccountID, enabled bool) error {
	return l.mutate(func() error { return l.reg.SetAuthorizedIssuer(caller, issuer, enabled) })
}

// --- Registry reads ---

func (l *Ledger) OwnerOf(token TokenID) (AccountID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.OwnerOf(token)
}

func (l *Ledger) CardDetails(token TokenID) (Card, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.CardDetails(token)
}

func (l *Ledger) LockUntil(token TokenID) (time.Time, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.LockUntil(token)
}

func (l *Ledger) TimeUntilUnlock(token TokenID) (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.TimeUntilUnlock(token)
}

func (l *Ledger) PreviousOwnersOf(token TokenID) ([]AccountID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.PreviousOwnersOf(token)
}

func (l *Ledger) BalanceOf(account AccountID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.BalanceOf(account)
}

func (l *Ledger) IsAuthorizedIssuer(account AccountID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.IsAuthorizedIssuer(account)
}

func (l *Ledger) TimeUntilNextMint(account AccountID) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.TimeUntilNextMint(account)
}

func (l *Ledger) Cards() []Card {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.Cards()
}

func (l *Ledger) CardsOf(account AccountID) []Card {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reg.CardsOf(account)
}

// --- Fusion ---

func (l *Ledger) Fuse(caller AccountID, token1, token2 TokenID) (TokenID, error) {
	var id TokenID
	err := l.mutate(func() (err error) {
		id, err = l.fusion.Fuse(caller, token1, token2)
		return err
	})
	return id, err
}

func (l *Ledger) CanFuse(caller AccountID, token1, token2 TokenID) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fusion.CanFuse(caller, token1, token2)
}

func (l *Ledger) TimeUntilNextFusion(account AccountID) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fusion.TimeUntilNextFusion(account)
}

// --- Criteria marketplace ---

func (l *Ledger) CreateTrade(caller AccountID, offered TokenID, reqName string, reqLevel int, reqRarity Rarity) (TradeID, error) {
	var id TradeID
	err := l.mutate(func() (err error) {
		id, err = l.market.CreateTrade(caller, offered, reqName, reqLevel, reqRarity)
		return err
	})
	return id, err
}

func (l *Ledger) AcceptTrade(caller AccountID, tradeID TradeID, counter TokenID) error {
	return l.mutate(func() error { return l.market.AcceptTrade(caller, tradeID, counter) })
}

func (l *Ledger) CancelTrade(caller AccountID, tradeID TradeID) error {
	return l.mutate(func() error { return l.market.CancelTrade(caller, tradeID) })
}

func (l *Ledger) ActiveTrades() []CriteriaTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.market.ActiveTrades()
}

func (l *Ledger) TradesFor(account AccountID) []CriteriaTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.market.TradesFor(account)
}

func (l *Ledger) IsCardInTrade(token TokenID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.market.IsCardInTrade(token)
}

// --- Direct marketplace ---

func (l *Ledger) CreateDirectTrade(caller, target AccountID, offered, requested TokenID) (TradeID, error) {
	var id TradeID
	err := l.mutate(func() (err error) {
		id, err = l.direct.CreateDirectTrade(caller, target, offered, requested)
		return err
	})
	return id, err
}

func (l *Ledger) AcceptDirectTrade(caller AccountID, tradeID TradeID) error {
	return l.mutate(func() error { return l.direct.AcceptDirectTrade(caller, tradeID) })
}

func (l *Ledger) CancelDirectTrade(caller AccountID, tradeID TradeID) error {
	return l.mutate(func() error { return l.direct.CancelDirectTrade(caller, tradeID) })
}

func (l *Ledger) ReceivedDirectTrades(account AccountID) []DirectTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direct.ReceivedDirectTrades(account)
}

func (l *Ledger) SentDirectTrades(account AccountID) []DirectTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direct.SentDirectTrades(account)
}
