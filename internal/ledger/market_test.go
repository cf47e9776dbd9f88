package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

// TestCriteriaTradeLifecycle: alice lists a rare card requesting "Golem de
// Granit"; bob fulfills with a matching card and the two swap atomically.
func TestCriteriaTradeLifecycle(t *testing.T) {
	l, logger, _ := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	counter := mintFor(t, l, "bob", "Golem de Granit", "legendaire", 1)
	approveMarket(t, l, "alice")
	approveMarket(t, l, "bob")

	tradeID, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire")
	if err != nil {
		t.Fatalf("CreateTrade failed: %v", err)
	}
	if tradeID != 1 {
		t.Errorf("Expected trade id 1, got %d", tradeID)
	}
	if !l.IsCardInTrade(offered) {
		t.Error("Expected offered card to be marked in-trade")
	}

	if err := l.AcceptTrade("bob", tradeID, counter); err != nil {
		t.Fatalf("AcceptTrade failed: %v", err)
	}

	// Ownership swapped both ways.
	if owner, _ := l.OwnerOf(offered); owner != "bob" {
		t.Errorf("Expected offered card owned by bob, got %s", owner)
	}
	if owner, _ := l.OwnerOf(counter); owner != "alice" {
		t.Errorf("Expected counter card owned by alice, got %s", owner)
	}

	if l.IsCardInTrade(offered) {
		t.Error("Expected in-trade flag cleared after acceptance")
	}
	if trades := l.ActiveTrades(); len(trades) != 0 {
		t.Errorf("Expected no active trades, got %d", len(trades))
	}

	accepted := logger.EventsOfType(log.EventTradeAccepted)
	if len(accepted) != 1 {
		t.Fatalf("Expected 1 trade-accepted event, got %d", len(accepted))
	}
}

// TestCreateTradeValidation: each creation rule produces its own sentinel.
func TestCreateTradeValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)

	if _, err := l.CreateTrade("alice", 99, "Golem de Granit", 1, "legendaire"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := l.CreateTrade("bob", offered, "Golem de Granit", 1, "legendaire"); !errors.Is(err, ErrNotOwnerOfOfferedCard) {
		t.Errorf("Expected ErrNotOwnerOfOfferedCard, got %v", err)
	}
	// No marketplace approval yet.
	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire"); !errors.Is(err, ErrMarketplaceNotApproved) {
		t.Errorf("Expected ErrMarketplaceNotApproved, got %v", err)
	}
	approveMarket(t, l, "alice")

	if _, err := l.CreateTrade("alice", offered, "", 1, "legendaire"); !errors.Is(err, ErrEmptyRequestedName) {
		t.Errorf("Expected ErrEmptyRequestedName, got %v", err)
	}
	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 0, "legendaire"); !errors.Is(err, ErrInvalidRequestedLevel) {
		t.Errorf("Expected ErrInvalidRequestedLevel, got %v", err)
	}
	if _, err := l.CreateTrade("alice", offered, "Dragon Dore", 1, "legendaire"); !errors.Is(err, ErrCannotTradeSameCard) {
		t.Errorf("Expected ErrCannotTradeSameCard, got %v", err)
	}
	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "epique"); !errors.Is(err, ErrRequestedRarityMismatch) {
		t.Errorf("Expected ErrRequestedRarityMismatch, got %v", err)
	}

	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire"); err != nil {
		t.Fatalf("Valid CreateTrade failed: %v", err)
	}
	// One active listing per card.
	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 2, "legendaire"); !errors.Is(err, ErrCardAlreadyInActiveTrade) {
		t.Errorf("Expected ErrCardAlreadyInActiveTrade, got %v", err)
	}
}

// TestAcceptTradeValidation: acceptance re-validates both sides.
func TestAcceptTradeValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	counter := mintFor(t, l, "bob", "Golem de Granit", "legendaire", 1)
	wrongName := mintFor(t, l, "bob", "Dragon Dore", "legendaire", 1)
	approveMarket(t, l, "alice")

	tradeID, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire")
	if err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}

	if err := l.AcceptTrade("bob", 99, counter); !errors.Is(err, ErrTradeNotFound) {
		t.Errorf("Expected ErrTradeNotFound, got %v", err)
	}
	if err := l.AcceptTrade("alice", tradeID, counter); !errors.Is(err, ErrCannotAcceptOwnTrade) {
		t.Errorf("Expected ErrCannotAcceptOwnTrade, got %v", err)
	}
	if err := l.AcceptTrade("carol", tradeID, counter); !errors.Is(err, ErrNotOwnerOfOfferedCard) {
		t.Errorf("Expected ErrNotOwnerOfOfferedCard for foreign counter card, got %v", err)
	}
	if err := l.AcceptTrade("bob", tradeID, wrongName); !errors.Is(err, ErrCardNameDoesNotMatch) {
		t.Errorf("Expected ErrCardNameDoesNotMatch, got %v", err)
	}
	// Acceptor has not approved the marketplace.
	if err := l.AcceptTrade("bob", tradeID, counter); !errors.Is(err, ErrMarketplaceNotApproved) {
		t.Errorf("Expected ErrMarketplaceNotApproved, got %v", err)
	}
	approveMarket(t, l, "bob")

	if err := l.AcceptTrade("bob", tradeID, counter); err != nil {
		t.Fatalf("Valid accept failed: %v", err)
	}
	if err := l.AcceptTrade("bob", tradeID, counter); !errors.Is(err, ErrTradeNotActive) {
		t.Errorf("Expected ErrTradeNotActive on second accept, got %v", err)
	}
}

// TestAcceptTradeCreatorDrift: listings are escrow-less, so the creator may
// have moved the offered card before anyone accepts. The accept fails rather
// than swapping a card the creator no longer holds.
func TestAcceptTradeCreatorDrift(t *testing.T) {
	l, _, _ := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	counter := mintFor(t, l, "bob", "Golem de Granit", "legendaire", 1)
	approveMarket(t, l, "alice")
	approveMarket(t, l, "bob")

	tradeID, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire")
	if err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}

	if err := l.Transfer("alice", "carol", offered); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := l.AcceptTrade("bob", tradeID, counter); !errors.Is(err, ErrCreatorNoLongerOwnsCard) {
		t.Fatalf("Expected ErrCreatorNoLongerOwnsCard, got %v", err)
	}
}

// TestAcceptTradeLockedCounter: a locked counter card cannot fulfill a trade.
func TestAcceptTradeLockedCounter(t *testing.T) {
	l, _, clock := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	counter, err := l.Mint(testIssuer, "bob", "Golem de Granit", "legendaire", 1, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	approveMarket(t, l, "alice")
	approveMarket(t, l, "bob")

	tradeID, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire")
	if err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}

	if err := l.AcceptTrade("bob", tradeID, counter); !errors.Is(err, ErrLocked) {
		t.Fatalf("Expected ErrLocked, got %v", err)
	}
	clock.Advance(time.Hour)
	if err := l.AcceptTrade("bob", tradeID, counter); err != nil {
		t.Fatalf("Accept after unlock failed: %v", err)
	}
}

// TestCancelTrade: creator-only; cancelling releases the card for relisting
// and cancelling twice fails.
func TestCancelTrade(t *testing.T) {
	l, logger, _ := newTestLedger(t)
	offered := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	approveMarket(t, l, "alice")

	tradeID, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire")
	if err != nil {
		t.Fatalf("CreateTrade: %v", err)
	}

	if err := l.CancelTrade("bob", tradeID); !errors.Is(err, ErrNotTradeCreator) {
		t.Errorf("Expected ErrNotTradeCreator, got %v", err)
	}
	if err := l.CancelTrade("alice", tradeID); err != nil {
		t.Fatalf("CancelTrade failed: %v", err)
	}
	if err := l.CancelTrade("alice", tradeID); !errors.Is(err, ErrTradeNotActive) {
		t.Errorf("Expected ErrTradeNotActive on second cancel, got %v", err)
	}

	if l.IsCardInTrade(offered) {
		t.Error("Expected in-trade flag cleared after cancel")
	}
	if _, err := l.CreateTrade("alice", offered, "Golem de Granit", 1, "legendaire"); err != nil {
		t.Errorf("Relisting after cancel failed: %v", err)
	}

	cancelled := logger.EventsOfType(log.EventTradeCancelled)
	if len(cancelled) != 1 {
		t.Fatalf("Expected 1 trade-cancelled event, got %d", len(cancelled))
	}
}

// TestTradeQueries: ActiveTrades filters state, TradesFor filters creator
// and includes inactive listings.
func TestTradeQueries(t *testing.T) {
	l, _, _ := newTestLedger(t)
	a := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	b := mintFor(t, l, "bob", "Golem de Granit", "epique", 1)
	approveMarket(t, l, "alice")
	approveMarket(t, l, "bob")

	first, _ := l.CreateTrade("alice", a, "Golem de Granit", 1, "legendaire")
	second, _ := l.CreateTrade("bob", b, "Dragon Dore", 1, "epique")
	if err := l.CancelTrade("alice", first); err != nil {
		t.Fatalf("CancelTrade: %v", err)
	}

	active := l.ActiveTrades()
	if len(active) != 1 || active[0].ID != second {
		t.Errorf("Expected only trade %d active, got %v", second, active)
	}

	mine := l.TradesFor("alice")
	if len(mine) != 1 || mine[0].ID != first || mine[0].Active {
		t.Errorf("Expected alice's cancelled trade %d, got %v", first, mine)
	}
}
