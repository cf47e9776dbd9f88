package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

// TestMintRequiresIssuer: only allow-listed accounts may use the issuer path.
func TestMintRequiresIssuer(t *testing.T) {
	l, logger, _ := newTestLedger(t)

	if _, err := l.Mint("random", "alice", "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}

	id, err := l.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 1, 0)
	if err != nil {
		t.Fatalf("Issuer mint failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first token id 1, got %d", id)
	}

	mints := logger.EventsOfType(log.EventMint)
	if len(mints) != 1 {
		t.Fatalf("Expected 1 mint event, got %d", len(mints))
	}
	if mints[0].Account != string(testIssuer) {
		t.Errorf("Expected mint event from issuer, got %s", mints[0].Account)
	}
}

// TestMintValidation: empty owner and out-of-range levels are rejected.
func TestMintValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.Mint(testIssuer, "", "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("Expected ErrInvalidAccount for empty owner, got %v", err)
	}
	if _, err := l.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 0, 0); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for level 0, got %v", err)
	}
	if _, err := l.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 6, 0); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("Expected ErrInvalidLevel for level 6, got %v", err)
	}
}

// TestMintAttackDerivation: attack = base attack × level, catalog default for
// unknown names.
func TestMintAttackDerivation(t *testing.T) {
	l, _, _ := newTestLedger(t)

	id := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 3)
	card, err := l.CardDetails(id)
	if err != nil {
		t.Fatalf("CardDetails: %v", err)
	}
	if card.Attack != 450 {
		t.Errorf("Expected attack 450 (150×3), got %d", card.Attack)
	}

	id = mintFor(t, l, "alice", "Unknown Card", "commune", 2)
	card, _ = l.CardDetails(id)
	if card.Attack != 200 {
		t.Errorf("Expected attack 200 (default 100×2), got %d", card.Attack)
	}
}

// TestDirectMintOwnerOnly: the legacy self-mint path is registry-owner only
// and carries its own smaller quota.
func TestDirectMintOwnerOnly(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.DirectMint("alice", "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized for non-owner, got %v", err)
	}

	for i := 0; i < DefaultDirectMintQuota; i++ {
		if _, err := l.DirectMint(testOwner, "Dragon Dore", "legendaire", 1, 0); err != nil {
			t.Fatalf("Direct mint %d failed: %v", i+1, err)
		}
	}
	if _, err := l.DirectMint(testOwner, "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded after %d direct mints, got %v", DefaultDirectMintQuota, err)
	}
}

// TestIssuerMintQuota: issuer mints are capped by the receiver's holdings
// against the larger issuer quota, independent of the direct quota.
func TestIssuerMintQuota(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := NewRegistry(RegistryConfig{Owner: testOwner, IssuerMintQuota: 2, DirectMintQuota: 1}, testCatalog(), clock, nil)
	if err := reg.SetAuthorizedIssuer(testOwner, testIssuer, true); err != nil {
		t.Fatalf("SetAuthorizedIssuer: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := reg.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 1, 0); err != nil {
			t.Fatalf("Issuer mint %d failed: %v", i+1, err)
		}
	}
	if _, err := reg.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded at issuer quota, got %v", err)
	}
	// A different receiver has its own headroom.
	if _, err := reg.Mint(testIssuer, "bob", "Dragon Dore", "legendaire", 1, 0); err != nil {
		t.Errorf("Mint to bob should not hit alice's quota: %v", err)
	}
}

// TestDirectMintCooldown: with a cooldown configured, back-to-back direct
// mints are rejected until the clock moves on.
func TestDirectMintCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	reg := NewRegistry(RegistryConfig{Owner: testOwner, MintCooldown: time.Minute}, testCatalog(), clock, nil)

	if _, err := reg.DirectMint(testOwner, "Dragon Dore", "legendaire", 1, 0); err != nil {
		t.Fatalf("First direct mint failed: %v", err)
	}
	if _, err := reg.DirectMint(testOwner, "Dragon Dore", "legendaire", 1, 0); !errors.Is(err, ErrMintCooldownActive) {
		t.Fatalf("Expected ErrMintCooldownActive, got %v", err)
	}
	if got := reg.TimeUntilNextMint(testOwner); got != time.Minute {
		t.Errorf("Expected full cooldown remaining, got %v", got)
	}

	clock.Advance(time.Minute)
	if _, err := reg.DirectMint(testOwner, "Dragon Dore", "legendaire", 1, 0); err != nil {
		t.Fatalf("Direct mint after cooldown failed: %v", err)
	}
}

// TestTransferAndProvenance: a transfer moves ownership, stamps
// lastTransferAt and appends the previous owner exactly once.
func TestTransferAndProvenance(t *testing.T) {
	l, logger, clock := newTestLedger(t)
	id := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)

	clock.Advance(time.Hour)
	if err := l.Transfer("alice", "bob", id); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	owner, err := l.OwnerOf(id)
	if err != nil {
		t.Fatalf("OwnerOf: %v", err)
	}
	if owner != "bob" {
		t.Errorf("Expected owner bob, got %s", owner)
	}

	prev, _ := l.PreviousOwnersOf(id)
	if len(prev) != 1 || prev[0] != "alice" {
		t.Errorf("Expected provenance [alice], got %v", prev)
	}

	card, _ := l.CardDetails(id)
	if !card.LastTransferAt.Equal(clock.Now()) {
		t.Errorf("Expected lastTransferAt %v, got %v", clock.Now(), card.LastTransferAt)
	}

	if got := l.BalanceOf("alice"); got != 0 {
		t.Errorf("Expected alice balance 0, got %d", got)
	}
	if got := l.BalanceOf("bob"); got != 1 {
		t.Errorf("Expected bob balance 1, got %d", got)
	}

	transfers := logger.EventsOfType(log.EventTransfer)
	if len(transfers) != 1 {
		t.Fatalf("Expected 1 transfer event, got %d", len(transfers))
	}
}

// TestTransferValidation: not-found, wrong owner, empty destination, locked.
func TestTransferValidation(t *testing.T) {
	l, _, clock := newTestLedger(t)

	if err := l.Transfer("alice", "bob", 99); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown token, got %v", err)
	}

	id, err := l.Mint(testIssuer, "alice", "Dragon Dore", "legendaire", 1, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := l.Transfer("bob", "carol", id); !errors.Is(err, ErrNotOwner) {
		t.Errorf("Expected ErrNotOwner, got %v", err)
	}
	if err := l.Transfer("alice", "", id); !errors.Is(err, ErrInvalidAccount) {
		t.Errorf("Expected ErrInvalidAccount, got %v", err)
	}
	if err := l.Transfer("alice", "bob", id); !errors.Is(err, ErrLocked) {
		t.Errorf("Expected ErrLocked during lock window, got %v", err)
	}

	remaining, _ := l.TimeUntilUnlock(id)
	if remaining != time.Hour {
		t.Errorf("Expected full lock remaining, got %v", remaining)
	}

	clock.Advance(time.Hour)
	if err := l.Transfer("alice", "bob", id); err != nil {
		t.Fatalf("Transfer after unlock failed: %v", err)
	}
	remaining, _ = l.TimeUntilUnlock(id)
	if remaining != 0 {
		t.Errorf("Expected no lock remaining, got %v", remaining)
	}
}

// TestPerTokenApproval: a per-token approval lets the operator move exactly
// that card once; the transfer clears it.
func TestPerTokenApproval(t *testing.T) {
	l, _, _ := newTestLedger(t)
	id := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	other := mintFor(t, l, "alice", "Golem de Granit", "epique", 1)

	reg := l.reg
	if err := l.Approve("alice", "broker", id); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !reg.HasTransferAuthority("broker", "alice", id) {
		t.Error("Expected broker to hold authority over approved token")
	}
	if reg.HasTransferAuthority("broker", "alice", other) {
		t.Error("Per-token approval must not cover other tokens")
	}

	if err := l.TransferFrom("broker", "alice", "bob", id); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	// Approval does not survive the transfer.
	if err := l.TransferFrom("broker", "bob", "carol", id); !errors.Is(err, ErrNotAuthorized) {
		t.Errorf("Expected ErrNotAuthorized after approval cleared, got %v", err)
	}
}

// TestBlanketApproval: a blanket grant covers all current and future cards
// until revoked.
func TestBlanketApproval(t *testing.T) {
	l, _, _ := newTestLedger(t)
	first := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)

	if err := l.SetApprovalForAll("alice", "broker", true); err != nil {
		t.Fatalf("SetApprovalForAll: %v", err)
	}
	later := mintFor(t, l, "alice", "Golem de Granit", "epique", 1)

	reg := l.reg
	if !reg.HasTransferAuthority("broker", "alice", first) || !reg.HasTransferAuthority("broker", "alice", later) {
		t.Error("Expected blanket grant to cover both cards")
	}

	if err := l.SetApprovalForAll("alice", "broker", false); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if reg.HasTransferAuthority("broker", "alice", first) {
		t.Error("Expected no authority after revocation")
	}
	// Owners always hold authority over their own cards.
	if !reg.HasTransferAuthority("alice", "alice", first) {
		t.Error("Expected owner to hold authority over own card")
	}
}

// TestIssuerAllowListAdmin: only the registry owner manages the allow-list.
func TestIssuerAllowListAdmin(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if err := l.SetAuthorizedIssuer("alice", "mallory", true); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}
	if err := l.SetAuthorizedIssuer(testOwner, "", true); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("Expected ErrInvalidAccount, got %v", err)
	}

	if err := l.SetAuthorizedIssuer(testOwner, "new-issuer", true); err != nil {
		t.Fatalf("Grant: %v", err)
	}
	if !l.IsAuthorizedIssuer("new-issuer") {
		t.Error("Expected new-issuer to be authorized")
	}
	if err := l.SetAuthorizedIssuer(testOwner, "new-issuer", false); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if l.IsAuthorizedIssuer("new-issuer") {
		t.Error("Expected new-issuer to be revoked")
	}
}

// TestReadsNotFound: every token read fails ErrNotFound for unknown ids.
func TestReadsNotFound(t *testing.T) {
	l, _, _ := newTestLedger(t)

	if _, err := l.OwnerOf(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("OwnerOf: expected ErrNotFound, got %v", err)
	}
	if _, err := l.CardDetails(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("CardDetails: expected ErrNotFound, got %v", err)
	}
	if _, err := l.LockUntil(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("LockUntil: expected ErrNotFound, got %v", err)
	}
	if _, err := l.PreviousOwnersOf(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("PreviousOwnersOf: expected ErrNotFound, got %v", err)
	}
}

// TestCardListings: Cards and CardsOf come back ordered by id.
func TestCardListings(t *testing.T) {
	l, _, _ := newTestLedger(t)
	a := mintFor(t, l, "alice", "Dragon Dore", "legendaire", 1)
	b := mintFor(t, l, "bob", "Golem de Granit", "epique", 1)
	c := mintFor(t, l, "alice", "Golem de Granit", "epique", 2)

	all := l.Cards()
	if len(all) != 3 {
		t.Fatalf("Expected 3 cards, got %d", len(all))
	}
	if all[0].ID != a || all[1].ID != b || all[2].ID != c {
		t.Errorf("Expected id order [%d %d %d], got [%d %d %d]", a, b, c, all[0].ID, all[1].ID, all[2].ID)
	}

	mine := l.CardsOf("alice")
	if len(mine) != 2 || mine[0].ID != a || mine[1].ID != c {
		t.Errorf("Expected alice to hold [%d %d], got %v", a, c, mine)
	}
}
