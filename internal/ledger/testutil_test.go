package ledger

import (
	"testing"
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

// fakeClock lets tests drive lock and cooldown expiry deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

const (
	testOwner    = AccountID("registry-owner")
	testIssuer   = AccountID("issuer")
	testOperator = AccountID("marketplace")
)

func testCatalog() *Catalog {
	return NewCatalog(
		Template{Name: "Dragon Dore", Rarity: "legendaire", BaseAttack: 150},
		Template{Name: "Golem de Granit", Rarity: "epique", BaseAttack: 120},
	)
}

// newTestLedger builds a ledger with a fake clock, an in-memory logger, no
// store, and "issuer" pre-authorized to mint.
func newTestLedger(t *testing.T) (*Ledger, *log.MemoryLogger, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
	logger := log.NewMemoryLogger()
	l := New(Config{
		Registry: RegistryConfig{Owner: testOwner},
		Fusion: FusionConfig{
			Cooldown:   300 * time.Second,
			ResultLock: 10 * time.Minute,
		},
		MarketOperator: testOperator,
	}, testCatalog(), clock, logger, nil)
	if err := l.SetAuthorizedIssuer(testOwner, testIssuer, true); err != nil {
		t.Fatalf("authorize issuer: %v", err)
	}
	return l, logger, clock
}

// mintFor mints an unlocked card to the account through the issuer path.
func mintFor(t *testing.T, l *Ledger, owner AccountID, name string, rarity Rarity, level int) TokenID {
	t.Helper()
	id, err := l.Mint(testIssuer, owner, name, rarity, level, 0)
	if err != nil {
		t.Fatalf("mint %q for %s: %v", name, owner, err)
	}
	return id
}

// approveMarket grants the marketplace blanket transfer authority.
func approveMarket(t *testing.T, l *Ledger, account AccountID) {
	t.Helper()
	if err := l.SetApprovalForAll(account, testOperator, true); err != nil {
		t.Fatalf("approve marketplace for %s: %v", account, err)
	}
}
