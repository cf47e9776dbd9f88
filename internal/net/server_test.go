package net

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peterkuimelis/cardvault/internal/ledger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	catalog := ledger.NewCatalog(
		ledger.Template{Name: "Dragon Dore", Rarity: "legendaire", BaseAttack: 150},
		ledger.Template{Name: "Golem de Granit", Rarity: "legendaire", BaseAttack: 120},
	)
	l := ledger.New(ledger.Config{
		Registry:       ledger.RegistryConfig{Owner: "registry-owner"},
		Fusion:         ledger.FusionConfig{Cooldown: time.Second, ResultLock: time.Second},
		MarketOperator: "marketplace",
	}, catalog, nil, nil, nil)
	require.Equal(t, Response{OK: true},
		(&Server{Ledger: l}).Handle(Request{Op: "set_issuer", Caller: "registry-owner", Issuer: "issuer", Enabled: true}))
	return &Server{Ledger: l}
}

// TestHandleMintAndReads: mint over the wire, then read the card back.
func TestHandleMintAndReads(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{
		Op: "mint", Caller: "issuer", Owner: "alice",
		Name: "Dragon Dore", Rarity: "legendaire", Level: 2,
	})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, uint64(1), resp.Token)

	resp = s.Handle(Request{Op: "owner_of", Token: 1})
	require.True(t, resp.OK)
	assert.Equal(t, "alice", resp.Owner)

	resp = s.Handle(Request{Op: "card", Token: 1})
	require.True(t, resp.OK)
	require.NotNil(t, resp.Card)
	assert.Equal(t, "Dragon Dore", resp.Card.Name)
	assert.Equal(t, 300, resp.Card.Attack)

	resp = s.Handle(Request{Op: "balance_of", Account: "alice"})
	require.True(t, resp.OK)
	assert.Equal(t, 1, resp.Balance)
}

// TestHandleErrorsAreStrings: ledger failures surface as the sentinel's
// message in the error field, with ok=false.
func TestHandleErrorsAreStrings(t *testing.T) {
	s := newTestServer(t)

	resp := s.Handle(Request{Op: "owner_of", Token: 42})
	assert.False(t, resp.OK)
	assert.Equal(t, ledger.ErrNotFound.Error(), resp.Error)

	resp = s.Handle(Request{Op: "mint", Caller: "mallory", Owner: "alice", Name: "x", Rarity: "rare", Level: 1})
	assert.False(t, resp.OK)
	assert.Equal(t, ledger.ErrNotAuthorized.Error(), resp.Error)

	resp = s.Handle(Request{Op: "no_such_op"})
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "unknown op")
}

// TestHandleFusionFlow: fuse two cards over the wire, with a can_fuse
// pre-flight on both sides of the change.
func TestHandleFusionFlow(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 2; i++ {
		resp := s.Handle(Request{Op: "mint", Caller: "issuer", Owner: "alice", Name: "Dragon Dore", Rarity: "legendaire", Level: 1})
		require.True(t, resp.OK, resp.Error)
	}

	resp := s.Handle(Request{Op: "can_fuse", Caller: "alice", Token: 1, Token2: 2})
	require.True(t, resp.OK)
	assert.True(t, resp.Fusable)
	assert.Empty(t, resp.Reason)

	resp = s.Handle(Request{Op: "fuse", Caller: "alice", Token: 1, Token2: 2})
	require.True(t, resp.OK, resp.Error)
	assert.Equal(t, uint64(3), resp.Token)

	resp = s.Handle(Request{Op: "can_fuse", Caller: "alice", Token: 1, Token2: 2})
	require.True(t, resp.OK)
	assert.False(t, resp.Fusable)
	assert.Equal(t, ledger.ErrNotFound.Error(), resp.Reason)

	resp = s.Handle(Request{Op: "time_until_next_fusion", Account: "alice"})
	require.True(t, resp.OK)
	assert.Greater(t, resp.WaitMS, int64(0))
}

// TestHandleTradeFlow: the full criteria-trade lifecycle through the wire
// protocol, including the operator approvals.
func TestHandleTradeFlow(t *testing.T) {
	s := newTestServer(t)
	require.True(t, s.Handle(Request{Op: "mint", Caller: "issuer", Owner: "alice", Name: "Dragon Dore", Rarity: "legendaire", Level: 1}).OK)
	require.True(t, s.Handle(Request{Op: "mint", Caller: "issuer", Owner: "bob", Name: "Golem de Granit", Rarity: "legendaire", Level: 1}).OK)
	require.True(t, s.Handle(Request{Op: "approve_all", Caller: "alice", Operator: "marketplace", Enabled: true}).OK)
	require.True(t, s.Handle(Request{Op: "approve_all", Caller: "bob", Operator: "marketplace", Enabled: true}).OK)

	resp := s.Handle(Request{
		Op: "create_trade", Caller: "alice", Token: 1,
		RequestedName: "Golem de Granit", RequestedLevel: 1, RequestedRarity: "legendaire",
	})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, uint64(1), resp.Trade)

	resp = s.Handle(Request{Op: "active_trades"})
	require.True(t, resp.OK)
	require.Len(t, resp.Trades, 1)
	assert.Equal(t, "alice", resp.Trades[0].Creator)

	resp = s.Handle(Request{Op: "is_card_in_trade", Token: 1})
	require.True(t, resp.OK)
	assert.True(t, resp.InTrade)

	resp = s.Handle(Request{Op: "accept_trade", Caller: "bob", Trade: 1, CounterToken: 2})
	require.True(t, resp.OK, resp.Error)

	resp = s.Handle(Request{Op: "owner_of", Token: 1})
	assert.Equal(t, "bob", resp.Owner)
	resp = s.Handle(Request{Op: "owner_of", Token: 2})
	assert.Equal(t, "alice", resp.Owner)

	resp = s.Handle(Request{Op: "previous_owners", Token: 1})
	require.True(t, resp.OK)
	assert.Equal(t, []string{"alice"}, resp.Owners)
}

// TestHandleDirectTradeFlow: direct trades over the wire.
func TestHandleDirectTradeFlow(t *testing.T) {
	s := newTestServer(t)
	require.True(t, s.Handle(Request{Op: "mint", Caller: "issuer", Owner: "alice", Name: "Dragon Dore", Rarity: "legendaire", Level: 1}).OK)
	require.True(t, s.Handle(Request{Op: "mint", Caller: "issuer", Owner: "bob", Name: "Golem de Granit", Rarity: "legendaire", Level: 1}).OK)
	require.True(t, s.Handle(Request{Op: "approve_all", Caller: "alice", Operator: "marketplace", Enabled: true}).OK)
	require.True(t, s.Handle(Request{Op: "approve_all", Caller: "bob", Operator: "marketplace", Enabled: true}).OK)

	resp := s.Handle(Request{Op: "create_direct_trade", Caller: "alice", Target: "bob", Token: 1, RequestedToken: 2})
	require.True(t, resp.OK, resp.Error)

	resp = s.Handle(Request{Op: "received_direct_trades", Account: "bob"})
	require.True(t, resp.OK)
	require.Len(t, resp.DirectTrades, 1)
	assert.Equal(t, "alice", resp.DirectTrades[0].Creator)

	resp = s.Handle(Request{Op: "accept_direct_trade", Caller: "bob", Trade: 1})
	require.True(t, resp.OK, resp.Error)

	resp = s.Handle(Request{Op: "owner_of", Token: 1})
	assert.Equal(t, "bob", resp.Owner)
}
