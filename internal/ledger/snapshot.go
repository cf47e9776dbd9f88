package ledger

import "time"

// OperatorGrant is one blanket transfer-authority grant.
type OperatorGrant struct {
	Owner    AccountID
	Operator AccountID
}

// Snapshot is the full serializable ledger state: everything needed to
// rebuild the registry, fusion engine and both marketplaces. Derived indexes
// (balances, tokenInTrade) are recomputed on restore, not stored.
type Snapshot struct {
	NextToken    TokenID
	Cards        []Card
	Issuers      []AccountID
	LastMintAt   map[AccountID]time.Time
	LastFusionAt map[AccountID]time.Time
	Approvals    map[TokenID]AccountID
	Operators    []OperatorGrant

	NextTradeID  TradeID
	Trades       []CriteriaTrade
	NextDirectID TradeID
	DirectTrades []DirectTrade
}

// snapshotLocked captures the current state. Caller holds the ledger mutex.
func (l *Ledger) snapshotLocked() Snapshot {
	r := l.reg
	snap := Snapshot{
		NextToken:    r.nextToken,
		LastMintAt:   make(map[AccountID]time.Time, len(r.lastMintAt)),
		LastFusionAt: make(map[AccountID]time.Time, len(l.fusion.lastFusionAt)),
		Approvals:    make(map[TokenID]AccountID, len(r.approved)),
		NextTradeID:  l.market.nextTrade,
		NextDirectID: l.direct.nextTrade,
	}
	snap.Cards = r.Cards()
	for issuer := range r.issuers {
		snap.Issuers = append(snap.Issuers, issuer)
	}
	for account, at := range r.lastMintAt {
		snap.LastMintAt[account] = at
	}
	for account, at := range l.fusion.lastFusionAt {
		snap.LastFusionAt[account] = at
	}
	for token, operator := range r.approved {
		snap.Approvals[token] = operator
	}
	for owner, ops := range r.operators {
		for operator, ok := range ops {
			if ok {
				snap.Operators = append(snap.Operators, OperatorGrant{Owner: owner, Operator: operator})
			}
		}
	}
	for id := TradeID(1); id < l.market.nextTrade; id++ {
		if t, ok := l.market.trades[id]; ok {
			snap.Trades = append(snap.Trades, *t)
		}
	}
	for id := TradeID(1); id < l.direct.nextTrade; id++ {
		if t, ok := l.direct.trades[id]; ok {
			snap.DirectTrades = append(snap.DirectTrades, *t)
		}
	}
	return snap
}

// restoreLocked replaces all component state with the snapshot's. Caller
// holds the ledger mutex.
func (l *Ledger) restoreLocked(snap Snapshot) {
	r := l.reg
	r.cards = make(map[TokenID]*Card, len(snap.Cards))
	r.balances = make(map[AccountID]int)
	for _, card := range snap.Cards {
		c := card.clone()
		r.cards[c.ID] = &c
		r.balances[c.Owner]++
	}
	r.nextToken = snap.NextToken
	if r.nextToken < 1 {
		r.nextToken = 1
	}
	r.issuers = make(map[AccountID]bool, len(snap.Issuers))
	for _, issuer := range snap.Issuers {
		r.issuers[issuer] = true
	}
	r.lastMintAt = make(map[AccountID]time.Time, len(snap.LastMintAt))
	for account, at := range snap.LastMintAt {
		r.lastMintAt[account] = at
	}
	r.approved = make(map[TokenID]AccountID, len(snap.Approvals))
	for token, operator := range snap.Approvals {
		r.approved[token] = operator
	}
	r.operators = make(map[AccountID]map[AccountID]bool)
	for _, grant := range snap.Operators {
		if r.operators[grant.Owner] == nil {
			r.operators[grant.Owner] = make(map[AccountID]bool)
		}
		r.operators[grant.Owner][grant.Operator] = true
	}

	l.fusion.lastFusionAt = make(map[AccountID]time.Time, len(snap.LastFusionAt))
	for account, at := range snap.LastFusionAt {
		l.fusion.lastFusionAt[account] = at
	}

	l.market.trades = make(map[TradeID]*CriteriaTrade, len(snap.Trades))
	l.market.tokenInTrade = make(map[TokenID]bool)
	for _, trade := range snap.Trades {
		t := trade
		l.market.trades[t.ID] = &t
		if t.Active {
			l.market.tokenInTrade[t.OfferedToken] = true
		}
	}
	l.market.nextTrade = snap.NextTradeID
	if l.market.nextTrade < 1 {
		l.market.nextTrade = 1
	}

	l.direct.trades = make(map[TradeID]*DirectTrade, len(snap.DirectTrades))
	for _, trade := range snap.DirectTrades {
		t := trade
		l.direct.trades[t.ID] = &t
	}
	l.direct.nextTrade = snap.NextDirectID
	if l.direct.nextTrade < 1 {
		l.direct.nextTrade = 1
	}
}
