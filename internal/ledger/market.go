package ledger

import (
	"github.com/peterkuimelis/cardvault/internal/log"
)

// Market is the criteria-based marketplace: a holder lists a card against an
// abstract request (name, level, rarity) and any holder with a matching card
// may fulfill it. Listings are escrow-less; the marketplace only needs
// transfer authority over the cards at the moment of the swap.
type Market struct {
	reg      *Registry
	operator AccountID // the marketplace's identity for authority checks
	clock    Clock
	logger   log.EventLogger

	trades       map[TradeID]*CriteriaTrade
	nextTrade    TradeID
	tokenInTrade map[TokenID]bool
}

// NewMarket creates a criteria marketplace bound to a registry.
func NewMarket(reg *Registry, operator AccountID, clock Clock, logger log.EventLogger) *Market {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	return &Market{
		reg:          reg,
		operator:     operator,
		clock:        clock,
		logger:       logger,
		trades:       make(map[TradeID]*CriteriaTrade),
		nextTrade:    1,
		tokenInTrade: make(map[TokenID]bool),
	}
}

// Operator returns the marketplace's operator account.
func (m *Market) Operator() AccountID { return m.operator }

// CreateTrade lists a card against a requested name/level/rarity.
// The requested rarity must equal the offered card's rarity (same-tier swap
// policy) and the requested name must differ from the offered card's name.
func (m *Market) CreateTrade(caller AccountID, offered TokenID, reqName string, reqLevel int, reqRarity Rarity) (TradeID, error) {
	card, err := m.reg.CardDetails(offered)
	if err != nil {
		return 0, err
	}
	if card.Owner != caller {
		return 0, ErrNotOwnerOfOfferedCard
	}
	if !m.reg.HasTransferAuthority(m.operator, caller, offered) {
		return 0, ErrMarketplaceNotApproved
	}
	if m.tokenInTrade[offered] {
		return 0, ErrCardAlreadyInActiveTrade
	}
	if reqName == "" {
		return 0, ErrEmptyRequestedName
	}
	if reqLevel <= 0 {
		return 0, ErrInvalidRequestedLevel
	}
	if reqName == card.Name {
		return 0, ErrCannotTradeSameCard
	}
	if reqRarity != card.Rarity {
		return 0, ErrRequestedRarityMismatch
	}

	now := m.clock.Now()
	trade := &CriteriaTrade{
		ID:              m.nextTrade,
		Creator:         caller,
		OfferedToken:    offered,
		RequestedName:   reqName,
		RequestedLevel:  reqLevel,
		RequestedRarity: reqRarity,
		Active:          true,
		CreatedAt:       now,
	}
	m.nextTrade++
	m.trades[trade.ID] = trade
	m.tokenInTrade[offered] = true
	m.logger.Log(log.NewTradeCreatedEvent(now, string(caller), uint64(trade.ID), uint64(offered), reqName, reqLevel, string(reqRarity)))
	return trade.ID, nil
}

// AcceptTrade fulfills a listing with the acceptor's counter token. Only the
// counter card's name is re-checked against the request: level and rarity
// agreement is trusted from creation-time validation. Both sides' ownership
// and locks are re-validated, then the two cards swap owners atomically.
func (m *Market) AcceptTrade(caller AccountID, tradeID TradeID, counter TokenID) error {
	trade, ok := m.trades[tradeID]
	if !ok {
		return ErrTradeNotFound
	}
	if !trade.Active {
		return ErrTradeNotActive
	}
	if caller == trade.Creator {
		return ErrCannotAcceptOwnTrade
	}
	counterCard, err := m.reg.CardDetails(counter)
	if err != nil {
		return err
	}
	if counterCard.Owner != caller {
		return ErrNotOwnerOfOfferedCard
	}
	if counterCard.Name != trade.RequestedName {
		return ErrCardNameDoesNotMatch
	}
	offeredCard, err := m.reg.CardDetails(trade.OfferedToken)
	if err != nil {
		return err
	}
	// Escrow-less listing: the creator may have moved the card since.
	if offeredCard.Owner != trade.Creator {
		return ErrCreatorNoLongerOwnsCard
	}
	now := m.clock.Now()
	if now.Before(offeredCard.LockUntil) || now.Before(counterCard.LockUntil) {
		return ErrLocked
	}
	if !m.reg.HasTransferAuthority(m.operator, trade.Creator, trade.OfferedToken) ||
		!m.reg.HasTransferAuthority(m.operator, caller, counter) {
		return ErrMarketplaceNotApproved
	}

	if err := m.reg.swap(m.operator, trade.Creator, trade.OfferedToken, caller, counter); err != nil {
		return err
	}
	trade.Active = false
	delete(m.tokenInTrade, trade.OfferedToken)
	m.logger.Log(log.NewTradeAcceptedEvent(now, string(caller), string(trade.Creator), uint64(tradeID), uint64(trade.OfferedToken), uint64(counter)))
	return nil
}

// CancelTrade deactivates a listing. Creator-only; cancelling an inactive
// trade fails rather than silently succeeding.
func (m *Market) CancelTrade(caller AccountID, tradeID TradeID) error {
	trade, ok := m.trades[tradeID]
	if !ok {
		return ErrTradeNotFound
	}
	if caller != trade.Creator {
		return ErrNotTradeCreator
	}
	if !trade.Active {
		return ErrTradeNotActive
	}
	trade.Active = false
	delete(m.tokenInTrade, trade.OfferedToken)
	m.logger.Log(log.NewTradeCancelledEvent(m.clock.Now(), string(caller), uint64(tradeID), uint64(trade.OfferedToken)))
	return nil
}

// ActiveTrades returns copies of all active listings, ordered by id.
func (m *Market) ActiveTrades() []CriteriaTrade {
	var out []CriteriaTrade
	for id := TradeID(1); id < m.nextTrade; id++ {
		if t, ok := m.trades[id]; ok && t.Active {
			out = append(out, *t)
		}
	}
	return out
}

// TradesFor returns all listings created by an account, any state, by id.
func (m *Market) TradesFor(account AccountID) []CriteriaTrade {
	var out []CriteriaTrade
	for id := TradeID(1); id < m.nextTrade; id++ {
		if t, ok := m.trades[id]; ok && t.Creator == account {
			out = append(out, *t)
		}
	}
	return out
}

// IsCardInTrade reports whether a token is referenced by an active listing.
func (m *Market) IsCardInTrade(token TokenID) bool {
	return m.tokenInTrade[token]
}
