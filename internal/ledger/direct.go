package ledger

import (
	"github.com/peterkuimelis/cardvault/internal/log"
)

// DirectMarket handles 1:1 swap offers aimed at a specific counterparty and
// a specific counterpart token.
type DirectMarket struct {
	reg      *Registry
	operator AccountID
	clock    Clock
	logger   log.EventLogger

	trades    map[TradeID]*DirectTrade
	nextTrade TradeID
}

// NewDirectMarket creates a direct marketplace bound to a registry.
func NewDirectMarket(reg *Registry, operator AccountID, clock Clock, logger log.EventLogger) *DirectMarket {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	return &DirectMarket{
		reg:       reg,
		operator:  operator,
		clock:     clock,
		logger:    logger,
		trades:    make(map[TradeID]*DirectTrade),
		nextTrade: 1,
	}
}

// CreateDirectTrade proposes swapping the caller's offered token for the
// target's requested token. The target's ownership of the requested token is
// validated here, never trusted from caller input, and must hold again at
// accept time.
func (d *DirectMarket) CreateDirectTrade(caller, target AccountID, offered, requested TokenID) (TradeID, error) {
	if target == "" {
		return 0, ErrInvalidAccount
	}
	if target == caller {
		return 0, ErrCannotTradeWithYourself
	}
	offeredCard, err := d.reg.CardDetails(offered)
	if err != nil {
		return 0, err
	}
	if offeredCard.Owner != caller {
		return 0, ErrNotOwnerOfOfferedCard
	}
	requestedCard, err := d.reg.CardDetails(requested)
	if err != nil {
		return 0, err
	}
	if requestedCard.Owner != target {
		return 0, ErrTargetDoesNotOwnRequestedCard
	}
	if offeredCard.Rarity != requestedCard.Rarity {
		return 0, ErrRarityMismatch
	}
	if !d.reg.HasTransferAuthority(d.operator, caller, offered) {
		return 0, ErrMarketplaceNotApproved
	}

	now := d.clock.Now()
	trade := &DirectTrade{
		ID:             d.nextTrade,
		Creator:        caller,
		Target:         target,
		OfferedToken:   offered,
		RequestedToken: requested,
		Active:         true,
		CreatedAt:      now,
	}
	d.nextTrade++
	d.trades[trade.ID] = trade
	d.logger.Log(log.NewDirectTradeCreatedEvent(now, string(caller), string(target), uint64(trade.ID), uint64(offered), uint64(requested)))
	return trade.ID, nil
}

// AcceptDirectTrade executes the swap. Only the named target may accept, and
// both current ownerships are re-validated: if either side moved their card
// after creation the operation fails instead of swapping something else.
func (d *DirectMarket) AcceptDirectTrade(caller AccountID, tradeID TradeID) error {
	trade, ok := d.trades[tradeID]
	if !ok {
		return ErrTradeNotFound
	}
	if !trade.Active {
		return ErrTradeNotActive
	}
	if caller != trade.Target {
		return ErrNotTheTarget
	}
	offeredCard, err := d.reg.CardDetails(trade.OfferedToken)
	if err != nil {
		return err
	}
	if offeredCard.Owner != trade.Creator {
		return ErrCreatorNoLongerOwnsCard
	}
	requestedCard, err := d.reg.CardDetails(trade.RequestedToken)
	if err != nil {
		return err
	}
	if requestedCard.Owner != trade.Target {
		return ErrTargetDoesNotOwnRequestedCard
	}
	now := d.clock.Now()
	if now.Before(offeredCard.LockUntil) || now.Before(requestedCard.LockUntil) {
		return ErrLocked
	}
	if !d.reg.HasTransferAuthority(d.operator, trade.Creator, trade.OfferedToken) ||
		!d.reg.HasTransferAuthority(d.operator, trade.Target, trade.RequestedToken) {
		return ErrMarketplaceNotApproved
	}

	if err := d.reg.swap(d.operator, trade.Creator, trade.OfferedToken, trade.Target, trade.RequestedToken); err != nil {
		return err
	}
	trade.Active = false
	d.logger.Log(log.NewDirectTradeAcceptedEvent(now, string(caller), string(trade.Creator), uint64(tradeID), uint64(trade.OfferedToken), uint64(trade.RequestedToken)))
	return nil
}

// CancelDirectTrade deactivates an offer. Unlike criteria trades, either
// side may cancel: the target declining is a cancel too.
func (d *DirectMarket) CancelDirectTrade(caller AccountID, tradeID TradeID) error {
	trade, ok := d.trades[tradeID]
	if !ok {
		return ErrTradeNotFound
	}
	if caller != trade.Creator && caller != trade.Target {
		return ErrNotAuthorized
	}
	if !trade.Active {
		return ErrTradeNotActive
	}
	trade.Active = false
	d.logger.Log(log.NewDirectTradeCancelledEvent(d.clock.Now(), string(caller), uint64(tradeID)))
	return nil
}

// ReceivedDirectTrades returns offers aimed at an account, ordered by id.
func (d *DirectMarket) ReceivedDirectTrades(account AccountID) []DirectTrade {
	var out []DirectTrade
	for id := TradeID(1); id < d.nextTrade; id++ {
		if t, ok := d.trades[id]; ok && t.Target == account {
			out = append(out, *t)
		}
	}
	return out
}

// SentDirectTrades returns offers created by an account, ordered by id.
func (d *DirectMarket) SentDirectTrades(account AccountID) []DirectTrade {
	var out []DirectTrade
	for id := TradeID(1); id < d.nextTrade; id++ {
		if t, ok := d.trades[id]; ok && t.Creator == account {
			out = append(out, *t)
		}
	}
	return out
}
