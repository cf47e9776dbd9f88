package net

import (
	"time"

	"github.com/peterkuimelis/cardvault/internal/ledger"
)

// Message types for the JSON protocol over TCP. One Request per line in,
// one Response per line out; a connection may carry any number of requests.

// Request is the envelope for all client-to-server messages.
type Request struct {
	Op     string `json:"op"`
	Caller string `json:"caller,omitempty"`

	// For mint ops
	Owner  string `json:"owner,omitempty"`
	Name   string `json:"name,omitempty"`
	Rarity string `json:"rarity,omitempty"`
	Level  int    `json:"level,omitempty"`
	LockMS int64  `json:"lock_ms,omitempty"`

	// For transfer / approval / card reads
	To       string `json:"to,omitempty"`
	Token    uint64 `json:"token,omitempty"`
	Operator string `json:"operator,omitempty"`
	Enabled  bool   `json:"enabled,omitempty"`

	// For issuer administration
	Issuer string `json:"issuer,omitempty"`

	// For fusion
	Token2 uint64 `json:"token2,omitempty"`

	// For trades
	Trade           uint64 `json:"trade,omitempty"`
	CounterToken    uint64 `json:"counter_token,omitempty"`
	RequestedName   string `json:"requested_name,omitempty"`
	RequestedLevel  int    `json:"requested_level,omitempty"`
	RequestedRarity string `json:"requested_rarity,omitempty"`
	Target          string `json:"target,omitempty"`
	RequestedToken  uint64 `json:"requested_token,omitempty"`

	// For account reads
	Account string `json:"account,omitempty"`
}

// Response is the envelope for all server-to-client messages.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Token  uint64 `json:"token,omitempty"`
	Trade  uint64 `json:"trade,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Reason string `json:"reason,omitempty"` // for can_fuse: empty means fusable

	Card         *CardView         `json:"card,omitempty"`
	Cards        []CardView        `json:"cards,omitempty"`
	Trades       []TradeView       `json:"trades,omitempty"`
	DirectTrades []DirectTradeView `json:"direct_trades,omitempty"`
	Owners       []string          `json:"owners,omitempty"`

	Balance  int   `json:"balance,omitempty"`
	InTrade  bool  `json:"in_trade,omitempty"`
	Fusable  bool  `json:"fusable,omitempty"`
	WaitMS   int64 `json:"wait_ms,omitempty"`
	LockedMS int64 `json:"locked_ms,omitempty"`
	IsIssuer bool  `json:"is_issuer,omitempty"`
}

// CardView describes one card.
type CardView struct {
	ID             uint64   `json:"id"`
	Name           string   `json:"name"`
	Rarity         string   `json:"rarity"`
	Level          int      `json:"level"`
	Owner          string   `json:"owner"`
	Attack         int      `json:"attack"`
	CreatedAt      string   `json:"created_at"`
	LastTransferAt string   `json:"last_transfer_at,omitempty"`
	LockUntil      string   `json:"lock_until,omitempty"`
	PreviousOwners []string `json:"previous_owners,omitempty"`
}

// TradeView describes one criteria-marketplace listing.
type TradeView struct {
	ID              uint64 `json:"id"`
	Creator         string `json:"creator"`
	OfferedToken    uint64 `json:"offered_token"`
	RequestedName   string `json:"requested_name"`
	RequestedLevel  int    `json:"requested_level"`
	RequestedRarity string `json:"requested_rarity"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at"`
}

// DirectTradeView describes one direct 1:1 offer.
type DirectTradeView struct {
	ID             uint64 `json:"id"`
	Creator        string `json:"creator"`
	Target         string `json:"target"`
	OfferedToken   uint64 `json:"offered_token"`
	RequestedToken uint64 `json:"requested_token"`
	Active         bool   `json:"active"`
	CreatedAt      string `json:"created_at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// BuildCardView converts a ledger card for the wire.
func BuildCardView(card ledger.Card) CardView {
	view := CardView{
		ID:             uint64(card.ID),
		Name:           card.Name,
		Rarity:         string(card.Rarity),
		Level:          card.Level,
		Owner:          string(card.Owner),
		Attack:         card.Attack,
		CreatedAt:      formatTime(card.CreatedAt),
		LastTransferAt: formatTime(card.LastTransferAt),
		LockUntil:      formatTime(card.LockUntil),
	}
	for _, owner := range card.PreviousOwners {
		view.PreviousOwners = append(view.PreviousOwners, string(owner))
	}
	return view
}

// BuildTradeView converts a criteria trade for the wire.
func BuildTradeView(trade ledger.CriteriaTrade) TradeView {
	return TradeView{
		ID:              uint64(trade.ID),
		Creator:         string(trade.Creator),
		OfferedToken:    uint64(trade.OfferedToken),
		RequestedName:   trade.RequestedName,
		RequestedLevel:  trade.RequestedLevel,
		RequestedRarity: string(trade.RequestedRarity),
		Active:          trade.Active,
		CreatedAt:       formatTime(trade.CreatedAt),
	}
}

// BuildDirectTradeView converts a direct trade for the wire.
func BuildDirectTradeView(trade ledger.DirectTrade) DirectTradeView {
	return DirectTradeView{
		ID:             uint64(trade.ID),
		Creator:        string(trade.Creator),
		Target:         string(trade.Target),
		OfferedToken:   uint64(trade.OfferedToken),
		RequestedToken: uint64(trade.RequestedToken),
		Active:         trade.Active,
		CreatedAt:      formatTime(trade.CreatedAt),
	}
}
