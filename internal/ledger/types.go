package ledger

import "time"

// AccountID identifies an account. The empty string is "no account".
type AccountID string

// TokenID identifies a card. Ids are assigned sequentially starting at 1.
type TokenID uint64

// TradeID identifies a trade (criteria and direct trades number independently).
type TradeID uint64

// Rarity is an enumerated label. It is case- and string-significant: "Rare"
// and "rare" are different tiers as far as the registry is concerned. The
// canonical tiers live in the catalog, not in code.
type Rarity string

// MaxLevel is the fusion ceiling. Level-5 cards cannot be fused further.
const MaxLevel = 5

// Card is the unit of ownership. A card is created by mint or as a fusion
// result, mutated only by transfer (owner, LastTransferAt, PreviousOwners)
// and destroyed only by fusion burn.
type Card struct {
	ID             TokenID
	Name           string
	Rarity         Rarity
	Level          int // 1..MaxLevel
	Owner          AccountID
	Attack         int // baseAttack(Name) × Level, fixed at mint/fusion time
	CreatedAt      time.Time
	LastTransferAt time.Time
	LockUntil      time.Time // ownership may not change while now < LockUntil
	PreviousOwners []AccountID
}

// clone returns a copy safe to hand out of the registry.
func (c *Card) clone() Card {
	out := *c
	out.PreviousOwners = append([]AccountID(nil), c.PreviousOwners...)
	return out
}

// CriteriaTrade is an escrow-less listing fulfillable by any card matching
// the requested name/level/rarity.
type CriteriaTrade struct {
	ID              TradeID
	Creator         AccountID
	OfferedToken    TokenID
	RequestedName   string
	RequestedLevel  int
	RequestedRarity Rarity
	Active          bool
	CreatedAt       time.Time
}

// DirectTrade is a 1:1 swap offer aimed at a specific account and a specific
// counterpart token.
type DirectTrade struct {
	ID             TradeID
	Creator        AccountID
	Target         AccountID
	OfferedToken   TokenID
	RequestedToken TokenID
	Active         bool
	CreatedAt      time.Time
}
