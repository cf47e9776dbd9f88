package ledger

import "errors"

// Every business-rule failure surfaces as one of these sentinels. The reason
// strings are stable: pre-flight helpers (CanFuse, etc.) report them verbatim,
// and clients match on them.
var (
	// Authorization
	ErrNotAuthorized         = errors.New("caller is not authorized")
	ErrNotOwner              = errors.New("caller does not own this card")
	ErrNotOwnerOfCard1       = errors.New("caller does not own the first card")
	ErrNotOwnerOfCard2       = errors.New("caller does not own the second card")
	ErrNotOwnerOfOfferedCard = errors.New("caller does not own the offered card")
	ErrNotTradeCreator       = errors.New("only the trade creator may cancel")
	ErrNotTheTarget          = errors.New("caller is not the trade target")

	// Precondition / timing
	ErrLocked               = errors.New("card is still locked")
	ErrFusionCooldownActive = errors.New("fusion cooldown is still active")
	ErrMintCooldownActive   = errors.New("mint cooldown is still active")
	ErrQuotaExceeded        = errors.New("card quota exceeded")

	// Consistency
	ErrCannotFuseSameCard      = errors.New("cannot fuse a card with itself")
	ErrCardsMustMatchName      = errors.New("cards must have the same name")
	ErrCardsMustMatchRarity    = errors.New("cards must have the same rarity")
	ErrCardsMustMatchLevel     = errors.New("cards must have the same level")
	ErrMaxLevelReached         = errors.New("card is already at max level")
	ErrCannotTradeSameCard     = errors.New("cannot request the same card name as offered")
	ErrCannotTradeWithYourself = errors.New("cannot open a trade with yourself")
	ErrRequestedRarityMismatch = errors.New("requested rarity must match the offered card's rarity")
	ErrRarityMismatch          = errors.New("offered and requested cards must have the same rarity")
	ErrEmptyRequestedName      = errors.New("requested card name must not be empty")
	ErrInvalidRequestedLevel   = errors.New("requested level must be positive")
	ErrInvalidLevel            = errors.New("level must be between 1 and 5")
	ErrInvalidAccount          = errors.New("account must not be empty")

	// State
	ErrTradeNotActive                = errors.New("trade is not active")
	ErrCannotAcceptOwnTrade          = errors.New("cannot accept your own trade")
	ErrCardAlreadyInActiveTrade      = errors.New("card is already listed in an active trade")
	ErrCardNameDoesNotMatch          = errors.New("card name does not match the trade request")
	ErrTargetDoesNotOwnRequestedCard = errors.New("target does not own the requested card")
	ErrCreatorNoLongerOwnsCard       = errors.New("trade creator no longer owns the offered card")
	ErrMarketplaceNotApproved        = errors.New("marketplace is not approved to transfer this card")

	// NotFound
	ErrNotFound      = errors.New("card not found")
	ErrTradeNotFound = errors.New("trade not found")
)
