package ledger

import (
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

// Default quotas for the two mint entry points. They are deliberately two
// independent knobs, not one constant: the legacy direct-mint path is capped
// far lower than issuer-driven mints.
const (
	DefaultDirectMintQuota = 4
	DefaultIssuerMintQuota = 30
)

// RegistryConfig configures the card registry.
type RegistryConfig struct {
	// Owner is the registry-owner account: the only account that may manage
	// the issuer allow-list or use the legacy direct-mint path.
	Owner AccountID

	// DirectMintQuota caps holdings reachable through DirectMint.
	DirectMintQuota int

	// IssuerMintQuota caps holdings reachable through issuer mints.
	IssuerMintQuota int

	// MintCooldown gates DirectMint per account. Zero disables the gate;
	// lastMintAt is recorded either way for issuer paths to consult.
	MintCooldown time.Duration
}

// Registry owns all persistent card state: identity, ownership, lock timers,
// provenance history, transfer approvals and the issuer allow-list. All other
// components mutate card state exclusively through it.
type Registry struct {
	cfg     RegistryConfig
	catalog *Catalog
	clock   Clock
	logger  log.EventLogger

	cards      map[TokenID]*Card
	nextToken  TokenID
	balances   map[AccountID]int
	issuers    map[AccountID]bool
	lastMintAt map[AccountID]time.Time

	// Transfer authority: per-token approval plus blanket operator grants.
	approved  map[TokenID]AccountID
	operators map[AccountID]map[AccountID]bool
}

// NewRegistry creates a registry. A nil clock means wall-clock time; a nil
// logger means an in-memory one.
func NewRegistry(cfg RegistryConfig, catalog *Catalog, clock Clock, logger log.EventLogger) *Registry {
	if cfg.DirectMintQuota <= 0 {
		cfg.DirectMintQuota = DefaultDirectMintQuota
	}
	if cfg.IssuerMintQuota <= 0 {
		cfg.IssuerMintQuota = DefaultIssuerMintQuota
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	return &Registry{
		cfg:        cfg,
		catalog:    catalog,
		clock:      clock,
		logger:     logger,
		cards:      make(map[TokenID]*Card),
		nextToken:  1,
		balances:   make(map[AccountID]int),
		issuers:    make(map[AccountID]bool),
		lastMintAt: make(map[AccountID]time.Time),
		approved:   make(map[TokenID]AccountID),
		operators:  make(map[AccountID]map[AccountID]bool),
	}
}

// Catalog returns the registry's card catalog.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// --- Minting ---

// Mint creates a card through the issuer path. The caller must hold a mint
// capability granted via SetAuthorizedIssuer.
func (r *Registry) Mint(issuer, owner AccountID, name string, rarity Rarity, level int, lockDuration time.Duration) (TokenID, error) {
	if !r.issuers[issuer] {
		return 0, ErrNotAuthorized
	}
	if owner == "" {
		return 0, ErrInvalidAccount
	}
	if level < 1 || level > MaxLevel {
		return 0, ErrInvalidLevel
	}
	if r.balances[owner] >= r.cfg.IssuerMintQuota {
		return 0, ErrQuotaExceeded
	}
	return r.mint(issuer, owner, name, rarity, level, lockDuration), nil
}

// DirectMint creates a card through the legacy self-mint path: the registry
// owner minting into their own collection. It carries its own, smaller quota
// and honors the mint cooldown when one is configured.
func (r *Registry) DirectMint(caller AccountID, name string, rarity Rarity, level int, lockDuration time.Duration) (TokenID, error) {
	if caller != r.cfg.Owner {
		return 0, ErrNotAuthorized
	}
	if level < 1 || level > MaxLevel {
		return 0, ErrInvalidLevel
	}
	if r.balances[caller] >= r.cfg.DirectMintQuota {
		return 0, ErrQuotaExceeded
	}
	if r.cfg.MintCooldown > 0 {
		if last, ok := r.lastMintAt[caller]; ok && r.clock.Now().Sub(last) < r.cfg.MintCooldown {
			return 0, ErrMintCooldownActive
		}
	}
	return r.mint(caller, caller, name, rarity, level, lockDuration), nil
}

// mint performs the actual card creation. Callers have already validated.
func (r *Registry) mint(issuer, owner AccountID, name string, rarity Rarity, level int, lockDuration time.Duration) TokenID {
	now := r.clock.Now()
	card := &Card{
		ID:        r.nextToken,
		Name:      name,
		Rarity:    rarity,
		Level:     level,
		Owner:     owner,
		Attack:    r.catalog.BaseAttack(name) * level,
		CreatedAt: now,
		LockUntil: now.Add(lockDuration),
	}
	r.nextToken++
	r.cards[card.ID] = card
	r.balances[owner]++
	r.lastMintAt[owner] = now
	r.logger.Log(log.NewMintEvent(now, string(issuer), string(owner), uint64(card.ID), name, string(rarity), level, card.Attack))
	return card.ID
}

// --- Transfers ---

// Transfer moves a card to a new owner. The caller must be the current owner
// and the card must be unlocked. The lock is not reset: locks apply around
// issuance (mint, fusion result), not around every transfer.
func (r *Registry) Transfer(caller, to AccountID, token TokenID) error {
	card, ok := r.cards[token]
	if !ok {
		return ErrNotFound
	}
	if card.Owner != caller {
		return ErrNotOwner
	}
	if to == "" {
		return ErrInvalidAccount
	}
	if r.locked(card) {
		return ErrLocked
	}
	r.move(card, to)
	r.logger.Log(log.NewTransferEvent(r.clock.Now(), string(caller), string(to), uint64(token), card.Name))
	return nil
}

// TransferFrom moves a card on behalf of its owner. The operator must hold
// transfer authority over the token (per-token approval or blanket grant).
func (r *Registry) TransferFrom(operator, from, to AccountID, token TokenID) error {
	card, ok := r.cards[token]
	if !ok {
		return ErrNotFound
	}
	if card.Owner != from {
		return ErrNotOwner
	}
	if to == "" {
		return ErrInvalidAccount
	}
	if !r.hasAuthority(operator, from, token) {
		return ErrNotAuthorized
	}
	if r.locked(card) {
		return ErrLocked
	}
	r.move(card, to)
	r.logger.Log(log.NewTransferEvent(r.clock.Now(), string(from), string(to), uint64(token), card.Name))
	return nil
}

// move applies the ownership change. Validation is the caller's job.
func (r *Registry) move(card *Card, to AccountID) {
	card.PreviousOwners = append(card.PreviousOwners, card.Owner)
	r.balances[card.Owner]--
	card.Owner = to
	r.balances[to]++
	card.LastTransferAt = r.clock.Now()
	delete(r.approved, card.ID) // per-token approvals do not survive a transfer
}

// swap exchanges two cards between their owners as one unit: both sides are
// validated before either moves, so a failure never leaves a half-swap. The
// caller logs the surrounding trade event; swap itself is silent.
func (r *Registry) swap(operator AccountID, ownerA AccountID, tokenA TokenID, ownerB AccountID, tokenB TokenID) error {
	cardA, ok := r.cards[tokenA]
	if !ok {
		return ErrNotFound
	}
	cardB, ok := r.cards[tokenB]
	if !ok {
		return ErrNotFound
	}
	if cardA.Owner != ownerA || cardB.Owner != ownerB {
		return ErrNotOwner
	}
	if r.locked(cardA) || r.locked(cardB) {
		return ErrLocked
	}
	if !r.hasAuthority(operator, ownerA, tokenA) || !r.hasAuthority(operator, ownerB, tokenB) {
		return ErrMarketplaceNotApproved
	}
	r.move(cardA, ownerB)
	r.move(cardB, ownerA)
	return nil
}

// --- Fusion support ---

// BurnAndRemint burns two cards and mints their replacement atomically: all
// validation happens before the first mutation, so the burns and the mint
// succeed together or not at all. Used exclusively by the fusion engine,
// which logs the fusion event.
func (r *Registry) BurnAndRemint(owner AccountID, burn [2]TokenID, newName string, newRarity Rarity, newLevel int, lockDuration time.Duration) (TokenID, error) {
	if burn[0] == burn[1] {
		return 0, ErrCannotFuseSameCard
	}
	if newLevel < 1 || newLevel > MaxLevel {
		return 0, ErrInvalidLevel
	}
	for _, id := range burn {
		card, ok := r.cards[id]
		if !ok {
			return 0, ErrNotFound
		}
		if card.Owner != owner {
			return 0, ErrNotOwner
		}
		if r.locked(card) {
			return 0, ErrLocked
		}
	}

	for _, id := range burn {
		r.balances[owner]--
		delete(r.approved, id)
		delete(r.cards, id)
	}

	now := r.clock.Now()
	card := &Card{
		ID:        r.nextToken,
		Name:      newName,
		Rarity:    newRarity,
		Level:     newLevel,
		Owner:     owner,
		Attack:    r.catalog.BaseAttack(newName) * newLevel,
		CreatedAt: now,
		LockUntil: now.Add(lockDuration),
	}
	r.nextToken++
	r.cards[card.ID] = card
	r.balances[owner]++
	return card.ID, nil
}

// --- Issuer allow-list ---

// SetAuthorizedIssuer toggles an account's mint capability. Owner-only.
func (r *Registry) SetAuthorizedIssuer(caller, issuer AccountID, enabled bool) error {
	if caller != r.cfg.Owner {
		return ErrNotAuthorized
	}
	if issuer == "" {
		return ErrInvalidAccount
	}
	if enabled {
		r.issuers[issuer] = true
	} else {
		delete(r.issuers, issuer)
	}
	r.logger.Log(log.NewIssuerChangedEvent(r.clock.Now(), string(caller), string(issuer), enabled))
	return nil
}

// IsAuthorizedIssuer reports whether an account holds the mint capability.
func (r *Registry) IsAuthorizedIssuer(account AccountID) bool {
	return r.issuers[account]
}

// --- Transfer authority ---

// Approve grants an operator transfer authority over one token. Cleared
// automatically when the token changes hands.
func (r *Registry) Approve(caller, operator AccountID, token TokenID) error {
	card, ok := r.cards[token]
	if !ok {
		return ErrNotFound
	}
	if card.Owner != caller {
		return ErrNotOwner
	}
	r.approved[token] = operator
	r.logger.Log(log.NewApprovalEvent(r.clock.Now(), string(caller), string(operator), uint64(token)))
	return nil
}

// SetApprovalForAll grants or revokes a blanket transfer grant over all of
// the caller's cards, present and future.
func (r *Registry) SetApprovalForAll(caller, operator AccountID, enabled bool) error {
	if operator == "" {
		return ErrInvalidAccount
	}
	if enabled {
		if r.operators[caller] == nil {
			r.operators[caller] = make(map[AccountID]bool)
		}
		r.operators[caller][operator] = true
	} else {
		delete(r.operators[caller], operator)
	}
	r.logger.Log(log.NewApprovalForAllEvent(r.clock.Now(), string(caller), string(operator), enabled))
	return nil
}

// HasTransferAuthority reports whether operator may move owner's token.
func (r *Registry) HasTransferAuthority(operator, owner AccountID, token TokenID) bool {
	return r.hasAuthority(operator, owner, token)
}

func (r *Registry) hasAuthority(operator, owner AccountID, token TokenID) bool {
	if operator == owner {
		return true
	}
	if r.approved[token] == operator {
		return true
	}
	return r.operators[owner][operator]
}

// --- Reads ---

// OwnerOf returns the current owner of a token.
func (r *Registry) OwnerOf(token TokenID) (AccountID, error) {
	card, ok := r.cards[token]
	if !ok {
		return "", ErrNotFound
	}
	return card.Owner, nil
}

// CardDetails returns a copy of the card record.
func (r *Registry) CardDetails(token TokenID) (Card, error) {
	card, ok := r.cards[token]
	if !ok {
		return Card{}, ErrNotFound
	}
	return card.clone(), nil
}

// LockUntil returns the timestamp before which the card cannot change owner.
func (r *Registry) LockUntil(token TokenID) (time.Time, error) {
	card, ok := r.cards[token]
	if !ok {
		return time.Time{}, ErrNotFound
	}
	return card.LockUntil, nil
}

// TimeUntilUnlock returns the remaining lock duration, zero if unlocked.
func (r *Registry) TimeUntilUnlock(token TokenID) (time.Duration, error) {
	card, ok := r.cards[token]
	if !ok {
		return 0, ErrNotFound
	}
	remaining := card.LockUntil.Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// PreviousOwnersOf returns the provenance history, oldest first.
func (r *Registry) PreviousOwnersOf(token TokenID) ([]AccountID, error) {
	card, ok := r.cards[token]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]AccountID(nil), card.PreviousOwners...), nil
}

// BalanceOf returns the number of cards an account holds.
func (r *Registry) BalanceOf(account AccountID) int {
	return r.balances[account]
}

// TimeUntilNextMint returns the remaining direct-mint cooldown for an account.
func (r *Registry) TimeUntilNextMint(account AccountID) time.Duration {
	if r.cfg.MintCooldown <= 0 {
		return 0
	}
	last, ok := r.lastMintAt[account]
	if !ok {
		return 0
	}
	remaining := last.Add(r.cfg.MintCooldown).Sub(r.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Cards returns copies of all cards, ordered by id.
func (r *Registry) Cards() []Card {
	out := make([]Card, 0, len(r.cards))
	for id := TokenID(1); id < r.nextToken; id++ {
		if card, ok := r.cards[id]; ok {
			out = append(out, card.clone())
		}
	}
	return out
}

// CardsOf returns copies of all cards held by one account, ordered by id.
func (r *Registry) CardsOf(account AccountID) []Card {
	var out []Card
	for id := TokenID(1); id < r.nextToken; id++ {
		if card, ok := r.cards[id]; ok && card.Owner == account {
			out = append(out, card.clone())
		}
	}
	return out
}

func (r *Registry) locked(card *Card) bool {
	return r.clock.Now().Before(card.LockUntil)
}
