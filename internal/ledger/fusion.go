package ledger

import (
	"time"

	"github.com/peterkuimelis/cardvault/internal/log"
)

const (
	// DefaultFusionCooldown is the per-account wait between fusions.
	DefaultFusionCooldown = 300 * time.Second

	// DefaultFusionLock is the lock placed on a freshly fused card.
	DefaultFusionLock = 10 * time.Minute
)

// FusionConfig configures the fusion engine.
type FusionConfig struct {
	Cooldown   time.Duration // per-account, independent of any card lock
	ResultLock time.Duration // applied to the reminted card
}

// FusionEngine combines two equivalent cards into one card a level higher.
// It validates equivalence rules against the registry and drives the burn
// and remint; the per-account fusion cooldown lives here, not on cards.
type FusionEngine struct {
	reg    *Registry
	cfg    FusionConfig
	clock  Clock
	logger log.EventLogger

	lastFusionAt map[AccountID]time.Time
}

// NewFusionEngine creates a fusion engine bound to a registry.
func NewFusionEngine(reg *Registry, cfg FusionConfig, clock Clock, logger log.EventLogger) *FusionEngine {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultFusionCooldown
	}
	if cfg.ResultLock <= 0 {
		cfg.ResultLock = DefaultFusionLock
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = log.NewMemoryLogger()
	}
	return &FusionEngine{
		reg:          reg,
		cfg:          cfg,
		clock:        clock,
		logger:       logger,
		lastFusionAt: make(map[AccountID]time.Time),
	}
}

// Fuse burns token1 and token2 and mints their replacement one level up.
// Returns the new token id.
func (f *FusionEngine) Fuse(caller AccountID, token1, token2 TokenID) (TokenID, error) {
	if err := f.check(caller, token1, token2); err != nil {
		return 0, err
	}

	card, err := f.reg.CardDetails(token1)
	if err != nil {
		return 0, err
	}
	newLevel := card.Level + 1

	newID, err := f.reg.BurnAndRemint(caller, [2]TokenID{token1, token2}, card.Name, card.Rarity, newLevel, f.cfg.ResultLock)
	if err != nil {
		return 0, err
	}

	now := f.clock.Now()
	f.lastFusionAt[caller] = now
	attack := f.reg.Catalog().BaseAttack(card.Name) * newLevel
	f.logger.Log(log.NewFusionEvent(now, string(caller), uint64(token1), uint64(token2), uint64(newID), card.Name, newLevel, attack))
	return newID, nil
}

// CanFuse re-runs the fusion checks without mutating anything, in the same
// order as Fuse. The reason string matches the corresponding failure verbatim
// so clients can pre-flight.
func (f *FusionEngine) CanFuse(caller AccountID, token1, token2 TokenID) (bool, string) {
	if err := f.check(caller, token1, token2); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// TimeUntilNextFusion returns the remaining cooldown for an account.
func (f *FusionEngine) TimeUntilNextFusion(account AccountID) time.Duration {
	last, ok := f.lastFusionAt[account]
	if !ok {
		return 0
	}
	remaining := last.Add(f.cfg.Cooldown).Sub(f.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// check runs all fusion validations. Ordering matters: card-validity errors
// take priority over the cooldown error so clients see deterministic reasons.
func (f *FusionEngine) check(caller AccountID, token1, token2 TokenID) error {
	card1, err := f.reg.CardDetails(token1)
	if err != nil {
		return err
	}
	if card1.Owner != caller {
		return ErrNotOwnerOfCard1
	}
	card2, err := f.reg.CardDetails(token2)
	if err != nil {
		return err
	}
	if card2.Owner != caller {
		return ErrNotOwnerOfCard2
	}
	if token1 == token2 {
		return ErrCannotFuseSameCard
	}
	if card1.Name != card2.Name {
		return ErrCardsMustMatchName
	}
	if card1.Rarity != card2.Rarity {
		return ErrCardsMustMatchRarity
	}
	if card1.Level != card2.Level {
		return ErrCardsMustMatchLevel
	}
	if card1.Level >= MaxLevel {
		return ErrMaxLevelReached
	}
	now := f.clock.Now()
	if now.Before(card1.LockUntil) || now.Before(card2.LockUntil) {
		return ErrLocked
	}
	if last, ok := f.lastFusionAt[caller]; ok && now.Sub(last) < f.cfg.Cooldown {
		return ErrFusionCooldownActive
	}
	return nil
}
