// Package store persists ledger snapshots in SQLite. Each save replaces the
// whole state inside one transaction, giving the commit-or-abort unit the
// ledger's persistence contract requires.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterkuimelis/cardvault/internal/ledger"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cards (
  id               INTEGER PRIMARY KEY,
  name             TEXT NOT NULL,
  rarity           TEXT NOT NULL,
  level            INTEGER NOT NULL,
  owner            TEXT NOT NULL,
  attack           INTEGER NOT NULL,
  created_at       INTEGER NOT NULL,
  last_transfer_at INTEGER NOT NULL,
  lock_until       INTEGER NOT NULL,
  previous_owners  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS issuers (
  account TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS mint_times (
  account      TEXT PRIMARY KEY,
  last_mint_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fusion_times (
  account        TEXT PRIMARY KEY,
  last_fusion_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS approvals (
  token    INTEGER PRIMARY KEY,
  operator TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS operators (
  owner    TEXT NOT NULL,
  operator TEXT NOT NULL,
  PRIMARY KEY (owner, operator)
);
CREATE TABLE IF NOT EXISTS trades (
  id               INTEGER PRIMARY KEY,
  creator          TEXT NOT NULL,
  offered_token    INTEGER NOT NULL,
  requested_name   TEXT NOT NULL,
  requested_level  INTEGER NOT NULL,
  requested_rarity TEXT NOT NULL,
  active           INTEGER NOT NULL,
  created_at       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS direct_trades (
  id              INTEGER PRIMARY KEY,
  creator         TEXT NOT NULL,
  target          TEXT NOT NULL,
  offered_token   INTEGER NOT NULL,
  requested_token INTEGER NOT NULL,
  active          INTEGER NOT NULL,
  created_at      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value INTEGER NOT NULL
);
`

// Store persists ledger state in SQLite. It implements ledger.Store.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite ledger store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save replaces the persisted state with the snapshot in one transaction.
func (s *Store) Save(snap ledger.Snapshot) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ctx := context.Background()
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"cards", "issuers", "mint_times", "fusion_times", "approvals", "operators", "trades", "direct_trades", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, card := range snap.Cards {
		prev, err := json.Marshal(card.PreviousOwners)
		if err != nil {
			return fmt.Errorf("encode provenance for card %d: %w", card.ID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cards (id, name, rarity, level, owner, attack, created_at, last_transfer_at, lock_until, previous_owners)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(card.ID), card.Name, string(card.Rarity), card.Level, string(card.Owner), card.Attack,
			toMillis(card.CreatedAt), toMillis(card.LastTransferAt), toMillis(card.LockUntil), string(prev),
		)
		if err != nil {
			return fmt.Errorf("insert card %d: %w", card.ID, err)
		}
	}

	for _, issuer := range snap.Issuers {
		if _, err := tx.ExecContext(ctx, `INSERT INTO issuers (account) VALUES (?)`, string(issuer)); err != nil {
			return fmt.Errorf("insert issuer: %w", err)
		}
	}
	for account, at := range snap.LastMintAt {
		if _, err := tx.ExecContext(ctx, `INSERT INTO mint_times (account, last_mint_at) VALUES (?, ?)`, string(account), toMillis(at)); err != nil {
			return fmt.Errorf("insert mint time: %w", err)
		}
	}
	for account, at := range snap.LastFusionAt {
		if _, err := tx.ExecContext(ctx, `INSERT INTO fusion_times (account, last_fusion_at) VALUES (?, ?)`, string(account), toMillis(at)); err != nil {
			return fmt.Errorf("insert fusion time: %w", err)
		}
	}
	for token, operator := range snap.Approvals {
		if _, err := tx.ExecContext(ctx, `INSERT INTO approvals (token, operator) VALUES (?, ?)`, int64(token), string(operator)); err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
	}
	for _, grant := range snap.Operators {
		if _, err := tx.ExecContext(ctx, `INSERT INTO operators (owner, operator) VALUES (?, ?)`, string(grant.Owner), string(grant.Operator)); err != nil {
			return fmt.Errorf("insert operator grant: %w", err)
		}
	}

	for _, trade := range snap.Trades {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO trades (id, creator, offered_token, requested_name, requested_level, requested_rarity, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(trade.ID), string(trade.Creator), int64(trade.OfferedToken), trade.RequestedName,
			trade.RequestedLevel, string(trade.RequestedRarity), boolToInt(trade.Active), toMillis(trade.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", trade.ID, err)
		}
	}
	for _, trade := range snap.DirectTrades {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO direct_trades (id, creator, target, offered_token, requested_token, active, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(trade.ID), string(trade.Creator), string(trade.Target), int64(trade.OfferedToken),
			int64(trade.RequestedToken), boolToInt(trade.Active), toMillis(trade.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert direct trade %d: %w", trade.ID, err)
		}
	}

	for key, value := range map[string]int64{
		"next_token":     int64(snap.NextToken),
		"next_trade":     int64(snap.NextTradeID),
		"next_direct":    int64(snap.NextDirectID),
		"saved_at_milli": time.Now().UTC().UnixMilli(),
	} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("insert meta %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. The second return is false when the
// store holds no saved state yet.
func (s *Store) Load() (ledger.Snapshot, bool, error) {
	if s == nil || s.sqlDB == nil {
		return ledger.Snapshot{}, false, fmt.Errorf("storage is not configured")
	}
	ctx := context.Background()

	meta := make(map[string]int64)
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read meta: %w", err)
	}
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan meta: %w", err)
		}
		meta[key] = value
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ledger.Snapshot{}, false, fmt.Errorf("iterate meta: %w", err)
	}
	rows.Close()
	if len(meta) == 0 {
		return ledger.Snapshot{}, false, nil
	}

	snap := ledger.Snapshot{
		NextToken:    ledger.TokenID(meta["next_token"]),
		NextTradeID:  ledger.TradeID(meta["next_trade"]),
		NextDirectID: ledger.TradeID(meta["next_direct"]),
		LastMintAt:   make(map[ledger.AccountID]time.Time),
		LastFusionAt: make(map[ledger.AccountID]time.Time),
		Approvals:    make(map[ledger.TokenID]ledger.AccountID),
	}

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT id, name, rarity, level, owner, attack, created_at, last_transfer_at, lock_until, previous_owners
		 FROM cards ORDER BY id`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read cards: %w", err)
	}
	for rows.Next() {
		var (
			id, createdAt, lastTransferAt, lockUntil int64
			name, rarity, owner, prev                string
			level, attack                            int
		)
		if err := rows.Scan(&id, &name, &rarity, &level, &owner, &attack, &createdAt, &lastTransferAt, &lockUntil, &prev); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan card: %w", err)
		}
		card := ledger.Card{
			ID:             ledger.TokenID(id),
			Name:           name,
			Rarity:         ledger.Rarity(rarity),
			Level:          level,
			Owner:          ledger.AccountID(owner),
			Attack:         attack,
			CreatedAt:      fromMillis(createdAt),
			LastTransferAt: fromMillis(lastTransferAt),
			LockUntil:      fromMillis(lockUntil),
		}
		if err := json.Unmarshal([]byte(prev), &card.PreviousOwners); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("decode provenance for card %d: %w", id, err)
		}
		snap.Cards = append(snap.Cards, card)
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate cards: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx, `SELECT account FROM issuers`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read issuers: %w", err)
	}
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan issuer: %w", err)
		}
		snap.Issuers = append(snap.Issuers, ledger.AccountID(account))
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate issuers: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx, `SELECT account, last_mint_at FROM mint_times`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read mint times: %w", err)
	}
	for rows.Next() {
		var account string
		var at int64
		if err := rows.Scan(&account, &at); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan mint time: %w", err)
		}
		snap.LastMintAt[ledger.AccountID(account)] = fromMillis(at)
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate mint times: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx, `SELECT account, last_fusion_at FROM fusion_times`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read fusion times: %w", err)
	}
	for rows.Next() {
		var account string
		var at int64
		if err := rows.Scan(&account, &at); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan fusion time: %w", err)
		}
		snap.LastFusionAt[ledger.AccountID(account)] = fromMillis(at)
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate fusion times: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx, `SELECT token, operator FROM approvals`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read approvals: %w", err)
	}
	for rows.Next() {
		var token int64
		var operator string
		if err := rows.Scan(&token, &operator); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan approval: %w", err)
		}
		snap.Approvals[ledger.TokenID(token)] = ledger.AccountID(operator)
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate approvals: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx, `SELECT owner, operator FROM operators`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read operators: %w", err)
	}
	for rows.Next() {
		var owner, operator string
		if err := rows.Scan(&owner, &operator); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan operator grant: %w", err)
		}
		snap.Operators = append(snap.Operators, ledger.OperatorGrant{
			Owner:    ledger.AccountID(owner),
			Operator: ledger.AccountID(operator),
		})
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate operators: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT id, creator, offered_token, requested_name, requested_level, requested_rarity, active, created_at
		 FROM trades ORDER BY id`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read trades: %w", err)
	}
	for rows.Next() {
		var (
			id, offered, createdAt int64
			creator, name, rarity  string
			level, active          int
		)
		if err := rows.Scan(&id, &creator, &offered, &name, &level, &rarity, &active, &createdAt); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan trade: %w", err)
		}
		snap.Trades = append(snap.Trades, ledger.CriteriaTrade{
			ID:              ledger.TradeID(id),
			Creator:         ledger.AccountID(creator),
			OfferedToken:    ledger.TokenID(offered),
			RequestedName:   name,
			RequestedLevel:  level,
			RequestedRarity: ledger.Rarity(rarity),
			Active:          active != 0,
			CreatedAt:       fromMillis(createdAt),
		})
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate trades: %w", err)
	}

	rows, err = s.sqlDB.QueryContext(ctx,
		`SELECT id, creator, target, offered_token, requested_token, active, created_at
		 FROM direct_trades ORDER BY id`)
	if err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("read direct trades: %w", err)
	}
	for rows.Next() {
		var (
			id, offered, requested, createdAt int64
			creator, target                   string
			active                            int
		)
		if err := rows.Scan(&id, &creator, &target, &offered, &requested, &active, &createdAt); err != nil {
			rows.Close()
			return ledger.Snapshot{}, false, fmt.Errorf("scan direct trade: %w", err)
		}
		snap.DirectTrades = append(snap.DirectTrades, ledger.DirectTrade{
			ID:             ledger.TradeID(id),
			Creator:        ledger.AccountID(creator),
			Target:         ledger.AccountID(target),
			OfferedToken:   ledger.TokenID(offered),
			RequestedToken: ledger.TokenID(requested),
			Active:         active != 0,
			CreatedAt:      fromMillis(createdAt),
		})
	}
	if err := closeRows(rows); err != nil {
		return ledger.Snapshot{}, false, fmt.Errorf("iterate direct trades: %w", err)
	}

	return snap, true, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
