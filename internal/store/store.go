// Package store is the persistence adapter: named logical tables, each a
// single JSONB document. The database offers no cross-table atomicity and
// none is assumed; the ledger's own mutual exclusion is the only
// consistency guarantee; the store just makes state durable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Logical table names. One row per table, keyed 'data'.
const (
	TableTreasury           = "treasury"
	TableUserPoints         = "user_points"
	TableSubmissions        = "task_submissions"
	TableWeeklyQuests       = "weekly_quests"
	TableQuestSubmissions   = "quest_submissions"
	TableApprovedProofs     = "approved_proofs"
	TableProcessedReactions = "processed_reactions"
	TableReferredUsers      = "referred_users"
	TableReferralData       = "referral_data"
	TablePendingReferrals   = "pending_referrals"
	TableMysteryBoxUses     = "mysterybox_uses"
	TableCheckInLog         = "checkin_log"
	TableUserXP             = "user_xp"
	TableVIPPosts           = "vip_posts"
	TableActiveTickets      = "active_tickets"
	TableTransactionLog     = "transaction_log"
	TableBotData            = "bot_data"
)

// Store loads and saves named records. The ledger and workflow services
// depend on this interface so tests can swap in an in-memory fake.
type Store interface {
	// Load unmarshals the value stored under table into dest. A missing
	// row leaves dest untouched so callers keep their defaults.
	Load(ctx context.Context, table string, dest any) error
	// Save marshals value and upserts it under table.
	Save(ctx context.Context, table string, value any) error
}

// Postgres implements Store on a pgx pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates the PostgreSQL-backed store.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Load reads the JSONB document for a logical table.
func (s *Postgres) Load(ctx context.Context, table string, dest any) error {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT value FROM kv_tables WHERE table_name = $1 AND key = 'data'`, table,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		log.WithField("table", table).Debug("no stored data, keeping defaults")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load %q: %w", table, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to decode %q: %w", table, err)
	}
	return nil
}

// Save upserts the JSONB document for a logical table.
func (s *Postgres) Save(ctx context.Context, table string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", table, err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO kv_tables (table_name, key, value)
		VALUES ($1, 'data', $2)
		ON CONFLICT (table_name, key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, table, raw)
	if err != nil {
		return fmt.Errorf("failed to save %q: %w", table, err)
	}
	return nil
}
