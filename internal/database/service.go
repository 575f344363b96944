/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"group-wager-go/internal/models"
	"group-wager-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// dialect adapts the shared query text to the configured driver.
type dialect string

// rebind rewrites ? placeholders to $n for postgres.
func (d dialect) rebind(query string) string {
	if d != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Service struct {
	db        *sql.DB
	dialect   dialect
	subledger *SubledgerService
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	dsn := cfg.Path
	if cfg.Driver == DriverSQLite {
		if cfg.Path == ":memory:" {
			// every connection would get its own empty database
			cfg.MaxOpenConns = 1
			cfg.MaxIdleConns = 1
			cfg.ConnMaxLifetime = 0
			cfg.ConnMaxIdleTime = 0
			dsn = cfg.Path + "?_txlock=immediate&_foreign_keys=on"
		} else {
			dsn = cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"
		}
	}

	zap.L().Info("Opening database", zap.String("driver", cfg.Driver), zap.String("file", redactDSN(cfg)))
	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := newServiceFromDB(db, dialect(cfg.Driver))
	if err := service.initSchema(ctx, cfg.CreateDummyUsers); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceFromDB(db *sql.DB, d dialect) *Service {
	return &Service{db: db, dialect: d, subledger: NewSubledgerService(db, d)}
}

func redactDSN(cfg models.DatabaseConfig) string {
	if cfg.Driver == DriverPostgres {
		if i := strings.Index(cfg.Path, "@"); i >= 0 {
			return "postgres://***" + cfg.Path[i:]
		}
	}
	return cfg.Path
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a single database transaction. Any error returned by fn
// rolls back every write fn made, which is what keeps failed stakes and
// settlements from leaving partial balance or pot mutations behind.
func (s *Service) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.L().Error("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", store.ErrInternal, err)
	}
	return nil
}

// withReadTx runs fn against one consistent snapshot. Postgres needs
// REPEATABLE READ for that; a SQLite transaction already reads one snapshot.
func withReadTx(ctx context.Context, db *sql.DB, d dialect, fn func(tx *sql.Tx) error) error {
	var opts *sql.TxOptions
	if d == DriverPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		// no-op after Commit
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Service) initSchema(ctx context.Context, createDummyUsers bool) error {
	schema := `
	-- Create users table; balance is the hot copy of SUM(transactions.amount)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		last_transaction_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	-- Bets and their immutable outcome set
	CREATE TABLE IF NOT EXISTS bets (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		creator_id TEXT NOT NULL REFERENCES users(id),
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		min_stake TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		deadline TIMESTAMP NOT NULL,
		total_pot TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bets_group_status ON bets(group_id, status);
	CREATE INDEX IF NOT EXISTS idx_bets_creator ON bets(creator_id);

	CREATE TABLE IF NOT EXISTS bet_outcomes (
		id TEXT PRIMARY KEY,
		bet_id TEXT NOT NULL REFERENCES bets(id),
		label TEXT NOT NULL,
		position INTEGER NOT NULL,
		UNIQUE(bet_id, position)
	);

	-- One participation per user per bet, enforced by the unique constraint
	CREATE TABLE IF NOT EXISTS participations (
		id TEXT PRIMARY KEY,
		bet_id TEXT NOT NULL REFERENCES bets(id),
		user_id TEXT NOT NULL REFERENCES users(id),
		outcome_id TEXT NOT NULL REFERENCES bet_outcomes(id),
		amount TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(bet_id, user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_participations_bet ON participations(bet_id);

	-- Settlement audit rows, one per terminal bet
	CREATE TABLE IF NOT EXISTS settlements (
		bet_id TEXT PRIMARY KEY REFERENCES bets(id),
		status TEXT NOT NULL,
		winning_outcome_id TEXT NOT NULL DEFAULT '',
		pot TEXT NOT NULL,
		fee TEXT NOT NULL,
		net_pot TEXT NOT NULL,
		distributed TEXT NOT NULL,
		absorbed TEXT NOT NULL,
		winner_count INTEGER NOT NULL DEFAULT 0,
		settled_by TEXT NOT NULL,
		settled_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if err := s.subledger.InitSchema(ctx); err != nil {
		return fmt.Errorf("unable to initialize subledger schema: %w", err)
	}

	// Insert dummy users for testing if configured to do so
	if createDummyUsers {
		users := []struct {
			id      string
			name    string
			email   string
			opening decimal.Decimal
		}{
			{uuid.New().String(), "Alex Rivera", "alex.rivera@example.com", decimal.NewFromInt(250)},
			{uuid.New().String(), "Sarah Chen", "sarah.chen@example.com", decimal.RequireFromString("1420.50")},
			{uuid.New().String(), "Jordan Mike", "jordan.mike@example.com", decimal.NewFromInt(85)},
			{uuid.New().String(), "Casey Smith", "casey.smith@example.com", decimal.NewFromInt(500)},
		}

		for _, user := range users {
			if _, err := s.CreateUser(ctx, user.id, user.name, user.email); err != nil {
				zap.L().Error("Failed to insert dummy user", zap.String("name", user.name), zap.Error(err))
				continue
			}
			_, err := s.subledger.Credit(ctx, s.db, store.MovementParams{
				UserId:      user.id,
				Kind:        models.KindDeposit,
				Amount:      user.opening,
				Description: "Initial Deposit",
			})
			if err != nil {
				zap.L().Error("Failed to fund dummy user", zap.String("name", user.name), zap.Error(err))
				continue
			}
			zap.L().Info("Dummy user created", zap.String("id", user.id), zap.String("name", user.name))
		}
	} else {
		zap.L().Info("Skipping dummy user creation (CREATE_DUMMY_USERS=false)")
	}

	return nil
}
