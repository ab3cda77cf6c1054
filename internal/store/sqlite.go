package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/shopfront/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveCartSnapshot replaces the stored cart of userID.
func (s *SQLiteStore) SaveCartSnapshot(ctx context.Context, userID string, cart model.Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshaling cart for %s: %w", userID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cart_snapshots (user_id, payload, fetched_at)
		VALUES (?, ?, ?)`,
		userID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving cart snapshot for %s: %w", userID, err)
	}
	return nil
}

// GetCartSnapshot returns the stored cart of userID, or nil when there is none.
func (s *SQLiteStore) GetCartSnapshot(ctx context.Context, userID string) (*CartSnapshot, error) {
	var row struct {
		Payload   string    `db:"payload"`
		FetchedAt time.Time `db:"fetched_at"`
	}

	err := s.db.GetContext(ctx, &row,
		"SELECT payload, fetched_at FROM cart_snapshots WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting cart snapshot for %s: %w", userID, err)
	}

	snap := &CartSnapshot{UserID: userID, FetchedAt: row.FetchedAt}
	if err := json.Unmarshal([]byte(row.Payload), &snap.Cart); err != nil {
		return nil, fmt.Errorf("unmarshaling cart snapshot for %s: %w", userID, err)
	}
	if snap.Cart.Items == nil {
		snap.Cart.Items = []model.CartItem{}
	}
	return snap, nil
}

// DeleteCartSnapshot removes the stored cart of userID.
func (s *SQLiteStore) DeleteCartSnapshot(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cart_snapshots WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("deleting cart snapshot for %s: %w", userID, err)
	}
	return nil
}

// SetPreference stores value under key, replacing any earlier value.
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO preferences (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting preference %s: %w", key, err)
	}
	return nil
}

// GetPreference returns the value stored under key, or fallback when unset.
func (s *SQLiteStore) GetPreference(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM preferences WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return fallback, fmt.Errorf("getting preference %s: %w", key, err)
	}
	return value, nil
}

// ToggleFavorite flips a product's favorite flag and returns the new value.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, productID string) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM favorites WHERE product_id = ?", productID)
	if err != nil {
		return false, fmt.Errorf("toggling favorite %s: %w", productID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggling favorite %s: %w", productID, err)
	}

	if removed == 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO favorites (product_id, created_at) VALUES (?, ?)",
			productID, time.Now().UTC(),
		)
		if err != nil {
			return false, fmt.Errorf("toggling favorite %s: %w", productID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing favorite %s: %w", productID, err)
	}
	return removed == 0, nil
}

// GetFavorites returns favorite product ids, oldest first.
func (s *SQLiteStore) GetFavorites(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT product_id FROM favorites ORDER BY created_at, product_id",
	)
	if err != nil {
		return nil, fmt.Errorf("querying favorites: %w", err)
	}
	return ids, nil
}

