package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yogurt-storefront/internal/domain"
)

type mysqlRepo struct {
	db *sql.DB
}

// NewMySQL expects a *sql.DB opened with the "mysql" driver.
func NewMySQL(db *sql.DB) Repository {
	return &mysqlRepo{db: db}
}

// EnsureMySQLSchema creates the snapshot table when missing. The Postgres
// schema is managed by migrations; MySQL deployments bootstrap here.
func EnsureMySQLSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cart_snapshots (
			snapshot_key VARCHAR(191) NOT NULL PRIMARY KEY,
			payload      MEDIUMTEXT   NOT NULL,
			updated_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create cart_snapshots: %w", err)
	}
	return nil
}

func (m *mysqlRepo) Load(ctx context.Context, key string) ([]byte, error) {
	var payload string
	err := m.db.QueryRowContext(ctx, `
		SELECT payload FROM cart_snapshots WHERE snapshot_key = ?`, key,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return []byte(payload), nil
}

func (m *mysqlRepo) Save(ctx context.Context, key string, payload []byte) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (snapshot_key, payload)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload)`,
		key, string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (m *mysqlRepo) Delete(ctx context.Context, key string) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE snapshot_key = ?`, key); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
