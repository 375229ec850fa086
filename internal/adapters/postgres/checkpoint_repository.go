package postgres

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const checkpointsSchema = `
CREATE TABLE IF NOT EXISTS crawl_checkpoints (
	site        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	last_page   INTEGER NOT NULL,
	run_id      UUID NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (site, category)
);`

// PostgresCheckpointRepository реализует CheckpointStorePort для PostgreSQL
type PostgresCheckpointRepository struct {
	dbPool *pgxpool.Pool
}

// NewPostgresCheckpointRepository создает репозиторий и таблицу, если ее еще нет
func NewPostgresCheckpointRepository(ctx context.Context, dbPool *pgxpool.Pool) (*PostgresCheckpointRepository, error) {
	if dbPool == nil {
		return nil, errors.New("postgres checkpoint repository: dbPool cannot be nil")
	}
	if _, err := dbPool.Exec(ctx, checkpointsSchema); err != nil {
		return nil, fmt.Errorf("postgres checkpoint repository: failed to ensure schema: %w", err)
	}
	return &PostgresCheckpointRepository{dbPool: dbPool}, nil
}

// LastPage возвращает номер последней записанной страницы, 0 если отметки нет
func (r *PostgresCheckpointRepository) LastPage(ctx context.Context, key domain.CheckpointKey) (int, error) {
	repoLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "PostgresCheckpointRepository",
		"site":      key.Site,
		"category":  key.Category,
	})

	var page int
	query := `SELECT last_page FROM crawl_checkpoints WHERE site = $1 AND category = $2`
	err := r.dbPool.QueryRow(ctx, query, key.Site, key.Category).Scan(&page)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			repoLogger.Debug("No checkpoint found", nil)
			return 0, nil
		}
		return 0, fmt.Errorf("PostgresCheckpointRepository: error querying checkpoint: %w", err)
	}

	repoLogger.Debug("Found checkpoint", port.Fields{"last_page": page})
	return page, nil
}

// SavePage сохраняет или обновляет отметку
func (r *PostgresCheckpointRepository) SavePage(ctx context.Context, key domain.CheckpointKey, page int, runID uuid.UUID) error {
	query := `
        INSERT INTO crawl_checkpoints (site, category, last_page, run_id, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (site, category) DO UPDATE
        SET last_page = EXCLUDED.last_page, run_id = EXCLUDED.run_id, updated_at = NOW()
    `
	if _, err := r.dbPool.Exec(ctx, query, key.Site, key.Category, page, runID); err != nil {
		return fmt.Errorf("PostgresCheckpointRepository: error saving checkpoint: %w", err)
	}
	return nil
}
