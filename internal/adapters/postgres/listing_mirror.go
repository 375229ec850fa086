package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listingsSchema = `
CREATE TABLE IF NOT EXISTS listings (
	site        TEXT NOT NULL,
	url         TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	page        INTEGER NOT NULL,
	data        JSONB NOT NULL,
	run_id      UUID NOT NULL,
	scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (site, url)
);
CREATE INDEX IF NOT EXISTS idx_listings_site_category ON listings(site, category);`

const upsertListingSQL = `
INSERT INTO listings (site, url, category, page, data, run_id, scraped_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (site, url) DO UPDATE
SET category = EXCLUDED.category, page = EXCLUDED.page, data = EXCLUDED.data,
    run_id = EXCLUDED.run_id, scraped_at = EXCLUDED.scraped_at`

// ListingMirrorAdapter копирует каждую записанную страницу в таблицу listings.
// Источник истины - CSV, зеркало лишь дублирует строки.
type ListingMirrorAdapter struct {
	dbPool  *pgxpool.Pool
	timeout time.Duration
}

func NewListingMirrorAdapter(ctx context.Context, dbPool *pgxpool.Pool) (*ListingMirrorAdapter, error) {
	if dbPool == nil {
		return nil, errors.New("listing mirror: dbPool cannot be nil")
	}
	if _, err := dbPool.Exec(ctx, listingsSchema); err != nil {
		return nil, fmt.Errorf("listing mirror: failed to ensure schema: %w", err)
	}
	return &ListingMirrorAdapter{dbPool: dbPool, timeout: 30 * time.Second}, nil
}

// mirrorRow - одна строка таблицы в виде, пригодном для JSONB
type mirrorRow struct {
	URL  string
	Data []byte
}

// rowsToDocuments превращает строки страницы в JSON-документы колонка -> значение.
// Строки без URL пропускаются: это ключ зеркала.
func rowsToDocuments(batch domain.PageBatch) ([]mirrorRow, error) {
	urlPos := -1
	for i, c := range batch.Layout.Columns {
		if c == batch.Layout.URLColumn {
			urlPos = i
		}
	}
	if urlPos < 0 {
		return nil, errors.New("layout has no url column")
	}

	out := make([]mirrorRow, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		if urlPos >= len(row) || row[urlPos] == "" {
			continue
		}
		doc := make(map[string]string, len(row))
		for i, v := range row {
			if v != "" && i < len(batch.Layout.Columns) {
				doc[batch.Layout.Columns[i]] = v
			}
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, mirrorRow{URL: row[urlPos], Data: data})
	}
	return out, nil
}

// PageFlushed выполняет upsert строк страницы одним батчем
func (a *ListingMirrorAdapter) PageFlushed(ctx context.Context, runID uuid.UUID, batch domain.PageBatch) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component": "ListingMirrorAdapter",
		"page":      batch.Page,
	})

	docs, err := rowsToDocuments(batch)
	if err != nil {
		return fmt.Errorf("listing mirror: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	now := time.Now().UTC()
	pgBatch := &pgx.Batch{}
	for _, d := range docs {
		pgBatch.Queue(upsertListingSQL, batch.Site, d.URL, batch.Category, batch.Page, d.Data, runID, now)
	}

	results := a.dbPool.SendBatch(ctx, pgBatch)
	defer results.Close()
	for i := range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("listing mirror: batch upsert failed at row %d: %w", i, err)
		}
	}

	adapterLogger.Debug("Page mirrored to postgres", port.Fields{"rows": len(docs)})
	return nil
}
