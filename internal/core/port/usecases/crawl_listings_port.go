package usecases_port

import (
	"context"
	"property-listings-puller/internal/core/domain"

	"github.com/google/uuid"
)

type CrawlListingsPort interface {
	Execute(ctx context.Context, runID uuid.UUID, category domain.Category, startPage int) (*domain.CategoryStats, error)
}
