package port

import (
	"context"
	"property-listings-puller/internal/core/domain"

	"github.com/google/uuid"
)

// CheckpointStorePort хранит номер последней записанной страницы каждого под-обхода
type CheckpointStorePort interface {
	// LastPage возвращает 0, если отметки нет
	LastPage(ctx context.Context, key domain.CheckpointKey) (int, error)
	SavePage(ctx context.Context, key domain.CheckpointKey, page int, runID uuid.UUID) error
}
