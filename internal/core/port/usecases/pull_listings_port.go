package usecases_port

import (
	"context"
	"property-listings-puller/internal/core/domain"

	"github.com/google/uuid"
)

type PullListingsPort interface {
	Execute(ctx context.Context, runID uuid.UUID) (*domain.RunReport, error)
}
