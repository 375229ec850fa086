package port

import (
	"context"
	"property-listings-puller/internal/core/domain"

	"github.com/google/uuid"
)

// PageSinkPort получает каждую страницу после записи в итоговую таблицу.
// Ошибки приемников не прерывают обход: источник истины - файл.
type PageSinkPort interface {
	PageFlushed(ctx context.Context, runID uuid.UUID, batch domain.PageBatch) error
}

// RunReporterPort публикует итоги запуска
type RunReporterPort interface {
	ReportRun(ctx context.Context, report *domain.RunReport) error
}
