package port

import (
	"context"
	"property-listings-puller/internal/core/domain"
)

// ErrorLogPort - журнал неудачных загрузок и извлечений для последующего ручного перезапуска
type ErrorLogPort interface {
	Record(ctx context.Context, record domain.FailureRecord) error
}
