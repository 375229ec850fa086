package usecases_port

import "context"

type CleanTablePort interface {
	Execute(ctx context.Context) (int, error)
}
