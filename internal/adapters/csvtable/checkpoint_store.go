package csvtable

import (
	"context"
	"property-listings-puller/internal/core/domain"
	"strconv"

	"github.com/google/uuid"
)

// TableCheckpointStore выводит отметки из самой итоговой таблицы:
// последняя страница категории - наибольшее значение колонки страницы в ее строках.
// Работает без внешнего хранилища, SavePage ничего не делает.
type TableCheckpointStore struct {
	table  *CSVTableAdapter
	layout domain.Layout
}

func NewTableCheckpointStore(table *CSVTableAdapter, layout domain.Layout) *TableCheckpointStore {
	return &TableCheckpointStore{table: table, layout: layout}
}

func (s *TableCheckpointStore) LastPage(ctx context.Context, key domain.CheckpointKey) (int, error) {
	exists, err := s.table.Exists()
	if err != nil || !exists {
		return 0, err
	}
	header, rows, err := s.table.ReadAll(ctx)
	if err != nil {
		return 0, err
	}

	pagePos, categoryPos := -1, -1
	for i, col := range header {
		switch {
		case col == s.layout.PageColumn:
			pagePos = i
		case s.layout.CategoryColumn != "" && col == s.layout.CategoryColumn:
			categoryPos = i
		}
	}
	if pagePos < 0 {
		return 0, nil
	}

	last := 0
	for _, row := range rows {
		if pagePos >= len(row) {
			continue
		}
		if categoryPos >= 0 && (categoryPos >= len(row) || row[categoryPos] != key.Category) {
			continue
		}
		if page, err := strconv.Atoi(row[pagePos]); err == nil && page > last {
			last = page
		}
	}
	return last, nil
}

func (s *TableCheckpointStore) SavePage(context.Context, domain.CheckpointKey, int, uuid.UUID) error {
	return nil
}
