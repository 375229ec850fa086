package usecase

import (
	"property-listings-puller/internal/core/domain"
	"sort"
	"strconv"
)

// WithExtraColumns возвращает копию настроек, в которой к объявленным колонкам
// добавлены производные колонки постобработки
func WithExtraColumns(settings domain.SiteSettings, extra []string) domain.SiteSettings {
	cols := make([]string, 0, len(settings.Columns)+len(extra))
	cols = append(cols, settings.Columns...)
	cols = append(cols, extra...)
	settings.Columns = cols
	return settings
}

// BuildLayout вычисляет канонический порядок колонок запуска:
// метаданные (страница, URL) в начале или в конце, затем объявленные колонки,
// колонка категории добавляется в конец, если у сайта есть категории.
func BuildLayout(settings domain.SiteSettings, declared []string) domain.Layout {
	seen := make(map[string]bool)
	var fields []string
	add := func(col string) {
		if col == "" || seen[col] {
			return
		}
		seen[col] = true
		fields = append(fields, col)
	}

	var meta []string
	for _, m := range []string{settings.PageColumn, settings.URLColumn} {
		if m != "" && !seen[m] {
			seen[m] = true
			meta = append(meta, m)
		}
	}
	if settings.HasCategories() {
		seen[settings.CategoryColumn] = true
	}

	for _, col := range settings.Columns {
		add(col)
	}
	if settings.IncludeDeclaredColumns {
		for _, col := range declared {
			add(col)
		}
	}

	var columns []string
	if settings.MetadataPosition == domain.MetadataFirst {
		columns = append(columns, meta...)
		columns = append(columns, fields...)
	} else {
		columns = append(columns, fields...)
		columns = append(columns, meta...)
	}

	layout := domain.Layout{
		PageColumn: settings.PageColumn,
		URLColumn:  settings.URLColumn,
	}
	if settings.HasCategories() {
		columns = append(columns, settings.CategoryColumn)
		layout.CategoryColumn = settings.CategoryColumn
	}
	layout.Columns = columns
	return layout
}

// SchemaReconciler раскладывает объявления одной страницы по каноническим колонкам
type SchemaReconciler struct {
	layout domain.Layout
	index  map[string]int
}

func NewSchemaReconciler(layout domain.Layout) *SchemaReconciler {
	return &SchemaReconciler{layout: layout, index: layout.Index()}
}

// Layout возвращает канонический порядок колонок
func (r *SchemaReconciler) Layout() domain.Layout {
	return r.layout
}

// Reconcile возвращает строки таблицы. Отсутствующие поля - пустые строки.
// Поле, которого нет в layout, приводит к *domain.SchemaDriftError.
func (r *SchemaReconciler) Reconcile(batch []domain.Listing) ([][]string, error) {
	rows := make([][]string, 0, len(batch))
	unexpected := make(map[string]bool)

	for _, listing := range batch {
		row := make([]string, len(r.layout.Columns))
		for name, value := range listing.Fields {
			pos, ok := r.index[name]
			if !ok || r.layout.IsMetadata(name) {
				if !ok {
					unexpected[name] = true
				}
				continue
			}
			row[pos] = value
		}
		r.fillMetadata(row, listing)
		rows = append(rows, row)
	}

	if len(unexpected) > 0 {
		cols := make([]string, 0, len(unexpected))
		for c := range unexpected {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		drift := &domain.SchemaDriftError{Columns: cols}
		if len(batch) > 0 {
			drift.Page = batch[0].Page
			drift.Category = batch[0].Category
		}
		return nil, drift
	}
	return rows, nil
}

func (r *SchemaReconciler) fillMetadata(row []string, listing domain.Listing) {
	if pos, ok := r.index[r.layout.PageColumn]; ok && listing.Page > 0 {
		row[pos] = strconv.Itoa(listing.Page)
	}
	if pos, ok := r.index[r.layout.URLColumn]; ok {
		row[pos] = listing.URL
	}
	if r.layout.CategoryColumn != "" {
		if pos, ok := r.index[r.layout.CategoryColumn]; ok {
			row[pos] = listing.Category
		}
	}
}

// ListingsFromRows восстанавливает объявления из строк таблицы (для постобработки в конце запуска)
func ListingsFromRows(layout domain.Layout, header []string, rows [][]string) []domain.Listing {
	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		l := domain.Listing{Fields: make(domain.Fields)}
		for i, col := range header {
			if i >= len(row) {
				break
			}
			switch {
			case col == layout.PageColumn:
				l.Page, _ = strconv.Atoi(row[i])
			case col == layout.URLColumn:
				l.URL = row[i]
			case layout.CategoryColumn != "" && col == layout.CategoryColumn:
				l.Category = row[i]
			case row[i] != "":
				l.Fields[col] = row[i]
			}
		}
		listings = append(listings, l)
	}
	return listings
}
