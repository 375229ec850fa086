package domain

// Fields - набор извлеченных полей объявления: имя колонки -> значение.
// Числа хранятся в строковом виде, пустая строка означает отсутствие значения.
type Fields map[string]string

// Merge переносит значения из other поверх текущих.
func (f Fields) Merge(other Fields) {
	for k, v := range other {
		f[k] = v
	}
}

// Listing - одна строка итоговой таблицы.
// Метаданные обхода (страница, URL, категория) хранятся отдельно от полей,
// в колонки их раскладывает SchemaReconciler.
type Listing struct {
	Page     int
	URL      string
	Category string
	Fields   Fields
}

// NewListing создает объявление с пустым набором полей
func NewListing(page int, category string) Listing {
	return Listing{
		Page:     page,
		Category: category,
		Fields:   make(Fields),
	}
}

// Category - группа объявлений со своим относительным адресом и своей нумерацией страниц
type Category struct {
	Label string
	Slug  string
}

// Layout - канонический порядок колонок одного запуска.
type Layout struct {
	Columns        []string
	PageColumn     string
	URLColumn      string
	CategoryColumn string // пусто, если категорий нет
}

// Index возвращает позицию каждой колонки
func (l Layout) Index() map[string]int {
	idx := make(map[string]int, len(l.Columns))
	for i, c := range l.Columns {
		idx[c] = i
	}
	return idx
}

// IsMetadata сообщает, заполняется ли колонка из метаданных обхода
func (l Layout) IsMetadata(column string) bool {
	if column == "" {
		return false
	}
	return column == l.PageColumn || column == l.URLColumn || column == l.CategoryColumn
}

// Equal сравнивает layout с заголовком уже существующей таблицы
func (l Layout) Equal(header []string) bool {
	if len(header) != len(l.Columns) {
		return false
	}
	for i := range header {
		if header[i] != l.Columns[i] {
			return false
		}
	}
	return true
}

// PageBatch - страница, уже записанная в таблицу. Передается во вторичные приемники.
type PageBatch struct {
	Site     string
	Category string
	Page     int
	Layout   Layout
	Rows     [][]string
}
