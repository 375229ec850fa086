package domain

import "time"

// MetadataPosition определяет, где в таблице стоят колонки страницы и URL
type MetadataPosition string

const (
	MetadataFirst MetadataPosition = "first"
	MetadataLast  MetadataPosition = "last"
)

// CleanStage определяет, когда вызывается постобработка сайта
type CleanStage string

const (
	CleanPerPage CleanStage = "page"
	CleanAtEnd   CleanStage = "end"
)

// WriteMode - режим записи в итоговый файл
type WriteMode string

const (
	WriteAppend    WriteMode = "append"
	WriteOverwrite WriteMode = "overwrite"
)

// SiteSettings - объявленная конфигурация одного сайта
type SiteSettings struct {
	Name       string
	RootURL    string
	Slug       string // адрес списка объявлений, если категорий нет
	PageParam  string
	PageInPath bool

	Columns                []string
	IncludeDeclaredColumns bool
	Categories             []Category

	MetadataPosition MetadataPosition
	PageColumn       string
	URLColumn        string
	CategoryColumn   string

	ListingPreviews bool
	ListingPages    bool
	Clean           CleanStage
}

// HasCategories сообщает, нужно ли повторять обход по категориям
func (s SiteSettings) HasCategories() bool {
	return len(s.Categories) > 0
}

// CrawlCategories возвращает список под-обходов. Для сайта без категорий
// это одна безымянная категория со Slug сайта.
func (s SiteSettings) CrawlCategories() []Category {
	if s.HasCategories() {
		return s.Categories
	}
	return []Category{{Slug: s.Slug}}
}

// RunOptions - параметры одного запуска
type RunOptions struct {
	StartPage int
	EndPage   int // 0 - без ограничения

	WriteMode          WriteMode
	Destination        string
	CleanedDestination string
	Resume             bool

	MaxDetailAttempts   int
	MaxListPageAttempts int
	RetryDelay          time.Duration
	FailFast            bool
}

// CheckpointKey идентифицирует последовательность страниц одного под-обхода
type CheckpointKey struct {
	Site     string
	Category string
}
