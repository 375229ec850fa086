package domain

import (
	"time"

	"github.com/google/uuid"
)

// StopReason - почему закончился обход категории
type StopReason string

const (
	StopEmptyPage        StopReason = "empty_page"
	StopContainerMissing StopReason = "container_missing"
	StopRedirect         StopReason = "redirect"
	StopConnectionClosed StopReason = "connection_terminated"
	StopEndPage          StopReason = "end_page"
	StopListPageFailed   StopReason = "list_page_failed"
	StopAborted          StopReason = "aborted"
	StopCancelled        StopReason = "cancelled"
)

// CategoryStats - итоги обхода одной категории
type CategoryStats struct {
	Category        string
	FirstPage       int
	LastPage        int
	PagesWritten    int
	ListingsWritten int
	ListingsSkipped int
	OffSiteSkipped  int
	DetailFailures  int
	StopReason      StopReason
}

// FailureRecord - запись в журнал ошибок
type FailureRecord struct {
	Time     time.Time
	Site     string
	Category string
	Page     int
	URL      string
	Stage    string
	Attempt  int
	Err      error
}

// RunReport - итоги запуска
type RunReport struct {
	RunID       uuid.UUID
	Site        string
	Destination string
	StartedAt   time.Time
	FinishedAt  time.Time
	Categories  []CategoryStats
	Aborted     bool
	Error       string
}

// ListingsWritten суммирует записанные строки по всем категориям
func (r *RunReport) ListingsWritten() int {
	total := 0
	for _, c := range r.Categories {
		total += c.ListingsWritten
	}
	return total
}

// PagesWritten суммирует записанные страницы по всем категориям
func (r *RunReport) PagesWritten() int {
	total := 0
	for _, c := range r.Categories {
		total += c.PagesWritten
	}
	return total
}
