package rabbitmq

import (
	"time"

	"github.com/google/uuid"
)

// PageFlushedDTO - событие "страница записана"
type PageFlushedDTO struct {
	RunID    uuid.UUID `json:"run_id"`
	Site     string    `json:"site"`
	Category string    `json:"category,omitempty"`
	Page     int       `json:"page"`
	Rows     int       `json:"rows"`
	URLs     []string  `json:"urls,omitempty"`
}

type CategoryStatsDTO struct {
	Category        string `json:"category,omitempty"`
	FirstPage       int    `json:"first_page"`
	LastPage        int    `json:"last_page"`
	PagesWritten    int    `json:"pages_written"`
	ListingsWritten int    `json:"listings_written"`
	ListingsSkipped int    `json:"listings_skipped"`
	OffSiteSkipped  int    `json:"off_site_skipped"`
	DetailFailures  int    `json:"detail_failures"`
	StopReason      string `json:"stop_reason"`
}

// RunReportDTO - итоги запуска
type RunReportDTO struct {
	RunID           uuid.UUID          `json:"run_id"`
	Site            string             `json:"site"`
	Destination     string             `json:"destination"`
	StartedAt       time.Time          `json:"started_at"`
	FinishedAt      time.Time          `json:"finished_at"`
	Aborted         bool               `json:"aborted"`
	Error           string             `json:"error,omitempty"`
	ListingsWritten int                `json:"listings_written"`
	Categories      []CategoryStatsDTO `json:"categories"`
}
