package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	RoutingKeyPageFlushed = "listings.page_flushed"
	RoutingKeyRunReport   = "listings.run_finished"

	publishTimeout = 10 * time.Second
)

// publisher - часть rabbitmq_producer.Publisher, которая нужна адаптеру
type publisher interface {
	Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error
}

// CrawlEventsAdapter публикует события обхода: записанные страницы и итоги запуска
type CrawlEventsAdapter struct {
	producer publisher
}

func NewCrawlEventsAdapter(producer publisher) (*CrawlEventsAdapter, error) {
	if producer == nil {
		return nil, errors.New("rabbitmq adapter: producer cannot be nil")
	}
	return &CrawlEventsAdapter{producer: producer}, nil
}

func (a *CrawlEventsAdapter) publish(ctx context.Context, routingKey string, runID uuid.UUID, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: marshal %s: %w", routingKey, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    uuid.NewString(),
		Headers:      amqp.Table{"x-run-id": runID.String()},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := a.producer.Publish(publishCtx, routingKey, msg); err != nil {
		return fmt.Errorf("rabbitmq adapter: publish %s: %w", routingKey, err)
	}
	return nil
}

// PageFlushed реализует PageSinkPort
func (a *CrawlEventsAdapter) PageFlushed(ctx context.Context, runID uuid.UUID, batch domain.PageBatch) error {
	dto := PageFlushedDTO{
		RunID:    runID,
		Site:     batch.Site,
		Category: batch.Category,
		Page:     batch.Page,
		Rows:     len(batch.Rows),
	}
	if pos, ok := batch.Layout.Index()[batch.Layout.URLColumn]; ok {
		for _, row := range batch.Rows {
			if pos < len(row) && row[pos] != "" {
				dto.URLs = append(dto.URLs, row[pos])
			}
		}
	}
	return a.publish(ctx, RoutingKeyPageFlushed, runID, dto)
}

// ReportRun реализует RunReporterPort
func (a *CrawlEventsAdapter) ReportRun(ctx context.Context, report *domain.RunReport) error {
	adapterLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"component":   "CrawlEventsAdapter",
		"routing_key": RoutingKeyRunReport,
	})

	dto := RunReportDTO{
		RunID:           report.RunID,
		Site:            report.Site,
		Destination:     report.Destination,
		StartedAt:       report.StartedAt,
		FinishedAt:      report.FinishedAt,
		Aborted:         report.Aborted,
		Error:           report.Error,
		ListingsWritten: report.ListingsWritten(),
	}
	for _, c := range report.Categories {
		dto.Categories = append(dto.Categories, CategoryStatsDTO{
			Category:        c.Category,
			FirstPage:       c.FirstPage,
			LastPage:        c.LastPage,
			PagesWritten:    c.PagesWritten,
			ListingsWritten: c.ListingsWritten,
			ListingsSkipped: c.ListingsSkipped,
			OffSiteSkipped:  c.OffSiteSkipped,
			DetailFailures:  c.DetailFailures,
			StopReason:      string(c.StopReason),
		})
	}

	if err := a.publish(ctx, RoutingKeyRunReport, report.RunID, dto); err != nil {
		adapterLogger.Error("Failed to publish run report", err, nil)
		return err
	}
	adapterLogger.Info("Run report published", nil)
	return nil
}
