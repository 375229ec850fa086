package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key string
	msg amqp.Publishing
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("publish without deadline")
	}
	f.sent = append(f.sent, published{key: routingKey, msg: msg})
	return f.err
}

func TestPageFlushed_PublishesURLs(t *testing.T) {
	pub := &fakePublisher{}
	adapter, err := NewCrawlEventsAdapter(pub)
	require.NoError(t, err)
	runID := uuid.New()

	err = adapter.PageFlushed(context.Background(), runID, domain.PageBatch{
		Site:   "zingat",
		Page:   4,
		Layout: domain.Layout{Columns: []string{"title", "url"}, URLColumn: "url"},
		Rows:   [][]string{{"A", "https://www.zingat.com/a"}, {"B", ""}},
	})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	assert.Equal(t, RoutingKeyPageFlushed, pub.sent[0].key)
	assert.Equal(t, amqp.Persistent, pub.sent[0].msg.DeliveryMode)
	assert.Equal(t, runID.String(), pub.sent[0].msg.Headers["x-run-id"])

	var dto PageFlushedDTO
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &dto))
	assert.Equal(t, 2, dto.Rows)
	assert.Equal(t, []string{"https://www.zingat.com/a"}, dto.URLs)
}

func TestReportRun(t *testing.T) {
	pub := &fakePublisher{}
	adapter, err := NewCrawlEventsAdapter(pub)
	require.NoError(t, err)

	report := &domain.RunReport{
		RunID:      uuid.New(),
		Site:       "domiporta",
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
		Categories: []domain.CategoryStats{
			{Category: "Mieszkania", ListingsWritten: 3, StopReason: domain.StopEmptyPage},
			{Category: "Domy", ListingsWritten: 2, StopReason: domain.StopRedirect},
		},
	}
	require.NoError(t, adapter.ReportRun(context.Background(), report))

	var dto RunReportDTO
	require.NoError(t, json.Unmarshal(pub.sent[0].msg.Body, &dto))
	assert.Equal(t, 5, dto.ListingsWritten)
	assert.Equal(t, "redirect", dto.Categories[1].StopReason)
}

func TestReportRun_PublishError(t *testing.T) {
	adapter, err := NewCrawlEventsAdapter(&fakePublisher{err: errors.New("channel closed")})
	require.NoError(t, err)
	err = adapter.ReportRun(context.Background(), &domain.RunReport{})
	assert.ErrorContains(t, err, "channel closed")
}

type recordingLogger struct {
	fields port.Fields
	err    error
}

func (r *recordingLogger) Info(string, port.Fields)      {}
func (r *recordingLogger) Warn(string, port.Fields)      {}
func (r *recordingLogger) Debug(_ string, f port.Fields) { r.fields = f }
func (r *recordingLogger) Error(_ string, err error, f port.Fields) {
	r.err, r.fields = err, f
}
func (r *recordingLogger) WithFields(port.Fields) port.LoggerPort { return r }

func TestPkgLoggerBridge(t *testing.T) {
	rec := &recordingLogger{}
	bridge := NewPkgLoggerBridge(rec)

	bridge.Debug("Declaring exchange", "name", "listings", "type", "topic", "dangling")
	assert.Equal(t, port.Fields{"name": "listings", "type": "topic"}, rec.fields)

	bridge.Error(errors.New("boom"), "Reconnect failed", 42, "skipped")
	assert.EqualError(t, rec.err, "boom")
	assert.Empty(t, rec.fields)
}
