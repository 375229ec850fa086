package usecase

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	usecases_port "property-listings-puller/internal/core/port/usecases"
	"time"

	"github.com/google/uuid"
)

// PullListingsUseCase - запуск целиком: подготовка итогового файла,
// последовательный обход категорий, постобработка и отчет
type PullListingsUseCase struct {
	site        port.SiteAdapterPort
	settings    domain.SiteSettings
	opts        domain.RunOptions
	layout      domain.Layout
	writer      port.TableWriterPort
	confirmer   port.ConfirmerPort
	checkpoints port.CheckpointStorePort
	crawler     usecases_port.CrawlListingsPort
	cleaner     usecases_port.CleanTablePort // nil, если постобработка в конце не нужна
	reporters   []port.RunReporterPort
}

// NewPullListingsUseCase создает новый экземпляр PullListingsUseCase
func NewPullListingsUseCase(
	site port.SiteAdapterPort,
	settings domain.SiteSettings,
	opts domain.RunOptions,
	layout domain.Layout,
	writer port.TableWriterPort,
	confirmer port.ConfirmerPort,
	checkpoints port.CheckpointStorePort,
	crawler usecases_port.CrawlListingsPort,
	cleaner usecases_port.CleanTablePort,
	reporters ...port.RunReporterPort,
) *PullListingsUseCase {
	return &PullListingsUseCase{
		site:        site,
		settings:    settings,
		opts:        opts,
		layout:      layout,
		writer:      writer,
		confirmer:   confirmer,
		checkpoints: checkpoints,
		crawler:     crawler,
		cleaner:     cleaner,
		reporters:   reporters,
	}
}

// Execute выполняет запуск. Отчет возвращается и при фатальной ошибке.
func (uc *PullListingsUseCase) Execute(ctx context.Context, runID uuid.UUID) (*domain.RunReport, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "PullListings",
		"site":     uc.site.Name(),
		"run_id":   runID.String(),
	})
	ctx = contextkeys.ContextWithRunID(ctx, runID)

	report := &domain.RunReport{
		RunID:       runID,
		Site:        uc.site.Name(),
		Destination: uc.writer.Path(),
		StartedAt:   time.Now().UTC(),
	}

	ucLogger.Info("Starting run", port.Fields{
		"destination": uc.writer.Path(),
		"mode":        uc.opts.WriteMode,
		"columns":     len(uc.layout.Columns),
	})

	runErr := uc.run(ctx, report, ucLogger)

	report.FinishedAt = time.Now().UTC()
	if runErr != nil {
		report.Aborted = true
		report.Error = runErr.Error()
		ucLogger.Error("Run aborted", runErr, port.Fields{"listings_written": report.ListingsWritten()})
	} else {
		ucLogger.Info("Run finished", port.Fields{
			"pages_written":    report.PagesWritten(),
			"listings_written": report.ListingsWritten(),
			"duration":         report.FinishedAt.Sub(report.StartedAt).String(),
		})
	}

	// отчет публикуется и после отмены контекста
	reportCtx := context.WithoutCancel(ctx)
	for _, reporter := range uc.reporters {
		if err := reporter.ReportRun(reportCtx, report); err != nil {
			ucLogger.Warn("Could not publish run report", port.Fields{"error": err.Error()})
		}
	}
	return report, runErr
}

func (uc *PullListingsUseCase) run(ctx context.Context, report *domain.RunReport, logger port.LoggerPort) error {
	if err := uc.prepareDestination(ctx, logger); err != nil {
		return err
	}

	for _, category := range uc.settings.CrawlCategories() {
		startPage, err := uc.startPage(ctx, category, logger)
		if err != nil {
			return err
		}
		if uc.opts.EndPage > 0 && startPage > uc.opts.EndPage {
			logger.Info("Category already crawled up to end page, skipping", port.Fields{"category": category.Label, "start_page": startPage})
			continue
		}

		stats, err := uc.crawler.Execute(ctx, report.RunID, category, startPage)
		if stats != nil {
			report.Categories = append(report.Categories, *stats)
		}
		if err != nil {
			return fmt.Errorf("category %q: %w", category.Label, err)
		}
	}

	if uc.cleaner != nil {
		rows, err := uc.cleaner.Execute(ctx)
		if err != nil {
			if errors.Is(err, domain.ErrConfirmationDeclined) || domain.IsFatal(err) {
				return err
			}
			logger.Error("Post-processing of the output failed, raw table is kept", err, nil)
			return nil
		}
		logger.Info("Cleaned table written", port.Fields{"rows": rows})
	}
	return nil
}

// prepareDestination применяет режим записи к уже существующему файлу.
// Без подтверждения файл не удаляется и не дописывается.
func (uc *PullListingsUseCase) prepareDestination(ctx context.Context, logger port.LoggerPort) error {
	if uc.opts.Resume && uc.opts.WriteMode != domain.WriteAppend {
		return fmt.Errorf("resume requires %q write mode, got %q", domain.WriteAppend, uc.opts.WriteMode)
	}

	exists, err := uc.writer.Exists()
	if err != nil {
		return fmt.Errorf("check destination %s: %w", uc.writer.Path(), err)
	}
	if !exists {
		return nil
	}

	switch uc.opts.WriteMode {
	case domain.WriteOverwrite:
		ok, err := uc.confirmer.Confirm(ctx, fmt.Sprintf("File %s already exists and will be deleted. Continue?", uc.writer.Path()))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: overwrite %s", domain.ErrConfirmationDeclined, uc.writer.Path())
		}
		if err := uc.writer.Remove(); err != nil {
			return fmt.Errorf("remove existing destination %s: %w", uc.writer.Path(), err)
		}
		logger.Info("Existing destination removed", port.Fields{"destination": uc.writer.Path()})

	default:
		ok, err := uc.confirmer.Confirm(ctx, fmt.Sprintf("File %s already exists, new rows will be appended to it. Continue?", uc.writer.Path()))
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: append to %s", domain.ErrConfirmationDeclined, uc.writer.Path())
		}

		header, err := uc.writer.Header()
		if err != nil {
			return fmt.Errorf("read destination header: %w", err)
		}
		if len(header) > 0 && !uc.layout.Equal(header) {
			return &domain.SchemaDriftError{Columns: columnsDiff(header, uc.layout.Columns)}
		}
		logger.Info("Appending to existing destination", port.Fields{"destination": uc.writer.Path()})
	}
	return nil
}

// startPage учитывает отметку прошлого запуска, если запрошено продолжение
func (uc *PullListingsUseCase) startPage(ctx context.Context, category domain.Category, logger port.LoggerPort) (int, error) {
	start := uc.opts.StartPage
	if start < 1 {
		start = 1
	}
	if !uc.opts.Resume {
		return start, nil
	}

	key := domain.CheckpointKey{Site: uc.site.Name(), Category: category.Label}
	last, err := uc.checkpoints.LastPage(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read checkpoint for category %q: %w", category.Label, err)
	}
	if last >= start {
		logger.Info("Resuming category from checkpoint", port.Fields{"category": category.Label, "last_page": last})
		return last + 1, nil
	}
	return start, nil
}

// columnsDiff называет колонки, которыми различаются заголовок файла и layout запуска
func columnsDiff(header, columns []string) []string {
	inHeader := make(map[string]bool, len(header))
	for _, h := range header {
		inHeader[h] = true
	}
	inLayout := make(map[string]bool, len(columns))
	for _, c := range columns {
		inLayout[c] = true
	}

	var diff []string
	for _, h := range header {
		if !inLayout[h] {
			diff = append(diff, h)
		}
	}
	for _, c := range columns {
		if !inHeader[c] {
			diff = append(diff, c)
		}
	}
	if len(diff) == 0 {
		// тот же набор колонок в другом порядке
		return append([]string(nil), header...)
	}
	return diff
}
