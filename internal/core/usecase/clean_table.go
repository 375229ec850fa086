package usecase

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
)

// CleanTableUseCase перечитывает итоговую таблицу после обхода, прогоняет ее
// через постобработку сайта и пишет результат в отдельный файл.
// Исходная таблица никогда не переписывается.
type CleanTableUseCase struct {
	site        port.SiteAdapterPort
	rawLayout   domain.Layout
	reader      port.TableReaderPort
	destination port.TableWriterPort
	confirmer   port.ConfirmerPort
	reconciler  *SchemaReconciler
}

// NewCleanTableUseCase создает новый экземпляр CleanTableUseCase
func NewCleanTableUseCase(
	site port.SiteAdapterPort,
	rawLayout domain.Layout,
	cleanedLayout domain.Layout,
	reader port.TableReaderPort,
	destination port.TableWriterPort,
	confirmer port.ConfirmerPort,
) *CleanTableUseCase {
	return &CleanTableUseCase{
		site:        site,
		rawLayout:   rawLayout,
		reader:      reader,
		destination: destination,
		confirmer:   confirmer,
		reconciler:  NewSchemaReconciler(cleanedLayout),
	}
}

// Execute возвращает количество записанных строк
func (uc *CleanTableUseCase) Execute(ctx context.Context) (int, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":    "CleanTable",
		"site":        uc.site.Name(),
		"destination": uc.destination.Path(),
	})

	header, rows, err := uc.reader.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clean: read raw table: %w", err)
	}
	if len(rows) == 0 {
		ucLogger.Info("Raw table is empty, nothing to clean", nil)
		return 0, nil
	}

	listings := ListingsFromRows(uc.rawLayout, header, rows)
	cleaned, err := uc.site.Clean(listings)
	if err != nil {
		if errors.Is(err, domain.ErrNotSupported) {
			ucLogger.Info("Site has no post-processing, skipping", nil)
			return 0, nil
		}
		return 0, &domain.ExtractionError{Stage: "clean", Err: err}
	}

	out, err := uc.reconciler.Reconcile(cleaned)
	if err != nil {
		return 0, err
	}

	exists, err := uc.destination.Exists()
	if err != nil {
		return 0, err
	}
	if exists {
		ok, err := uc.confirmer.Confirm(ctx, fmt.Sprintf("File %s already exists and will be replaced with the cleaned table. Continue?", uc.destination.Path()))
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("%w: replace %s", domain.ErrConfirmationDeclined, uc.destination.Path())
		}
		if err := uc.destination.Remove(); err != nil {
			return 0, err
		}
	}

	if err := uc.destination.AppendPage(ctx, uc.reconciler.Layout().Columns, out); err != nil {
		return 0, fmt.Errorf("clean: write cleaned table: %w", err)
	}
	ucLogger.Info("Raw table cleaned", port.Fields{"rows_in": len(rows), "rows_out": len(out)})
	return len(out), nil
}
