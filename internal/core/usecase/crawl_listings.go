package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const (
	defaultMaxDetailAttempts   = 20
	defaultMaxListPageAttempts = 3
)

// CrawlListingsUseCase обходит страницы одной категории: страница списка,
// объявления на ней, страницы объявлений, сверка колонок и дозапись страницы в таблицу
type CrawlListingsUseCase struct {
	site        port.SiteAdapterPort
	settings    domain.SiteSettings
	opts        domain.RunOptions
	fetcher     port.PageFetcherPort
	resolver    *URLResolver
	reconciler  *SchemaReconciler
	writer      port.TableWriterPort
	errorLog    port.ErrorLogPort
	checkpoints port.CheckpointStorePort
	sinks       []port.PageSinkPort

	// sleep заменяется в тестах
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCrawlListingsUseCase создает новый экземпляр CrawlListingsUseCase
func NewCrawlListingsUseCase(
	site port.SiteAdapterPort,
	settings domain.SiteSettings,
	opts domain.RunOptions,
	fetcher port.PageFetcherPort,
	resolver *URLResolver,
	reconciler *SchemaReconciler,
	writer port.TableWriterPort,
	errorLog port.ErrorLogPort,
	checkpoints port.CheckpointStorePort,
	sinks ...port.PageSinkPort,
) *CrawlListingsUseCase {
	if opts.MaxDetailAttempts <= 0 {
		opts.MaxDetailAttempts = defaultMaxDetailAttempts
	}
	if opts.MaxListPageAttempts <= 0 {
		opts.MaxListPageAttempts = defaultMaxListPageAttempts
	}
	return &CrawlListingsUseCase{
		site:        site,
		settings:    settings,
		opts:        opts,
		fetcher:     fetcher,
		resolver:    resolver,
		reconciler:  reconciler,
		writer:      writer,
		errorLog:    errorLog,
		checkpoints: checkpoints,
		sinks:       sinks,
		sleep:       sleepContext,
	}
}

// pageState - состояние одной страницы, отбрасывается после записи
type pageState struct {
	number   int
	url      string
	listings []domain.Listing
	done     bool
	reason   domain.StopReason
}

// Execute обходит категорию начиная со startPage. Возвращает статистику даже при ошибке.
// Ошибка возвращается только для условий, прерывающих весь запуск.
func (uc *CrawlListingsUseCase) Execute(ctx context.Context, runID uuid.UUID, category domain.Category, startPage int) (*domain.CategoryStats, error) {
	ucLogger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "CrawlListings",
		"site":     uc.site.Name(),
		"category": category.Label,
	})

	if startPage < 1 {
		startPage = 1
	}
	stats := &domain.CategoryStats{Category: category.Label, FirstPage: startPage}
	previews := uc.settings.ListingPreviews

	ucLogger.Info("Starting category crawl", port.Fields{"start_page": startPage, "end_page": uc.opts.EndPage})

	for number := startPage; ; number++ {
		if err := ctx.Err(); err != nil {
			stats.StopReason = domain.StopCancelled
			return stats, err
		}

		state := &pageState{number: number}
		pageURL, err := uc.pageURL(category, number)
		if err != nil {
			stats.StopReason = domain.StopAborted
			return stats, err
		}
		state.url = pageURL
		pageLogger := ucLogger.WithFields(port.Fields{"page": number, "url": pageURL})
		pageLogger.Info("Searching listings on page", nil)

		selections, err := uc.fetchListPage(ctx, state, pageLogger)
		if err != nil {
			stats.StopReason = domain.StopCancelled
			return stats, err
		}
		if state.done {
			stats.StopReason = state.reason
			break
		}

		for i, sel := range selections {
			listing, skipped, err := uc.processListing(ctx, state, category, i, sel, &previews, stats, pageLogger)
			if err != nil {
				stats.StopReason = domain.StopAborted
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					stats.StopReason = domain.StopCancelled
				}
				return stats, err
			}
			if skipped {
				stats.ListingsSkipped++
				continue
			}
			state.listings = append(state.listings, listing)
		}

		if err := uc.persistPage(ctx, runID, category, state, pageLogger); err != nil {
			stats.StopReason = domain.StopAborted
			return stats, err
		}
		if len(state.listings) > 0 {
			stats.PagesWritten++
			stats.ListingsWritten += len(state.listings)
		}
		stats.LastPage = number

		if uc.opts.EndPage > 0 && number >= uc.opts.EndPage {
			stats.StopReason = domain.StopEndPage
			break
		}
	}

	ucLogger.Info("Category crawl finished", port.Fields{
		"stop_reason":      stats.StopReason,
		"pages_written":    stats.PagesWritten,
		"listings_written": stats.ListingsWritten,
		"listings_skipped": stats.ListingsSkipped,
		"detail_failures":  stats.DetailFailures,
	})
	return stats, nil
}

// pageURL строит адрес страницы списка: параметром запроса или сегментом пути
func (uc *CrawlListingsUseCase) pageURL(category domain.Category, number int) (string, error) {
	base := strings.TrimRight(uc.settings.RootURL, "/")
	if slug := strings.Trim(category.Slug, "/"); slug != "" {
		base += "/" + slug
	}
	if uc.settings.PageInPath {
		base += "/" + strconv.Itoa(number)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("crawl: invalid listing page url %q: %w", base, err)
	}
	if !uc.settings.PageInPath {
		q := u.Query()
		q.Set(uc.settings.PageParam, strconv.Itoa(number))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// fetchListPage получает страницу списка и находит на ней объявления.
// Условия конца пагинации выставляют state.done, ошибка возвращается только при отмене контекста.
func (uc *CrawlListingsUseCase) fetchListPage(ctx context.Context, state *pageState, logger port.LoggerPort) ([]*goquery.Selection, error) {
	var page *port.FetchedPage
	var lastErr error

	for attempt := 1; attempt <= uc.opts.MaxListPageAttempts; attempt++ {
		page, lastErr = uc.fetcher.Fetch(ctx, state.url)
		if lastErr == nil && page.StatusCode < http.StatusInternalServerError {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(lastErr, domain.ErrConnectionTerminated) {
			logger.Info("Connection terminated on listing page, treating as end of pagination", port.Fields{"error": lastErr.Error()})
			state.done, state.reason = true, domain.StopConnectionClosed
			return nil, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("unexpected status %d", page.StatusCode)
		}
		logger.Warn("Listing page fetch failed", port.Fields{"attempt": attempt, "error": lastErr.Error()})
		page = nil
		if attempt < uc.opts.MaxListPageAttempts {
			if err := uc.sleep(ctx, uc.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	if page == nil {
		failure := &domain.TransientFetchError{URL: state.url, Attempts: uc.opts.MaxListPageAttempts, Err: lastErr}
		logger.Error("Giving up on listing page, ending category", failure, nil)
		uc.record(ctx, domain.FailureRecord{Page: state.number, URL: state.url, Stage: "list_page", Attempt: uc.opts.MaxListPageAttempts, Err: failure})
		state.done, state.reason = true, domain.StopListPageFailed
		return nil, nil
	}

	selections, err := uc.site.LocateListings(page.Document)
	if err != nil {
		logger.Info("Listing container not found, ending category", port.Fields{"error": err.Error()})
		state.done, state.reason = true, domain.StopContainerMissing
		return nil, nil
	}
	if len(selections) == 0 {
		logger.Info("No listings on page, ending category", nil)
		state.done, state.reason = true, domain.StopEmptyPage
		return nil, nil
	}
	if page.Redirected() && state.number != 1 {
		logger.Info("Listing page redirected, ending category", port.Fields{
			"redirect_status": page.RedirectStatus,
			"final_url":       page.FinalURL,
		})
		state.done, state.reason = true, domain.StopRedirect
		return nil, nil
	}
	return selections, nil
}

// processListing собирает одно объявление. skipped=true - объявление не попадает в таблицу.
func (uc *CrawlListingsUseCase) processListing(
	ctx context.Context,
	state *pageState,
	category domain.Category,
	index int,
	sel *goquery.Selection,
	previews *bool,
	stats *domain.CategoryStats,
	logger port.LoggerPort,
) (domain.Listing, bool, error) {
	listing := domain.NewListing(state.number, category.Label)
	listingLogger := logger.WithFields(port.Fields{"listing_index": index})

	if *previews {
		fields, err := uc.site.ExtractPreview(sel)
		switch {
		case errors.Is(err, domain.ErrNotSupported):
			listingLogger.Warn("Site adapter does not extract previews, disabling them", nil)
			*previews = false
		case err != nil:
			failure := &domain.ExtractionError{Stage: "preview", Err: err}
			listingLogger.Warn("Preview extraction failed", port.Fields{"error": failure.Error()})
			uc.record(ctx, domain.FailureRecord{Category: category.Label, Page: state.number, URL: state.url, Stage: "preview", Err: failure})
			if uc.opts.FailFast {
				return listing, false, failure
			}
		}
		listing.Fields.Merge(fields)
	}

	candidate, err := uc.site.ExtractListingURL(sel)
	if err != nil {
		failure := &domain.ExtractionError{Stage: "url", Err: err}
		listingLogger.Warn("Could not find listing url, skipping listing", port.Fields{"error": failure.Error()})
		uc.record(ctx, domain.FailureRecord{Category: category.Label, Page: state.number, URL: state.url, Stage: "url", Err: failure})
		if uc.opts.FailFast {
			return listing, true, failure
		}
		return listing, true, nil
	}

	resolved, ok, err := uc.resolver.Resolve(candidate)
	switch {
	case errors.Is(err, domain.ErrOffSiteURL):
		stats.OffSiteSkipped++
		listingLogger.Warn("Listing url points to another site, skipping listing", port.Fields{"candidate": candidate})
		return listing, true, nil
	case err != nil:
		listingLogger.Error("Listing url cannot be resolved", err, port.Fields{"candidate": candidate})
		return listing, true, err
	case !ok:
		listingLogger.Debug("Listing has no url, skipping", nil)
		return listing, true, nil
	}
	listing.URL = resolved

	if !uc.settings.ListingPages {
		return listing, false, nil
	}

	details, err := uc.fetchDetails(ctx, listing, category, listingLogger.WithFields(port.Fields{"listing_url": resolved}))
	listing.Fields.Merge(details)
	if err != nil {
		if ctx.Err() != nil {
			return listing, false, ctx.Err()
		}
		stats.DetailFailures++
		if uc.opts.FailFast {
			return listing, false, err
		}
		// объявление остается с полями превью, метаданными и частью полей страницы
		return listing, false, nil
	}
	return listing, false, nil
}

// fetchDetails загружает страницу объявления с ограниченным числом попыток.
// Каждая неудачная попытка пишется в журнал ошибок. При ошибке извлечения
// возвращаются и поля, которые адаптер успел извлечь.
func (uc *CrawlListingsUseCase) fetchDetails(ctx context.Context, listing domain.Listing, category domain.Category, logger port.LoggerPort) (domain.Fields, error) {
	var lastErr error
	attempts := uc.opts.MaxDetailAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		page, err := uc.fetcher.Fetch(ctx, listing.URL)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil && page.StatusCode >= http.StatusBadRequest {
			err = fmt.Errorf("unexpected status %d", page.StatusCode)
		}

		if err == nil {
			fields, extractErr := uc.site.ExtractDetails(page.Document)
			if extractErr == nil {
				if attempt > 1 {
					logger.Info("Listing page fetched after retries", port.Fields{"attempt": attempt})
				}
				return fields, nil
			}
			if errors.Is(extractErr, domain.ErrNotSupported) {
				return nil, nil
			}
			// повторная загрузка той же разметки не поможет; извлеченные поля сохраняются
			failure := &domain.ExtractionError{Stage: "details", URL: listing.URL, Err: extractErr}
			logger.Warn("Listing details extraction failed", port.Fields{"error": failure.Error(), "partial_fields": len(fields)})
			uc.record(ctx, domain.FailureRecord{Category: category.Label, Page: listing.Page, URL: listing.URL, Stage: "details", Attempt: attempt, Err: failure})
			return fields, failure
		}

		lastErr = err
		uc.record(ctx, domain.FailureRecord{Category: category.Label, Page: listing.Page, URL: listing.URL, Stage: "detail_fetch", Attempt: attempt, Err: err})
		logger.Debug("Listing page fetch failed", port.Fields{"attempt": attempt, "error": err.Error()})

		if page != nil && (page.StatusCode == http.StatusNotFound || page.StatusCode == http.StatusGone) {
			logger.Warn("Listing is not available anymore, keeping preview fields", port.Fields{"status": page.StatusCode})
			return nil, &domain.TransientFetchError{URL: listing.URL, Attempts: attempt, Err: err}
		}
		if attempt < attempts {
			if err := uc.sleep(ctx, uc.opts.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	failure := &domain.TransientFetchError{URL: listing.URL, Attempts: attempts, Err: lastErr}
	logger.Warn("Skipping listing details after all attempts", port.Fields{"error": failure.Error()})
	return nil, failure
}

// persistPage сверяет колонки и дописывает страницу в таблицу. Пустая страница не пишется.
func (uc *CrawlListingsUseCase) persistPage(ctx context.Context, runID uuid.UUID, category domain.Category, state *pageState, logger port.LoggerPort) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(state.listings) == 0 {
		logger.Warn("All listings on page were skipped, nothing to write", nil)
		// страница пройдена, продолжение начнется со следующей
		uc.saveCheckpoint(ctx, runID, category, state.number, logger)
		return nil
	}

	batch := state.listings
	if uc.settings.Clean == domain.CleanPerPage {
		cleaned, err := uc.site.Clean(batch)
		switch {
		case err == nil:
			batch = cleaned
		case errors.Is(err, domain.ErrNotSupported):
		default:
			failure := &domain.ExtractionError{Stage: "clean", URL: state.url, Err: err}
			logger.Error("Page cleaning failed, writing raw listings", failure, nil)
			uc.record(ctx, domain.FailureRecord{Category: category.Label, Page: state.number, URL: state.url, Stage: "clean", Err: failure})
		}
	}

	rows, err := uc.reconciler.Reconcile(batch)
	if err != nil {
		logger.Error("Schema drift detected, aborting run", err, nil)
		return err
	}

	header := uc.reconciler.Layout().Columns
	if err := uc.writer.AppendPage(ctx, header, rows); err != nil {
		return fmt.Errorf("crawl: write page %d to %s: %w", state.number, uc.writer.Path(), err)
	}
	logger.Info("Page saved", port.Fields{"rows": len(rows)})

	uc.saveCheckpoint(ctx, runID, category, state.number, logger)

	pageBatch := domain.PageBatch{
		Site:     uc.site.Name(),
		Category: category.Label,
		Page:     state.number,
		Layout:   uc.reconciler.Layout(),
		Rows:     rows,
	}
	for _, sink := range uc.sinks {
		if err := sink.PageFlushed(ctx, runID, pageBatch); err != nil {
			logger.Warn("Page sink failed", port.Fields{"error": err.Error()})
		}
	}
	return nil
}

func (uc *CrawlListingsUseCase) saveCheckpoint(ctx context.Context, runID uuid.UUID, category domain.Category, page int, logger port.LoggerPort) {
	key := domain.CheckpointKey{Site: uc.site.Name(), Category: category.Label}
	if err := uc.checkpoints.SavePage(ctx, key, page, runID); err != nil {
		logger.Warn("Could not save checkpoint", port.Fields{"error": err.Error()})
	}
}

func (uc *CrawlListingsUseCase) record(ctx context.Context, rec domain.FailureRecord) {
	rec.Time = time.Now().UTC()
	rec.Site = uc.site.Name()
	if err := uc.errorLog.Record(ctx, rec); err != nil {
		contextkeys.LoggerFromContext(ctx).Warn("Could not write to error log", port.Fields{"error": err.Error()})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
