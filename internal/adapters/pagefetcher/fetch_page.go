package pagefetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"property-listings-puller/internal/contextkeys"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"syscall"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

type redirectKey struct{}

// redirectRecord запоминает статус первого редиректа одного запроса
type redirectRecord struct {
	status int
}

func (a *CollyFetcherAdapter) onRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= a.maxRedirects {
		return http.ErrUseLastResponse
	}
	if rec, ok := req.Context().Value(redirectKey{}).(*redirectRecord); ok && rec.status == 0 && req.Response != nil {
		rec.status = req.Response.StatusCode
	}
	return nil
}

// Fetch выполняет один GET. Ответ с кодом ошибки HTTP возвращается как страница
// со StatusCode, ошибкой считаются только сбои транспорта.
func (a *CollyFetcherAdapter) Fetch(ctx context.Context, pageURL string) (*port.FetchedPage, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "CollyFetcherAdapter"})

	rec := &redirectRecord{}
	collector := a.collector.Clone()
	collector.Context = context.WithValue(ctx, redirectKey{}, rec)

	var page *port.FetchedPage
	var parseErr error

	collector.OnRequest(func(r *colly.Request) {
		logger.Debug("Visiting", port.Fields{"url": r.URL.String()})
	})

	collector.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			parseErr = fmt.Errorf("parse %s: %w", pageURL, err)
			return
		}
		page = &port.FetchedPage{
			URL:            pageURL,
			FinalURL:       r.Request.URL.String(),
			StatusCode:     r.StatusCode,
			RedirectStatus: rec.status,
			Document:       doc,
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		logger.Debug("Request failed", port.Fields{
			"url":    pageURL,
			"status": r.StatusCode,
			"error":  err.Error(),
		})
	})

	visitErr := collector.Visit(pageURL)
	collector.Wait()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if visitErr != nil {
		if isConnectionTerminated(visitErr) {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnectionTerminated, pageURL, visitErr)
		}
		return nil, fmt.Errorf("get %s: %w", pageURL, visitErr)
	}
	if parseErr != nil {
		return nil, parseErr
	}
	if page == nil {
		return nil, fmt.Errorf("get %s: no response received", pageURL)
	}
	return page, nil
}

// isConnectionTerminated - соединение оборвалось после начала ответа
func isConnectionTerminated(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET)
}
