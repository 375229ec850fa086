package usecase

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testSite - адаптер для разметки вида
// <ul id="listings"><li data-url="/a" data-title="A"></li></ul> и
// <h1>title</h1><span class="price">1000</span> на странице объявления
type testSite struct {
	previews    bool
	extraDetail domain.Fields
	detailErr   error
	partial     domain.Fields // поля, возвращаемые вместе с detailErr
	clean       func([]domain.Listing) ([]domain.Listing, error)
}

func (s *testSite) Name() string              { return "example" }
func (s *testSite) DeclaredColumns() []string { return []string{"title", "price"} }

func (s *testSite) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	list := doc.Find("ul#listings")
	if list.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	var out []*goquery.Selection
	list.Find("li").Each(func(_ int, s *goquery.Selection) { out = append(out, s) })
	return out, nil
}

func (s *testSite) ExtractPreview(sel *goquery.Selection) (domain.Fields, error) {
	if !s.previews {
		return nil, domain.ErrNotSupported
	}
	title, ok := sel.Attr("data-title")
	if !ok {
		return nil, errors.New("no title on card")
	}
	return domain.Fields{"title": title}, nil
}

func (s *testSite) ExtractListingURL(sel *goquery.Selection) (string, error) {
	if _, broken := sel.Attr("data-broken"); broken {
		return "", errors.New("card markup changed")
	}
	href, _ := sel.Attr("data-url")
	return href, nil
}

func (s *testSite) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	if s.detailErr != nil {
		return s.partial, s.detailErr
	}
	fields := domain.Fields{}
	if t := doc.Find("h1").Text(); t != "" {
		fields["title"] = t
	}
	if p := doc.Find("span.price").Text(); p != "" {
		fields["price"] = p
	}
	fields.Merge(s.extraDetail)
	return fields, nil
}

func (s *testSite) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	if s.clean == nil {
		return nil, domain.ErrNotSupported
	}
	return s.clean(batch)
}

// fakeFetcher отдает заранее заданные ответы по адресу
type fakeFetcher struct {
	mu     sync.Mutex
	routes map[string]func(attempt int) (*port.FetchedPage, error)
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		routes: make(map[string]func(int) (*port.FetchedPage, error)),
		calls:  make(map[string]int),
	}
}

func (f *fakeFetcher) html(t *testing.T, url, body string) {
	f.routes[url] = func(int) (*port.FetchedPage, error) { return page(t, url, 200, body), nil }
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*port.FetchedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[url]++
	attempt := f.calls[url]
	route, ok := f.routes[url]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("dial tcp: no route to %s", url)
	}
	return route(attempt)
}

func (f *fakeFetcher) callsTo(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func page(t *testing.T, url string, status int, body string) *port.FetchedPage {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return &port.FetchedPage{URL: url, FinalURL: url, StatusCode: status, Document: doc}
}

func listHTML(items ...string) string {
	return `<html><body><ul id="listings">` + strings.Join(items, "") + `</ul></body></html>`
}

func item(url, title string) string {
	return fmt.Sprintf(`<li data-url="%s" data-title="%s"></li>`, url, title)
}

func detailHTML(title, price string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><span class="price">%s</span></body></html>`, title, price)
}

// memTable - таблица в памяти
type memTable struct {
	path      string
	header    []string
	rows      [][]string
	exists    bool
	removed   bool
	appendErr error
	appends   int
}

func (m *memTable) Path() string              { return m.path }
func (m *memTable) Exists() (bool, error)     { return m.exists, nil }
func (m *memTable) Header() ([]string, error) { return m.header, nil }

func (m *memTable) Remove() error {
	m.exists, m.header, m.rows, m.removed = false, nil, nil, true
	return nil
}

func (m *memTable) AppendPage(_ context.Context, header []string, rows [][]string) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	if !m.exists || len(m.header) == 0 {
		m.header = append([]string(nil), header...)
		m.exists = true
	}
	m.rows = append(m.rows, rows...)
	m.appends++
	return nil
}

func (m *memTable) ReadAll(context.Context) ([]string, [][]string, error) {
	return m.header, m.rows, nil
}

type memErrorLog struct {
	records []domain.FailureRecord
}

func (l *memErrorLog) Record(_ context.Context, rec domain.FailureRecord) error {
	l.records = append(l.records, rec)
	return nil
}

func (l *memErrorLog) stage(stage string) []domain.FailureRecord {
	var out []domain.FailureRecord
	for _, r := range l.records {
		if r.Stage == stage {
			out = append(out, r)
		}
	}
	return out
}

type memCheckpoints struct {
	pages map[domain.CheckpointKey]int
	saved []int
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{pages: make(map[domain.CheckpointKey]int)}
}

func (c *memCheckpoints) LastPage(_ context.Context, key domain.CheckpointKey) (int, error) {
	return c.pages[key], nil
}

func (c *memCheckpoints) SavePage(_ context.Context, key domain.CheckpointKey, page int, _ uuid.UUID) error {
	c.pages[key] = page
	c.saved = append(c.saved, page)
	return nil
}

type recordingSink struct {
	batches []domain.PageBatch
	err     error
}

func (s *recordingSink) PageFlushed(_ context.Context, _ uuid.UUID, batch domain.PageBatch) error {
	s.batches = append(s.batches, batch)
	return s.err
}

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

const testRoot = "https://example.test"

func exampleSettings() domain.SiteSettings {
	return domain.SiteSettings{
		Name:             "example",
		RootURL:          testRoot,
		PageParam:        "page",
		Columns:          []string{"title", "price", "url"},
		URLColumn:        "url",
		MetadataPosition: domain.MetadataLast,
		ListingPreviews:  true,
		ListingPages:     true,
		Clean:            domain.CleanPerPage,
	}
}

type crawlFixture struct {
	site        *testSite
	settings    domain.SiteSettings
	opts        domain.RunOptions
	fetcher     *fakeFetcher
	table       *memTable
	errorLog    *memErrorLog
	checkpoints *memCheckpoints
	sink        *recordingSink
}

func newCrawlFixture() *crawlFixture {
	return &crawlFixture{
		site:        &testSite{},
		settings:    exampleSettings(),
		opts:        domain.RunOptions{StartPage: 1, WriteMode: domain.WriteAppend},
		fetcher:     newFakeFetcher(),
		table:       &memTable{path: "out.csv"},
		errorLog:    &memErrorLog{},
		checkpoints: newMemCheckpoints(),
		sink:        &recordingSink{},
	}
}

func (f *crawlFixture) layout() domain.Layout {
	return BuildLayout(f.settings, f.site.DeclaredColumns())
}

func (f *crawlFixture) build(t *testing.T) *CrawlListingsUseCase {
	t.Helper()
	resolver, err := NewURLResolver(f.settings.RootURL)
	require.NoError(t, err)
	uc := NewCrawlListingsUseCase(
		f.site, f.settings, f.opts, f.fetcher, resolver,
		NewSchemaReconciler(f.layout()),
		f.table, f.errorLog, f.checkpoints, f.sink,
	)
	uc.sleep = noSleep
	return uc
}
