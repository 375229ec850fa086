package usecase

import (
	"context"
	"errors"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listURL(n int) string {
	return fmt.Sprintf("%s?page=%d", testRoot, n)
}

var noCategory = domain.Category{}

func TestCrawl_TwoListingsOneFailingDetail(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "Title1"), item("/b", "Title2")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.routes[testRoot+"/a"] = func(int) (*port.FetchedPage, error) {
		return nil, errors.New("read tcp: connection reset by peer")
	}
	f.fetcher.html(t, testRoot+"/b", detailHTML("Flat A", "1000"))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"title", "price", "url"}, f.table.header)
	assert.Equal(t, [][]string{
		{"", "", testRoot + "/a"},
		{"Flat A", "1000", testRoot + "/b"},
	}, f.table.rows)
	assert.Equal(t, 1, f.table.appends)

	assert.Equal(t, 20, f.fetcher.callsTo(testRoot+"/a"))
	failures := f.errorLog.stage("detail_fetch")
	require.Len(t, failures, 20)
	assert.Equal(t, testRoot+"/a", failures[19].URL)
	assert.Equal(t, 20, failures[19].Attempt)
	assert.Equal(t, "example", failures[0].Site)

	assert.Equal(t, domain.StopEmptyPage, stats.StopReason)
	assert.Equal(t, 1, stats.PagesWritten)
	assert.Equal(t, 2, stats.ListingsWritten)
	assert.Equal(t, 1, stats.DetailFailures)
	assert.Equal(t, 0, f.fetcher.callsTo(listURL(3)))
}

func TestCrawl_PreviewFieldsSurviveDetailFailure(t *testing.T) {
	f := newCrawlFixture()
	f.site.previews = true
	f.opts.MaxDetailAttempts = 3
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "Title1"), item("/b", "Title2")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/b", detailHTML("Flat A", "1000"))

	_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"Title1", "", testRoot + "/a"},
		{"Flat A", "1000", testRoot + "/b"},
	}, f.table.rows)
	assert.Equal(t, 3, f.fetcher.callsTo(testRoot+"/a"))
}

func TestCrawl_OffSiteListingSkipped(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("/a", ""), item("https://other.test/x", ""), item("c", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", detailHTML("A", "1"))
	f.fetcher.html(t, testRoot+"/c", detailHTML("C", "3"))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)

	require.Len(t, f.table.rows, 2)
	assert.Equal(t, testRoot+"/a", f.table.rows[0][2])
	assert.Equal(t, testRoot+"/c", f.table.rows[1][2])
	assert.Equal(t, 1, stats.OffSiteSkipped)
	assert.Equal(t, 1, stats.ListingsSkipped)
	assert.Equal(t, 0, f.fetcher.callsTo("https://other.test/x"))
}

func TestCrawl_FullySkippedPageStillCheckpointed(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("https://other.test/x", ""), item("", "ad")))
	f.fetcher.html(t, listURL(2), listHTML(item("/b", "")))
	f.fetcher.html(t, listURL(3), listHTML())
	f.fetcher.html(t, testRoot+"/b", detailHTML("B", "2"))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, f.checkpoints.saved)
	assert.Equal(t, 1, f.table.appends)
	assert.Equal(t, 1, stats.PagesWritten)
	assert.Len(t, f.sink.batches, 1)
}

func TestCrawl_ListingWithoutURLSkipped(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("", "ad"), item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", detailHTML("A", "1"))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Len(t, f.table.rows, 1)
	assert.Equal(t, 1, stats.ListingsSkipped)
}

func TestCrawl_EmptyFirstPageWritesNothing(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML())

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StopEmptyPage, stats.StopReason)
	assert.Equal(t, 0, f.table.appends)
	assert.False(t, f.table.exists)
	assert.Empty(t, f.checkpoints.saved)
}

func TestCrawl_ContainerMissingEndsCategory(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), `<html><body><p>Brak wyników</p></body></html>`)

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StopContainerMissing, stats.StopReason)
	assert.Equal(t, 0, f.table.appends)
}

func TestCrawl_RedirectAfterFirstPageEndsCategory(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.fetcher.routes[listURL(1)] = func(int) (*port.FetchedPage, error) {
		p := page(t, listURL(1), 200, listHTML(item("/a", "")))
		p.RedirectStatus = 302 // первая страница может перенаправлять
		return p, nil
	}
	f.fetcher.routes[listURL(2)] = func(int) (*port.FetchedPage, error) {
		p := page(t, listURL(2), 200, listHTML(item("/a", "")))
		p.RedirectStatus, p.FinalURL = 301, testRoot
		return p, nil
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StopRedirect, stats.StopReason)
	assert.Equal(t, 1, stats.PagesWritten)
	assert.Len(t, f.table.rows, 1)
}

func TestCrawl_ConnectionTerminatedOnListPageEndsCategory(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.routes[listURL(1)] = func(int) (*port.FetchedPage, error) {
		return nil, fmt.Errorf("%w: %s: unexpected EOF", domain.ErrConnectionTerminated, listURL(1))
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StopConnectionClosed, stats.StopReason)
	assert.Equal(t, 1, f.fetcher.callsTo(listURL(1)))
}

func TestCrawl_ConnectionTerminatedOnDetailIsRetried(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.routes[testRoot+"/a"] = func(attempt int) (*port.FetchedPage, error) {
		if attempt < 3 {
			return nil, fmt.Errorf("%w: unexpected EOF", domain.ErrConnectionTerminated)
		}
		return page(t, testRoot+"/a", 200, detailHTML("A", "5")), nil
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "5", testRoot + "/a"}}, f.table.rows)
	assert.Equal(t, 0, stats.DetailFailures)
	assert.Len(t, f.errorLog.stage("detail_fetch"), 2)
}

func TestCrawl_ListPageServerErrorIsRetried(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.fetcher.routes[listURL(1)] = func(attempt int) (*port.FetchedPage, error) {
		if attempt == 1 {
			return page(t, listURL(1), 503, "<html></html>"), nil
		}
		return page(t, listURL(1), 200, listHTML(item("/a", ""))), nil
	}
	f.fetcher.html(t, listURL(2), listHTML())

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, f.fetcher.callsTo(listURL(1)))
	assert.Equal(t, 1, stats.PagesWritten)
}

func TestCrawl_ListPageGivesUpAfterAttempts(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.routes[listURL(1)] = func(int) (*port.FetchedPage, error) {
		return page(t, listURL(1), 500, "<html></html>"), nil
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.StopListPageFailed, stats.StopReason)
	assert.Equal(t, 3, f.fetcher.callsTo(listURL(1)))
	require.Len(t, f.errorLog.stage("list_page"), 1)
}

func TestCrawl_EndPageIsInclusive(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.opts.EndPage = 3
	for n := 1; n <= 4; n++ {
		f.fetcher.html(t, listURL(n), listHTML(item(fmt.Sprintf("/p%d", n), "")))
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.StopEndPage, stats.StopReason)
	assert.Equal(t, 2, stats.FirstPage)
	assert.Equal(t, 3, stats.LastPage)
	assert.Equal(t, 0, f.fetcher.callsTo(listURL(1)))
	assert.Equal(t, 0, f.fetcher.callsTo(listURL(4)))
	assert.Equal(t, []int{2, 3}, f.checkpoints.saved)
	assert.Len(t, f.sink.batches, 2)
}

func TestCrawl_SchemaDriftAbortsWithoutWriting(t *testing.T) {
	f := newCrawlFixture()
	f.site.extraDetail = domain.Fields{"floor": "2"}
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, testRoot+"/a", detailHTML("A", "1"))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.Error(t, err)

	var drift *domain.SchemaDriftError
	require.ErrorAs(t, err, &drift)
	assert.Equal(t, []string{"floor"}, drift.Columns)
	assert.Equal(t, 1, drift.Page)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, domain.StopAborted, stats.StopReason)
	assert.Equal(t, 0, f.table.appends)
}

func TestCrawl_StructuralURLErrorAborts(t *testing.T) {
	f := newCrawlFixture()
	f.fetcher.html(t, listURL(1), listHTML(item("http://[::1", "")))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.Error(t, err)
	assert.True(t, domain.IsFatal(err))
	assert.Equal(t, domain.StopAborted, stats.StopReason)
}

func TestCrawl_URLExtractionFailureIsIsolated(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.fetcher.html(t, listURL(1), listHTML(`<li data-broken="1"></li>`, item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Len(t, f.table.rows, 1)
	assert.Equal(t, 1, stats.ListingsSkipped)
	assert.Len(t, f.errorLog.stage("url"), 1)
}

func TestCrawl_FailFast(t *testing.T) {
	t.Run("url extraction", func(t *testing.T) {
		f := newCrawlFixture()
		f.opts.FailFast = true
		f.fetcher.html(t, listURL(1), listHTML(`<li data-broken="1"></li>`, item("/a", "")))

		_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
		var extraction *domain.ExtractionError
		require.ErrorAs(t, err, &extraction)
		assert.Equal(t, "url", extraction.Stage)
		assert.Equal(t, 0, f.table.appends)
	})

	t.Run("detail fetch", func(t *testing.T) {
		f := newCrawlFixture()
		f.opts.FailFast = true
		f.opts.MaxDetailAttempts = 2
		f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))

		_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
		var transient *domain.TransientFetchError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, 2, transient.Attempts)
	})
}

func TestCrawl_GoneListingIsNotRetried(t *testing.T) {
	f := newCrawlFixture()
	f.site.previews = true
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "Sold flat")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.routes[testRoot+"/a"] = func(int) (*port.FetchedPage, error) {
		return page(t, testRoot+"/a", 404, "<html><body>Not found</body></html>"), nil
	}

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.callsTo(testRoot+"/a"))
	assert.Equal(t, 1, stats.DetailFailures)
	assert.Equal(t, [][]string{{"Sold flat", "", testRoot + "/a"}}, f.table.rows)
}

func TestCrawl_DetailExtractionErrorNotRetried(t *testing.T) {
	f := newCrawlFixture()
	f.site.detailErr = errors.New("header section not found")
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", "<html></html>")

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.fetcher.callsTo(testRoot+"/a"))
	assert.Equal(t, 1, stats.DetailFailures)
	assert.Len(t, f.errorLog.stage("details"), 1)
	assert.Len(t, f.table.rows, 1)
}

func TestCrawl_PartialDetailsKeptOnExtractionError(t *testing.T) {
	f := newCrawlFixture()
	f.site.detailErr = errors.New("price block not found")
	f.site.partial = domain.Fields{"title": "Flat A"}
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", "<html></html>")

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Flat A", "", testRoot + "/a"}}, f.table.rows)
	assert.Equal(t, 1, stats.DetailFailures)
	failures := f.errorLog.stage("details")
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Err.Error(), "price block not found")
}

func TestCrawl_DetailPagesDisabled(t *testing.T) {
	f := newCrawlFixture()
	f.site.previews = true
	f.settings.ListingPages = false
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "A")))
	f.fetcher.html(t, listURL(2), listHTML())

	_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, f.fetcher.callsTo(testRoot+"/a"))
	assert.Equal(t, [][]string{{"A", "", testRoot + "/a"}}, f.table.rows)
}

func TestCrawl_CleanPerPage(t *testing.T) {
	f := newCrawlFixture()
	f.site.clean = func(batch []domain.Listing) ([]domain.Listing, error) {
		for i := range batch {
			batch[i].Fields["price"] = strings.TrimSuffix(batch[i].Fields["price"], " zł")
		}
		return batch, nil
	}
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", detailHTML("A", "1000 zł"))

	_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, "1000", f.table.rows[0][1])
}

func TestCrawl_CleanFailureWritesRawPage(t *testing.T) {
	f := newCrawlFixture()
	f.site.clean = func([]domain.Listing) ([]domain.Listing, error) {
		return nil, errors.New("bad number")
	}
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML())
	f.fetcher.html(t, testRoot+"/a", detailHTML("A", "1000 zł"))

	_, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, "1000 zł", f.table.rows[0][1])
	assert.Len(t, f.errorLog.stage("clean"), 1)
}

func TestCrawl_CategoryStampedAndInURL(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.settings.CategoryColumn = "category"
	f.settings.Categories = []domain.Category{{Label: "flats", Slug: "/flats/"}}
	flats := testRoot + "/flats?page=1"
	f.fetcher.html(t, flats, listHTML(item("/a", "")))
	f.fetcher.html(t, testRoot+"/flats?page=2", listHTML())

	_, err := f.build(t).Execute(context.Background(), uuid.New(), f.settings.Categories[0], 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "price", "url", "category"}, f.table.header)
	assert.Equal(t, [][]string{{"", "", testRoot + "/a", "flats"}}, f.table.rows)
	assert.Equal(t, "flats", f.sink.batches[0].Category)
	assert.Equal(t, 1, f.checkpoints.pages[domain.CheckpointKey{Site: "example", Category: "flats"}])
}

func TestCrawl_PageInPath(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.settings.PageInPath = true
	f.settings.PageParam = ""
	f.fetcher.html(t, testRoot+"/for-sale/1", listHTML(item("/a", "")))
	f.fetcher.html(t, testRoot+"/for-sale/2", listHTML())

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), domain.Category{Slug: "for-sale"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PagesWritten)
}

func TestCrawl_SinkFailureDoesNotStopCrawl(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.sink.err = errors.New("broker unavailable")
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))
	f.fetcher.html(t, listURL(2), listHTML(item("/b", "")))
	f.fetcher.html(t, listURL(3), listHTML())

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.PagesWritten)
}

func TestCrawl_WriteFailureAborts(t *testing.T) {
	f := newCrawlFixture()
	f.settings.ListingPages = false
	f.table.appendErr = errors.New("disk full")
	f.fetcher.html(t, listURL(1), listHTML(item("/a", "")))

	stats, err := f.build(t).Execute(context.Background(), uuid.New(), noCategory, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, domain.StopAborted, stats.StopReason)
}

func TestCrawl_CancelledContext(t *testing.T) {
	f := newCrawlFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := f.build(t).Execute(ctx, uuid.New(), noCategory, 1)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StopCancelled, stats.StopReason)
	assert.Equal(t, 0, f.fetcher.callsTo(listURL(1)))
}
