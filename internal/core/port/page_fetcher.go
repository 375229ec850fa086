package port

import (
	"context"

	"github.com/PuerkitoBio/goquery"
)

// FetchedPage - полученная и разобранная страница
type FetchedPage struct {
	URL            string
	FinalURL       string
	StatusCode     int
	RedirectStatus int // статус первого редиректа, 0 если редиректа не было
	Document       *goquery.Document
}

// Redirected сообщает, был ли запрос перенаправлен
func (p *FetchedPage) Redirected() bool {
	return p.RedirectStatus != 0
}

// PageFetcherPort выполняет один GET-запрос и возвращает дерево документа.
// Обрыв соединения во время передачи оборачивается в domain.ErrConnectionTerminated.
type PageFetcherPort interface {
	Fetch(ctx context.Context, pageURL string) (*FetchedPage, error)
}
