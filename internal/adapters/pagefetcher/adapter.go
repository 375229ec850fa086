package pagefetcher

import (
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// Config - настройки HTTP-клиента обходчика
type Config struct {
	UserAgent      string // пусто - случайный User-Agent браузера на каждый запрос
	RequestTimeout time.Duration
	// Delay - пауза между запросами к одному домену
	Delay        time.Duration
	MaxRedirects int
}

// CollyFetcherAdapter выполняет GET-запросы через colly и отдает документ goquery.
// Все запросы идут через клоны одного родительского коллектора, разделяющие лимиты.
type CollyFetcherAdapter struct {
	collector    *colly.Collector
	maxRedirects int
}

// NewCollyFetcherAdapter - конструктор
func NewCollyFetcherAdapter(cfg Config) (*CollyFetcherAdapter, error) {
	// повторные запросы к тому же адресу нужны для попыток загрузки
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	} else {
		extensions.RandomUserAgent(c)
	}
	if cfg.RequestTimeout > 0 {
		c.SetRequestTimeout(cfg.RequestTimeout)
	}
	if cfg.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: 1,
			Delay:       cfg.Delay,
		}); err != nil {
			return nil, fmt.Errorf("CollyFetcherAdapter: failed to set limit rule: %w", err)
		}
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}

	a := &CollyFetcherAdapter{collector: c, maxRedirects: cfg.MaxRedirects}
	// обработчик живет в общем http-клиенте, поэтому наследуется клонами
	c.SetRedirectHandler(a.onRedirect)
	return a, nil
}
