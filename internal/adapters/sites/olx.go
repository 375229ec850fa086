package sites

import (
	"errors"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// координаты лежат в экранированном JSON внутри olx-init-config: lat\":52.23
	olxLatPattern = regexp.MustCompile(`lat\\":(-?[0-9]+(?:\.[0-9]+)?)`)
	olxLonPattern = regexp.MustCompile(`lon\\":(-?[0-9]+(?:\.[0-9]+)?)`)
)

var olxStatuses = map[string]bool{"prywatne": true, "firmowe": true}

// OlxAdapter - olx.pl: комнаты и квартиры в аренду
type OlxAdapter struct {
	baseAdapter
}

// NewOlxAdapter создает новый экземпляр OlxAdapter
func NewOlxAdapter(logger port.LoggerPort) (*OlxAdapter, error) {
	base, err := newBaseAdapter("olx", logger,
		[]string{"title", "price", "latitude", "longitude", "status"},
		[]string{"price_num", "surface_area_m2_num", geohashColumn},
	)
	if err != nil {
		return nil, err
	}
	return &OlxAdapter{baseAdapter: base}, nil
}

func (a *OlxAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	grid := doc.Find(`div.listing-grid-container div[data-testid="listing-grid"]`).First()
	if grid.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(grid.Find(`div[data-cy="l-card"]`)), nil
}

func (a *OlxAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	href, _ := listing.ChildrenFiltered("a").First().Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *OlxAdapter) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	fields := domain.Fields{}
	var errs []error

	if title := doc.Find(`h1[data-cy="ad_title"]`).First(); title.Length() > 0 {
		fields["title"] = text(title)
	} else {
		errs = append(errs, errors.New("title not found"))
	}
	if price := doc.Find(`div[data-testid="ad-price-container"] h3`).First(); price.Length() > 0 {
		fields["price"] = text(price)
	}

	// первый пункт списка - тип объявителя, остальные "Название: значение"
	content := doc.Find("div.css-1wws9er").First()
	if content.Length() == 0 {
		errs = append(errs, errors.New("listing details block not found"))
	}
	content.Find("ul").First().ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		p := text(li.Find("p").First())
		if p == "" {
			return
		}
		if i == 0 {
			if !olxStatuses[strings.ToLower(p)] {
				a.logger.Debug("Unrecognised listing status", port.Fields{"status": p})
			}
			fields["status"] = p
			return
		}
		name, value, _ := strings.Cut(p, ":")
		a.translate(fields, strings.TrimSpace(name), strings.TrimSpace(value))
	})

	if err := a.extractCoordinates(doc, fields); err != nil {
		errs = append(errs, err)
	}
	return fields, errors.Join(errs...)
}

func (a *OlxAdapter) extractCoordinates(doc *goquery.Document, fields domain.Fields) error {
	script, err := requireOne(doc.Selection, "script#olx-init-config")
	if err != nil {
		return err
	}
	config := script.Text()
	lat := olxLatPattern.FindStringSubmatch(config)
	lon := olxLonPattern.FindStringSubmatch(config)
	if lat == nil || lon == nil {
		return fmt.Errorf("coordinates not found in olx-init-config")
	}
	fields["latitude"] = lat[1]
	fields["longitude"] = lon[1]
	return nil
}

func (a *OlxAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	return cleanEach(batch, func(f domain.Fields) {
		// "1 200 zł do negocjacji": число до валюты
		if price, _, found := strings.Cut(f["price"], "zł"); found {
			if v, ok := convertUnitsToNum(price); ok {
				f["price_num"] = formatNum(v)
			}
		}
		setNum(f, "surface_area_m2", "surface_area_m2_num", "m²", "m2")
		setGeohash(f, "latitude", "longitude")
	}), nil
}
