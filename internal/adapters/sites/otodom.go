package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// OtodomAdapter - otodom.pl: квартиры и дома
type OtodomAdapter struct {
	baseAdapter
}

// NewOtodomAdapter создает новый экземпляр OtodomAdapter
func NewOtodomAdapter(logger port.LoggerPort) (*OtodomAdapter, error) {
	base, err := newBaseAdapter("otodom", logger,
		[]string{"title", "price", "latitude", "longitude"},
		[]string{"price_num", "price_zl_per_m2_num", "surface_area_m2_num", "price_utilities_pln_num", geohashColumn},
	)
	if err != nil {
		return nil, err
	}
	return &OtodomAdapter{baseAdapter: base}, nil
}

// nextData - нужная часть JSON из script#__NEXT_DATA__
type nextData struct {
	Props struct {
		PageProps struct {
			Ad struct {
				Location struct {
					Coordinates *struct {
						Latitude  json.Number `json:"latitude"`
						Longitude json.Number `json:"longitude"`
					} `json:"coordinates"`
				} `json:"location"`
			} `json:"ad"`
		} `json:"pageProps"`
	} `json:"props"`
}

func (a *OtodomAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	list := doc.Find(`div[data-cy="search.listing"] ul`).First()
	if list.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(list.ChildrenFiltered("li")), nil
}

func (a *OtodomAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	href, _ := listing.Find(`a[data-cy="listing-item-link"]`).First().Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *OtodomAdapter) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	fields := domain.Fields{}

	// заголовок и цена бывают не у всех объявлений
	header := doc.Find("main header").First()
	if h1 := header.Find("h1").First(); h1.Length() > 0 {
		fields["title"] = text(h1)
	}
	if price := header.Find(`strong[data-cy="adPageHeaderPrice"]`).First(); price.Length() > 0 {
		fields["price"] = text(price)
	}

	// ошибки отдельных блоков не отменяют уже извлеченные поля
	var errs []error
	if table, err := requireOne(doc.Selection, `div[data-testid="ad.top-information.table"]`); err != nil {
		errs = append(errs, err)
	} else {
		table.ChildrenFiltered("div").First().ChildrenFiltered("div").Each(func(_ int, row *goquery.Selection) {
			cells := row.ChildrenFiltered("div")
			if cells.Length() == 0 {
				return
			}
			name := text(cells.Eq(0))
			value := ""
			if cells.Length() > 1 {
				value = text(cells.Eq(1))
			}
			a.translate(fields, name, value)
		})
	}

	if err := a.extractCoordinates(doc, fields); err != nil {
		errs = append(errs, err)
	}
	return fields, errors.Join(errs...)
}

// extractCoordinates читает координаты из встроенного JSON страницы
func (a *OtodomAdapter) extractCoordinates(doc *goquery.Document, fields domain.Fields) error {
	script, err := requireOne(doc.Selection, "script#__NEXT_DATA__")
	if err != nil {
		return err
	}
	var data nextData
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}
	if c := data.Props.PageProps.Ad.Location.Coordinates; c != nil {
		fields["latitude"] = c.Latitude.String()
		fields["longitude"] = c.Longitude.String()
	}
	return nil
}

func (a *OtodomAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	return cleanEach(batch, func(f domain.Fields) {
		price, okPrice := setNum(f, "price", "price_num", "zł")
		area, okArea := setNum(f, "surface_area_m2", "surface_area_m2_num", "m²", "m2")
		setNum(f, "price_utilities_pln", "price_utilities_pln_num", "zł/miesiąc", "zł")
		setRatio(f, "price_zl_per_m2_num", price, area, okPrice, okArea)
		setGeohash(f, "latitude", "longitude")
	}), nil
}
