package sites

import (
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DomiportaAdapter - domiporta.pl: квартиры, дома, комнаты
type DomiportaAdapter struct {
	baseAdapter
}

// NewDomiportaAdapter создает новый экземпляр DomiportaAdapter
func NewDomiportaAdapter(logger port.LoggerPort) (*DomiportaAdapter, error) {
	base, err := newBaseAdapter("domiporta", logger,
		[]string{"title", "price", "currency", "address_locality", "street_address", "region", "country", "postcode", "latitude", "longitude"},
		[]string{"price_num", "price_utilities_pln_num", "price_zl_per_m2_num", "surface_area_m2_num", geohashColumn},
	)
	if err != nil {
		return nil, err
	}
	return &DomiportaAdapter{baseAdapter: base}, nil
}

func (a *DomiportaAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	grid := doc.Find("div.listing div.listing__container ul.grid").First()
	if grid.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(grid.Find("li.grid-item")), nil
}

// ExtractListingURL - у рекламных карточек нет блока sneakpeak, для них пустая строка
func (a *DomiportaAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	link := listing.Find("div.sneakpeak__data a.sneakpeak__title").First()
	href, _ := link.Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *DomiportaAdapter) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	header, err := requireOne(doc.Selection, "div.detials__header-section")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{}
	fields["title"] = text(header.Find("span.summary__subtitle-2").First())

	priceInfo := header.Find("span.summary__price_number").First()
	if price, ok := priceInfo.Find(`span[itemprop="price"]`).Attr("content"); ok {
		fields["price"] = cleanText(price)
		if currency, ok := priceInfo.Find(`span[itemprop="priceCurrency"]`).Attr("content"); ok {
			fields["currency"] = cleanText(currency)
		}
	} else {
		fields["price"] = text(priceInfo)
	}

	items := doc.Find("section.features ul.features__list-2 li")
	if items.Length() == 0 {
		// заголовок и цена уже извлечены и остаются в объявлении
		return fields, fmt.Errorf("features list not found")
	}
	items.Each(func(_ int, item *goquery.Selection) {
		nameSel := item.Find("span.features__item_name").First()
		if nameSel.Length() == 0 {
			return
		}
		name := text(nameSel)
		value := item.Find("span.features__item_value").First()

		switch name {
		case "Lokalizacja":
			if _, ok := a.translate(fields, name, ""); ok {
				a.extractAddress(fields, value)
			}
		case "Kategoria", "Przeznaczenie":
			a.translate(fields, name, text(value.Find("a").First()))
		default:
			a.translate(fields, name, text(value))
		}
	})
	return fields, nil
}

// extractAddress разбирает разметку schema.org адреса и координат
func (a *DomiportaAdapter) extractAddress(fields domain.Fields, value *goquery.Selection) {
	address := value.Find(`span[itemprop="address"]`).First()
	fields["address_locality"] = text(address.Find(`span[itemprop="addressLocality"]`).First())
	if street := address.Find(`span[itemprop="streetAddress"]`).First(); street.Length() > 0 {
		fields["street_address"] = text(street)
	}
	for prop, col := range map[string]string{
		"addressRegion":  "region",
		"addressCountry": "country",
		"postalCode":     "postcode",
	} {
		if v, ok := address.Find(`meta[itemprop="` + prop + `"]`).Attr("content"); ok {
			fields[col] = cleanText(v)
		}
	}

	geo := value.Find(`span[itemprop="geo"]`).First()
	if geo.Length() == 0 {
		return
	}
	lat, okLat := geo.Find(`meta[itemprop="latitude"]`).Attr("content")
	lon, okLon := geo.Find(`meta[itemprop="longitude"]`).Attr("content")
	if okLat && okLon {
		fields["latitude"] = cleanText(lat)
		fields["longitude"] = cleanText(lon)
	}
}

func (a *DomiportaAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	return cleanEach(batch, func(f domain.Fields) {
		setNum(f, "price", "price_num", "zł")
		setNum(f, "price_utilities_pln", "price_utilities_pln_num", "PLN", "zł")
		setNum(f, "price_zl_per_m2", "price_zl_per_m2_num", "zł/m²", "zł/m2", "zł/m")
		setNum(f, "surface_area_m2", "surface_area_m2_num", "m²", "m2")
		setGeohash(f, "latitude", "longitude")
	}), nil
}
