package sites

import (
	"errors"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var zingatAreaColumns = []string{"Area m2", "Gross m2", "Net m2"}

// ZingatAdapter - zingat.com
type ZingatAdapter struct {
	baseAdapter
}

// NewZingatAdapter создает новый экземпляр ZingatAdapter
func NewZingatAdapter(logger port.LoggerPort) (*ZingatAdapter, error) {
	base, err := newBaseAdapter("zingat", logger,
		[]string{"Title", "Price", "Price currency", "Location", "Area m2", "Rooms", "Mortgage", "Date", "Description", "Latitude", "Longitude"},
		[]string{
			"Date (fmt)", "Price (num)", "Fees (num)",
			"Location 1", "Location 2", "Location 3",
			"Area m2 (num)", "Gross m2 (num)", "Net m2 (num)",
			"Rooms 1", "Rooms 2", geohashColumn,
		},
	)
	if err != nil {
		return nil, err
	}
	return &ZingatAdapter{baseAdapter: base}, nil
}

func (a *ZingatAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	list := doc.Find("div.section-items ul.zc-viewport").First()
	if list.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(list.ChildrenFiltered("li")), nil
}

func (a *ZingatAdapter) ExtractPreview(listing *goquery.Selection) (domain.Fields, error) {
	card, err := requireOne(listing, "a.zl-card-inner")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{
		"Price":    ownText(card.Find("div.zlc-features div.feature-price").First()),
		"Title":    text(card.Find("div.zlc-title").First()),
		"Location": text(card.Find("div.zlc-location").First()),
	}
	tags := card.Find("div.zlc-tags").First().ChildrenFiltered("span")
	if tags.Length() > 0 {
		fields["Rooms"] = text(tags.Eq(0))
	}
	if tags.Length() > 1 {
		fields["Area m2"] = text(tags.Eq(1))
	}
	return fields, nil
}

func (a *ZingatAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	href, _ := listing.ChildrenFiltered("a.zl-card-inner").First().Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *ZingatAdapter) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	header, err := requireOne(doc.Selection, "div.page-header")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{}
	fields["Title"] = text(header.Find(`h1[data-zingalite="listing-detail-title"]`).First())
	priceInfo := header.Find("div.price-info-text").First()
	var missing error
	if price, ok := priceInfo.Find(`strong[itemprop="price"]`).Attr("content"); ok {
		fields["Price"] = cleanText(price)
	} else {
		missing = errors.New("price not found")
	}
	if currency, ok := priceInfo.Find(`strong[itemprop="priceCurrency"]`).Attr("content"); ok {
		fields["Price currency"] = cleanText(currency)
	}
	fields["Location"] = text(header.Find("div.detail-location-path h2").First())

	info := doc.Find("div.detail-info").First()
	for selector, col := range map[string]string{
		`label[data-zingalite="property-size-value"]`:  "Area m2",
		`strong[data-zingalite="property-room-count"]`: "Rooms",
		`strong[data-zingalite="property-mortgage"]`:   "Mortgage",
	} {
		if sel := info.Find(selector).First(); sel.Length() > 0 {
			fields[col] = text(sel)
		}
	}
	info.ChildrenFiltered("div").Each(func(_ int, s *goquery.Selection) {
		if text(s.Find("span").First()) == "İlan Tarihi" {
			fields["Date"] = text(s.Find("strong").First())
		}
	})

	doc.Find("div.detail-listing-properties ul.attribute-detail-list li").Each(func(_ int, li *goquery.Selection) {
		name := text(li.ChildrenFiltered("strong").First())
		if name == "" {
			return
		}
		a.translate(fields, name, text(li.ChildrenFiltered("span").First()))
	})

	if desc := doc.Find("div.detail-description div.detail-text-desktop").First(); desc.Length() > 0 {
		fields["Description"] = text(desc)
	}

	details := doc.Find("div#content div#details").First()
	if lat, ok := details.Attr("data-lat"); ok {
		fields["Latitude"] = cleanText(lat)
	}
	if lon, ok := details.Attr("data-lon"); ok {
		fields["Longitude"] = cleanText(lon)
	}
	return fields, missing
}

func (a *ZingatAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	return cleanEach(batch, func(f domain.Fields) {
		setNum(f, "Price", "Price (num)")
		if v, ok := convertUnitsToNum(dropThousands(f["Fees"]), "(aylık)", "TL", "USD", "GBP", "EUR"); ok {
			f["Fees (num)"] = formatNum(v)
		}
		splitInto(f, "Location", ",", "Location 1", "Location 2", "Location 3")
		for _, col := range zingatAreaColumns {
			setNum(f, col, col+" (num)", "m²", "m2")
		}
		setRooms(f, "Rooms")
		if d, ok := parseTurkishDate(f["Date"]); ok {
			f["Date (fmt)"] = d
		}
		setGeohash(f, "Latitude", "Longitude")
	}), nil
}

// dropThousands убирает точки-разделители разрядов ("1.250 TL")
func dropThousands(s string) string {
	return strings.ReplaceAll(s, ".", "")
}

// setRooms раскладывает "3 + 1" на Rooms 1 и Rooms 2, студия считается как 0 комнат
func setRooms(f domain.Fields, src string) {
	value := cleanText(f[src])
	if value == "" {
		return
	}
	parts := strings.SplitN(value, "+", 2)
	for i, p := range parts {
		p = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(p), "Oda"))
		if strings.Contains(p, "Stüdyo") {
			p = "0"
		}
		if n, ok := convertUnitsToNum(p); ok {
			f[src+" "+string(rune('1'+i))] = formatNum(n)
		}
	}
}
