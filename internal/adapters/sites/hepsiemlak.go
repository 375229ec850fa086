package sites

import (
	"errors"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// HepsiemlakAdapter - hepsiemlak.com
type HepsiemlakAdapter struct {
	baseAdapter
}

// NewHepsiemlakAdapter создает новый экземпляр HepsiemlakAdapter
func NewHepsiemlakAdapter(logger port.LoggerPort) (*HepsiemlakAdapter, error) {
	base, err := newBaseAdapter("hepsiemlak", logger,
		[]string{
			"Title", "Price", "Deposit", "Date", "Update date",
			"Location", "Location 1", "Location 2", "Location 3",
			"Listing type", "Property type", "Listing category",
			"Total m2", "Area m2", "Rooms + halls", "Building age", "Floor type", "Description",
		},
		[]string{"Price (num)", "Deposit (num)", "Date (fmt)", "Update date (fmt)", "Rooms", "Halls"},
	)
	if err != nil {
		return nil, err
	}
	return &HepsiemlakAdapter{baseAdapter: base}, nil
}

func (a *HepsiemlakAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	list := doc.Find("ul.list-items-container").First()
	if list.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(list.Find("li.listing-item")), nil
}

func (a *HepsiemlakAdapter) ExtractPreview(listing *goquery.Selection) (domain.Fields, error) {
	content, err := requireOne(listing, "div.list-view-content")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{}
	setText := func(col string, sel *goquery.Selection) {
		if sel.Length() > 0 {
			fields[col] = text(sel)
		}
	}
	setText("Price", content.Find("span.list-view-price").First())
	setText("Date", content.Find("span.list-view-date").First())
	setText("Title", content.Find("div.list-view-title").First())

	left := content.Find("div.card-bottom-cage div.card-bottom-cage--left").First()
	top := left.Find("div.top").First()
	types := top.Find("div.left").First().Find("span")
	setText("Listing type", types.Eq(0))
	setText("Property type", types.Eq(1))
	setText("Rooms + halls", top.Find("span.houseRoomCount").First())
	setText("Area m2", top.Find("span.squareMeter").First())
	setText("Building age", top.Find("span.buildingAge").First())
	setText("Floor type", top.Find("span.floortype").First())

	location := left.Find("div.list-view-location").First().ChildrenFiltered("span")
	setText("Location 1", location.Eq(0))
	setText("Location 2", location.Eq(1))
	return fields, nil
}

func (a *HepsiemlakAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	link, err := requireOne(listing, "div.list-view-content div.links a")
	if err != nil {
		return "", err
	}
	href, _ := link.Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *HepsiemlakAdapter) ExtractDetails(doc *goquery.Document) (domain.Fields, error) {
	block, err := requireOne(doc.Selection, "section.det-block")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{}
	var errs []error

	upper := block.Find("div.det-title-upper").First()
	if h1 := upper.Find("div.left h1").First(); h1.Length() > 0 {
		fields["Title"] = text(h1)
	}
	if price := upper.Find("div.right p.price").First(); price.Length() > 0 {
		fields["Price"] = text(price)
	} else {
		errs = append(errs, errors.New("price not found"))
	}

	// краткая сводка разбирается только в полном виде из семи пунктов
	summary := block.Find("div.det-title-bottom ul.short-info-list").First().Find("li")
	if summary.Length() == 7 {
		fields["Location 1"] = text(summary.Eq(0))
		fields["Location 2"] = text(summary.Eq(1))
		fields["Location 3"] = text(summary.Eq(2))
		fields["Listing category"] = text(summary.Eq(3))
		fields["Total m2"] = cleanText(strings.ReplaceAll(text(summary.Eq(6)), "m2", ""))
	}

	block.Find("div.det-adv-info ul li").Each(func(_ int, li *goquery.Selection) {
		name := text(li.Find("span.txt").First())
		if name == "" {
			return
		}
		value := ""
		if all := li.Find("*"); all.Length() > 1 {
			value = text(all.Eq(1))
		}
		a.translate(fields, name, value)
	})

	if desc := doc.Find("section.description section.det-block div.description-content div.description").First(); desc.Length() > 0 {
		fields["Description"] = text(desc)
	}
	return fields, errors.Join(errs...)
}

func (a *HepsiemlakAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	return cleanEach(batch, func(f domain.Fields) {
		for _, col := range []string{"Price", "Deposit"} {
			if v, ok := convertUnitsToNum(dropThousands(f[col]), "TL", "GBP", "USD", "EUR"); ok {
				f[col+" (num)"] = formatNum(v)
			}
		}
		if d, ok := parseNumericDate(f["Date"]); ok {
			f["Date (fmt)"] = d
		}
		if d, ok := parseNumericDate(f["Update date"]); ok {
			f["Update date (fmt)"] = d
		}

		if rooms := f["Rooms + halls"]; rooms != "" {
			r, h, _ := strings.Cut(rooms, "+")
			if n, ok := convertUnitsToNum(r); ok {
				f["Rooms"] = formatNum(n)
			}
			if n, ok := convertUnitsToNum(h); ok {
				f["Halls"] = formatNum(n)
			}
		}

		l1 := strings.TrimSpace(strings.Trim(f["Location 1"], ","))
		if l1 != "" {
			f["Location 1"] = l1
		}
		if l2 := f["Location 2"]; l1 != "" && l2 != "" {
			f["Location"] = l1 + " " + l2
		}
	}), nil
}

// parseNumericDate приводит "12-08-2023" или "2023-08-12" к ISO-дате
func parseNumericDate(value string) (string, bool) {
	value = cleanText(value)
	if value == "" {
		return "", false
	}
	for _, layout := range []string{"02-01-2006", "2006-01-02", "02.01.2006"} {
		if d, err := time.Parse(layout, value); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return "", false
}
