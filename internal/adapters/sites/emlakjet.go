package sites

import (
	"errors"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// EmlakjetAdapter - emlakjet.com. Все данные берутся с карточки в списке,
// страницы объявлений не открываются.
type EmlakjetAdapter struct {
	baseAdapter
	now func() time.Time
}

// NewEmlakjetAdapter создает новый экземпляр EmlakjetAdapter.
// now нужен для года в дате публикации, nil означает time.Now.
func NewEmlakjetAdapter(logger port.LoggerPort, now func() time.Time) (*EmlakjetAdapter, error) {
	base, err := newBaseAdapter("emlakjet", logger,
		[]string{"Title", "Date", "Price", "Price (unit)", "Location"},
		[]string{
			"Date (fmt)", "Price (num)",
			"Location 1", "Location 2", "Location 3",
			"Area m2 (num)", "Rooms 1", "Rooms 2",
		},
	)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &EmlakjetAdapter{baseAdapter: base, now: now}, nil
}

func (a *EmlakjetAdapter) LocateListings(doc *goquery.Document) ([]*goquery.Selection, error) {
	wrapper := doc.Find("div#listing-search-wrapper").First()
	if wrapper.Length() == 0 {
		return nil, domain.ErrListingsNotFound
	}
	return selections(wrapper.ChildrenFiltered("div._3qUI9q")), nil
}

func (a *EmlakjetAdapter) ExtractPreview(listing *goquery.Selection) (domain.Fields, error) {
	info, err := requireOne(listing, "a._3qUI9q div.manJWF")
	if err != nil {
		return nil, err
	}

	fields := domain.Fields{}
	fields["Title"] = text(info.Find("div._1TNSG2").First())

	info.Find("div._2UELHn").First().ChildrenFiltered("span").Each(func(_ int, detail *goquery.Selection) {
		icon := text(detail.Find("i.material-icons").First())
		if icon == "event" {
			fields["Date"] = text(detail.Find("span").First())
			return
		}
		a.translate(fields, icon, ownText(detail))
	})

	parts := textNodes(info.Find("div._3Q-7xT p._2C5UCT").First().ChildrenFiltered("span").First())
	if len(parts) == 0 {
		return nil, errors.New("price not found")
	}
	fields["Price"] = strings.NewReplacer(".", "", ",", "").Replace(parts[0])
	if len(parts) > 1 {
		fields["Price (unit)"] = parts[1]
	}

	fields["Location"] = text(info.Find("div._2wVG12").First())
	return fields, nil
}

func (a *EmlakjetAdapter) ExtractListingURL(listing *goquery.Selection) (string, error) {
	href, _ := listing.ChildrenFiltered("a._3qUI9q").First().Attr("href")
	return strings.TrimSpace(href), nil
}

func (a *EmlakjetAdapter) Clean(batch []domain.Listing) ([]domain.Listing, error) {
	year := strconv.Itoa(a.now().Year())
	return cleanEach(batch, func(f domain.Fields) {
		setNum(f, "Price", "Price (num)")
		// на карточке только день и месяц
		if date := f["Date"]; date != "" {
			if d, ok := parseTurkishDate(date + " " + year); ok {
				f["Date (fmt)"] = d
			}
		}
		splitInto(f, "Location", " - ", "Location 1", "Location 2", "Location 3")
		setNum(f, "Area m2", "Area m2 (num)", "m²", "m2")
		setRooms(f, "Rooms")
	}), nil
}
