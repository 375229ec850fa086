package sites

import (
	"fmt"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"sort"

	"github.com/PuerkitoBio/goquery"
)

const geohashColumn = "geohash"

// baseAdapter - общее для адаптеров сайтов: имя, таблица перевода, учет нераспознанных характеристик
type baseAdapter struct {
	name         string
	translations *Translations
	logger       port.LoggerPort
	// колонки, которые адаптер заполняет сам, помимо таблицы перевода
	fixed   []string
	derived []string
}

func newBaseAdapter(name string, logger port.LoggerPort, fixed, derived []string) (baseAdapter, error) {
	t, err := LoadTranslations(name)
	if err != nil {
		return baseAdapter{}, err
	}
	return baseAdapter{
		name:         name,
		translations: t,
		logger:       logger.WithFields(port.Fields{"component": "SiteAdapter", "site": name}),
		fixed:        fixed,
		derived:      derived,
	}, nil
}

func (b *baseAdapter) Name() string { return b.name }

// DeclaredColumns - собственные колонки адаптера, затем колонки таблицы перевода
func (b *baseAdapter) DeclaredColumns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range append(append([]string(nil), b.fixed...), b.translations.Columns()...) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

func (b *baseAdapter) DerivedColumns() []string {
	return append([]string(nil), b.derived...)
}

func (b *baseAdapter) ExtractPreview(*goquery.Selection) (domain.Fields, error) {
	return nil, domain.ErrNotSupported
}

func (b *baseAdapter) ExtractDetails(*goquery.Document) (domain.Fields, error) {
	return nil, domain.ErrNotSupported
}

// translate кладет значение в колонку из таблицы перевода. Нераспознанные названия отбрасываются.
func (b *baseAdapter) translate(fields domain.Fields, name, value string) (string, bool) {
	col, ok := b.translations.Lookup(name)
	if !ok {
		b.logger.Debug("Unrecognised listing detail", port.Fields{"detail": name})
		return "", false
	}
	if value != "" {
		fields[col] = value
	}
	return col, true
}

// cleanEach применяет fn к копии полей каждого объявления
func cleanEach(batch []domain.Listing, fn func(fields domain.Fields)) []domain.Listing {
	out := make([]domain.Listing, len(batch))
	for i, l := range batch {
		fields := make(domain.Fields, len(l.Fields)+4)
		fields.Merge(l.Fields)
		fn(fields)
		l.Fields = fields
		out[i] = l
	}
	return out
}

// selections раскладывает выборку на отдельные элементы
func selections(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// requireOne возвращает первый элемент или ошибку с селектором
func requireOne(root interface {
	Find(string) *goquery.Selection
}, selector string) (*goquery.Selection, error) {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("element %q not found", selector)
	}
	return sel, nil
}

// Names возвращает ключи зарегистрированных адаптеров
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
