package port

import (
	"property-listings-puller/internal/core/domain"

	"github.com/PuerkitoBio/goquery"
)

// SiteAdapterPort - специфичная для сайта логика извлечения данных.
// Необязательные возможности (превью, страница объявления) возвращают
// domain.ErrNotSupported, если сайт их не поддерживает.
type SiteAdapterPort interface {
	// Name возвращает ключ сайта из конфигурации
	Name() string

	// DeclaredColumns - имена колонок, в которые адаптер переводит детали объявления
	DeclaredColumns() []string

	// LocateListings находит объявления на странице списка.
	// domain.ErrListingsNotFound, если контейнер не найден.
	LocateListings(doc *goquery.Document) ([]*goquery.Selection, error)

	// ExtractPreview извлекает поля из карточки объявления на странице списка
	ExtractPreview(listing *goquery.Selection) (domain.Fields, error)

	// ExtractListingURL возвращает ссылку на объявление (может быть относительной) или пустую строку
	ExtractListingURL(listing *goquery.Selection) (string, error)

	// ExtractDetails извлекает поля со страницы объявления
	ExtractDetails(doc *goquery.Document) (domain.Fields, error)

	// Clean - постобработка: единицы измерения, числа, производные колонки
	Clean(batch []domain.Listing) ([]domain.Listing, error)
}

// DerivedColumnsProvider - необязательная возможность адаптера:
// колонки, которые добавляет Clean (числовые значения, geohash)
type DerivedColumnsProvider interface {
	DerivedColumns() []string
}
