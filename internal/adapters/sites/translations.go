package sites

import (
	"embed"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v2"
)

//go:embed translations/*.yml
var translationFiles embed.FS

// Translations - таблица перевода названий характеристик сайта в имена колонок.
// Порядок колонок совпадает с порядком в файле.
type Translations struct {
	byKey   map[string]string
	columns []string
	fold    cases.Caser
}

// LoadTranslations читает встроенную таблицу сайта
func LoadTranslations(site string) (*Translations, error) {
	data, err := translationFiles.ReadFile("translations/" + site + ".yml")
	if err != nil {
		return nil, fmt.Errorf("translations for %q: %w", site, err)
	}
	return ParseTranslations(data)
}

// ParseTranslations разбирает YAML вида "название: колонка"
func ParseTranslations(data []byte) (*Translations, error) {
	var items yaml.MapSlice
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse translations: %w", err)
	}

	t := &Translations{
		byKey: make(map[string]string, len(items)),
		fold:  cases.Fold(),
	}
	seen := make(map[string]bool)
	for _, item := range items {
		key, ok := item.Key.(string)
		if !ok {
			return nil, fmt.Errorf("parse translations: key %v is not a string", item.Key)
		}
		col, ok := item.Value.(string)
		if !ok || col == "" {
			return nil, fmt.Errorf("parse translations: value for %q must be a column name", key)
		}
		t.byKey[t.normalize(key)] = col
		if !seen[col] {
			seen[col] = true
			t.columns = append(t.columns, col)
		}
	}
	return t, nil
}

// normalize приводит название к NFC и складывает регистр:
// на страницах встречаются разложенные диакритики и разный регистр
func (t *Translations) normalize(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, ":")
	return t.fold.String(norm.NFC.String(s))
}

// Lookup возвращает колонку для названия характеристики
func (t *Translations) Lookup(name string) (string, bool) {
	col, ok := t.byKey[t.normalize(name)]
	return col, ok
}

// Columns возвращает колонки в порядке файла без повторов
func (t *Translations) Columns() []string {
	return append([]string(nil), t.columns...)
}
