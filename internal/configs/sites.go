package configs

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/schemas"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v2"
)

const sitesSchemaPath = "config/sites-v1.json"

//go:embed sites.yml
var defaultSitesYAML []byte

type sitesFile struct {
	Sites map[string]siteDefinition `yaml:"sites"`
}

type siteDefinition struct {
	RootURL                string     `yaml:"root_url"`
	Slug                   string     `yaml:"slug"`
	PageParam              string     `yaml:"page_param"`
	PageInPath             bool       `yaml:"page_in_path"`
	Columns                []string   `yaml:"columns"`
	IncludeDeclaredColumns bool       `yaml:"include_declared_columns"`
	Categories             []category `yaml:"categories"`
	MetadataPosition       string     `yaml:"metadata_position"`
	PageColumn             string     `yaml:"page_column"`
	URLColumn              string     `yaml:"url_column"`
	CategoryColumn         string     `yaml:"category_column"`
	ListingPreviews        *bool      `yaml:"listing_previews"`
	ListingPages           *bool      `yaml:"listing_pages"`
	Clean                  string     `yaml:"clean"`
}

type category struct {
	Label string `yaml:"label"`
	Slug  string `yaml:"slug"`
}

// LoadSites читает определения сайтов из path или встроенный файл, если path пустой
func LoadSites(path string) (map[string]domain.SiteSettings, error) {
	data := defaultSitesYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read site definitions %s: %w", path, err)
		}
	}
	return ParseSites(data)
}

// ParseSites проверяет YAML по схеме и переводит его в настройки сайтов
func ParseSites(data []byte) (map[string]domain.SiteSettings, error) {
	if err := validateSites(data); err != nil {
		return nil, err
	}

	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse site definitions: %w", err)
	}

	out := make(map[string]domain.SiteSettings, len(file.Sites))
	for name, def := range file.Sites {
		settings, err := def.toSettings(name)
		if err != nil {
			return nil, err
		}
		out[name] = settings
	}
	return out, nil
}

func (d siteDefinition) toSettings(name string) (domain.SiteSettings, error) {
	s := domain.SiteSettings{
		Name:                   name,
		RootURL:                strings.TrimRight(d.RootURL, "/"),
		Slug:                   d.Slug,
		PageParam:              d.PageParam,
		PageInPath:             d.PageInPath,
		Columns:                d.Columns,
		IncludeDeclaredColumns: d.IncludeDeclaredColumns,
		MetadataPosition:       domain.MetadataLast,
		PageColumn:             d.PageColumn,
		URLColumn:              d.URLColumn,
		CategoryColumn:         d.CategoryColumn,
		ListingPreviews:        d.ListingPreviews == nil || *d.ListingPreviews,
		ListingPages:           d.ListingPages == nil || *d.ListingPages,
		Clean:                  domain.CleanPerPage,
	}
	if d.MetadataPosition != "" {
		s.MetadataPosition = domain.MetadataPosition(d.MetadataPosition)
	}
	if d.Clean != "" {
		s.Clean = domain.CleanStage(d.Clean)
	}

	seen := make(map[string]bool, len(d.Categories))
	for _, c := range d.Categories {
		if seen[c.Label] {
			return s, fmt.Errorf("site %q: duplicate category %q", name, c.Label)
		}
		seen[c.Label] = true
		s.Categories = append(s.Categories, domain.Category{Label: c.Label, Slug: c.Slug})
	}
	if s.HasCategories() && s.CategoryColumn == "" {
		return s, fmt.Errorf("site %q: category_column is required when categories are declared", name)
	}
	if s.PageColumn != "" && s.PageColumn == s.URLColumn {
		return s, fmt.Errorf("site %q: page_column and url_column must differ", name)
	}
	return s, nil
}

// validateSites проверяет документ по встроенной JSON-схеме.
// YAML сначала переводится в JSON, чтобы числа и ключи имели те же типы, что у encoding/json.
func validateSites(data []byte) error {
	schema, err := compileSitesSchema()
	if err != nil {
		return err
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse site definitions: %w", err)
	}
	plain, err := toJSONCompatible(raw)
	if err != nil {
		return fmt.Errorf("parse site definitions: %w", err)
	}
	body, err := json.Marshal(plain)
	if err != nil {
		return fmt.Errorf("parse site definitions: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("parse site definitions: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("site definitions do not match schema: %w", err)
	}
	return nil
}

func compileSitesSchema() (*jsonschema.Schema, error) {
	file, err := schemas.SchemasFS.Open(sitesSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("open sites schema: %w", err)
	}
	defer file.Close()

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(sitesSchemaPath, file); err != nil {
		return nil, fmt.Errorf("add sites schema: %w", err)
	}
	schema, err := compiler.Compile(sitesSchemaPath)
	if err != nil {
		return nil, fmt.Errorf("compile sites schema: %w", err)
	}
	return schema, nil
}

// toJSONCompatible заменяет map[interface{}]interface{} из yaml.v2 на map[string]interface{}
func toJSONCompatible(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}
			conv, err := toJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			m[key] = conv
		}
		return m, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			conv, err := toJSONCompatible(val)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return v, nil
	}
}

// SiteNames возвращает имена сайтов в алфавитном порядке
func SiteNames(sites map[string]domain.SiteSettings) []string {
	names := make([]string, 0, len(sites))
	for n := range sites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
