package internal

import (
	"fmt"
	"path/filepath"
	"property-listings-puller/internal/configs"
	"property-listings-puller/internal/core/domain"
	"property-listings-puller/internal/core/port"
	"property-listings-puller/internal/core/usecase"
	"strings"
)

// runLayouts - колонки итоговой таблицы и, при постобработке в конце, очищенной
type runLayouts struct {
	raw     domain.Layout
	cleaned domain.Layout
}

// buildLayouts: производные колонки Clean попадают в итоговую таблицу,
// если постобработка идет постранично, иначе только в очищенную
func buildLayouts(settings domain.SiteSettings, site port.SiteAdapterPort) runLayouts {
	declared := site.DeclaredColumns()
	var derived []string
	if p, ok := site.(port.DerivedColumnsProvider); ok {
		derived = p.DerivedColumns()
	}

	withDerived := usecase.BuildLayout(usecase.WithExtraColumns(settings, derived), declared)
	if settings.Clean == domain.CleanAtEnd {
		return runLayouts{raw: usecase.BuildLayout(settings, declared), cleaned: withDerived}
	}
	return runLayouts{raw: withDerived}
}

// selectCategories оставляет только запрошенные категории в порядке конфигурации
func selectCategories(settings domain.SiteSettings, labels []string) (domain.SiteSettings, error) {
	if len(labels) == 0 {
		return settings, nil
	}
	if !settings.HasCategories() {
		return settings, fmt.Errorf("site %q has no categories", settings.Name)
	}

	wanted := make(map[string]bool, len(labels))
	for _, l := range labels {
		wanted[l] = true
	}
	var selected []domain.Category
	for _, c := range settings.Categories {
		if wanted[c.Label] {
			selected = append(selected, c)
			delete(wanted, c.Label)
		}
	}
	if len(wanted) > 0 {
		var unknown []string
		for l := range wanted {
			unknown = append(unknown, l)
		}
		return settings, fmt.Errorf("site %q has no categories %v", settings.Name, unknown)
	}
	settings.Categories = selected
	return settings, nil
}

type runPaths struct {
	output        string
	cleanedOutput string
	errorLog      string
}

// resolvePaths заполняет пути по умолчанию от имени итогового файла
func resolvePaths(site string, run configs.RunConfig) runPaths {
	p := runPaths{output: run.Output, cleanedOutput: run.CleanedOutput, errorLog: run.ErrorLog}
	if p.output == "" {
		p.output = site + "_listings.csv"
	}
	stem := strings.TrimSuffix(p.output, filepath.Ext(p.output))
	if p.cleanedOutput == "" {
		p.cleanedOutput = stem + ".clean.csv"
	}
	if p.errorLog == "" {
		p.errorLog = stem + ".errors.log"
	}
	return p
}

func buildRunOptions(run configs.RunConfig, paths runPaths) domain.RunOptions {
	return domain.RunOptions{
		StartPage:           run.StartPage,
		EndPage:             run.EndPage,
		WriteMode:           domain.WriteMode(run.WriteMode),
		Destination:         paths.output,
		CleanedDestination:  paths.cleanedOutput,
		Resume:              run.Resume,
		MaxDetailAttempts:   run.MaxDetailAttempts,
		MaxListPageAttempts: run.MaxListPageAttempts,
		RetryDelay:          run.RetryDelay,
		FailFast:            run.FailFast,
	}
}
