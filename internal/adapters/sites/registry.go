package sites

import (
	"fmt"
	"property-listings-puller/internal/core/port"
)

type constructor func(logger port.LoggerPort) (port.SiteAdapterPort, error)

var registry = map[string]constructor{
	"domiporta":  func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewDomiportaAdapter(l) },
	"otodom":     func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewOtodomAdapter(l) },
	"zingat":     func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewZingatAdapter(l) },
	"emlakjet":   func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewEmlakjetAdapter(l, nil) },
	"olx":        func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewOlxAdapter(l) },
	"hepsiemlak": func(l port.LoggerPort) (port.SiteAdapterPort, error) { return NewHepsiemlakAdapter(l) },
}

// New создает адаптер сайта по ключу из конфигурации
func New(name string, logger port.LoggerPort) (port.SiteAdapterPort, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown site %q, supported: %v", name, Names())
	}
	return ctor(logger)
}
