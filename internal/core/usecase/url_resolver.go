package usecase

import (
	"fmt"
	"net/url"
	"property-listings-puller/internal/core/domain"
	"strings"
)

// URLResolver приводит ссылки объявлений к абсолютному виду и проверяет,
// что они ведут на тот же хост, что и корневой адрес сайта
type URLResolver struct {
	root string
	host string
}

// NewURLResolver разбирает корневой адрес сайта
func NewURLResolver(rootURL string) (*URLResolver, error) {
	u, err := url.Parse(rootURL)
	if err != nil {
		return nil, fmt.Errorf("url resolver: invalid root url %q: %w", rootURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url resolver: root url %q has no host", rootURL)
	}
	return &URLResolver{
		root: strings.TrimRight(rootURL, "/"),
		host: u.Hostname(),
	}, nil
}

// Resolve возвращает абсолютную ссылку. ok=false означает, что ссылки нет
// и объявление нужно пропустить. Для ссылки на чужой домен возвращается domain.ErrOffSiteURL.
func (r *URLResolver) Resolve(candidate string) (resolved string, ok bool, err error) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false, nil
	}

	u, err := url.Parse(candidate)
	if err != nil {
		return "", false, &domain.StructuralURLError{Candidate: candidate, Err: err}
	}

	if u.Host == "" {
		// "mailto:..." или "javascript:..." - схема без хоста, это не относительная ссылка
		if u.Scheme != "" {
			return "", false, fmt.Errorf("%w: %s", domain.ErrOffSiteURL, candidate)
		}
		if !strings.HasPrefix(candidate, "/") {
			candidate = "/" + candidate
		}
		return r.root + candidate, true, nil
	}

	if !strings.EqualFold(u.Hostname(), r.host) {
		return "", false, fmt.Errorf("%w: %s (expected host %s)", domain.ErrOffSiteURL, u.Hostname(), r.host)
	}
	return candidate, true, nil
}

// Host возвращает хост корневого адреса
func (r *URLResolver) Host() string {
	return r.host
}
