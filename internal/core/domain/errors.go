package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrOffSiteURL - ссылка объявления ведет на другой домен. Объявление пропускается.
	ErrOffSiteURL = errors.New("url does not match site host")

	// ErrNotSupported - маркер отсутствующей необязательной возможности адаптера сайта
	ErrNotSupported = errors.New("not supported by site adapter")

	// ErrListingsNotFound - на странице не найден контейнер со списком объявлений
	ErrListingsNotFound = errors.New("listing container not found")

	// ErrConnectionTerminated - соединение оборвалось во время передачи тела ответа
	ErrConnectionTerminated = errors.New("connection terminated mid-transfer")

	// ErrEndOfPagination - не ошибка, сигнал штатного завершения обхода категории
	ErrEndOfPagination = errors.New("end of pagination")

	// ErrConfirmationDeclined - пользователь не подтвердил работу с существующим файлом
	ErrConfirmationDeclined = errors.New("operation on existing output was not confirmed")
)

// SchemaDriftError - в объявлении есть колонки, которых нет в каноническом списке.
// Единственная ошибка, прерывающая весь запуск.
type SchemaDriftError struct {
	Columns  []string
	Page     int
	Category string
}

func (e *SchemaDriftError) Error() string {
	where := ""
	if e.Page > 0 {
		where = fmt.Sprintf(" on page %d", e.Page)
	}
	if e.Category != "" {
		where += fmt.Sprintf(" (category %q)", e.Category)
	}
	return fmt.Sprintf("schema drift%s: unexpected columns [%s]", where, strings.Join(e.Columns, ", "))
}

// TransientFetchError - страница не получена после всех попыток
type TransientFetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ExtractionError - адаптер сайта не смог извлечь набор полей
type ExtractionError struct {
	Stage string // preview, url, details, clean
	URL   string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("%s extraction failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s extraction failed for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StructuralURLError - ссылку объявления невозможно разобрать. Прерывает запуск.
type StructuralURLError struct {
	Candidate string
	Err       error
}

func (e *StructuralURLError) Error() string {
	return fmt.Sprintf("cannot resolve listing url %q: %v", e.Candidate, e.Err)
}

func (e *StructuralURLError) Unwrap() error { return e.Err }

// IsFatal сообщает, должна ли ошибка прервать весь запуск
func IsFatal(err error) bool {
	var drift *SchemaDriftError
	var structural *StructuralURLError
	return errors.As(err, &drift) || errors.As(err, &structural)
}
