package port

import "context"

// TableWriterPort - итоговая таблица, растущая постраничными дозаписями
type TableWriterPort interface {
	// Path возвращает адрес таблицы (для логов и подтверждений)
	Path() string

	Exists() (bool, error)

	// Remove удаляет существующую таблицу. Вызывается только после подтверждения.
	Remove() error

	// Header читает заголовок существующей таблицы
	Header() ([]string, error)

	// AppendPage дописывает строки одной страницы. Заголовок пишется,
	// только если таблица еще пуста.
	AppendPage(ctx context.Context, header []string, rows [][]string) error
}

// TableReaderPort читает таблицу целиком (для постобработки в конце запуска)
type TableReaderPort interface {
	ReadAll(ctx context.Context) (header []string, rows [][]string, err error)
}

// ConfirmerPort - решение о работе с уже существующим файлом.
// Внедряется снаружи, ядро никогда не читает терминал само.
type ConfirmerPort interface {
	Confirm(ctx context.Context, question string) (bool, error)
}
