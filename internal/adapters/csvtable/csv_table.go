package csvtable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CSVTableAdapter - итоговая таблица в CSV-файле.
// Каждая страница дописывается отдельным циклом открыть-записать-закрыть.
type CSVTableAdapter struct {
	path string
}

func NewCSVTableAdapter(path string) *CSVTableAdapter {
	return &CSVTableAdapter{path: path}
}

func (a *CSVTableAdapter) Path() string {
	return a.path
}

func (a *CSVTableAdapter) Exists() (bool, error) {
	_, err := os.Stat(a.path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("stat %s: %w", a.path, err)
	}
}

func (a *CSVTableAdapter) Remove() error {
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", a.path, err)
	}
	return nil
}

// Header возвращает первую строку файла, nil для пустого файла
func (a *CSVTableAdapter) Header() ([]string, error) {
	file, err := os.Open(a.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", a.path, err)
	}
	defer file.Close()

	header, err := csv.NewReader(file).Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", a.path, err)
	}
	return header, nil
}

// AppendPage дописывает строки страницы. Заголовок пишется только в пустой файл.
func (a *CSVTableAdapter) AppendPage(ctx context.Context, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create output dir: %w", err)
		}
	}

	file, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat %s: %w", a.path, err)
	}

	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			file.Close()
			return fmt.Errorf("csv write header: %w", err)
		}
	}
	if err := writer.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("csv write error: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync %s: %w", a.path, err)
	}
	return file.Close()
}

// ReadAll читает таблицу целиком: заголовок и строки
func (a *CSVTableAdapter) ReadAll(ctx context.Context) ([]string, [][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	file, err := os.Open(a.path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", a.path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", a.path, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[0], records[1:], nil
}
