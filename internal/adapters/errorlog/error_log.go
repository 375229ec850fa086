package errorlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"property-listings-puller/internal/core/domain"
	"strings"
	"sync"
	"time"
)

// FileErrorLogAdapter - журнал ошибок в текстовом файле, только дозапись.
// Одна запись на неудачную загрузку или извлечение.
type FileErrorLogAdapter struct {
	path string
	mu   sync.Mutex
}

func NewFileErrorLogAdapter(path string) *FileErrorLogAdapter {
	return &FileErrorLogAdapter{path: path}
}

func (a *FileErrorLogAdapter) Record(_ context.Context, rec domain.FailureRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if dir := filepath.Dir(a.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error log: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("error log: open %s: %w", a.path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(format(rec)); err != nil {
		return fmt.Errorf("error log: write: %w", err)
	}
	return nil
}

func format(rec domain.FailureRecord) string {
	ts := rec.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s site=%s", ts.Format(time.RFC3339), rec.Site)
	if rec.Category != "" {
		fmt.Fprintf(&b, " category=%q", rec.Category)
	}
	fmt.Fprintf(&b, " page=%d stage=%s", rec.Page, rec.Stage)
	if rec.Attempt > 0 {
		fmt.Fprintf(&b, " attempt=%d", rec.Attempt)
	}
	fmt.Fprintf(&b, " url=%s\n", rec.URL)
	if rec.Err != nil {
		fmt.Fprintf(&b, "    %s\n", strings.ReplaceAll(rec.Err.Error(), "\n", "\n    "))
	}
	return b.String()
}
