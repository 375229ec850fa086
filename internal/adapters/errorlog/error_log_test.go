package errorlog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"property-listings-puller/internal/adapters/errorlog"
	"property-listings-puller/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_AppendsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")
	log := errorlog.NewFileErrorLogAdapter(path)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, log.Record(context.Background(), domain.FailureRecord{
			Time:     ts,
			Site:     "zingat",
			Category: "Satılık",
			Page:     3,
			URL:      "https://www.zingat.com/ilan/1",
			Stage:    "detail_fetch",
			Attempt:  attempt,
			Err:      errors.New("unexpected status 503"),
		}))
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `2024-05-01T10:00:00Z site=zingat category="Satılık" page=3 stage=detail_fetch attempt=1 url=https://www.zingat.com/ilan/1`, lines[0])
	assert.Equal(t, "    unexpected status 503", lines[1])
	assert.Contains(t, lines[2], "attempt=2")
}
