package confirmer_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"property-listings-puller/internal/adapters/confirmer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptConfirmer(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"maybe\nno\n", false},
		{"what\ny\n", true},
		{"", false},
		{"y", true},
	}
	for _, tc := range cases {
		var out bytes.Buffer
		c := confirmer.NewPromptConfirmer(strings.NewReader(tc.input), &out)
		got, err := c.Confirm(context.Background(), "File out.csv already exists. Continue?")
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.want, got, tc.input)
		assert.Contains(t, out.String(), "[y/n]")
	}
}

func TestStaticConfirmer(t *testing.T) {
	ok, err := confirmer.StaticConfirmer{Allow: true}.Confirm(context.Background(), "?")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = confirmer.StaticConfirmer{}.Confirm(context.Background(), "?")
	require.NoError(t, err)
	assert.False(t, ok)
}
