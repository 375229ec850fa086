package usecase

import (
	"property-listings-puller/internal/core/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewURLResolver(t *testing.T) {
	r, err := NewURLResolver("https://www.domiporta.pl/")
	require.NoError(t, err)
	assert.Equal(t, "www.domiporta.pl", r.Host())

	_, err = NewURLResolver("domiporta.pl")
	assert.Error(t, err)
}

func TestURLResolver_Resolve(t *testing.T) {
	r, err := NewURLResolver("https://www.example.com")
	require.NoError(t, err)

	tests := []struct {
		name      string
		candidate string
		want      string
		wantOK    bool
		offSite   bool
	}{
		{name: "root relative", candidate: "/oferta/1", want: "https://www.example.com/oferta/1", wantOK: true},
		{name: "relative without slash", candidate: "oferta/1", want: "https://www.example.com/oferta/1", wantOK: true},
		{name: "absolute same host", candidate: "https://www.example.com/x?id=2", want: "https://www.example.com/x?id=2", wantOK: true},
		{name: "host case ignored", candidate: "https://WWW.Example.com/x", want: "https://WWW.Example.com/x", wantOK: true},
		{name: "surrounding spaces", candidate: "  /y  ", want: "https://www.example.com/y", wantOK: true},
		{name: "empty", candidate: "", wantOK: false},
		{name: "other host", candidate: "https://ads.other.com/click", offSite: true},
		{name: "subdomain is another host", candidate: "https://m.example.com/x", offSite: true},
		{name: "mailto", candidate: "mailto:agent@example.com", offSite: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := r.Resolve(tt.candidate)
			if tt.offSite {
				assert.ErrorIs(t, err, domain.ErrOffSiteURL)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestURLResolver_StructuralError(t *testing.T) {
	r, err := NewURLResolver("https://www.example.com")
	require.NoError(t, err)

	_, _, err = r.Resolve("http://[::1")
	var structural *domain.StructuralURLError
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, "http://[::1", structural.Candidate)
	assert.True(t, domain.IsFatal(err))
}
