package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bugzapp/internal/qa"
)

func TestLocations(t *testing.T) {
	tests := []struct {
		name string
		data any
		want []string
	}{
		{
			name: "nil",
			data: nil,
			want: []string{},
		},
		{
			name: "plain string is ignored",
			data: "hello",
			want: []string{},
		},
		{
			name: "location key accepts any string",
			data: map[string]any{"screenshotPath": "evidence/shot.png"},
			want: []string{"evidence/shot.png"},
		},
		{
			name: "url-looking strings under any key",
			data: map[string]any{"note": "see https://shop.test/a", "link": "https://shop.test/b"},
			want: []string{"https://shop.test/b"},
		},
		{
			name: "absolute and windows paths in arrays",
			data: []any{"/var/qa/page.html", `C:\qa\page.html`, "relative.txt"},
			want: []string{"/var/qa/page.html", `C:\qa\page.html`},
		},
		{
			name: "duplicates keep first-seen order",
			data: []any{"https://a.test", "/b", "https://a.test"},
			want: []string{"https://a.test", "/b"},
		},
		{
			name: "strings three levels down are found",
			data: map[string]any{"a": map[string]any{"b": map[string]any{"c": "/three"}}},
			want: []string{"/three"},
		},
		{
			name: "strings four levels down are not",
			data: map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{"d": "/four"}}}},
			want: []string{},
		},
		{
			name: "typed values are normalized",
			data: qa.EvidenceArtifact{Type: qa.ArtifactHTML, Path: "page.html", CreatedAt: time.Unix(0, 0).UTC()},
			want: []string{"page.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Locations(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocations_UnencodableData(t *testing.T) {
	_, err := Locations(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}
