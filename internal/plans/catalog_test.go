package plans

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Equal(t, []string{"trial", "family", "ancestry", "community"}, c.Ladder())

	p, ok := c.GetPlan("Family")
	require.True(t, ok)
	assert.Equal(t, 5, p.TreeLimit)

	_, ok = c.GetPlan("enterprise")
	assert.False(t, ok)
}

func TestNext(t *testing.T) {
	c := Default()

	tests := []struct {
		from   string
		want   string
		wantOK bool
	}{
		{"trial", "family", true},
		{"family", "ancestry", true},
		{"ancestry", "community", true},
		{"community", "", false},
		{"unknown", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			next, ok := c.Next(tt.from)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, next.ID)
		})
	}
}

func TestRead_Invalid(t *testing.T) {
	cases := map[string]string{
		"ladder references unknown plan": `ladder = ["gold"]`,
		"duplicate plan": `
[[plan]]
id = "a"
tree_limit = 1
[[plan]]
id = "A"
tree_limit = 2`,
		"negative limit": `
[[plan]]
id = "a"
tree_limit = -1`,
		"not toml": `ladder = [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}
