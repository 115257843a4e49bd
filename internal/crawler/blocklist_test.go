package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

func TestBlocklistHostRules(t *testing.T) {
	t.Parallel()

	bl := NewBlocklist([]string{"Example.org ", "https://Spam.example.net/landing"})
	require.Equal(t, 2, bl.Len())

	rule, ok := bl.Blocks(webgraph.MustParseURL("http://EXAMPLE.org:8080/x"))
	require.True(t, ok)
	require.Equal(t, "Example.org", rule)

	rule, ok = bl.Blocks(webgraph.MustParseURL("http://spam.example.net/other"))
	require.True(t, ok)
	require.Equal(t, "https://Spam.example.net/landing", rule)

	_, ok = bl.Blocks(webgraph.MustParseURL("http://sub.example.org/"))
	require.False(t, ok)
}

func TestBlocklistDomainRules(t *testing.T) {
	t.Parallel()

	bl := NewBlocklist([]string{"*.ru", ".test", "*.ru"})
	require.Equal(t, 2, bl.Len())

	cases := []struct {
		url     string
		blocked bool
	}{
		{"http://example.ru/", true},
		{"http://sub.domain.ru/page", true},
		{"http://a.test/", true},
		{"http://example.com/", false},
		{"http://ru.example.com/", false},
	}
	for _, tc := range cases {
		_, ok := bl.Blocks(webgraph.MustParseURL(tc.url))
		require.Equal(t, tc.blocked, ok, tc.url)
	}
}

func TestBlocklistIgnoresUnusableRules(t *testing.T) {
	t.Parallel()

	require.Nil(t, NewBlocklist([]string{" ", "*.", "", "http://"}))

	var bl *Blocklist
	_, ok := bl.Blocks(webgraph.MustParseURL("http://anything.example/"))
	require.False(t, ok)
	require.Zero(t, bl.Len())
}
