package webgraph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseURLNormalizes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"HTTP://Example.COM", "http://example.com/"},
		{"https://example.com:443/a#frag", "https://example.com/a"},
		{"http://example.com:80/a?b=2&a=1", "http://example.com/a?a=1&b=2"},
		{"http://example.com:8080/", "http://example.com:8080/"},
	}
	for _, tt := range tests {
		got, err := ParseURL(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.want, got.Normalform(), tt.raw)
	}
}

func TestParseURLRejectsRelative(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"/relative", "", "mailto:", "http://"} {
		_, err := ParseURL(raw)
		require.Error(t, err, raw)
		require.True(t, errors.Is(err, ErrMalformedURL), raw)
	}
}

func TestURLParts(t *testing.T) {
	t.Parallel()

	u := MustParseURL("http://b.example/q?x=1")
	require.Equal(t, "http", u.Protocol())
	require.Equal(t, "b.example/q?x=1", u.Stub())
	require.Equal(t, "b.example", u.Host())
	require.Equal(t, "/q", u.Path())
	require.Empty(t, u.Folders())
	require.Equal(t, "", u.FileExtension())
	require.Len(t, u.Hash(), 12)
	require.Equal(t, u.HostHash(), u.Hash()[6:])

	keys, values, ok := u.SearchPart()
	require.True(t, ok)
	require.Equal(t, []string{"x"}, keys)
	require.Equal(t, []string{"1"}, values)
}

func TestURLFoldersAndExtension(t *testing.T) {
	t.Parallel()

	u := MustParseURL("https://www.example.com/a/b/Report.PDF")
	require.Equal(t, []string{"a", "b"}, u.Folders())
	require.Equal(t, "Report.PDF", u.FileName())
	require.Equal(t, "pdf", u.FileExtension())

	dir := MustParseURL("https://www.example.com/a/b/")
	require.Equal(t, []string{"a", "b"}, dir.Folders())
	require.Equal(t, "", dir.FileName())
}

func TestURLSearchPartWithoutQuery(t *testing.T) {
	t.Parallel()

	_, _, ok := MustParseURL("http://a.example/p").SearchPart()
	require.False(t, ok)
}

func TestHostParts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw               string
		dnc, orga, subdom string
	}{
		{"http://www.news.example.co.uk/", "co.uk", "example", "www.news"},
		{"http://example.com/", "com", "example", ""},
		{"http://10.0.0.1/", "10.0.0.1", "", ""},
	}
	for _, tt := range tests {
		dnc, orga, sub := MustParseURL(tt.raw).HostParts()
		require.Equal(t, tt.dnc, dnc, tt.raw)
		require.Equal(t, tt.orga, orga, tt.raw)
		require.Equal(t, tt.subdom, sub, tt.raw)
	}
}

func TestProbablyRoot(t *testing.T) {
	t.Parallel()

	require.True(t, MustParseURL("http://a.example").ProbablyRoot())
	require.True(t, MustParseURL("http://a.example/index.html").ProbablyRoot())
	require.False(t, MustParseURL("http://a.example/?page=2").ProbablyRoot())
	require.False(t, MustParseURL("http://a.example/about").ProbablyRoot())
}

func TestParseURLWithHash(t *testing.T) {
	t.Parallel()

	u, err := ParseURLWithHash("http://a.example/p", "AAAAAABBBBBB")
	require.NoError(t, err)
	require.Equal(t, "AAAAAABBBBBB", u.Hash())

	_, err = ParseURLWithHash("http://a.example/p", "short")
	require.ErrorIs(t, err, ErrMalformedURL)

	_, err = ParseURLWithHash("://broken", "AAAAAABBBBBB")
	require.ErrorIs(t, err, ErrMalformedURL)
}
