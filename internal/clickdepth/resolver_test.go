package clickdepth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/webgraph/internal/edge"
	"github.com/JakeFAU/webgraph/internal/fieldselection"
	"github.com/JakeFAU/webgraph/internal/index/memory"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

func link(t *testing.T, idx *memory.Index, from, to string) {
	t.Helper()
	src := webgraph.MustParseURL(from)
	dst := webgraph.MustParseURL(to)
	page := edge.Page{
		Source: src,
		Links:  map[string]edge.LinkAttributes{dst.Normalform(): {Text: "link"}},
	}
	if src.SameHost(dst) {
		page.Inbound = []*webgraph.URL{dst}
	} else {
		page.Outbound = []*webgraph.URL{dst}
	}
	sg, err := edge.NewBuilder(nil, nil, nil).Build(page)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), sg.Edges()...))
}

func siteGraph(t *testing.T) *memory.Index {
	t.Helper()
	idx := memory.New("id")
	link(t, idx, "http://s.example/", "http://s.example/a")
	link(t, idx, "http://s.example/a", "http://s.example/b")
	link(t, idx, "http://other.example/", "http://s.example/b")
	link(t, idx, "http://s.example/b", "http://s.example/a")
	return idx
}

func TestClickDepth(t *testing.T) {
	t.Parallel()

	r, err := New(siteGraph(t), nil, 0, nil)
	require.NoError(t, err)

	tests := []struct {
		url  string
		want int
	}{
		{"http://s.example/", 0},
		{"http://s.example/a", 1},
		{"http://s.example/b", 2},
		{"http://s.example/unlinked", webgraph.ClickDepthPending},
	}
	for _, tt := range tests {
		got, err := r.ClickDepth(context.Background(), webgraph.MustParseURL(tt.url))
		require.NoError(t, err, tt.url)
		require.Equal(t, tt.want, got, tt.url)
	}
}

func TestClickDepthRespectsLimit(t *testing.T) {
	t.Parallel()

	r, err := New(siteGraph(t), nil, 1, nil)
	require.NoError(t, err)
	got, err := r.ClickDepth(context.Background(), webgraph.MustParseURL("http://s.example/b"))
	require.NoError(t, err)
	require.Equal(t, webgraph.ClickDepthPending, got)
}

func TestClickDepthCanceled(t *testing.T) {
	t.Parallel()

	r, err := New(siteGraph(t), nil, 0, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.ClickDepth(ctx, webgraph.MustParseURL("http://s.example/b"))
	require.ErrorIs(t, err, context.Canceled)
}

type failingIndex struct{ webgraph.Index }

func (failingIndex) FindByField(context.Context, string, string, int) ([]webgraph.Document, error) {
	return nil, errors.New("index down")
}

func TestClickDepthPropagatesIndexErrors(t *testing.T) {
	t.Parallel()

	r, err := New(failingIndex{}, nil, 0, nil)
	require.NoError(t, err)
	_, err = r.ClickDepth(context.Background(), webgraph.MustParseURL("http://s.example/b"))
	require.ErrorContains(t, err, "index down")
}

func TestNewRequiresEndpointIDs(t *testing.T) {
	t.Parallel()

	policy, err := fieldselection.New([]fieldselection.Entry{{Field: webgraph.FieldID}})
	require.NoError(t, err)
	_, err = New(memory.New("id"), policy, 0, nil)
	require.Error(t, err)

	_, err = New(nil, nil, 0, nil)
	require.Error(t, err)
}
