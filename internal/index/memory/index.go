// Package memory provides an in-memory edge index for development/testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Index keeps documents in a map keyed by id. Writes are visible
// immediately; Commit only counts calls.
type Index struct {
	mu      sync.RWMutex
	idKey   string
	docs    map[string]webgraph.Document
	commits int
}

// New constructs an Index whose documents carry their id under idKey.
func New(idKey string) *Index {
	if idKey == "" {
		idKey = string(webgraph.FieldID)
	}
	return &Index{idKey: idKey, docs: make(map[string]webgraph.Document)}
}

// Upsert stores copies of docs, replacing documents with the same id.
func (x *Index) Upsert(_ context.Context, docs ...webgraph.Document) error {
	for _, doc := range docs {
		if id, ok := doc.String(x.idKey); !ok || id == "" {
			return fmt.Errorf("document without %s", x.idKey)
		}
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, doc := range docs {
		id, _ := doc.String(x.idKey)
		x.docs[id] = doc.Clone()
	}
	return nil
}

// Commit records a commit.
func (x *Index) Commit(context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.commits++
	return nil
}

// Commits returns the number of Commit calls.
func (x *Index) Commits() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.commits
}

// Get returns a copy of the document with the given id.
func (x *Index) Get(_ context.Context, id string) (webgraph.Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	doc, ok := x.docs[id]
	if !ok {
		return nil, webgraph.ErrNotFound
	}
	return doc.Clone(), nil
}

// FindByField returns up to limit documents, ordered by id, whose alias
// holds value.
func (x *Index) FindByField(_ context.Context, alias, value string, limit int) ([]webgraph.Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	var out []webgraph.Document
	for _, id := range x.sortedIDs() {
		doc := x.docs[id]
		if v, ok := doc.String(alias); !ok || v != value {
			continue
		}
		out = append(out, doc.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// StreamPresent streams documents in which q.Alias holds any value.
func (x *Index) StreamPresent(ctx context.Context, q webgraph.PresenceQuery) *webgraph.DocumentStream {
	return webgraph.StreamPages(ctx, q, x.idKey, func(_ context.Context, after string, limit int) ([]webgraph.Document, error) {
		x.mu.RLock()
		defer x.mu.RUnlock()
		var page []webgraph.Document
		for _, id := range x.sortedIDs() {
			if id <= after {
				continue
			}
			doc := x.docs[id]
			if !doc.HasValue(q.Alias) {
				continue
			}
			page = append(page, doc.Clone())
			if len(page) == limit {
				break
			}
		}
		return page, nil
	})
}

// Len returns the number of stored documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func (x *Index) sortedIDs() []string {
	ids := make([]string, 0, len(x.docs))
	for id := range x.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
