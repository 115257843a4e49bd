// Package fieldselection decides which edge record fields are materialized
// and under which storage alias.
//
// A Policy is immutable once built and safe for concurrent use. Bypassing
// the gate is a per-call choice (ForceWrite), never a policy mutation.
package fieldselection

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// ErrIDRequired is returned for an explicit selection that leaves out the
// record id.
var ErrIDRequired = errors.New("field selection must enable id")

// Entry enables one field under a storage alias.
type Entry struct {
	Field webgraph.Field
	Alias string
}

// Policy gates field writes.
type Policy struct {
	aliases   map[webgraph.Field]string
	byAlias   map[string]webgraph.Field
	order     []webgraph.Field
	selectAll bool
	lazy      bool
}

// Option customizes a Policy.
type Option func(*Policy)

// WithLazy skips zero values on gated writes. Forced writes are unaffected.
func WithLazy(lazy bool) Option {
	return func(p *Policy) {
		p.lazy = lazy
	}
}

// SelectAll returns a policy that emits every schema field under its own name.
func SelectAll(opts ...Option) *Policy {
	p := &Policy{
		aliases:   map[webgraph.Field]string{},
		byAlias:   map[string]webgraph.Field{},
		selectAll: true,
	}
	for _, f := range webgraph.AllFields {
		p.byAlias[string(f)] = f
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// New builds an explicit policy. An empty entry list yields select-all mode.
// A non-empty list must enable the id field.
func New(entries []Entry, opts ...Option) (*Policy, error) {
	if len(entries) == 0 {
		return SelectAll(opts...), nil
	}
	p := &Policy{
		aliases: make(map[webgraph.Field]string, len(entries)),
		byAlias: make(map[string]webgraph.Field, len(entries)),
	}
	for _, e := range entries {
		if !webgraph.IsKnownField(string(e.Field)) {
			return nil, fmt.Errorf("unknown field %q", e.Field)
		}
		alias := e.Alias
		if alias == "" {
			alias = string(e.Field)
		}
		if prev, ok := p.byAlias[alias]; ok && prev != e.Field {
			return nil, fmt.Errorf("alias %q used by %q and %q", alias, prev, e.Field)
		}
		if _, ok := p.aliases[e.Field]; !ok {
			p.order = append(p.order, e.Field)
		}
		p.aliases[e.Field] = alias
		p.byAlias[alias] = e.Field
	}
	if _, ok := p.aliases[webgraph.FieldID]; !ok {
		return nil, ErrIDRequired
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// IsSelectAll reports whether no explicit field list restricts output.
func (p *Policy) IsSelectAll() bool { return p.selectAll }

// Lazy reports whether zero values are skipped on gated writes.
func (p *Policy) Lazy() bool { return p.lazy }

// IsEnabled reports whether f was explicitly configured.
func (p *Policy) IsEnabled(f webgraph.Field) bool {
	_, ok := p.aliases[f]
	return ok
}

// Tracks reports whether f is materialized, either explicitly or because the
// policy is in select-all mode.
func (p *Policy) Tracks(f webgraph.Field) bool {
	return p.selectAll || p.IsEnabled(f)
}

// TracksAll reports whether every field is tracked.
func (p *Policy) TracksAll(fields ...webgraph.Field) bool {
	for _, f := range fields {
		if !p.Tracks(f) {
			return false
		}
	}
	return true
}

// Alias returns the storage key for f.
func (p *Policy) Alias(f webgraph.Field) string {
	if a, ok := p.aliases[f]; ok {
		return a
	}
	return string(f)
}

// FieldFor maps a storage key back to its field.
func (p *Policy) FieldFor(alias string) (webgraph.Field, bool) {
	f, ok := p.byAlias[alias]
	return f, ok
}

// Write stores v under f's alias when f is tracked. It returns whether the
// value was written.
func (p *Policy) Write(doc webgraph.Document, f webgraph.Field, v any) bool {
	return p.put(doc, f, v, false)
}

// ForceWrite stores v under f's alias regardless of the selection and of
// lazy mode.
func (p *Policy) ForceWrite(doc webgraph.Document, f webgraph.Field, v any) {
	p.put(doc, f, v, true)
}

func (p *Policy) put(doc webgraph.Document, f webgraph.Field, v any, force bool) bool {
	if !force {
		if !p.Tracks(f) {
			return false
		}
		if p.lazy && isZero(v) {
			return false
		}
	}
	doc[p.Alias(f)] = v
	return true
}

// Value reads f from doc.
func (p *Policy) Value(doc webgraph.Document, f webgraph.Field) (any, bool) {
	v, ok := doc[p.Alias(f)]
	return v, ok
}

// Restrict returns a copy of doc holding only tracked fields.
func (p *Policy) Restrict(doc webgraph.Document) webgraph.Document {
	out := make(webgraph.Document, len(doc))
	for k, v := range doc.Clone() {
		if f, ok := p.byAlias[k]; ok && p.Tracks(f) {
			out[k] = v
		}
	}
	return out
}

// Entries lists the materialized fields with their aliases, in
// configuration order or schema order for select-all.
func (p *Policy) Entries() []Entry {
	if p.selectAll {
		out := make([]Entry, 0, len(webgraph.AllFields))
		for _, f := range webgraph.AllFields {
			out = append(out, Entry{Field: f, Alias: string(f)})
		}
		return out
	}
	out := make([]Entry, 0, len(p.order))
	for _, f := range p.order {
		out = append(out, Entry{Field: f, Alias: p.aliases[f]})
	}
	return out
}

func isZero(v any) bool {
	switch tv := v.(type) {
	case nil:
		return true
	case string:
		return tv == ""
	case int:
		return tv == 0
	case int64:
		return tv == 0
	case float64:
		return tv == 0
	case bool:
		return !tv
	case []string:
		return len(tv) == 0
	case time.Time:
		return tv.IsZero()
	}
	return false
}
