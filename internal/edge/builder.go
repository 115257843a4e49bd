// Package edge turns a crawled page and its links into webgraph edge records.
package edge

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/fieldselection"
	"github.com/JakeFAU/webgraph/internal/metrics"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// Direction labels.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// LinkAttributes are the anchor properties extracted for one target URL.
type LinkAttributes struct {
	Name string `json:"name,omitempty"`
	Text string `json:"text,omitempty"`
	Rel  string `json:"rel,omitempty"`
}

// ResponseMeta carries the response headers the builder needs.
type ResponseMeta struct {
	LastModified time.Time
}

// Page is everything known about one crawled source page.
type Page struct {
	Source           *webgraph.URL
	Response         *ResponseMeta
	Collections      []string
	SourceClickDepth int
	// Links holds anchor attributes keyed by target normal form. Targets
	// without an entry are not indexable and are skipped.
	Links map[string]LinkAttributes
	// ImageAlts holds image alt text keyed by target normal form.
	ImageAlts map[string]string
	Inbound   []*webgraph.URL
	Outbound  []*webgraph.URL
	// ClickDepthResolvable is set when a click depth resolver can later
	// finalize target depths.
	ClickDepthResolvable bool
}

// Subgraph is the edge batch built for one page. The URL lists are
// positionally aligned with the edges of the same direction.
type Subgraph struct {
	Inbound      []webgraph.Document
	Outbound     []webgraph.Document
	InboundURLs  []webgraph.URLStub
	OutboundURLs []webgraph.URLStub
}

// Edges returns inbound followed by outbound edges.
func (s Subgraph) Edges() []webgraph.Document {
	out := make([]webgraph.Document, 0, s.Len())
	out = append(out, s.Inbound...)
	return append(out, s.Outbound...)
}

// Len returns the number of edges.
func (s Subgraph) Len() int {
	return len(s.Inbound) + len(s.Outbound)
}

// Builder builds edge records under a field selection policy. It holds no
// per-call state and may be shared between goroutines.
type Builder struct {
	policy *fieldselection.Policy
	clock  webgraph.Clock
	logger *zap.Logger
}

// NewBuilder returns a Builder. A nil clock uses the wall clock.
func NewBuilder(policy *fieldselection.Policy, clock webgraph.Clock, logger *zap.Logger) *Builder {
	if policy == nil {
		policy = fieldselection.SelectAll()
	}
	if clock == nil {
		clock = webgraph.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Builder{policy: policy, clock: clock, logger: logger}
}

// Build emits one edge per inbound and outbound target of page.
func (b *Builder) Build(page Page) (Subgraph, error) {
	if page.Source == nil {
		return Subgraph{}, errors.New("page source is required")
	}
	var sg Subgraph
	sg.Inbound, sg.InboundURLs = b.buildDirection(page, true, page.Inbound)
	sg.Outbound, sg.OutboundURLs = b.buildDirection(page, false, page.Outbound)

	metrics.ObserveEdges(Inbound, len(sg.Inbound))
	metrics.ObserveEdges(Outbound, len(sg.Outbound))
	b.logger.Debug("built subgraph",
		zap.String("source", page.Source.String()),
		zap.Int("inbound", len(sg.Inbound)),
		zap.Int("outbound", len(sg.Outbound)),
	)
	return sg, nil
}

func (b *Builder) buildDirection(page Page, inbound bool, targets []*webgraph.URL) ([]webgraph.Document, []webgraph.URLStub) {
	docs := make([]webgraph.Document, 0, len(targets))
	stubs := make([]webgraph.URLStub, 0, len(targets))
	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if target == nil {
			continue
		}
		if _, dup := seen[target.Normalform()]; dup {
			continue
		}
		seen[target.Normalform()] = struct{}{}
		attrs, ok := page.Links[target.Normalform()]
		if !ok {
			continue
		}
		docs = append(docs, b.buildEdge(page, inbound, target, attrs))
		stubs = append(stubs, webgraph.URLStub{Protocol: target.Protocol(), Stub: target.Stub()})
	}
	return docs, stubs
}

func (b *Builder) buildEdge(page Page, inbound bool, target *webgraph.URL, attrs LinkAttributes) webgraph.Document {
	p := b.policy
	source := page.Source
	doc := webgraph.Document{}
	var pending []string

	p.Write(doc, webgraph.FieldID, ID(source.Hash(), target.Hash(), attrs.Name, attrs.Text, attrs.Rel))

	loadDate := b.clock.Now()
	modified := loadDate
	if page.Response != nil && !page.Response.LastModified.IsZero() {
		modified = page.Response.LastModified
	}
	if modified.After(loadDate) {
		modified = loadDate
	}
	p.Write(doc, webgraph.FieldLoadDate, loadDate)
	p.Write(doc, webgraph.FieldLastModified, modified)
	p.Write(doc, webgraph.FieldCollection, append([]string(nil), page.Collections...))

	b.writeEndpoint(doc, webgraph.Source, source)
	if p.TracksAll(webgraph.FieldSourceProtocol, webgraph.FieldSourceURLStub, webgraph.FieldSourceID) {
		p.Write(doc, webgraph.FieldSourceClickDepth, page.SourceClickDepth)
		if page.SourceClickDepth < 0 || page.SourceClickDepth > 1 {
			pending = appendTask(pending, webgraph.ProcessClickDepth)
			metrics.ObservePendingEdge(webgraph.Source.Name)
		}
	}

	alt := page.ImageAlts[target.Normalform()]
	p.Write(doc, webgraph.FieldTargetInbound, inbound)
	p.Write(doc, webgraph.FieldTargetName, attrs.Name)
	p.Write(doc, webgraph.FieldTargetRel, attrs.Rel)
	p.Write(doc, webgraph.FieldTargetRelFlags, RelFlags(attrs.Rel))
	p.Write(doc, webgraph.FieldTargetLinkText, attrs.Text)
	p.Write(doc, webgraph.FieldTargetLinkTextCharCount, utf8.RuneCountInString(attrs.Text))
	p.Write(doc, webgraph.FieldTargetLinkTextWordCount, len(strings.Fields(attrs.Text)))
	p.Write(doc, webgraph.FieldTargetAlt, alt)
	p.Write(doc, webgraph.FieldTargetAltCharCount, utf8.RuneCountInString(alt))
	p.Write(doc, webgraph.FieldTargetAltWordCount, len(strings.Fields(alt)))

	b.writeEndpoint(doc, webgraph.Target, target)
	if page.ClickDepthResolvable &&
		p.TracksAll(webgraph.FieldTargetProtocol, webgraph.FieldTargetURLStub, webgraph.FieldTargetID) {
		if target.ProbablyRoot() {
			p.ForceWrite(doc, webgraph.FieldTargetClickDepth, 0)
		} else {
			p.Write(doc, webgraph.FieldTargetClickDepth, webgraph.ClickDepthPending)
			pending = appendTask(pending, webgraph.ProcessClickDepth)
			metrics.ObservePendingEdge(webgraph.Target.Name)
		}
	}

	if pending == nil {
		pending = []string{}
	}
	p.Write(doc, webgraph.FieldProcess, pending)
	return doc
}

// writeEndpoint populates the structural fields of one side of the edge.
func (b *Builder) writeEndpoint(doc webgraph.Document, ep webgraph.Endpoint, u *webgraph.URL) {
	p := b.policy
	p.Write(doc, ep.ID, u.Hash())
	p.Write(doc, ep.Protocol, u.Protocol())
	p.Write(doc, ep.URLStub, u.Stub())

	if keys, values, ok := u.SearchPart(); ok {
		p.Write(doc, ep.ParameterCount, len(keys))
		p.Write(doc, ep.ParameterKey, keys)
		p.Write(doc, ep.ParameterValue, values)
	} else {
		p.Write(doc, ep.ParameterCount, 0)
	}
	p.Write(doc, ep.Chars, u.Chars())

	dnc, orga, subdomain := u.HostParts()
	orgDNC := dnc
	if orga != "" {
		orgDNC = orga + "." + dnc
	}
	p.Write(doc, ep.Host, u.Host())
	p.Write(doc, ep.HostID, u.HostHash())
	p.Write(doc, ep.HostDNC, dnc)
	p.Write(doc, ep.HostOrganization, orga)
	p.Write(doc, ep.HostOrgDNC, orgDNC)
	p.Write(doc, ep.HostSubdomain, subdomain)

	p.Write(doc, ep.FileExt, u.FileExtension())
	p.Write(doc, ep.Path, u.Path())
	if p.Tracks(ep.FoldersCount) || p.Tracks(ep.Folders) {
		folders := u.Folders()
		if folders == nil {
			folders = []string{}
		}
		p.Write(doc, ep.FoldersCount, len(folders))
		p.Write(doc, ep.Folders, folders)
	}
}

func appendTask(tasks []string, t webgraph.ProcessType) []string {
	for _, existing := range tasks {
		if existing == string(t) {
			return tasks
		}
	}
	return append(tasks, string(t))
}
