// Package clickdepth resolves the link distance from a site root to a URL
// by walking stored webgraph edges backwards.
package clickdepth

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/fieldselection"
	"github.com/JakeFAU/webgraph/internal/hash"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

// DefaultMaxDepth bounds the traversal when no limit is configured.
const DefaultMaxDepth = 6

const defaultFanout = 1000

// Resolver is a webgraph.ClickDepthResolver backed by the edge index.
type Resolver struct {
	index    webgraph.Index
	policy   *fieldselection.Policy
	maxDepth int
	fanout   int
	logger   *zap.Logger
}

// New returns a Resolver. The index must hold edges written under policy.
func New(index webgraph.Index, policy *fieldselection.Policy, maxDepth int, logger *zap.Logger) (*Resolver, error) {
	if index == nil {
		return nil, errors.New("index is required")
	}
	if policy == nil {
		policy = fieldselection.SelectAll()
	}
	if !policy.TracksAll(webgraph.FieldSourceID, webgraph.FieldTargetID) {
		return nil, errors.New("click depth resolution needs source_id_s and target_id_s")
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{index: index, policy: policy, maxDepth: maxDepth, fanout: defaultFanout, logger: logger}, nil
}

// ClickDepth returns the smallest number of same-host hops from a root page
// to u, 0 when u is itself a root, or webgraph.ClickDepthPending when no root
// is reachable within the depth limit.
func (r *Resolver) ClickDepth(ctx context.Context, u *webgraph.URL) (int, error) {
	if u.ProbablyRoot() {
		return 0, nil
	}
	targetAlias := r.policy.Alias(webgraph.FieldTargetID)
	sourceAlias := r.policy.Alias(webgraph.FieldSourceID)

	visited := map[string]struct{}{u.Hash(): {}}
	frontier := []string{u.Hash()}
	for depth := 1; depth <= r.maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			citing, err := r.index.FindByField(ctx, targetAlias, id, r.fanout)
			if err != nil {
				return 0, fmt.Errorf("find edges citing %s: %w", id, err)
			}
			for _, doc := range citing {
				srcID, ok := doc.String(sourceAlias)
				if !ok || !sameHost(srcID, u) {
					continue
				}
				if _, seen := visited[srcID]; seen {
					continue
				}
				visited[srcID] = struct{}{}
				if r.isRoot(doc) {
					r.logger.Debug("resolved click depth",
						zap.String("url", u.String()),
						zap.Int("depth", depth),
					)
					return depth, nil
				}
				next = append(next, srcID)
			}
		}
		frontier = next
	}
	return webgraph.ClickDepthPending, nil
}

// isRoot reports whether the source side of doc is a root page. Edges whose
// source URL was not stored cannot be classified and count as non-root.
func (r *Resolver) isRoot(doc webgraph.Document) bool {
	protocol, ok := doc.String(r.policy.Alias(webgraph.FieldSourceProtocol))
	if !ok {
		return false
	}
	stub, ok := doc.String(r.policy.Alias(webgraph.FieldSourceURLStub))
	if !ok {
		return false
	}
	src, err := webgraph.ParseURL(protocol + "://" + stub)
	if err != nil {
		return false
	}
	return src.ProbablyRoot()
}

// sameHost compares the host part embedded in an endpoint id.
func sameHost(id string, u *webgraph.URL) bool {
	return len(id) == hash.URLLength && id[hash.HostLength:] == u.HostHash()
}
