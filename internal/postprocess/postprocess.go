// Package postprocess finalizes edge attributes that could not be computed
// at crawl time. A run streams every record whose process field is set,
// resolves the pending values and writes each record back without the
// process field.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/webgraph/internal/fieldselection"
	"github.com/JakeFAU/webgraph/internal/metrics"
	"github.com/JakeFAU/webgraph/internal/webgraph"
)

var (
	// ErrUnknownTask marks a record carrying a process tag with no handler.
	ErrUnknownTask = errors.New("unknown post-processing task")
	// ErrAlreadyRunning is returned when Run is called while a run is active.
	ErrAlreadyRunning = errors.New("post-processing already running")
)

const maxReportedSkips = 100

// Config bounds the pending-record query.
type Config struct {
	PageSize   int
	MaxResults int
	Buffer     int
	Timeout    time.Duration
}

// Outcome is the result of handling one record.
type Outcome struct {
	ID                string
	Rewritten         bool
	ClickDepthChanged int
	Err               error
}

// Skip describes a record left pending.
type Skip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report aggregates one run.
type Report struct {
	RunID             string    `json:"run_id"`
	Started           time.Time `json:"started"`
	Finished          time.Time `json:"finished"`
	Enabled           bool      `json:"enabled"`
	Processed         int       `json:"processed"`
	ClickDepthChanged int       `json:"clickdepth_changed"`
	ReferenceChanged  int       `json:"reference_changed"`
	Skipped           int       `json:"skipped"`
	Canceled          bool      `json:"canceled"`
	TimedOut          bool      `json:"timed_out"`
	Skips             []Skip    `json:"skips,omitempty"`
}

func (r *Report) add(o Outcome) {
	if o.Rewritten {
		r.Processed++
		if o.ClickDepthChanged > 0 {
			r.ClickDepthChanged++
		}
		return
	}
	r.Skipped++
	if len(r.Skips) < maxReportedSkips {
		r.Skips = append(r.Skips, Skip{ID: o.ID, Reason: o.Err.Error()})
	}
}

// PostProcessor rewrites pending edge records.
type PostProcessor struct {
	policy   *fieldselection.Policy
	index    webgraph.Index
	resolver webgraph.ClickDepthResolver
	cfg      Config
	clock    webgraph.Clock
	logger   *zap.Logger

	running sync.Mutex
}

// New returns a PostProcessor. A nil resolver disables it.
func New(
	policy *fieldselection.Policy,
	index webgraph.Index,
	resolver webgraph.ClickDepthResolver,
	cfg Config,
	logger *zap.Logger,
) *PostProcessor {
	if policy == nil {
		policy = fieldselection.SelectAll()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &PostProcessor{
		policy:   policy,
		index:    index,
		resolver: resolver,
		cfg:      cfg,
		clock:    webgraph.SystemClock{},
		logger:   logger,
	}
}

// Enabled reports whether the schema keeps a process field and citation
// lookups are available.
func (p *PostProcessor) Enabled() bool {
	return p.index != nil && p.resolver != nil && p.policy.Tracks(webgraph.FieldProcess)
}

// Run performs one pass over all pending records. Records that fail are
// reported as skipped and stay pending for the next run. Cancelling ctx ends
// the pass after the current record without an error.
func (p *PostProcessor) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString(), Started: p.clock.Now(), Enabled: p.Enabled()}
	if !report.Enabled {
		p.logger.Info("post-processing disabled", zap.String("run_id", report.RunID))
		report.Finished = p.clock.Now()
		return report, nil
	}
	if !p.running.TryLock() {
		return report, ErrAlreadyRunning
	}
	defer p.running.Unlock()

	logger := p.logger.With(zap.String("run_id", report.RunID))
	if err := p.index.Commit(ctx); err != nil {
		return report, fmt.Errorf("commit index: %w", err)
	}

	stream := p.index.StreamPresent(ctx, webgraph.PresenceQuery{
		Alias:      p.policy.Alias(webgraph.FieldProcess),
		PageSize:   p.cfg.PageSize,
		MaxResults: p.cfg.MaxResults,
		Timeout:    p.cfg.Timeout,
		Buffer:     p.cfg.Buffer,
	})
	defer stream.Close()

drain:
	for {
		select {
		case <-ctx.Done():
			report.Canceled = true
			break drain
		case doc, ok := <-stream.Docs():
			if !ok {
				break drain
			}
			outcome := p.process(ctx, doc)
			if outcome.Err != nil && ctx.Err() != nil {
				report.Canceled = true
				break drain
			}
			report.add(outcome)
			if outcome.Rewritten {
				metrics.ObservePostprocessRecord("rewritten")
			} else {
				metrics.ObservePostprocessRecord("skipped")
				logger.Warn("post-processing skipped record",
					zap.String("edge_id", outcome.ID),
					zap.Error(outcome.Err),
				)
			}
		}
	}

	var runErr error
	if !report.Canceled {
		switch err := stream.Err(); {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			report.TimedOut = true
			logger.Warn("post-processing query timed out, remaining records wait for the next run",
				zap.Duration("timeout", p.cfg.Timeout),
			)
		case ctx.Err() != nil:
			report.Canceled = true
		default:
			runErr = fmt.Errorf("stream pending records: %w", err)
		}
	}

	report.Finished = p.clock.Now()
	metrics.ObservePostprocessRun(report.Finished.Sub(report.Started))
	logger.Info("post-processing finished",
		zap.Int("processed", report.Processed),
		zap.Int("clickdepth_changed", report.ClickDepthChanged),
		zap.Int("reference_changed", report.ReferenceChanged),
		zap.Int("skipped", report.Skipped),
		zap.Bool("canceled", report.Canceled),
	)
	return report, runErr
}

// process handles every task tagged on doc and writes the record back.
func (p *PostProcessor) process(ctx context.Context, doc webgraph.Document) Outcome {
	id, _ := doc.String(p.policy.Alias(webgraph.FieldID))
	out := Outcome{ID: id}
	sid := p.policy.Restrict(doc)

	seen := make(map[string]struct{})
	for _, tag := range doc.Strings(p.policy.Alias(webgraph.FieldProcess)) {
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}

		switch webgraph.ProcessType(tag) {
		case webgraph.ProcessClickDepth:
			for _, ep := range []webgraph.Endpoint{webgraph.Source, webgraph.Target} {
				changed, err := p.resolveClickDepth(ctx, doc, sid, ep)
				if err != nil {
					out.Err = fmt.Errorf("%s click depth: %w", ep.Name, err)
					return out
				}
				if changed {
					out.ClickDepthChanged++
					metrics.ObserveClickDepthChange()
				}
			}
		default:
			out.Err = fmt.Errorf("%w: %q", ErrUnknownTask, tag)
			return out
		}
	}

	delete(sid, p.policy.Alias(webgraph.FieldProcess))
	if err := p.index.Upsert(ctx, sid); err != nil {
		out.Err = fmt.Errorf("rewrite record: %w", err)
		return out
	}
	out.Rewritten = true
	return out
}

// resolveClickDepth recomputes the click depth of one endpoint and writes it
// into sid when it differs from the stored value. Endpoints whose URL is not
// stored are left alone. A root depth of 0 is always written; other depths
// only when the click depth field is selected.
func (p *PostProcessor) resolveClickDepth(
	ctx context.Context,
	doc, sid webgraph.Document,
	ep webgraph.Endpoint,
) (bool, error) {
	if !p.policy.TracksAll(ep.Protocol, ep.URLStub, ep.ID) {
		return false, nil
	}
	protocol, _ := doc.String(p.policy.Alias(ep.Protocol))
	stub, _ := doc.String(p.policy.Alias(ep.URLStub))
	id, _ := doc.String(p.policy.Alias(ep.ID))
	if protocol == "" || stub == "" || id == "" {
		return false, nil
	}
	u, err := webgraph.ParseURLWithHash(protocol+"://"+stub, id)
	if err != nil {
		return false, err
	}
	depth, err := p.resolver.ClickDepth(ctx, u)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", u, err)
	}
	if stored, ok := doc.Int(p.policy.Alias(ep.ClickDepth)); ok && stored == depth {
		return false, nil
	}
	if depth == 0 {
		p.policy.ForceWrite(sid, ep.ClickDepth, depth)
	} else {
		p.policy.Write(sid, ep.ClickDepth, depth)
	}
	return true, nil
}
