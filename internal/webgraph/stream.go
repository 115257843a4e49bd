package webgraph

import (
	"context"
	"fmt"
	"sync"
)

// PageFunc fetches up to limit matching documents whose id sorts after the
// cursor, ordered by id. An empty cursor starts from the beginning.
type PageFunc func(ctx context.Context, after string, limit int) ([]Document, error)

// DocumentStream delivers query results through a bounded channel. The
// channel returned by Docs is closed at end of stream; Err reports why the
// stream ended once it is closed.
type DocumentStream struct {
	docs   chan Document
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// StreamPages runs fetch page by page in a producer goroutine, advancing a
// keyset cursor on idKey so records rewritten while the stream is open are
// neither skipped nor repeated.
func StreamPages(ctx context.Context, q PresenceQuery, idKey string, fetch PageFunc) *DocumentStream {
	q = q.WithDefaults()
	sctx, cancel := context.WithTimeout(ctx, q.Timeout)
	s := &DocumentStream{
		docs:   make(chan Document, q.Buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go s.produce(sctx, q, idKey, fetch)
	return s
}

// FailedStream returns an already closed stream that reports err.
func FailedStream(err error) *DocumentStream {
	s := &DocumentStream{
		docs:   make(chan Document),
		done:   make(chan struct{}),
		cancel: func() {},
		err:    err,
	}
	close(s.docs)
	close(s.done)
	return s
}

func (s *DocumentStream) produce(ctx context.Context, q PresenceQuery, idKey string, fetch PageFunc) {
	defer close(s.done)
	defer s.cancel()
	defer close(s.docs)

	after := ""
	sent := 0
	for sent < q.MaxResults {
		limit := min(q.PageSize, q.MaxResults-sent)
		page, err := fetch(ctx, after, limit)
		if err != nil {
			s.setErr(fmt.Errorf("fetch page after %q: %w", after, err))
			return
		}
		for _, doc := range page {
			select {
			case s.docs <- doc:
				sent++
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
		if len(page) < limit {
			return
		}
		last, ok := page[len(page)-1].String(idKey)
		if !ok || last == "" {
			s.setErr(fmt.Errorf("document without %s ends the stream", idKey))
			return
		}
		after = last
	}
}

func (s *DocumentStream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Docs returns the receive side of the stream.
func (s *DocumentStream) Docs() <-chan Document {
	return s.docs
}

// Err returns the error that ended the stream, or nil at a normal end.
// It is only meaningful after Docs has been closed.
func (s *DocumentStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the producer and waits for it to exit.
func (s *DocumentStream) Close() {
	s.cancel()
	for range s.docs {
	}
	<-s.done
}
