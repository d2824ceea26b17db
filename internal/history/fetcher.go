// Package history implements C11: cache-first history retrieval that
// falls back to the platform's paginated endpoint only for the gap the
// cache cannot fill (spec.md §4.8).
package history

import (
	"context"
	"sort"

	"github.com/meshbridge/bridge/internal/conversation"
)

// Page is one batch returned by a platform's paginated history endpoint.
type Page struct {
	Messages []conversation.CachedMessage
	HasMore  bool
}

// Paginator is the platform-local capability the fetcher calls into when
// the cache alone can't satisfy the request. before/after are int64 ms
// timestamps, mirroring the wire contract in spec.md §6.
type Paginator interface {
	FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (Page, error)
}

// CacheReader is the subset of MessageCache operations the fetcher needs.
type CacheReader interface {
	Each(fn func(id string, msg conversation.CachedMessage))
}

// Recorder lets fetched history be folded back into C2 without emitting
// downstream events, mirroring "cache_fetched_history" in spec.md §4.8.
type Recorder interface {
	RecordFetched(msg conversation.CachedMessage)
}

// Fetcher is C11.
type Fetcher struct {
	Cache                    CacheReader
	Paginator                Paginator
	Recorder                 Recorder // nil disables cache_fetched_history
	MaxPaginationIterations  int
}

// Request bundles the fetch_history parameters; exactly one of
// Before/After is set, enforced at the OutgoingEventBuilder layer.
type Request struct {
	ConversationID string
	Limit          int
	Before         *int64
	After          *int64
}

// Fetch implements the five-step algorithm from spec.md §4.8.
func (f *Fetcher) Fetch(ctx context.Context, req Request) ([]conversation.CachedMessage, error) {
	cached := f.cachedFiltered(req)
	if len(cached) >= req.Limit {
		return truncate(cached, req), nil
	}

	if f.Paginator != nil {
		fetched, err := f.fillGap(ctx, req, cached)
		if err != nil {
			return nil, err
		}
		cached = mergeDedup(cached, fetched)
	}

	cached = filterAndSort(cached, req)
	return truncate(cached, req), nil
}

func (f *Fetcher) cachedFiltered(req Request) []conversation.CachedMessage {
	var all []conversation.CachedMessage
	f.Cache.Each(func(id string, msg conversation.CachedMessage) {
		if msg.ConversationID != req.ConversationID {
			return
		}
		all = append(all, msg)
	})
	return filterAndSort(all, req)
}

func filterAndSort(msgs []conversation.CachedMessage, req Request) []conversation.CachedMessage {
	out := make([]conversation.CachedMessage, 0, len(msgs))
	for _, m := range msgs {
		if req.Before != nil && m.Timestamp >= *req.Before {
			continue
		}
		if req.After != nil && m.Timestamp <= *req.After {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].MessageID < out[j].MessageID // tie-break, spec.md §4.8
	})
	return out
}

func truncate(msgs []conversation.CachedMessage, req Request) []conversation.CachedMessage {
	if req.Limit <= 0 || len(msgs) <= req.Limit {
		return msgs
	}
	if req.Before != nil {
		// "before" wants the most recent messages preceding the cursor:
		// keep the tail.
		return msgs[len(msgs)-req.Limit:]
	}
	return msgs[:req.Limit]
}

// fillGap calls the platform's paginated endpoint in batches until the
// limit is satisfied or MaxPaginationIterations is exhausted.
func (f *Fetcher) fillGap(ctx context.Context, req Request, cached []conversation.CachedMessage) ([]conversation.CachedMessage, error) {
	var fetched []conversation.CachedMessage
	before, after := req.Before, req.After

	maxIter := f.MaxPaginationIterations
	if maxIter <= 0 {
		maxIter = 1
	}

	for i := 0; i < maxIter; i++ {
		if len(cached)+len(fetched) >= req.Limit {
			break
		}
		page, err := f.Paginator.FetchPage(ctx, req.ConversationID, before, after, req.Limit)
		if err != nil {
			return nil, err
		}
		for _, msg := range page.Messages {
			if msg.IsServiceMessage() {
				continue
			}
			fetched = append(fetched, msg)
			if f.Recorder != nil {
				f.Recorder.RecordFetched(msg)
			}
		}
		if !page.HasMore || len(page.Messages) == 0 {
			break
		}
		cursor := edgeTimestamp(page.Messages, before != nil)
		if before != nil {
			before = &cursor
		} else {
			after = &cursor
		}
	}
	return fetched, nil
}

func edgeTimestamp(msgs []conversation.CachedMessage, wantOldest bool) int64 {
	edge := msgs[0].Timestamp
	for _, m := range msgs[1:] {
		if wantOldest && m.Timestamp < edge {
			edge = m.Timestamp
		}
		if !wantOldest && m.Timestamp > edge {
			edge = m.Timestamp
		}
	}
	return edge
}

func mergeDedup(a, b []conversation.CachedMessage) []conversation.CachedMessage {
	seen := make(map[string]struct{}, len(a))
	out := make([]conversation.CachedMessage, 0, len(a)+len(b))
	for _, m := range a {
		seen[m.MessageID] = struct{}{}
		out = append(out, m)
	}
	for _, m := range b {
		if _, ok := seen[m.MessageID]; ok {
			continue
		}
		seen[m.MessageID] = struct{}{}
		out = append(out, m)
	}
	return out
}
