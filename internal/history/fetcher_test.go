package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshbridge/bridge/internal/conversation"
)

type fakeCache struct {
	msgs []conversation.CachedMessage
}

func (f *fakeCache) Each(fn func(id string, msg conversation.CachedMessage)) {
	for _, m := range f.msgs {
		fn(m.MessageID, m)
	}
}

func TestFetch_SatisfiedFromCacheAlone(t *testing.T) {
	cache := &fakeCache{msgs: []conversation.CachedMessage{
		{MessageID: "m1", ConversationID: "c1", Timestamp: 100},
		{MessageID: "m2", ConversationID: "c1", Timestamp: 200},
	}}
	f := &Fetcher{Cache: cache}
	out, err := f.Fetch(context.Background(), Request{ConversationID: "c1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "m1", out[0].MessageID)
}

type fakePaginator struct {
	pages []Page
	calls int
}

func (p *fakePaginator) FetchPage(ctx context.Context, conversationID string, before, after *int64, limit int) (Page, error) {
	if p.calls >= len(p.pages) {
		return Page{}, nil
	}
	page := p.pages[p.calls]
	p.calls++
	return page, nil
}

func TestFetch_FillsGapFromPaginator(t *testing.T) {
	cache := &fakeCache{msgs: []conversation.CachedMessage{
		{MessageID: "m3", ConversationID: "c1", Timestamp: 300},
	}}
	pag := &fakePaginator{pages: []Page{
		{Messages: []conversation.CachedMessage{
			{MessageID: "m1", ConversationID: "c1", Timestamp: 100},
			{MessageID: "m2", ConversationID: "c1", Timestamp: 200},
		}},
	}}
	f := &Fetcher{Cache: cache, Paginator: pag, MaxPaginationIterations: 3}
	out, err := f.Fetch(context.Background(), Request{ConversationID: "c1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{out[0].MessageID, out[1].MessageID, out[2].MessageID})
}

func TestFetch_SkipsServiceMessagesFromPaginator(t *testing.T) {
	cache := &fakeCache{}
	pag := &fakePaginator{pages: []Page{
		{Messages: []conversation.CachedMessage{
			{MessageID: "m1", ConversationID: "c1", Timestamp: 100, ServiceMessage: true},
			{MessageID: "m2", ConversationID: "c1", Timestamp: 200},
		}},
	}}
	f := &Fetcher{Cache: cache, Paginator: pag, MaxPaginationIterations: 1}
	out, err := f.Fetch(context.Background(), Request{ConversationID: "c1", Limit: 5})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "m2", out[0].MessageID)
}

func TestFetch_TieBreakByMessageID(t *testing.T) {
	cache := &fakeCache{msgs: []conversation.CachedMessage{
		{MessageID: "zzz", ConversationID: "c1", Timestamp: 100},
		{MessageID: "aaa", ConversationID: "c1", Timestamp: 100},
	}}
	f := &Fetcher{Cache: cache}
	out, err := f.Fetch(context.Background(), Request{ConversationID: "c1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "aaa", out[0].MessageID)
}
