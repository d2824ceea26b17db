package incoming

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
)

// AttachmentLookup resolves an attachment id to its cached metadata, used
// when reshaping a delta's messages into MessageReceived payloads.
type AttachmentLookup func(id string) (conversation.AttachmentInfo, bool)

// NewMessageEvents builds the full event sequence for a new_message
// delta, per spec.md §4.6: the delta's own events (conversation_started,
// message_received, ...) via C10, followed — only when
// delta.FetchHistory is set — by a history_fetched event sourced from
// C11, in that order.
func NewMessageEvents(ctx context.Context, builder events.IncomingEventBuilder, fetcher *history.Fetcher, delta conversation.ConversationDelta, isDirectMessage bool, attachments AttachmentLookup, historyLimit int) ([]events.Envelope, error) {
	out := builder.FromDelta(delta, isDirectMessage, attachments)

	if delta.FetchHistory && fetcher != nil {
		hist, err := fetcher.Fetch(ctx, history.Request{ConversationID: delta.ConversationID, Limit: historyLimit})
		if err != nil {
			return out, err
		}
		out = append(out, builder.HistoryFetched(delta.ConversationID, hist, isDirectMessage, attachments))
	}
	return out, nil
}
