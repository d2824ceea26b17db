package shell

import (
	"context"

	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/incoming"
	"github.com/meshbridge/bridge/internal/platform/shared"
)

// Register binds a command's captured output onto proc as a new_message.
func Register(proc *incoming.Processor, w shared.Wiring) {
	proc.Register("new_message", func(ctx context.Context, raw incoming.RawEvent) ([]events.Envelope, error) {
		ev := raw.(outputEvent)
		in := ToIncomingMessage(ev)
		delta := w.Manager.AddToConversation(ctx, conversation.AddInput{Message: in})
		return incoming.NewMessageEvents(ctx, w.Builder, w.Fetcher, delta, false, w.Attachments, w.HistoryLimit)
	})
}
