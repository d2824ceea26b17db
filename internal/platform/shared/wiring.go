// Package shared holds the C7/C10/C11 dependency bundle every platform
// adapter's handler set closes over, so each platform package does not
// redeclare the same struct.
package shared

import (
	"github.com/meshbridge/bridge/internal/conversation"
	"github.com/meshbridge/bridge/internal/events"
	"github.com/meshbridge/bridge/internal/history"
	"github.com/meshbridge/bridge/internal/incoming"
)

// Wiring is built once per adapter process and passed to each platform
// package's Register function.
type Wiring struct {
	Manager      *conversation.Manager
	Builder      events.IncomingEventBuilder
	Fetcher      *history.Fetcher
	Attachments  incoming.AttachmentLookup
	HistoryLimit int
}
