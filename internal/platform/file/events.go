package file

import "github.com/meshbridge/bridge/internal/fileevents"

// changeEvent is a detected filesystem change, surfaced by the poll loop
// and turned into incoming.RawEvent below.
type changeEvent struct {
	path string
	kind fileevents.Action
}

func (e changeEvent) Type() string {
	switch e.kind {
	case fileevents.ActionCreate:
		return "new_message"
	case fileevents.ActionUpdate:
		return "edited_message"
	case fileevents.ActionDelete:
		return "deleted_message"
	default:
		return "unknown"
	}
}
