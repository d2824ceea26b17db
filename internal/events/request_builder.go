package events

import "github.com/meshbridge/bridge/internal/coreerr"

// RequestResult is what C9 hands back to the transport for one completed
// request. Exactly one of the typed fields is populated, selected by
// what the handler actually produced (spec.md §4.9: "selecting the
// payload variant by the keys present in data").
type RequestResult struct {
	RequestCompleted bool
	MessageIDs       []string
	History          []MessageReceivedData
	Content          []byte
	Err              error
}

type sentMessageIDsData struct {
	RequestCompleted bool     `json:"request_completed"`
	MessageIDs       []string `json:"message_ids"`
}

type fetchedAttachmentData struct {
	RequestCompleted bool   `json:"request_completed"`
	Content          []byte `json:"content"`
}

type fetchedHistoryData struct {
	RequestCompleted bool                  `json:"request_completed"`
	History          []MessageReceivedData `json:"history"`
}

type errorData struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RequestEventBuilder wraps a RequestResult into the outbound
// request_success / request_failed envelope.
type RequestEventBuilder struct {
	AdapterType string
}

// Success builds request_success{request_id, data}, picking the payload
// variant by which RequestResult field is populated.
func (b RequestEventBuilder) Success(requestID, internalRequestID string, result RequestResult) Envelope {
	var data any
	switch {
	case result.History != nil:
		data = fetchedHistoryData{RequestCompleted: true, History: result.History}
	case result.Content != nil:
		data = fetchedAttachmentData{RequestCompleted: true, Content: result.Content}
	default:
		data = sentMessageIDsData{RequestCompleted: true, MessageIDs: result.MessageIDs}
	}
	return Envelope{
		AdapterType: b.AdapterType,
		EventType:   "request_success",
		Data: map[string]any{
			"request_id":          requestID,
			"internal_request_id": internalRequestID,
			"data":                data,
		},
	}
}

// Failed builds request_failed{request_id, error}, mapping a coreerr.Kind
// (or a generic error) onto the wire error payload.
func (b RequestEventBuilder) Failed(requestID, internalRequestID string, err error) Envelope {
	kind := coreerr.KindOf(err)
	if kind == "" {
		kind = coreerr.KindInternal
	}
	return Envelope{
		AdapterType: b.AdapterType,
		EventType:   "request_failed",
		Data: map[string]any{
			"request_id":          requestID,
			"internal_request_id": internalRequestID,
			"error": errorData{
				Kind:    string(kind),
				Message: err.Error(),
			},
		},
	}
}

// Queued builds request_queued{request_id}, emitted immediately on
// receipt, before any success/failed for the same id (spec.md §4.10).
func (b RequestEventBuilder) Queued(requestID string) Envelope {
	return Envelope{
		AdapterType: b.AdapterType,
		EventType:   "request_queued",
		Data:        map[string]any{"request_id": requestID},
	}
}
