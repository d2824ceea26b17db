package slack

import (
	"strconv"
	"strings"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/meshbridge/bridge/internal/conversation"
)

type messageEvent struct{ e *slackevents.MessageEvent }

func (messageEvent) Type() string { return "new_message" }

type editEvent struct{ channel, ts, text string }

func (editEvent) Type() string { return "edited_message" }

type deleteEvent struct{ channelID, ts string }

func (deleteEvent) Type() string { return "deleted_message" }

type reactionEvent struct {
	channel, ts, emoji string
	added              bool
}

func (e reactionEvent) Type() string {
	if e.added {
		return "reaction_added"
	}
	return "reaction_removed"
}

// ToIncomingMessage converts a Slack message event into the adapter-local
// DTO. Slack threads are modeled as reply chains keyed by the root
// message's timestamp (ThreadTimeStamp), matching spec.md §3's generic
// "reply-chain" thread model used when a platform has no first-class
// thread object.
func ToIncomingMessage(e *slackevents.MessageEvent) conversation.IncomingMessage {
	sec, _ := strconv.ParseFloat(e.TimeStamp, 64)

	replyTo := ""
	if e.ThreadTimeStamp != "" && e.ThreadTimeStamp != e.TimeStamp {
		replyTo = e.ThreadTimeStamp
	}

	return conversation.IncomingMessage{
		MessageID:        e.TimeStamp,
		ConversationID:   e.Channel,
		PlatformConvID:   e.Channel,
		ConversationType: conversation.ConversationChannel,
		SenderID:         e.User,
		Text:             e.Text,
		Timestamp:        int64(sec * 1000),
		ReplyToMessageID: replyTo,
		MentionsAll:      strings.Contains(e.Text, "<!channel>") || strings.Contains(e.Text, "<!here>"),
	}
}

func toCachedMessage(channelID string, m slackapi.Message) conversation.CachedMessage {
	sec, _ := strconv.ParseFloat(m.Timestamp, 64)
	reactions := make(map[string]int, len(m.Reactions))
	for _, r := range m.Reactions {
		reactions[r.Name] = r.Count
	}
	files := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		files = append(files, f.ID)
	}
	return conversation.CachedMessage{
		MessageID:      m.Timestamp,
		ConversationID: channelID,
		SenderID:       m.User,
		Text:           m.Text,
		Timestamp:      int64(sec * 1000),
		Reactions:      reactions,
		Attachments:    files,
	}
}
