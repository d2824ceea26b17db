package discordbot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/meshbridge/bridge/internal/conversation"
)

// messageEvent/editEvent/deleteEvent/reactionEvent are the RawEvent
// values this adapter hands C8, one per discordgo Gateway callback it
// subscribes to.
type messageEvent struct{ m *discordgo.Message }

func (messageEvent) Type() string { return "new_message" }

type editEvent struct{ m *discordgo.Message }

func (editEvent) Type() string { return "edited_message" }

type deleteEvent struct {
	channelID, messageID string
}

func (deleteEvent) Type() string { return "deleted_message" }

type reactionEvent struct {
	r     *discordgo.MessageReaction
	added bool
}

func (e reactionEvent) Type() string {
	if e.added {
		return "reaction_added"
	}
	return "reaction_removed"
}

// ToIncomingMessage converts a Discord gateway message into the
// adapter-local DTO C7 consumes. Thread resolution mirrors
// zulandar-railyard's discord adapter: a message's channel IS the
// thread when that channel reports IsThread().
func ToIncomingMessage(m *discordgo.Message, parentChannelID string, isThread bool) conversation.IncomingMessage {
	ts, _ := discordgo.SnowflakeTimestamp(m.ID)

	conversationID := m.ChannelID
	threadID := ""
	if isThread {
		conversationID = parentChannelID
		threadID = m.ChannelID
	}

	replyTo := ""
	if m.MessageReference != nil {
		replyTo = m.MessageReference.MessageID
	}

	mentions := make([]string, 0, len(m.Mentions))
	mentionsAll := false
	for _, u := range m.Mentions {
		mentions = append(mentions, u.ID)
	}
	if m.MentionEveryone {
		mentionsAll = true
	}

	return conversation.IncomingMessage{
		MessageID:        m.ID,
		ConversationID:   conversationID,
		PlatformConvID:   m.ChannelID,
		ConversationType: conversation.ConversationTextChannel,
		SenderID:         m.Author.ID,
		SenderName:       m.Author.Username,
		SenderIsBot:      m.Author.Bot,
		Text:             m.Content,
		Timestamp:        ts.UnixMilli(),
		NativeThreadID:   threadID,
		ReplyToMessageID: replyTo,
		MentionsUserIDs:  mentions,
		MentionsAll:      mentionsAll,
		IsServiceMessage: m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply,
	}
}

// ToIncomingAttachments extracts attachment DTOs from a Discord message.
func ToIncomingAttachments(m *discordgo.Message) []conversation.IncomingAttachment {
	out := make([]conversation.IncomingAttachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		out = append(out, conversation.IncomingAttachment{
			AttachmentID: a.ID,
			Filename:     a.Filename,
			Size:         int64(a.Size),
			ContentType:  a.ContentType,
			URL:          a.URL,
			Processable:  true,
		})
	}
	return out
}

func toCachedMessage(m *discordgo.Message) conversation.CachedMessage {
	ts, _ := discordgo.SnowflakeTimestamp(m.ID)
	attachmentIDs := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachmentIDs = append(attachmentIDs, a.ID)
	}
	reactions := make(map[string]int, len(m.Reactions))
	for _, r := range m.Reactions {
		reactions[r.Emoji.Name] = r.Count
	}
	return conversation.CachedMessage{
		MessageID:      m.ID,
		ConversationID: m.ChannelID,
		SenderID:       m.Author.ID,
		SenderName:     m.Author.Username,
		Text:           m.Content,
		Timestamp:      ts.UnixMilli(),
		Reactions:      reactions,
		Attachments:    attachmentIDs,
		ServiceMessage: m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply,
	}
}
