package telegram

import (
	"context"
	"strconv"

	"github.com/mymmrac/telego"

	"github.com/meshbridge/bridge/internal/conversation"
)

// botClient adapts a real *telego.Bot to the client interface.
type botClient struct{ bot *telego.Bot }

func (b botClient) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	return b.bot.SendMessage(ctx, params)
}
func (b botClient) EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error) {
	return b.bot.EditMessageText(ctx, params)
}
func (b botClient) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	return b.bot.DeleteMessage(ctx, params)
}
func (b botClient) SetMessageReaction(ctx context.Context, params *telego.SetMessageReactionParams) error {
	return b.bot.SetMessageReaction(ctx, params)
}
func (b botClient) PinChatMessage(ctx context.Context, params *telego.PinChatMessageParams) error {
	return b.bot.PinChatMessage(ctx, params)
}
func (b botClient) UnpinChatMessage(ctx context.Context, params *telego.UnpinChatMessageParams) error {
	return b.bot.UnpinChatMessage(ctx, params)
}
func (b botClient) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	return b.bot.GetFile(ctx, params)
}
func (b botClient) FileDownloadURL(file *telego.File) string {
	return b.bot.FileDownloadURL(file)
}
func (b botClient) UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams) (<-chan telego.Update, error) {
	return b.bot.UpdatesViaLongPolling(ctx, params)
}
func (b botClient) GetMe(ctx context.Context) (*telego.User, error) {
	return b.bot.GetMe(ctx)
}

type messageEvent struct{ m *telego.Message }

func (messageEvent) Type() string { return "new_message" }

type editEvent struct{ m *telego.Message }

func (editEvent) Type() string { return "edited_message" }

type reactionEvent struct {
	chatID, messageID, emoji string
	added                    bool
}

func (e reactionEvent) Type() string {
	if e.added {
		return "reaction_added"
	}
	return "reaction_removed"
}

// reactionDiff converts Telegram's old/new reaction-set snapshot into the
// per-emoji added/removed events the other adapters emit natively, since
// the Bot API reports reactions as a full set transition rather than a
// single delta.
func reactionDiff(u *telego.MessageReactionUpdated) []reactionEvent {
	chatID := strconv.Itoa(int(u.Chat.ID))
	messageID := strconv.Itoa(u.MessageID)
	old := emojiSet(u.OldReaction)
	cur := emojiSet(u.NewReaction)

	var out []reactionEvent
	for emoji := range cur {
		if !old[emoji] {
			out = append(out, reactionEvent{chatID: chatID, messageID: messageID, emoji: emoji, added: true})
		}
	}
	for emoji := range old {
		if !cur[emoji] {
			out = append(out, reactionEvent{chatID: chatID, messageID: messageID, emoji: emoji, added: false})
		}
	}
	return out
}

func emojiSet(reactions []telego.ReactionType) map[string]bool {
	set := make(map[string]bool, len(reactions))
	for _, r := range reactions {
		if emoji, ok := r.(*telego.ReactionTypeEmoji); ok {
			set[emoji.Emoji] = true
		}
	}
	return set
}

// ToIncomingMessage converts a telego.Message into the adapter-local DTO.
// Telegram threads ("topics" in supergroups) are carried via
// MessageThreadID; replies use ReplyToMessage, mirroring the generic
// reply-chain thread model used across adapters that lack Discord-style
// dedicated thread channels.
func ToIncomingMessage(m *telego.Message) conversation.IncomingMessage {
	replyTo := ""
	if m.ReplyToMessage != nil {
		replyTo = strconv.Itoa(m.ReplyToMessage.MessageID)
	}
	convType := conversation.ConversationDM
	if m.Chat.Type == telego.ChatTypeGroup || m.Chat.Type == telego.ChatTypeSupergroup {
		convType = conversation.ConversationChannel
	}

	var senderID string
	if m.From != nil {
		senderID = strconv.Itoa(int(m.From.ID))
	}

	return conversation.IncomingMessage{
		MessageID:        strconv.Itoa(m.MessageID),
		ConversationID:   strconv.Itoa(int(m.Chat.ID)),
		PlatformConvID:   strconv.Itoa(int(m.Chat.ID)),
		ConversationType: convType,
		NativeThreadID:   threadID(m),
		SenderID:         senderID,
		Text:             messageText(m),
		Timestamp:        int64(m.Date) * 1000,
		ReplyToMessageID: replyTo,
	}
}

func ToIncomingAttachments(m *telego.Message) []conversation.IncomingAttachment {
	var out []conversation.IncomingAttachment
	add := func(fileID, filename string, size int) {
		out = append(out, conversation.IncomingAttachment{
			AttachmentID: fileID,
			Filename:     filename,
			Size:         int64(size),
		})
	}
	if m.Document != nil {
		add(m.Document.FileID, m.Document.FileName, m.Document.FileSize)
	}
	if len(m.Photo) > 0 {
		largest := m.Photo[len(m.Photo)-1]
		add(largest.FileID, "photo.jpg", largest.FileSize)
	}
	if m.Video != nil {
		add(m.Video.FileID, m.Video.FileName, m.Video.FileSize)
	}
	if m.Audio != nil {
		add(m.Audio.FileID, m.Audio.FileName, m.Audio.FileSize)
	}
	if m.Voice != nil {
		add(m.Voice.FileID, "voice.ogg", m.Voice.FileSize)
	}
	return out
}

func messageText(m *telego.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func threadID(m *telego.Message) string {
	if m.IsTopicMessage {
		return strconv.Itoa(m.MessageThreadID)
	}
	return ""
}

