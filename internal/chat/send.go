package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/media"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
)

// MediaUpload stages a media message's bytes before sending. Thumbnail is
// required for videos and ignored for stickers; for images a missing
// thumbnail is generated from Data.
type MediaUpload struct {
	Data        []byte
	ContentType string
	Type        model.MessageType
	Thumbnail   []byte
}

// SendMessage sends a text message. The message appears in the cache as
// SENDING immediately, flips to SENT once the remote write lands, and
// degrades to FAILED on error. FAILED is terminal; there is no retry.
func (r *Repository) SendMessage(ctx context.Context, conversationID string, isGroup bool, content string) (string, error) {
	return r.send(ctx, conversationID, isGroup, content, model.TypeText, "")
}

// SendMediaMessage uploads the staged bytes (plus thumbnail) to object
// storage and sends a message whose content is the download URL.
func (r *Repository) SendMediaMessage(ctx context.Context, conversationID string, isGroup bool, upload MediaUpload) (string, error) {
	if r.blobs == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	if upload.Type != model.TypeImage && upload.Type != model.TypeVideo {
		return "", fmt.Errorf("unsupported media type %q", upload.Type)
	}

	thumb := upload.Thumbnail
	if upload.Type == model.TypeImage && thumb == nil {
		var err error
		thumb, err = media.Thumbnail(upload.Data)
		if err != nil {
			return "", fmt.Errorf("thumbnail: %w", err)
		}
	}
	if upload.Type == model.TypeVideo && thumb == nil {
		return "", fmt.Errorf("video upload requires a thumbnail")
	}

	prefix := "images"
	if upload.Type == model.TypeVideo {
		prefix = "videos"
	}
	key := media.ObjectKey(prefix, conversationID, extForContentType(upload.ContentType))
	url, err := r.blobs.Upload(ctx, key, upload.ContentType, upload.Data)
	if err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	thumbURL, err := r.blobs.Upload(ctx, key+".thumb.jpg", "image/jpeg", thumb)
	if err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}

	return r.send(ctx, conversationID, isGroup, url, upload.Type, thumbURL)
}

// SendStickerMessage sends a sticker by its catalog URL. No upload happens;
// stickers are pre-hosted.
func (r *Repository) SendStickerMessage(ctx context.Context, conversationID string, isGroup bool, stickerURL string) (string, error) {
	return r.send(ctx, conversationID, isGroup, stickerURL, model.TypeSticker, "")
}

func (r *Repository) send(ctx context.Context, conversationID string, isGroup bool, content string, msgType model.MessageType, thumbnailURL string) (string, error) {
	uid := r.sess.UID()
	if uid == "" {
		return "", fmt.Errorf("not authenticated")
	}

	id := remote.PushID()
	now := time.Now().UnixMilli()
	msg := model.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       uid,
		Content:        content,
		Type:           msgType,
		ThumbnailURL:   thumbnailURL,
		Timestamp:      now,
		Status:         model.StatusSending,
	}

	// Optimistic insert: the message shows up locally before the wire.
	if err := r.db.UpsertMessage(&msg); err != nil {
		return "", fmt.Errorf("stage message: %w", err)
	}
	r.publishMessageChanged(conversationID, id)

	// The remote copy never carries SENDING; receivers only ever see SENT.
	remoteCopy := msg
	remoteCopy.Status = model.StatusSent
	if err := r.remote.Set(ctx, messagePath(conversationID, isGroup, id), &remoteCopy); err != nil {
		msg.Status = model.StatusFailed
		if upErr := r.db.UpsertMessage(&msg); upErr != nil {
			r.logger.Error("mark message failed", zap.String("message", id), zap.Error(upErr))
		}
		r.publishMessageChanged(conversationID, id)
		r.bus.Publish(bus.Event{
			Kind:      bus.KindSendFailed,
			Timestamp: time.Now(),
			Payload:   bus.SendFailed{ConversationID: conversationID, MessageID: id, Err: err.Error()},
		})
		return id, fmt.Errorf("send message: %w", err)
	}

	msg.Status = model.StatusSent
	if err := r.db.UpsertMessage(&msg); err != nil {
		r.logger.Error("mark message sent", zap.String("message", id), zap.Error(err))
	}
	r.publishMessageChanged(conversationID, id)

	r.fanOutLastMessage(ctx, conversationID, isGroup, model.PreviewText(msgType, content), now)
	r.logger.Info("message sent",
		zap.String("conversation", conversationID), zap.String("message", id))
	return id, nil
}

// fanOutLastMessage refreshes {lastMessage, timestamp} on every member's
// conversation copy. Failures on individual copies are logged and skipped;
// there is no cross-path atomicity.
func (r *Repository) fanOutLastMessage(ctx context.Context, conversationID string, isGroup bool, preview string, ts int64) {
	members, err := r.conversationMembers(ctx, conversationID, isGroup)
	if err != nil {
		r.logger.Warn("resolve members for fan-out",
			zap.String("conversation", conversationID), zap.Error(err))
		return
	}
	fields := map[string]any{
		"lastMessage": preview,
		"timestamp":   ts,
	}
	for _, member := range members {
		if err := r.remote.Update(ctx, conversationPath(member, conversationID), fields); err != nil {
			r.logger.Warn("fan out last message",
				zap.String("member", member), zap.String("conversation", conversationID), zap.Error(err))
		}
	}
}

// MarkMessagesAsRead writes read receipts for every cached message in a
// direct conversation that was authored by the other side and has no read
// timestamp yet. Groups carry no read receipts; calling this for a group
// conversation is a no-op.
func (r *Repository) MarkMessagesAsRead(ctx context.Context, conversationID string) error {
	conv, err := r.db.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conv != nil && conv.IsGroup {
		return nil
	}

	uid := r.sess.UID()
	if uid == "" {
		return fmt.Errorf("not authenticated")
	}
	msgs, err := r.db.ListMessages(conversationID)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var marked []string
	for i := range msgs {
		msg := &msgs[i]
		if msg.SenderID == uid || msg.ReadTimestamp != 0 {
			continue
		}
		err := r.remote.Update(ctx, messagePath(conversationID, false, msg.ID), map[string]any{
			"readTimestamp": now,
		})
		if err != nil {
			r.logger.Warn("write read receipt", zap.String("message", msg.ID), zap.Error(err))
			continue
		}
		msg.ReadTimestamp = now
		if err := r.db.UpsertMessage(msg); err != nil {
			r.logger.Error("cache read receipt", zap.String("message", msg.ID), zap.Error(err))
		}
		marked = append(marked, msg.ID)
	}
	if len(marked) > 0 {
		r.bus.Publish(bus.Event{
			Kind:      bus.KindMessagesChanged,
			Timestamp: time.Now(),
			Payload:   bus.MessagesChanged{ConversationID: conversationID, MessageIDs: marked},
		})
	}
	return nil
}

// ToggleReaction sets the current user's reaction on a message, or removes
// it when the same emoji is already set. Each user holds at most one
// reaction per message; a different emoji overwrites.
func (r *Repository) ToggleReaction(ctx context.Context, conversationID string, isGroup bool, messageID, emoji string) error {
	uid := r.sess.UID()
	if uid == "" {
		return fmt.Errorf("not authenticated")
	}
	msg, err := r.db.GetMessage(messageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return fmt.Errorf("message %s not cached", messageID)
	}

	var value any = emoji
	if msg.Reactions[uid] == emoji {
		value = nil
	}
	err = r.remote.Update(ctx, messagePath(conversationID, isGroup, messageID)+"/reactions", map[string]any{
		uid: value,
	})
	if err != nil {
		return fmt.Errorf("toggle reaction: %w", err)
	}

	if value == nil {
		delete(msg.Reactions, uid)
	} else {
		if msg.Reactions == nil {
			msg.Reactions = make(map[string]string)
		}
		msg.Reactions[uid] = emoji
	}
	if err := r.db.UpsertMessage(msg); err != nil {
		return err
	}
	r.publishMessageChanged(conversationID, messageID)
	return nil
}

// TogglePinMessage pins a message across every member's conversation copy.
// Pinning the already-pinned message clears the pin; pinning another
// message replaces it.
func (r *Repository) TogglePinMessage(ctx context.Context, conversationID, messageID string) error {
	conv, err := r.db.GetConversation(conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return fmt.Errorf("conversation %s not cached", conversationID)
	}

	var value any = messageID
	pinned := messageID
	if conv.PinnedMessageID == messageID {
		value = nil
		pinned = ""
	}

	members, err := r.conversationMembers(ctx, conversationID, conv.IsGroup)
	if err != nil {
		return err
	}
	for _, member := range members {
		err := r.remote.Update(ctx, conversationPath(member, conversationID), map[string]any{
			"pinnedMessageId": value,
		})
		if err != nil {
			r.logger.Warn("fan out pin",
				zap.String("member", member), zap.String("conversation", conversationID), zap.Error(err))
		}
	}

	conv.PinnedMessageID = pinned
	if err := r.db.UpsertConversation(conv); err != nil {
		return err
	}
	r.bus.Publish(bus.Event{
		Kind:      bus.KindConversationsChanged,
		Timestamp: time.Now(),
		Payload:   []string{conversationID},
	})
	return nil
}

func (r *Repository) publishMessageChanged(conversationID, messageID string) {
	r.bus.Publish(bus.Event{
		Kind:      bus.KindMessagesChanged,
		Timestamp: time.Now(),
		Payload:   bus.MessagesChanged{ConversationID: conversationID, MessageIDs: []string{messageID}},
	})
}

func extForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
