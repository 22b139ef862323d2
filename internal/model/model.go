// Package model defines the entities mirrored between the hosted document
// tree and the local cache, plus the derivations shared across layers.
package model

import (
	"fmt"
	"strings"
)

// MessageType classifies message content.
type MessageType string

const (
	TypeText    MessageType = "TEXT"
	TypeImage   MessageType = "IMAGE"
	TypeVideo   MessageType = "VIDEO"
	TypeSticker MessageType = "STICKER"
)

// MessageStatus tracks the local send lifecycle. SENDING and FAILED exist
// only in the local cache; the remote copy of a message is written as SENT.
type MessageStatus string

const (
	StatusSending MessageStatus = "SENDING"
	StatusSent    MessageStatus = "SENT"
	StatusFailed  MessageStatus = "FAILED"
)

// User is a registered account record under users/{uid}.
type User struct {
	UID               string `json:"uid"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	Status            string `json:"status,omitempty"`
	FCMToken          string `json:"fcmToken,omitempty"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
}

// Conversation is one member's denormalized summary copy under
// user-conversations/{uid}/{id}.
type Conversation struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	LastMessage       string `json:"lastMessage"`
	Timestamp         int64  `json:"timestamp"`
	PinnedMessageID   string `json:"pinnedMessageId,omitempty"`
	IsGroup           bool   `json:"isGroup"`
}

// Group is the canonical group record under groups/{id}. It is remote-only
// and never mirrored into the local cache.
type Group struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	CreatorID         string          `json:"creatorId"`
	Members           map[string]bool `json:"members"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
	Timestamp         int64           `json:"timestamp"`
}

// Message lives under messages/{conversationId}/{id} for direct
// conversations and group-messages/{groupId}/{id} for groups.
// DeliveredTimestamp and ReadTimestamp are written by the recipient's
// client, never the sender's, and are monotonic once set.
type Message struct {
	ID                 string            `json:"id"`
	ConversationID     string            `json:"conversationId"`
	SenderID           string            `json:"senderId"`
	Content            string            `json:"content"`
	Type               MessageType       `json:"type"`
	ThumbnailURL       string            `json:"thumbnailUrl,omitempty"`
	Timestamp          int64             `json:"timestamp"`
	Status             MessageStatus     `json:"status"`
	DeliveredTimestamp int64             `json:"deliveredTimestamp"`
	ReadTimestamp      int64             `json:"readTimestamp"`
	Reactions          map[string]string `json:"reactions,omitempty"`
}

// DeviceContact is a transient address-book entry. Never persisted remotely.
type DeviceContact struct {
	Name        string
	PhoneNumber string
}

// Uids are issued by the identity service as alphanumeric strings and
// never contain the separator, which is what makes the joined id
// unambiguous and splittable.
const conversationIDSeparator = "-"

// DirectConversationID derives the deterministic id for the direct
// conversation between two users: the two uids joined in descending
// lexical order, so any unordered pair maps to the same id.
func DirectConversationID(a, b string) string {
	if a > b {
		return a + conversationIDSeparator + b
	}
	return b + conversationIDSeparator + a
}

// SplitDirectConversationID recovers the two participant uids from a direct
// conversation id. Ids built from uids containing the separator are
// rejected as malformed.
func SplitDirectConversationID(id string) (string, string, error) {
	parts := strings.SplitN(id, conversationIDSeparator, 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" ||
		strings.Contains(parts[1], conversationIDSeparator) {
		return "", "", fmt.Errorf("malformed direct conversation id %q", id)
	}
	return parts[0], parts[1], nil
}

// OtherParticipant returns the uid on the far side of a direct conversation.
func OtherParticipant(conversationID, selfUID string) (string, error) {
	a, b, err := SplitDirectConversationID(conversationID)
	if err != nil {
		return "", err
	}
	switch selfUID {
	case a:
		return b, nil
	case b:
		return a, nil
	}
	return "", fmt.Errorf("uid %q is not a participant of %q", selfUID, conversationID)
}

// PreviewText is the conversation-list summary for a message.
func PreviewText(t MessageType, content string) string {
	switch t {
	case TypeImage:
		return "\U0001F4F7 Photo"
	case TypeVideo:
		return "\U0001F3A5 Video"
	case TypeSticker:
		return "Sticker"
	default:
		return content
	}
}
