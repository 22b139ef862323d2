package bus

import "time"

// Event kinds published across the client. Subscribers filter by namespace
// prefix, e.g. "cache." receives every local-cache mutation.
const (
	// KindConversationsChanged fires after conversation upserts reach the
	// local cache. Payload: []string of conversation ids.
	KindConversationsChanged = "cache.conversations"
	// KindMessagesChanged fires after message upserts reach the local
	// cache. Payload: MessagesChanged.
	KindMessagesChanged = "cache.messages"
	// KindSendFailed fires when a send degrades to FAILED. Payload: SendFailed.
	KindSendFailed = "chat.send_failed"
	// KindStatusChanged fires on client state transitions.
	KindStatusChanged = "session.status_changed"
	// KindLoggedOut fires when the session is cleared.
	KindLoggedOut = "session.logged_out"
	// KindPushReceived carries an inbound notification payload. Payload: Push.
	KindPushReceived = "push.received"
)

// Event is a domain event delivered to bus subscribers.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// MessagesChanged is the payload for KindMessagesChanged.
type MessagesChanged struct {
	ConversationID string
	MessageIDs     []string
}

// SendFailed is the payload for KindSendFailed.
type SendFailed struct {
	ConversationID string
	MessageID      string
	Err            string
}

// Push is the payload for KindPushReceived. Title/body only; the client
// performs no routing beyond surfacing it.
type Push struct {
	Title string
	Body  string
}
