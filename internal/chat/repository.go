// Package chat is the synchronization layer: it mirrors the remote document
// tree into the local cache via live subscriptions, performs optimistic
// sends with per-member fan-out, and owns delivery/read receipts, pins,
// reactions and group management. Reads served to state holders always come
// from the cache; the bus announces every cache mutation.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
	"github.com/recado-app/recado/internal/session"
	"github.com/recado-app/recado/internal/store"
)

// Remote is the document-tree surface the repository depends on.
type Remote interface {
	Get(ctx context.Context, path string, v any) error
	Set(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fields map[string]any) error
	Delete(ctx context.Context, path string) error
	Listen(ctx context.Context, path string) (<-chan json.RawMessage, error)
}

// Blobs uploads binary assets and returns their download URLs.
type Blobs interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Repository is the chat synchronization layer.
type Repository struct {
	remote Remote
	blobs  Blobs
	db     *store.DB
	bus    *bus.Bus
	sess   *session.Session
	logger *zap.Logger

	mu       sync.Mutex
	convStop *listenerHandle
	msgStops map[string]*listenerHandle
}

// listenerHandle identifies one live subscription so a stale goroutine's
// cleanup can never cancel a listener started after it.
type listenerHandle struct {
	cancel context.CancelFunc
}

// NewRepository wires the synchronization layer. blobs may be nil when no
// object storage is configured; media sends then fail with an error.
func NewRepository(rc Remote, blobs Blobs, db *store.DB, b *bus.Bus, sess *session.Session, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		remote:   rc,
		blobs:    blobs,
		db:       db,
		bus:      b,
		sess:     sess,
		logger:   logger,
		msgStops: make(map[string]*listenerHandle),
	}
}

// StartConversationListener opens the live subscription on the current
// user's conversation list. Calling it while a listener is active is a
// no-op.
func (r *Repository) StartConversationListener(ctx context.Context) error {
	r.mu.Lock()
	if r.convStop != nil {
		r.mu.Unlock()
		return nil
	}
	uid := r.sess.UID()
	if uid == "" {
		r.mu.Unlock()
		return fmt.Errorf("not authenticated")
	}
	ctx, cancel := context.WithCancel(ctx)
	handle := &listenerHandle{cancel: cancel}
	r.convStop = handle
	r.mu.Unlock()

	ch, err := r.remote.Listen(ctx, userConversationsPath(uid))
	if err != nil {
		r.clearConvStop(handle)
		return fmt.Errorf("listen conversations: %w", err)
	}

	go func() {
		defer r.clearConvStop(handle)
		for snap := range ch {
			if err := r.applyConversationsSnapshot(snap); err != nil {
				r.logger.Error("apply conversations snapshot", zap.Error(err))
			}
		}
		r.logger.Info("conversation listener closed", zap.String("uid", uid))
	}()
	return nil
}

// StopConversationListener cancels the conversation-list subscription.
func (r *Repository) StopConversationListener() {
	r.mu.Lock()
	handle := r.convStop
	r.convStop = nil
	r.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

func (r *Repository) clearConvStop(handle *listenerHandle) {
	r.mu.Lock()
	if r.convStop == handle {
		r.convStop = nil
	}
	r.mu.Unlock()
	handle.cancel()
}

// SyncConversationsOnce performs a one-shot read of the conversation list
// and upserts it into the cache. Covers the cold-start gap before the live
// listener delivers its first snapshot.
func (r *Repository) SyncConversationsOnce(ctx context.Context) error {
	uid := r.sess.UID()
	if uid == "" {
		return fmt.Errorf("not authenticated")
	}
	var children map[string]model.Conversation
	err := r.remote.Get(ctx, userConversationsPath(uid), &children)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("sync conversations: %w", err)
	}
	return r.upsertConversations(children)
}

func (r *Repository) applyConversationsSnapshot(snap json.RawMessage) error {
	children, _, err := remote.DecodeChildren[model.Conversation](snap)
	if err != nil {
		return err
	}
	return r.upsertConversations(children)
}

func (r *Repository) upsertConversations(children map[string]model.Conversation) error {
	ids := make([]string, 0, len(children))
	for id, conv := range children {
		if conv.ID == "" {
			conv.ID = id
		}
		if err := r.db.UpsertConversation(&conv); err != nil {
			return fmt.Errorf("upsert conversation %s: %w", id, err)
		}
		ids = append(ids, conv.ID)
	}
	if len(ids) > 0 {
		r.bus.Publish(bus.Event{
			Kind:      bus.KindConversationsChanged,
			Timestamp: time.Now(),
			Payload:   ids,
		})
	}
	return nil
}

// SubscribeMessages opens the live subscription on a conversation's message
// collection. Every snapshot is upserted into the cache in child-key order.
// For direct conversations, messages authored by the other side that carry
// no delivery receipt yet get one written back, so confirmation self-heals
// on every snapshot. Subscribing twice to the same conversation is a no-op.
func (r *Repository) SubscribeMessages(ctx context.Context, conversationID string, isGroup bool) error {
	r.mu.Lock()
	if _, active := r.msgStops[conversationID]; active {
		r.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	handle := &listenerHandle{cancel: cancel}
	r.msgStops[conversationID] = handle
	r.mu.Unlock()

	ch, err := r.remote.Listen(ctx, messagesPath(conversationID, isGroup))
	if err != nil {
		r.removeMsgStop(conversationID, handle)
		return fmt.Errorf("listen messages %s: %w", conversationID, err)
	}

	go func() {
		defer r.removeMsgStop(conversationID, handle)
		for snap := range ch {
			if err := r.applyMessagesSnapshot(ctx, conversationID, isGroup, snap); err != nil {
				r.logger.Error("apply messages snapshot",
					zap.String("conversation", conversationID), zap.Error(err))
			}
		}
		r.logger.Info("message listener closed", zap.String("conversation", conversationID))
	}()
	return nil
}

// StopMessageListener cancels the message subscription for one conversation.
func (r *Repository) StopMessageListener(conversationID string) {
	r.mu.Lock()
	handle := r.msgStops[conversationID]
	delete(r.msgStops, conversationID)
	r.mu.Unlock()
	if handle != nil {
		handle.cancel()
	}
}

func (r *Repository) removeMsgStop(conversationID string, handle *listenerHandle) {
	r.mu.Lock()
	if r.msgStops[conversationID] == handle {
		delete(r.msgStops, conversationID)
	}
	r.mu.Unlock()
	handle.cancel()
}

// StopAll cancels every live subscription. Called on logout and shutdown.
func (r *Repository) StopAll() {
	r.mu.Lock()
	handles := make([]*listenerHandle, 0, len(r.msgStops)+1)
	if r.convStop != nil {
		handles = append(handles, r.convStop)
		r.convStop = nil
	}
	for id, handle := range r.msgStops {
		handles = append(handles, handle)
		delete(r.msgStops, id)
	}
	r.mu.Unlock()
	for _, handle := range handles {
		handle.cancel()
	}
}

func (r *Repository) applyMessagesSnapshot(ctx context.Context, conversationID string, isGroup bool, snap json.RawMessage) error {
	children, keys, err := remote.DecodeChildren[model.Message](snap)
	if err != nil {
		return err
	}

	uid := r.sess.UID()
	ids := make([]string, 0, len(keys))
	var undelivered []string
	for _, key := range keys {
		msg := children[key]
		if msg.ID == "" {
			msg.ID = key
		}
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		if err := r.db.UpsertMessage(&msg); err != nil {
			return fmt.Errorf("upsert message %s: %w", msg.ID, err)
		}
		ids = append(ids, msg.ID)
		if !isGroup && msg.SenderID != uid && msg.DeliveredTimestamp == 0 {
			undelivered = append(undelivered, msg.ID)
		}
	}

	if len(ids) > 0 {
		r.bus.Publish(bus.Event{
			Kind:      bus.KindMessagesChanged,
			Timestamp: time.Now(),
			Payload:   bus.MessagesChanged{ConversationID: conversationID, MessageIDs: ids},
		})
	}

	// Delivery confirmation is recipient-side and best-effort; the write
	// flows back through the subscription and lands in the cache then.
	now := time.Now().UnixMilli()
	for _, id := range undelivered {
		err := r.remote.Update(ctx, messagePath(conversationID, isGroup, id), map[string]any{
			"deliveredTimestamp": now,
		})
		if err != nil {
			r.logger.Warn("confirm delivery", zap.String("message", id), zap.Error(err))
		}
	}
	return nil
}

// Conversations returns the cached conversation list, most recent first.
func (r *Repository) Conversations() ([]model.Conversation, error) {
	return r.db.ListConversations()
}

// Messages returns the cached messages of a conversation in send order.
func (r *Repository) Messages(conversationID string) ([]model.Message, error) {
	return r.db.ListMessages(conversationID)
}

// MessageByID returns one cached message, or nil when absent.
func (r *Repository) MessageByID(id string) (*model.Message, error) {
	return r.db.GetMessage(id)
}

// conversationMembers resolves the uids that own a fan-out copy of the
// conversation: both participants for a direct conversation, the canonical
// member set for a group.
func (r *Repository) conversationMembers(ctx context.Context, conversationID string, isGroup bool) ([]string, error) {
	if !isGroup {
		a, b, err := model.SplitDirectConversationID(conversationID)
		if err != nil {
			return nil, err
		}
		return []string{a, b}, nil
	}
	var group model.Group
	if err := r.remote.Get(ctx, groupPath(conversationID), &group); err != nil {
		return nil, fmt.Errorf("read group %s: %w", conversationID, err)
	}
	members := make([]string, 0, len(group.Members))
	for uid, in := range group.Members {
		if in {
			members = append(members, uid)
		}
	}
	return members, nil
}
