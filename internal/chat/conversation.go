package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
)

// CreateOrGetConversation resolves the direct conversation with target,
// creating the per-member denormalized copies on first contact. The id is
// deterministic, so both sides always land on the same conversation. Each
// copy is named after the other participant.
func (r *Repository) CreateOrGetConversation(ctx context.Context, target model.User) (*model.Conversation, error) {
	uid := r.sess.UID()
	if uid == "" {
		return nil, fmt.Errorf("not authenticated")
	}
	if target.UID == "" || target.UID == uid {
		return nil, fmt.Errorf("invalid conversation target")
	}
	conversationID := model.DirectConversationID(uid, target.UID)

	if cached, err := r.db.GetConversation(conversationID); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	var existing model.Conversation
	err := r.remote.Get(ctx, conversationPath(uid, conversationID), &existing)
	switch {
	case err == nil:
		if existing.ID == "" {
			existing.ID = conversationID
		}
		if err := r.db.UpsertConversation(&existing); err != nil {
			return nil, err
		}
		r.publishConversationChanged(conversationID)
		return &existing, nil
	case !errors.Is(err, remote.ErrNotFound):
		return nil, fmt.Errorf("read conversation: %w", err)
	}

	var self model.User
	if err := r.remote.Get(ctx, userPath(uid), &self); err != nil && !errors.Is(err, remote.ErrNotFound) {
		return nil, fmt.Errorf("read own profile: %w", err)
	}

	now := time.Now().UnixMilli()
	mine := model.Conversation{
		ID:                conversationID,
		Name:              target.Name,
		ProfilePictureURL: target.ProfilePictureURL,
		Timestamp:         now,
	}
	theirs := model.Conversation{
		ID:                conversationID,
		Name:              self.Name,
		ProfilePictureURL: self.ProfilePictureURL,
		Timestamp:         now,
	}
	if err := r.remote.Set(ctx, conversationPath(uid, conversationID), &mine); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if err := r.remote.Set(ctx, conversationPath(target.UID, conversationID), &theirs); err != nil {
		return nil, fmt.Errorf("create conversation copy: %w", err)
	}

	if err := r.db.UpsertConversation(&mine); err != nil {
		return nil, err
	}
	r.publishConversationChanged(conversationID)
	return &mine, nil
}

// ConversationDetails returns one conversation, preferring the cache and
// falling back to the current user's remote copy.
func (r *Repository) ConversationDetails(ctx context.Context, conversationID string) (*model.Conversation, error) {
	cached, err := r.db.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	uid := r.sess.UID()
	var conv model.Conversation
	if err := r.remote.Get(ctx, conversationPath(uid, conversationID), &conv); err != nil {
		return nil, fmt.Errorf("read conversation %s: %w", conversationID, err)
	}
	if conv.ID == "" {
		conv.ID = conversationID
	}
	if err := r.db.UpsertConversation(&conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListUsers returns every registered user except the current one, sorted by
// name. This is the contact list.
func (r *Repository) ListUsers(ctx context.Context) ([]model.User, error) {
	var children map[string]model.User
	err := r.remote.Get(ctx, usersPath(), &children)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list users: %w", err)
	}
	return r.usersFromChildren(children), nil
}

// ListenUsers opens a live subscription on the registered-user directory
// and emits the contact list (self excluded, sorted by name) after every
// change. The channel closes when ctx is cancelled or the stream drops.
func (r *Repository) ListenUsers(ctx context.Context) (<-chan []model.User, error) {
	snaps, err := r.remote.Listen(ctx, usersPath())
	if err != nil {
		return nil, fmt.Errorf("listen users: %w", err)
	}
	out := make(chan []model.User, 1)
	go func() {
		defer close(out)
		for snap := range snaps {
			children, _, err := remote.DecodeChildren[model.User](snap)
			if err != nil {
				r.logger.Error("decode user directory", zap.Error(err))
				continue
			}
			select {
			case out <- r.usersFromChildren(children):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (r *Repository) usersFromChildren(children map[string]model.User) []model.User {
	uid := r.sess.UID()
	users := make([]model.User, 0, len(children))
	for id, u := range children {
		if u.UID == "" {
			u.UID = id
		}
		if u.UID == uid {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users
}

func (r *Repository) publishConversationChanged(conversationID string) {
	r.bus.Publish(bus.Event{
		Kind:      bus.KindConversationsChanged,
		Timestamp: time.Now(),
		Payload:   []string{conversationID},
	})
}
