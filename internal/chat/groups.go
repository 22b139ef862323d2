package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/media"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
)

// CreateGroup creates a group with the current user as creator. The creator
// is always a member regardless of the supplied list. A canonical record is
// written under groups/{id} and a conversation copy fanned out to every
// member.
func (r *Repository) CreateGroup(ctx context.Context, name string, memberUIDs []string) (*model.Group, error) {
	uid := r.sess.UID()
	if uid == "" {
		return nil, fmt.Errorf("not authenticated")
	}
	if name == "" {
		return nil, fmt.Errorf("group name required")
	}

	members := make(map[string]bool, len(memberUIDs)+1)
	members[uid] = true
	for _, m := range memberUIDs {
		if m != "" {
			members[m] = true
		}
	}

	now := time.Now().UnixMilli()
	group := model.Group{
		ID:        remote.PushID(),
		Name:      name,
		CreatorID: uid,
		Members:   members,
		Timestamp: now,
	}
	if err := r.remote.Set(ctx, groupPath(group.ID), &group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	copyFor := model.Conversation{
		ID:        group.ID,
		Name:      name,
		Timestamp: now,
		IsGroup:   true,
	}
	for member := range members {
		if err := r.remote.Set(ctx, conversationPath(member, group.ID), &copyFor); err != nil {
			r.logger.Warn("fan out group conversation",
				zap.String("group", group.ID), zap.String("member", member), zap.Error(err))
		}
	}

	if err := r.db.UpsertConversation(&copyFor); err != nil {
		return nil, err
	}
	r.publishConversationChanged(group.ID)
	r.logger.Info("group created", zap.String("group", group.ID), zap.Int("members", len(members)))
	return &group, nil
}

// GroupDetails returns the canonical group record.
func (r *Repository) GroupDetails(ctx context.Context, groupID string) (*model.Group, error) {
	var group model.Group
	if err := r.remote.Get(ctx, groupPath(groupID), &group); err != nil {
		return nil, fmt.Errorf("read group %s: %w", groupID, err)
	}
	if group.ID == "" {
		group.ID = groupID
	}
	return &group, nil
}

// GroupMembers resolves the group's member uids to user records, sorted by
// name. Members whose user record is missing are skipped.
func (r *Repository) GroupMembers(ctx context.Context, groupID string) ([]model.User, error) {
	group, err := r.GroupDetails(ctx, groupID)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(group.Members))
	for uid, in := range group.Members {
		if !in {
			continue
		}
		var u model.User
		if err := r.remote.Get(ctx, userPath(uid), &u); err != nil {
			if errors.Is(err, remote.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read member %s: %w", uid, err)
		}
		if u.UID == "" {
			u.UID = uid
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// AddMemberToGroup adds uid to the canonical member set and writes the new
// member's conversation copy.
func (r *Repository) AddMemberToGroup(ctx context.Context, groupID, uid string) error {
	group, err := r.GroupDetails(ctx, groupID)
	if err != nil {
		return err
	}
	err = r.remote.Update(ctx, groupPath(groupID)+"/members", map[string]any{uid: true})
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	copyFor := model.Conversation{
		ID:                groupID,
		Name:              group.Name,
		ProfilePictureURL: group.ProfilePictureURL,
		Timestamp:         time.Now().UnixMilli(),
		IsGroup:           true,
	}
	if err := r.remote.Set(ctx, conversationPath(uid, groupID), &copyFor); err != nil {
		return fmt.Errorf("write member conversation copy: %w", err)
	}
	return nil
}

// RemoveMemberFromGroup drops uid from the canonical member set and deletes
// that member's conversation copy, which removes the group from their list.
func (r *Repository) RemoveMemberFromGroup(ctx context.Context, groupID, uid string) error {
	err := r.remote.Update(ctx, groupPath(groupID)+"/members", map[string]any{uid: nil})
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := r.remote.Delete(ctx, conversationPath(uid, groupID)); err != nil {
		return fmt.Errorf("delete member conversation copy: %w", err)
	}
	return nil
}

// UpdateGroupName renames the group on the canonical record and every
// member's conversation copy.
func (r *Repository) UpdateGroupName(ctx context.Context, groupID, name string) error {
	if name == "" {
		return fmt.Errorf("group name required")
	}
	if err := r.remote.Update(ctx, groupPath(groupID), map[string]any{"name": name}); err != nil {
		return fmt.Errorf("rename group: %w", err)
	}
	r.fanOutGroupField(ctx, groupID, map[string]any{"name": name})

	if conv, err := r.db.GetConversation(groupID); err == nil && conv != nil {
		conv.Name = name
		if err := r.db.UpsertConversation(conv); err == nil {
			r.publishConversationChanged(groupID)
		}
	}
	return nil
}

// UploadGroupProfilePicture uploads the image and propagates its URL to the
// canonical record and every member copy.
func (r *Repository) UploadGroupProfilePicture(ctx context.Context, groupID string, data []byte, contentType string) (string, error) {
	if r.blobs == nil {
		return "", fmt.Errorf("object storage not configured")
	}
	key := media.ObjectKey("groups", groupID, extForContentType(contentType))
	url, err := r.blobs.Upload(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("upload group picture: %w", err)
	}
	err = r.remote.Update(ctx, groupPath(groupID), map[string]any{"profilePictureUrl": url})
	if err != nil {
		return "", fmt.Errorf("update group picture: %w", err)
	}
	r.fanOutGroupField(ctx, groupID, map[string]any{"profilePictureUrl": url})

	if conv, err := r.db.GetConversation(groupID); err == nil && conv != nil {
		conv.ProfilePictureURL = url
		if err := r.db.UpsertConversation(conv); err == nil {
			r.publishConversationChanged(groupID)
		}
	}
	return url, nil
}

func (r *Repository) fanOutGroupField(ctx context.Context, groupID string, fields map[string]any) {
	members, err := r.conversationMembers(ctx, groupID, true)
	if err != nil {
		r.logger.Warn("resolve members for group fan-out",
			zap.String("group", groupID), zap.Error(err))
		return
	}
	for _, member := range members {
		if err := r.remote.Update(ctx, conversationPath(member, groupID), fields); err != nil {
			r.logger.Warn("fan out group field",
				zap.String("group", groupID), zap.String("member", member), zap.Error(err))
		}
	}
}
