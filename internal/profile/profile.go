// Package profile reads and updates the current user's directory record.
// Name and picture changes are propagated into the far side of every direct
// conversation, whose copies denormalize them; group copies are canonical
// on the group record and left alone.
package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/media"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/session"
	"github.com/recado-app/recado/internal/store"
)

// Remote covers the document-tree operations profile needs.
type Remote interface {
	Get(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fields map[string]any) error
}

// Blobs uploads avatar images.
type Blobs interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Update describes a profile change. Zero-value fields are left unchanged;
// a non-nil Avatar is uploaded and becomes the profile picture.
type Update struct {
	Name              string
	Status            string
	Avatar            []byte
	AvatarContentType string
}

// Repository manages the current user's profile.
type Repository struct {
	remote Remote
	blobs  Blobs
	db     *store.DB
	sess   *session.Session
	logger *zap.Logger
}

func NewRepository(rc Remote, blobs Blobs, db *store.DB, sess *session.Session, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{remote: rc, blobs: blobs, db: db, sess: sess, logger: logger}
}

// UserProfile returns the current user's directory record.
func (r *Repository) UserProfile(ctx context.Context) (*model.User, error) {
	uid := r.sess.UID()
	if uid == "" {
		return nil, fmt.Errorf("not authenticated")
	}
	var user model.User
	if err := r.remote.Get(ctx, "users/"+uid, &user); err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	if user.UID == "" {
		user.UID = uid
	}
	return &user, nil
}

// UpdateProfile applies the change to users/{uid} and propagates name and
// picture into the other participant's copy of every direct conversation.
// Per-copy propagation failures are logged and skipped.
func (r *Repository) UpdateProfile(ctx context.Context, upd Update) error {
	uid := r.sess.UID()
	if uid == "" {
		return fmt.Errorf("not authenticated")
	}

	fields := make(map[string]any)
	if upd.Name != "" {
		fields["name"] = upd.Name
	}
	if upd.Status != "" {
		fields["status"] = upd.Status
	}
	if upd.Avatar != nil {
		if r.blobs == nil {
			return fmt.Errorf("object storage not configured")
		}
		key := media.ObjectKey("avatars", uid, extFor(upd.AvatarContentType))
		url, err := r.blobs.Upload(ctx, key, upd.AvatarContentType, upd.Avatar)
		if err != nil {
			return fmt.Errorf("upload avatar: %w", err)
		}
		fields["profilePictureUrl"] = url
	}
	if len(fields) == 0 {
		return nil
	}

	if err := r.remote.Update(ctx, "users/"+uid, fields); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	propagated := make(map[string]any)
	if v, ok := fields["name"]; ok {
		propagated["name"] = v
	}
	if v, ok := fields["profilePictureUrl"]; ok {
		propagated["profilePictureUrl"] = v
	}
	if len(propagated) == 0 {
		return nil
	}

	convs, err := r.db.ListConversations()
	if err != nil {
		return err
	}
	for _, conv := range convs {
		if conv.IsGroup {
			continue
		}
		other, err := model.OtherParticipant(conv.ID, uid)
		if err != nil {
			r.logger.Warn("propagate profile", zap.String("conversation", conv.ID), zap.Error(err))
			continue
		}
		path := "user-conversations/" + other + "/" + conv.ID
		if err := r.remote.Update(ctx, path, propagated); err != nil {
			r.logger.Warn("propagate profile",
				zap.String("conversation", conv.ID), zap.String("member", other), zap.Error(err))
		}
	}
	return nil
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
