package profile

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
	"github.com/recado-app/recado/internal/session"
	"github.com/recado-app/recado/internal/store"
)

const (
	selfUID  = "uidbbb"
	otherUID = "uidaaa"
	thirdUID = "uidccc"
)

type fakeRemote struct {
	mu      sync.Mutex
	users   map[string]model.User
	updates map[string]map[string]any
}

func (f *fakeRemote) Get(_ context.Context, path string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[path]
	if !ok {
		return remote.ErrNotFound
	}
	*(v.(*model.User)) = u
	return nil
}

func (f *fakeRemote) Update(_ context.Context, path string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updates == nil {
		f.updates = make(map[string]map[string]any)
	}
	f.updates[path] = fields
	return nil
}

type fakeBlobs struct{}

func (fakeBlobs) Upload(_ context.Context, key, _ string, _ []byte) (string, error) {
	return "https://blobs.test/" + key, nil
}

func newRepo(t *testing.T) (*Repository, *fakeRemote, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sess := session.New()
	sess.SetCredentials(selfUID, "self@example.com", "t", "r", time.Hour)
	rc := &fakeRemote{users: map[string]model.User{
		"users/" + selfUID: {UID: selfUID, Name: "Self"},
	}}
	return NewRepository(rc, fakeBlobs{}, db, sess, zap.NewNop()), rc, db
}

func TestUserProfile(t *testing.T) {
	repo, _, _ := newRepo(t)
	user, err := repo.UserProfile(context.Background())
	if err != nil {
		t.Fatalf("UserProfile: %v", err)
	}
	if user.Name != "Self" || user.UID != selfUID {
		t.Fatalf("user = %+v", user)
	}
}

func TestUpdateProfilePropagatesToDirectOnly(t *testing.T) {
	repo, rc, db := newRepo(t)

	direct := model.DirectConversationID(selfUID, otherUID)
	for _, conv := range []model.Conversation{
		{ID: direct, Name: "Other", Timestamp: 1},
		{ID: "group-1", Name: "Club", Timestamp: 2, IsGroup: true},
	} {
		c := conv
		if err := db.UpsertConversation(&c); err != nil {
			t.Fatalf("seed conversation: %v", err)
		}
	}

	err := repo.UpdateProfile(context.Background(), Update{Name: "New Name", Avatar: []byte("img"), AvatarContentType: "image/png"})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}

	own := rc.updates["users/"+selfUID]
	if own == nil || own["name"] != "New Name" {
		t.Fatalf("own record update = %v", own)
	}
	if own["profilePictureUrl"] == nil {
		t.Fatal("avatar URL not written")
	}

	prop := rc.updates["user-conversations/"+otherUID+"/"+direct]
	if prop == nil || prop["name"] != "New Name" {
		t.Fatalf("direct propagation = %v", prop)
	}
	if prop["profilePictureUrl"] == nil {
		t.Fatal("picture not propagated")
	}

	for path := range rc.updates {
		if path == "user-conversations/"+thirdUID+"/group-1" || path == "user-conversations/"+otherUID+"/group-1" {
			t.Fatalf("group copies must not be touched: %s", path)
		}
	}
}

func TestUpdateProfileStatusOnlySkipsPropagation(t *testing.T) {
	repo, rc, db := newRepo(t)
	direct := model.DirectConversationID(selfUID, otherUID)
	if err := db.UpsertConversation(&model.Conversation{ID: direct, Name: "Other", Timestamp: 1}); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	if err := repo.UpdateProfile(context.Background(), Update{Status: "busy"}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if rc.updates["users/"+selfUID]["status"] != "busy" {
		t.Fatalf("status update = %v", rc.updates["users/"+selfUID])
	}
	if _, ok := rc.updates["user-conversations/"+otherUID+"/"+direct]; ok {
		t.Fatal("status changes must not propagate to conversation copies")
	}
}

func TestUpdateProfileEmptyIsNoop(t *testing.T) {
	repo, rc, _ := newRepo(t)
	if err := repo.UpdateProfile(context.Background(), Update{}); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if len(rc.updates) != 0 {
		t.Fatalf("no-op update wrote %v", rc.updates)
	}
}
