package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
	"github.com/recado-app/recado/internal/session"
)

type fakeIdentity struct {
	creds   *remote.Credentials
	err     error
	resets  []string
	signUps []string
}

func (f *fakeIdentity) SignIn(_ context.Context, email, _ string) (*remote.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := *f.creds
	c.Email = email
	return &c, nil
}

func (f *fakeIdentity) SignUp(_ context.Context, email, _ string) (*remote.Credentials, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.signUps = append(f.signUps, email)
	c := *f.creds
	c.Email = email
	return &c, nil
}

func (f *fakeIdentity) SendPasswordReset(_ context.Context, email string) error {
	f.resets = append(f.resets, email)
	return f.err
}

type fakeDirectory struct {
	sets    map[string]any
	updates map[string]map[string]any
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{sets: map[string]any{}, updates: map[string]map[string]any{}}
}

func (f *fakeDirectory) Set(_ context.Context, path string, v any) error {
	if f.err != nil {
		return f.err
	}
	f.sets[path] = v
	return nil
}

func (f *fakeDirectory) Update(_ context.Context, path string, fields map[string]any) error {
	if f.err != nil {
		return f.err
	}
	f.updates[path] = fields
	return nil
}

func testCreds() *remote.Credentials {
	return &remote.Credentials{
		UID:          "uid-1",
		IDToken:      "id-token",
		RefreshToken: "refresh",
		TTL:          time.Hour,
	}
}

func TestLoginInstallsSessionAndPushToken(t *testing.T) {
	sess := session.New()
	dir := newFakeDirectory()
	repo := NewRepository(&fakeIdentity{creds: testCreds()}, dir, sess, bus.New(), zap.NewNop())

	if err := repo.Login(context.Background(), "ana@example.com", "pw", "fcm-token"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.UID() != "uid-1" || !sess.Authenticated() {
		t.Fatalf("session not installed: uid=%q", sess.UID())
	}
	fields := dir.updates["users/uid-1"]
	if fields == nil || fields["fcmToken"] != "fcm-token" {
		t.Fatalf("push token not written: %v", dir.updates)
	}
}

func TestLoginSurfacedAuthError(t *testing.T) {
	sess := session.New()
	authErr := &remote.AuthError{Code: "INVALID_PASSWORD"}
	repo := NewRepository(&fakeIdentity{err: authErr}, newFakeDirectory(), sess, bus.New(), zap.NewNop())

	err := repo.Login(context.Background(), "ana@example.com", "wrong", "")
	var ae *remote.AuthError
	if !errors.As(err, &ae) || ae.Code != "INVALID_PASSWORD" {
		t.Fatalf("err = %v, want AuthError INVALID_PASSWORD", err)
	}
	if sess.Authenticated() {
		t.Fatal("failed login must not authenticate")
	}
}

func TestRegisterCreatesDirectoryRecord(t *testing.T) {
	sess := session.New()
	dir := newFakeDirectory()
	repo := NewRepository(&fakeIdentity{creds: testCreds()}, dir, sess, bus.New(), zap.NewNop())

	if err := repo.Register(context.Background(), "ana.silva@example.com", "pw", "fcm"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rec, ok := dir.sets["users/uid-1"].(*model.User)
	if !ok {
		t.Fatalf("user record not written: %v", dir.sets)
	}
	if rec.Name != "ana.silva" {
		t.Fatalf("name = %q, want email local part", rec.Name)
	}
	if rec.FCMToken != "fcm" {
		t.Fatalf("fcmToken = %q", rec.FCMToken)
	}
}

func TestLogoutClearsSessionAndPublishes(t *testing.T) {
	sess := session.New()
	sess.SetCredentials("uid-1", "a@b.c", "t", "r", time.Hour)
	b := bus.New()
	events, unsub := b.Subscribe("session.", 4)
	defer unsub()

	repo := NewRepository(&fakeIdentity{creds: testCreds()}, newFakeDirectory(), sess, b, zap.NewNop())
	repo.Logout()

	if sess.Authenticated() || sess.UID() != "" {
		t.Fatal("session not cleared")
	}
	select {
	case evt := <-events:
		if evt.Kind != bus.KindLoggedOut {
			t.Fatalf("kind = %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no logout event")
	}
}

func TestDisplayNameFromEmail(t *testing.T) {
	cases := map[string]string{
		"ana@example.com": "ana",
		"no-at-sign":      "no-at-sign",
		"a.b+c@d.e":       "a.b+c",
	}
	for in, want := range cases {
		if got := DisplayNameFromEmail(in); got != want {
			t.Errorf("DisplayNameFromEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
