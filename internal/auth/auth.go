// Package auth wraps the identity endpoints into account-level operations:
// registration (with its users/{uid} directory record), login (with push
// token upkeep), password reset and logout.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/remote"
	"github.com/recado-app/recado/internal/session"
)

// Identity is the credential-issuing surface of the identity service.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (*remote.Credentials, error)
	SignUp(ctx context.Context, email, password string) (*remote.Credentials, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// Directory covers the document-tree writes auth performs.
type Directory interface {
	Set(ctx context.Context, path string, v any) error
	Update(ctx context.Context, path string, fields map[string]any) error
}

// Repository ties identity operations to the session and user directory.
type Repository struct {
	identity Identity
	dir      Directory
	sess     *session.Session
	bus      *bus.Bus
	logger   *zap.Logger
}

func NewRepository(identity Identity, dir Directory, sess *session.Session, b *bus.Bus, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{identity: identity, dir: dir, sess: sess, bus: b, logger: logger}
}

// Login signs in and installs the credentials on the session. A non-empty
// pushToken is written to users/{uid}/fcmToken so notifications follow the
// device; a failed token write does not fail the login.
func (r *Repository) Login(ctx context.Context, email, password, pushToken string) error {
	creds, err := r.identity.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	r.sess.SetCredentials(creds.UID, creds.Email, creds.IDToken, creds.RefreshToken, creds.TTL)

	if pushToken != "" {
		err := r.dir.Update(ctx, "users/"+creds.UID, map[string]any{"fcmToken": pushToken})
		if err != nil {
			r.logger.Warn("refresh push token", zap.String("uid", creds.UID), zap.Error(err))
		}
	}
	r.logger.Info("logged in", zap.String("uid", creds.UID))
	return nil
}

// Register creates the account and its users/{uid} directory record. The
// display name defaults to the email's local part.
func (r *Repository) Register(ctx context.Context, email, password, pushToken string) error {
	creds, err := r.identity.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	r.sess.SetCredentials(creds.UID, creds.Email, creds.IDToken, creds.RefreshToken, creds.TTL)

	user := model.User{
		UID:      creds.UID,
		Name:     DisplayNameFromEmail(email),
		Email:    email,
		FCMToken: pushToken,
	}
	if err := r.dir.Set(ctx, "users/"+creds.UID, &user); err != nil {
		return fmt.Errorf("write user record: %w", err)
	}
	r.logger.Info("registered", zap.String("uid", creds.UID))
	return nil
}

// ResetPassword requests a password-reset email.
func (r *Repository) ResetPassword(ctx context.Context, email string) error {
	return r.identity.SendPasswordReset(ctx, email)
}

// Logout clears the session and announces it. Listener teardown reacts to
// the bus event.
func (r *Repository) Logout() {
	uid := r.sess.UID()
	r.sess.Clear()
	r.bus.Publish(bus.Event{
		Kind:      bus.KindLoggedOut,
		Timestamp: time.Now(),
	})
	r.logger.Info("logged out", zap.String("uid", uid))
}

// DisplayNameFromEmail derives the default display name from an address:
// everything before the '@'.
func DisplayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
