// Package app composes the per-account client with fx: configuration,
// logging, lock, cache, remote clients, repositories and lifecycle.
package app

import (
	"context"
	"errors"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/auth"
	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/chat"
	"github.com/recado-app/recado/internal/config"
	"github.com/recado-app/recado/internal/lock"
	"github.com/recado-app/recado/internal/logging"
	"github.com/recado-app/recado/internal/media"
	"github.com/recado-app/recado/internal/profile"
	"github.com/recado-app/recado/internal/remote"
	"github.com/recado-app/recado/internal/session"
	"github.com/recado-app/recado/internal/status"
	"github.com/recado-app/recado/internal/store"
)

// Params holds the resolved account name passed to the fx module.
type Params struct {
	Account string
}

// Module returns the fx module composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("recado",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideAccountConfig,
			provideSession,
			provideStore,
			provideAuthClient,
			provideRemoteClient,
			provideBlobStore,
			provideAuthRepository,
			provideChatRepository,
			provideProfileRepository,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.Account); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.Account), p.Account)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring account lock", zap.String("account", p.Account))
	l, err := lock.Acquire(session.Dir(p.Account))
	if err != nil {
		return nil, err
	}
	logger.Info("account lock acquired")
	return l, nil
}

func provideAccountConfig(p Params) (*config.Account, error) {
	return config.LoadAccount(session.AccountConfigPath(p.Account))
}

func provideSession() *session.Session {
	return session.New()
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.CachePath(p.Account)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache initialized", zap.String("path", dbPath))
	return db, nil
}

func provideAuthClient(acc *config.Account, logger *zap.Logger) *remote.AuthClient {
	return remote.NewAuthClient(acc.AuthURL, acc.APIKey, logger)
}

func provideRemoteClient(acc *config.Account, sess *session.Session, logger *zap.Logger) *remote.Client {
	return remote.NewClient(acc.DatabaseURL, sess.Token, logger)
}

func provideBlobStore(acc *config.Account, logger *zap.Logger) (*media.Store, error) {
	if acc.Storage.Bucket == "" {
		logger.Info("object storage not configured, media sends disabled")
		return nil, nil
	}
	return media.NewStore(context.Background(), acc.Storage, logger)
}

func provideAuthRepository(ac *remote.AuthClient, rc *remote.Client, sess *session.Session, b *bus.Bus, logger *zap.Logger) *auth.Repository {
	return auth.NewRepository(ac, rc, sess, b, logger)
}

func provideChatRepository(rc *remote.Client, blobs *media.Store, db *store.DB, b *bus.Bus, sess *session.Session, logger *zap.Logger) *chat.Repository {
	var blobStore chat.Blobs
	if blobs != nil {
		blobStore = blobs
	}
	return chat.NewRepository(rc, blobStore, db, b, sess, logger)
}

func provideProfileRepository(rc *remote.Client, blobs *media.Store, db *store.DB, sess *session.Session, logger *zap.Logger) *profile.Repository {
	var blobStore profile.Blobs
	if blobs != nil {
		blobStore = blobs
	}
	return profile.NewRepository(rc, blobStore, db, sess, logger)
}

func registerLifecycle(lc fx.Lifecycle, p Params, acc *config.Account, db *store.DB, repo *chat.Repository, authRepo *auth.Repository, machine *status.Machine, lk *lock.Lock, b *bus.Bus, logger *zap.Logger) {
	var logoutUnsub func()

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if acc.Email == "" || acc.Password == "" {
				logger.Info("no credentials configured, auth required")
				return machine.Transition(status.AuthRequired)
			}

			if err := machine.Transition(status.Connecting); err != nil {
				return err
			}
			if err := authRepo.Login(ctx, acc.Email, acc.Password, acc.PushToken); err != nil {
				_ = machine.Transition(status.AuthRequired)
				var ae *remote.AuthError
				if errors.As(err, &ae) {
					logger.Warn("login rejected", zap.String("code", ae.Code))
					return nil
				}
				return err
			}

			if err := machine.Transition(status.Syncing); err != nil {
				return err
			}
			if err := repo.SyncConversationsOnce(ctx); err != nil {
				logger.Warn("initial conversation sync", zap.Error(err))
			}
			if err := repo.StartConversationListener(context.Background()); err != nil {
				_ = machine.Transition(status.Error)
				return err
			}

			// Logout from any surface tears the listeners down.
			events, unsub := b.Subscribe(bus.KindLoggedOut, 4)
			logoutUnsub = unsub
			go func() {
				for range events {
					repo.StopAll()
					if err := db.ClearMessages(); err != nil {
						logger.Warn("clear message cache", zap.Error(err))
					}
				}
			}()

			logger.Info("account online", zap.String("account", p.Account))
			return machine.Transition(status.Ready)
		},
		OnStop: func(context.Context) error {
			if logoutUnsub != nil {
				logoutUnsub()
			}
			repo.StopAll()
			if err := lk.Release(); err != nil {
				logger.Warn("release account lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
