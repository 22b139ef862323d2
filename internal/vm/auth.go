package vm

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/remote"
)

// AuthService is the slice of the auth repository the screens use.
type AuthService interface {
	Login(ctx context.Context, email, password, pushToken string) error
	Register(ctx context.Context, email, password, pushToken string) error
	ResetPassword(ctx context.Context, email string) error
	Logout()
}

// AuthPhase is the lifecycle of one auth attempt.
type AuthPhase string

const (
	AuthIdle    AuthPhase = "IDLE"
	AuthLoading AuthPhase = "LOADING"
	AuthSuccess AuthPhase = "SUCCESS"
	AuthFailed  AuthPhase = "ERROR"
)

// AuthState is one snapshot of the login/registration screens.
type AuthState struct {
	Phase AuthPhase
	Err   string
}

// AuthViewModel drives login, registration and password reset.
type AuthViewModel struct {
	refresher
	mu      sync.RWMutex
	service AuthService
	logger  *zap.Logger

	phase AuthPhase
	err   string
}

func NewAuthViewModel(service AuthService, logger *zap.Logger) *AuthViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthViewModel{refresher: newRefresher(), service: service, logger: logger, phase: AuthIdle}
}

// Login attempts a sign-in.
func (vm *AuthViewModel) Login(ctx context.Context, email, password, pushToken string) {
	vm.run(func() error { return vm.service.Login(ctx, email, password, pushToken) })
}

// Register attempts an account creation.
func (vm *AuthViewModel) Register(ctx context.Context, email, password, pushToken string) {
	vm.run(func() error { return vm.service.Register(ctx, email, password, pushToken) })
}

// ResetPassword requests the reset email.
func (vm *AuthViewModel) ResetPassword(ctx context.Context, email string) {
	vm.run(func() error { return vm.service.ResetPassword(ctx, email) })
}

// Logout clears the session and returns the screens to idle.
func (vm *AuthViewModel) Logout() {
	vm.service.Logout()
	vm.mu.Lock()
	vm.phase = AuthIdle
	vm.err = ""
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *AuthViewModel) run(op func() error) {
	vm.mu.Lock()
	vm.phase = AuthLoading
	vm.err = ""
	vm.mu.Unlock()
	vm.signalRefresh()

	if err := op(); err != nil {
		vm.mu.Lock()
		vm.phase = AuthFailed
		vm.err = friendlyAuthError(err)
		vm.mu.Unlock()
		vm.signalRefresh()
		return
	}
	vm.mu.Lock()
	vm.phase = AuthSuccess
	vm.mu.Unlock()
	vm.signalRefresh()
}

// State returns the current snapshot.
func (vm *AuthViewModel) State() AuthState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return AuthState{Phase: vm.phase, Err: vm.err}
}

// friendlyAuthError maps identity-service error codes to user-facing text.
func friendlyAuthError(err error) string {
	var ae *remote.AuthError
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch ae.Code {
	case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return "Wrong email or password"
	case "EMAIL_EXISTS":
		return "An account with this email already exists"
	case "WEAK_PASSWORD : Password should be at least 6 characters", "WEAK_PASSWORD":
		return "Password should be at least 6 characters"
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return "Too many attempts, try again later"
	case "USER_DISABLED":
		return "This account has been disabled"
	default:
		return "Authentication failed (" + ae.Code + ")"
	}
}
