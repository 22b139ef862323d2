package vm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/model"
	"github.com/recado-app/recado/internal/profile"
)

// ProfileService is the slice of the profile repository the screen uses.
type ProfileService interface {
	UserProfile(ctx context.Context) (*model.User, error)
	UpdateProfile(ctx context.Context, upd profile.Update) error
}

// ProfileState is one snapshot of the profile screen.
type ProfileState struct {
	Loading      bool
	Err          string
	User         *model.User
	StagedAvatar []byte
}

// ProfileViewModel drives the own-profile screen.
type ProfileViewModel struct {
	refresher
	mu      sync.RWMutex
	service ProfileService
	logger  *zap.Logger

	loading           bool
	err               string
	user              *model.User
	stagedAvatar      []byte
	stagedContentType string
}

func NewProfileViewModel(service ProfileService, logger *zap.Logger) *ProfileViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileViewModel{refresher: newRefresher(), service: service, logger: logger, loading: true}
}

// Load fetches the current user's profile.
func (vm *ProfileViewModel) Load(ctx context.Context) {
	user, err := vm.service.UserProfile(ctx)
	vm.mu.Lock()
	vm.loading = false
	if err != nil {
		vm.err = err.Error()
	} else {
		vm.err = ""
		vm.user = user
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// StageAvatar holds a new avatar for the next Save.
func (vm *ProfileViewModel) StageAvatar(data []byte, contentType string) {
	vm.mu.Lock()
	vm.stagedAvatar = data
	vm.stagedContentType = contentType
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Save applies the edited name/status plus any staged avatar, then reloads.
func (vm *ProfileViewModel) Save(ctx context.Context, name, status string) {
	vm.mu.RLock()
	avatar := vm.stagedAvatar
	contentType := vm.stagedContentType
	vm.mu.RUnlock()

	err := vm.service.UpdateProfile(ctx, profile.Update{
		Name:              name,
		Status:            status,
		Avatar:            avatar,
		AvatarContentType: contentType,
	})
	if err != nil {
		vm.mu.Lock()
		vm.err = err.Error()
		vm.mu.Unlock()
		vm.signalRefresh()
		return
	}
	vm.mu.Lock()
	vm.stagedAvatar = nil
	vm.stagedContentType = ""
	vm.mu.Unlock()
	vm.Load(ctx)
}

// State returns the current snapshot.
func (vm *ProfileViewModel) State() ProfileState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return ProfileState{Loading: vm.loading, Err: vm.err, User: vm.user, StagedAvatar: vm.stagedAvatar}
}
