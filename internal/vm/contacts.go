package vm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/model"
)

// ContactDirectory is the slice of the sync layer the contact screens use.
type ContactDirectory interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	CreateOrGetConversation(ctx context.Context, target model.User) (*model.Conversation, error)
}

// ContactsState is one snapshot of the contact list.
type ContactsState struct {
	Loading bool
	Err     string
	Users   []model.User
	// NavigateTo carries the conversation id to open after a contact tap.
	NavigateTo string
}

// ContactsViewModel drives the registered-user contact list.
type ContactsViewModel struct {
	refresher
	mu     sync.RWMutex
	dir    ContactDirectory
	logger *zap.Logger

	loading    bool
	err        string
	users      []model.User
	navigateTo string
}

func NewContactsViewModel(dir ContactDirectory, logger *zap.Logger) *ContactsViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactsViewModel{refresher: newRefresher(), dir: dir, logger: logger, loading: true}
}

// Load fetches the registered-user list (self already excluded).
func (vm *ContactsViewModel) Load(ctx context.Context) {
	users, err := vm.dir.ListUsers(ctx)
	vm.mu.Lock()
	vm.loading = false
	if err != nil {
		vm.err = err.Error()
	} else {
		vm.err = ""
		vm.users = users
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Select resolves the direct conversation with the tapped contact and
// exposes it as the navigation target.
func (vm *ContactsViewModel) Select(ctx context.Context, target model.User) {
	conv, err := vm.dir.CreateOrGetConversation(ctx, target)
	vm.mu.Lock()
	if err != nil {
		vm.err = err.Error()
	} else {
		vm.err = ""
		vm.navigateTo = conv.ID
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// ConsumeNavigation returns and clears the pending navigation target.
func (vm *ContactsViewModel) ConsumeNavigation() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	target := vm.navigateTo
	vm.navigateTo = ""
	return target
}

// State returns the current snapshot.
func (vm *ContactsViewModel) State() ContactsState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return ContactsState{
		Loading:    vm.loading,
		Err:        vm.err,
		Users:      vm.users,
		NavigateTo: vm.navigateTo,
	}
}
