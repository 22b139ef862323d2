package vm

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/model"
)

// GroupService is the slice of the sync layer the group-info screen uses.
type GroupService interface {
	GroupDetails(ctx context.Context, groupID string) (*model.Group, error)
	GroupMembers(ctx context.Context, groupID string) ([]model.User, error)
	UpdateGroupName(ctx context.Context, groupID, name string) error
	AddMemberToGroup(ctx context.Context, groupID, uid string) error
	RemoveMemberFromGroup(ctx context.Context, groupID, uid string) error
	UploadGroupProfilePicture(ctx context.Context, groupID string, data []byte, contentType string) (string, error)
}

// GroupInfoState is one snapshot of the group-info screen.
type GroupInfoState struct {
	Loading bool
	Err     string
	Group   *model.Group
	Members []model.User
}

// GroupInfoViewModel drives the group-info screen.
type GroupInfoViewModel struct {
	refresher
	mu      sync.RWMutex
	service GroupService
	logger  *zap.Logger

	groupID string
	loading bool
	err     string
	group   *model.Group
	members []model.User
}

func NewGroupInfoViewModel(service GroupService, logger *zap.Logger) *GroupInfoViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupInfoViewModel{refresher: newRefresher(), service: service, logger: logger, loading: true}
}

// Load fetches the group record and its members.
func (vm *GroupInfoViewModel) Load(ctx context.Context, groupID string) {
	vm.mu.Lock()
	vm.groupID = groupID
	vm.mu.Unlock()
	vm.reload(ctx)
}

func (vm *GroupInfoViewModel) reload(ctx context.Context) {
	vm.mu.RLock()
	id := vm.groupID
	vm.mu.RUnlock()

	group, err := vm.service.GroupDetails(ctx, id)
	if err != nil {
		vm.setError(err)
		return
	}
	members, err := vm.service.GroupMembers(ctx, id)
	if err != nil {
		vm.setError(err)
		return
	}
	vm.mu.Lock()
	vm.loading = false
	vm.err = ""
	vm.group = group
	vm.members = members
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *GroupInfoViewModel) setError(err error) {
	vm.mu.Lock()
	vm.loading = false
	vm.err = err.Error()
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Rename changes the group name and reloads.
func (vm *GroupInfoViewModel) Rename(ctx context.Context, name string) {
	vm.mu.RLock()
	id := vm.groupID
	vm.mu.RUnlock()
	if err := vm.service.UpdateGroupName(ctx, id, name); err != nil {
		vm.setError(err)
		return
	}
	vm.reload(ctx)
}

// AddMember invites a user and reloads.
func (vm *GroupInfoViewModel) AddMember(ctx context.Context, uid string) {
	vm.mu.RLock()
	id := vm.groupID
	vm.mu.RUnlock()
	if err := vm.service.AddMemberToGroup(ctx, id, uid); err != nil {
		vm.setError(err)
		return
	}
	vm.reload(ctx)
}

// RemoveMember removes a user and reloads.
func (vm *GroupInfoViewModel) RemoveMember(ctx context.Context, uid string) {
	vm.mu.RLock()
	id := vm.groupID
	vm.mu.RUnlock()
	if err := vm.service.RemoveMemberFromGroup(ctx, id, uid); err != nil {
		vm.setError(err)
		return
	}
	vm.reload(ctx)
}

// ChangePicture uploads a new group picture and reloads.
func (vm *GroupInfoViewModel) ChangePicture(ctx context.Context, data []byte, contentType string) {
	vm.mu.RLock()
	id := vm.groupID
	vm.mu.RUnlock()
	if _, err := vm.service.UploadGroupProfilePicture(ctx, id, data, contentType); err != nil {
		vm.setError(err)
		return
	}
	vm.reload(ctx)
}

// State returns the current snapshot.
func (vm *GroupInfoViewModel) State() GroupInfoState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return GroupInfoState{Loading: vm.loading, Err: vm.err, Group: vm.group, Members: vm.members}
}
