package vm

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/contacts"
	"github.com/recado-app/recado/internal/model"
)

// UserLister lists the registered users for contact matching.
type UserLister interface {
	ListUsers(ctx context.Context) ([]model.User, error)
}

// ImportedContact is one address-book entry annotated with the registered
// user it matched, if any.
type ImportedContact struct {
	Contact model.DeviceContact
	Match   *model.User
}

// ImportContactsState is one snapshot of the contact-import screen.
type ImportContactsState struct {
	Loading  bool
	Err      string
	Contacts []ImportedContact
}

// ImportContactsViewModel loads the configured address-book file and
// matches its entries against the registered-user directory.
type ImportContactsViewModel struct {
	refresher
	mu     sync.RWMutex
	users  UserLister
	path   string
	logger *zap.Logger

	loading  bool
	err      string
	contacts []ImportedContact
}

func NewImportContactsViewModel(users UserLister, addressBookPath string, logger *zap.Logger) *ImportContactsViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportContactsViewModel{
		refresher: newRefresher(),
		users:     users,
		path:      addressBookPath,
		logger:    logger,
		loading:   true,
	}
}

// Load reads the address book and resolves matches. Matching is best
// effort: a registered user matches when their display name equals the
// contact name or their email local part equals the contact name,
// case-insensitively.
func (vm *ImportContactsViewModel) Load(ctx context.Context) {
	entries, err := contacts.LoadAddressBook(vm.path)
	if err != nil {
		vm.setError(err)
		return
	}
	registered, err := vm.users.ListUsers(ctx)
	if err != nil {
		vm.setError(err)
		return
	}

	imported := make([]ImportedContact, 0, len(entries))
	for _, entry := range entries {
		ic := ImportedContact{Contact: entry}
		if match := matchUser(entry, registered); match != nil {
			ic.Match = match
		}
		imported = append(imported, ic)
	}

	vm.mu.Lock()
	vm.loading = false
	vm.err = ""
	vm.contacts = imported
	vm.mu.Unlock()
	vm.signalRefresh()
}

func (vm *ImportContactsViewModel) setError(err error) {
	vm.mu.Lock()
	vm.loading = false
	vm.err = err.Error()
	vm.mu.Unlock()
	vm.signalRefresh()
}

// State returns the current snapshot.
func (vm *ImportContactsViewModel) State() ImportContactsState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return ImportContactsState{Loading: vm.loading, Err: vm.err, Contacts: vm.contacts}
}

func matchUser(contact model.DeviceContact, registered []model.User) *model.User {
	name := strings.ToLower(strings.TrimSpace(contact.Name))
	if name == "" {
		return nil
	}
	for i := range registered {
		u := &registered[i]
		if strings.ToLower(u.Name) == name {
			return u
		}
		if local, _, found := strings.Cut(u.Email, "@"); found && strings.ToLower(local) == name {
			return u
		}
	}
	return nil
}
