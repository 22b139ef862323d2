package vm

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/model"
)

// ConversationSource is the slice of the sync layer the conversation list
// consumes.
type ConversationSource interface {
	Conversations() ([]model.Conversation, error)
	SyncConversationsOnce(ctx context.Context) error
}

// ConversationsState is one snapshot of the conversation-list screen.
type ConversationsState struct {
	Loading       bool
	Err           string
	Query         string
	Conversations []model.Conversation
}

// ConversationsViewModel drives the conversation list.
type ConversationsViewModel struct {
	refresher
	mu     sync.RWMutex
	source ConversationSource
	bus    *bus.Bus
	logger *zap.Logger

	loading       bool
	err           string
	query         string
	conversations []model.Conversation
	cancel        context.CancelFunc
}

func NewConversationsViewModel(source ConversationSource, b *bus.Bus, logger *zap.Logger) *ConversationsViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationsViewModel{
		refresher: newRefresher(),
		source:    source,
		bus:       b,
		logger:    logger,
		loading:   true,
	}
}

// Start loads the initial snapshot and begins reacting to cache events.
func (vm *ConversationsViewModel) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	vm.mu.Lock()
	vm.cancel = cancel
	vm.mu.Unlock()
	vm.Reload()

	events, unsub := vm.bus.Subscribe("cache.conversations", 64)
	go func() {
		defer unsub()
		for {
			select {
			case <-events:
				vm.Reload()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop detaches the view model from the bus.
func (vm *ConversationsViewModel) Stop() {
	vm.mu.RLock()
	cancel := vm.cancel
	vm.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// Reload recomputes the snapshot from the cache.
func (vm *ConversationsViewModel) Reload() {
	convs, err := vm.source.Conversations()
	vm.mu.Lock()
	vm.loading = false
	if err != nil {
		vm.err = err.Error()
	} else {
		vm.err = ""
		vm.conversations = convs
	}
	vm.mu.Unlock()
	vm.signalRefresh()
}

// Resync requests a one-shot remote read on top of the live listener.
func (vm *ConversationsViewModel) Resync(ctx context.Context) {
	if err := vm.source.SyncConversationsOnce(ctx); err != nil {
		vm.mu.Lock()
		vm.err = err.Error()
		vm.mu.Unlock()
		vm.signalRefresh()
		return
	}
	vm.Reload()
}

// SetQuery installs the case-insensitive name filter.
func (vm *ConversationsViewModel) SetQuery(query string) {
	vm.mu.Lock()
	vm.query = query
	vm.mu.Unlock()
	vm.signalRefresh()
}

// State returns the current snapshot with the name filter applied.
func (vm *ConversationsViewModel) State() ConversationsState {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	st := ConversationsState{
		Loading: vm.loading,
		Err:     vm.err,
		Query:   vm.query,
	}
	if vm.query == "" {
		st.Conversations = vm.conversations
		return st
	}
	q := strings.ToLower(vm.query)
	for _, c := range vm.conversations {
		if strings.Contains(strings.ToLower(c.Name), q) {
			st.Conversations = append(st.Conversations, c)
		}
	}
	return st
}
