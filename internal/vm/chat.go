package vm

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/recado-app/recado/internal/bus"
	"github.com/recado-app/recado/internal/chat"
	"github.com/recado-app/recado/internal/model"
)

// ChatService is the slice of the sync layer one open conversation uses.
type ChatService interface {
	Messages(conversationID string) ([]model.Message, error)
	ConversationDetails(ctx context.Context, conversationID string) (*model.Conversation, error)
	MessageByID(id string) (*model.Message, error)
	GroupMembers(ctx context.Context, groupID string) ([]model.User, error)
	SubscribeMessages(ctx context.Context, conversationID string, isGroup bool) error
	StopMessageListener(conversationID string)
	MarkMessagesAsRead(ctx context.Context, conversationID string) error
	SendMessage(ctx context.Context, conversationID string, isGroup bool, content string) (string, error)
	SendMediaMessage(ctx context.Context, conversationID string, isGroup bool, upload chat.MediaUpload) (string, error)
	SendStickerMessage(ctx context.Context, conversationID string, isGroup bool, stickerURL string) (string, error)
	ToggleReaction(ctx context.Context, conversationID string, isGroup bool, messageID, emoji string) error
	TogglePinMessage(ctx context.Context, conversationID, messageID string) error
}

// DayGroup is a run of messages under one date label.
type DayGroup struct {
	Label    string
	Messages []model.Message
}

// ChatState is one snapshot of an open conversation.
type ChatState struct {
	Loading       bool
	Err           string
	Conversation  *model.Conversation
	Messages      []model.Message
	Groups        []DayGroup
	Query         string
	Filtered      []model.Message
	PinnedMessage *model.Message
	Members       map[string]model.User
	StagedMedia   *chat.MediaUpload
}

// ChatViewModel drives one open conversation.
type ChatViewModel struct {
	refresher
	mu      sync.RWMutex
	service ChatService
	bus     *bus.Bus
	logger  *zap.Logger

	conversationID string
	isGroup        bool

	loading      bool
	err          string
	conversation *model.Conversation
	messages     []model.Message
	query        string
	members      map[string]model.User
	staged       *chat.MediaUpload
	cancel       context.CancelFunc
}

func NewChatViewModel(service ChatService, b *bus.Bus, logger *zap.Logger) *ChatViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatViewModel{
		refresher: newRefresher(),
		service:   service,
		bus:       b,
		logger:    logger,
		loading:   true,
	}
}

// Open binds the view model to a conversation: loads its details, starts
// the live message subscription and begins reacting to cache events. For
// direct conversations every emission also marks inbound messages read,
// since the screen is in front of the user.
func (vm *ChatViewModel) Open(ctx context.Context, conversationID string) error {
	conv, err := vm.service.ConversationDetails(ctx, conversationID)
	if err != nil {
		vm.setError(err)
		return err
	}

	vm.mu.Lock()
	vm.conversationID = conversationID
	vm.isGroup = conv.IsGroup
	vm.conversation = conv
	vm.mu.Unlock()

	if conv.IsGroup {
		if users, err := vm.service.GroupMembers(ctx, conversationID); err != nil {
			vm.logger.Warn("load group members", zap.String("group", conversationID), zap.Error(err))
		} else {
			byUID := make(map[string]model.User, len(users))
			for _, u := range users {
				byUID[u.UID] = u
			}
			vm.mu.Lock()
			vm.members = byUID
			vm.mu.Unlock()
		}
	}

	if err := vm.service.SubscribeMessages(ctx, conversationID, conv.IsGroup); err != nil {
		vm.setError(err)
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	vm.mu.Lock()
	vm.cancel = cancel
	vm.mu.Unlock()
	events, unsub := vm.bus.Subscribe("cache.", 64)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-events:
				if !vm.concernsThis(evt) {
					continue
				}
				vm.reload(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	vm.reload(ctx)
	return nil
}

// Close detaches the view model and stops the message subscription.
func (vm *ChatViewModel) Close() {
	vm.mu.RLock()
	cancel := vm.cancel
	id := vm.conversationID
	vm.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if id != "" {
		vm.service.StopMessageListener(id)
	}
}

func (vm *ChatViewModel) concernsThis(evt bus.Event) bool {
	vm.mu.RLock()
	id := vm.conversationID
	vm.mu.RUnlock()
	switch payload := evt.Payload.(type) {
	case bus.MessagesChanged:
		return payload.ConversationID == id
	case []string:
		for _, cid := range payload {
			if cid == id {
				return true
			}
		}
	}
	return false
}

func (vm *ChatViewModel) reload(ctx context.Context) {
	vm.mu.RLock()
	id := vm.conversationID
	isGroup := vm.isGroup
	vm.mu.RUnlock()

	msgs, err := vm.service.Messages(id)
	if err != nil {
		vm.setError(err)
		return
	}
	conv, err := vm.service.ConversationDetails(ctx, id)
	if err != nil {
		vm.setError(err)
		return
	}

	vm.mu.Lock()
	vm.loading = false
	vm.err = ""
	vm.messages = msgs
	vm.conversation = conv
	vm.mu.Unlock()
	vm.signalRefresh()

	if !isGroup {
		if err := vm.service.MarkMessagesAsRead(ctx, id); err != nil {
			vm.logger.Warn("mark messages read", zap.String("conversation", id), zap.Error(err))
		}
	}
}

func (vm *ChatViewModel) setError(err error) {
	vm.mu.Lock()
	vm.loading = false
	vm.err = err.Error()
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SendText sends the typed message.
func (vm *ChatViewModel) SendText(ctx context.Context, content string) {
	vm.mu.RLock()
	id, isGroup := vm.conversationID, vm.isGroup
	vm.mu.RUnlock()
	if _, err := vm.service.SendMessage(ctx, id, isGroup, content); err != nil {
		vm.logger.Warn("send text", zap.String("conversation", id), zap.Error(err))
	}
}

// StageMedia holds media bytes for review before sending.
func (vm *ChatViewModel) StageMedia(upload chat.MediaUpload) {
	vm.mu.Lock()
	vm.staged = &upload
	vm.mu.Unlock()
	vm.signalRefresh()
}

// ClearStagedMedia discards the staged upload.
func (vm *ChatViewModel) ClearStagedMedia() {
	vm.mu.Lock()
	vm.staged = nil
	vm.mu.Unlock()
	vm.signalRefresh()
}

// SendStagedMedia uploads and sends the staged media, clearing it on
// success.
func (vm *ChatViewModel) SendStagedMedia(ctx context.Context) {
	vm.mu.RLock()
	id, isGroup, staged := vm.conversationID, vm.isGroup, vm.staged
	vm.mu.RUnlock()
	if staged == nil {
		return
	}
	if _, err := vm.service.SendMediaMessage(ctx, id, isGroup, *staged); err != nil {
		vm.setError(err)
		return
	}
	vm.ClearStagedMedia()
}

// SendSticker sends a sticker by its catalog URL.
func (vm *ChatViewModel) SendSticker(ctx context.Context, stickerURL string) {
	vm.mu.RLock()
	id, isGroup := vm.conversationID, vm.isGroup
	vm.mu.RUnlock()
	if _, err := vm.service.SendStickerMessage(ctx, id, isGroup, stickerURL); err != nil {
		vm.logger.Warn("send sticker", zap.String("conversation", id), zap.Error(err))
	}
}

// React toggles the current user's reaction on a message.
func (vm *ChatViewModel) React(ctx context.Context, messageID, emoji string) {
	vm.mu.RLock()
	id, isGroup := vm.conversationID, vm.isGroup
	vm.mu.RUnlock()
	if err := vm.service.ToggleReaction(ctx, id, isGroup, messageID, emoji); err != nil {
		vm.logger.Warn("toggle reaction", zap.String("message", messageID), zap.Error(err))
	}
}

// Pin toggles the conversation's pinned message.
func (vm *ChatViewModel) Pin(ctx context.Context, messageID string) {
	vm.mu.RLock()
	id := vm.conversationID
	vm.mu.RUnlock()
	if err := vm.service.TogglePinMessage(ctx, id, messageID); err != nil {
		vm.logger.Warn("toggle pin", zap.String("message", messageID), zap.Error(err))
	}
}

// SetQuery installs the message search filter. Only TEXT messages match.
func (vm *ChatViewModel) SetQuery(query string) {
	vm.mu.Lock()
	vm.query = query
	vm.mu.Unlock()
	vm.signalRefresh()
}

// State returns the current snapshot: messages, day groups, search results
// and the resolved pinned message.
func (vm *ChatViewModel) State() ChatState {
	vm.mu.RLock()
	st := ChatState{
		Loading:      vm.loading,
		Err:          vm.err,
		Conversation: vm.conversation,
		Messages:     vm.messages,
		Query:        vm.query,
		Members:      vm.members,
		StagedMedia:  vm.staged,
	}
	vm.mu.RUnlock()

	st.Groups = groupByDay(st.Messages, time.Now())
	if st.Query != "" {
		q := strings.ToLower(st.Query)
		for _, m := range st.Messages {
			if m.Type == model.TypeText && strings.Contains(strings.ToLower(m.Content), q) {
				st.Filtered = append(st.Filtered, m)
			}
		}
	}
	if st.Conversation != nil && st.Conversation.PinnedMessageID != "" {
		if pinned, err := vm.service.MessageByID(st.Conversation.PinnedMessageID); err == nil {
			st.PinnedMessage = pinned
		}
	}
	return st
}

// groupByDay splits an ordered message list into labeled date runs.
func groupByDay(msgs []model.Message, now time.Time) []DayGroup {
	var groups []DayGroup
	var current string
	for _, m := range msgs {
		label := dayLabel(m.Timestamp, now)
		if len(groups) == 0 || label != current {
			groups = append(groups, DayGroup{Label: label})
			current = label
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, m)
	}
	return groups
}

func dayLabel(millis int64, now time.Time) string {
	ts := time.UnixMilli(millis).In(now.Location())
	yesterday := now.AddDate(0, 0, -1)
	switch {
	case ts.Year() == now.Year() && ts.YearDay() == now.YearDay():
		return "Today"
	case ts.Year() == yesterday.Year() && ts.YearDay() == yesterday.YearDay():
		return "Yesterday"
	default:
		return ts.Format("02 January 2006")
	}
}
