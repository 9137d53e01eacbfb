package views

import (
	"context"
	"encoding/json"
	"time"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const adminChatSubscription = "admin-chat-view"

// AdminChatSnapshot is the read model the UI host serves for the admin
// inbox.
type AdminChatSnapshot struct {
	Threads      []models.Chat   `json:"threads"`
	ActiveChatID string          `json:"activeChatId,omitempty"`
	PendingIDs   []string        `json:"pendingIds,omitempty"`
	FailedIDs    []string        `json:"failedIds,omitempty"`
	Typing       map[string]bool `json:"typing,omitempty"`
	Offline      bool            `json:"offline"`
}

// AdminChatView is the admin live-chat inbox: every user thread, the active
// conversation, and per-user typing indicators. Outgoing messages are shown
// optimistically under a pending identifier until the backend confirms them;
// a failed send is marked failed rather than silently passed off as sent.
type AdminChatView struct {
	disp    *Dispatcher
	api     api.ChatAPI
	br      *bridge.Bridge
	emitter api.Emitter
	log     *logger.Logger

	// Confined to the dispatcher goroutine.
	threads      []models.Chat
	activeChatID string
	pending      map[string]struct{}
	failed       map[string]struct{}
	typing       map[string]bool
	offline      bool
	cancel       func()
}

// NewAdminChatView creates the admin chat view controller.
func NewAdminChatView(disp *Dispatcher, chatAPI api.ChatAPI, br *bridge.Bridge, emitter api.Emitter, l *logger.Logger) *AdminChatView {
	return &AdminChatView{
		disp:    disp,
		api:     chatAPI,
		br:      br,
		emitter: emitter,
		log:     l,
		pending: make(map[string]struct{}),
		failed:  make(map[string]struct{}),
		typing:  make(map[string]bool),
	}
}

// Mount subscribes to the chat bridge and fetches the thread list.
func (v *AdminChatView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, adminChatSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Admin chat mounted without real-time updates: %s", err)
	}

	threads, fetchErr := v.api.AdminThreads(ctx)
	v.disp.Post(func() {
		v.cancel = cancel
		v.threads = threads
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *AdminChatView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state.
func (v *AdminChatView) Snapshot() AdminChatSnapshot {
	var snap AdminChatSnapshot
	v.disp.Call(func() {
		snap.ActiveChatID = v.activeChatID
		snap.Offline = v.offline
		snap.Threads = append([]models.Chat(nil), v.threads...)
		for id := range v.pending {
			snap.PendingIDs = append(snap.PendingIDs, id)
		}
		for id := range v.failed {
			snap.FailedIDs = append(snap.FailedIDs, id)
		}
		snap.Typing = make(map[string]bool, len(v.typing))
		for id, t := range v.typing {
			snap.Typing[id] = t
		}
	})
	return snap
}

// OpenThread makes a conversation active, reloads its full message history,
// and marks it read. Both backend calls are best-effort: a thread opened
// offline keeps whatever messages it already holds, and an unread badge that
// survives a failed read-state call clears on the next chat-updated re-fetch.
func (v *AdminChatView) OpenThread(ctx context.Context, chatID string) {
	v.disp.Post(func() { v.activeChatID = chatID })

	history, err := v.api.Messages(ctx, chatID)
	if err != nil {
		v.log.Sugar().Warnf("Failed to load history for chat %s: %s", chatID, err)
	} else {
		v.disp.Post(func() { v.replaceHistory(chatID, history) })
	}

	if err := v.api.MarkRead(ctx, chatID); err != nil {
		v.log.Sugar().Warnf("Failed to mark chat %s read: %s", chatID, err)
	}
}

// Send delivers an admin message to a user's thread. The message appears
// immediately under a pending identifier; whichever backend confirmation
// lands first, HTTP response or push event, reconciles it. On failure
// the entry is marked failed and the caller gets the typed failure; there is
// no automatic retry.
func (v *AdminChatView) Send(ctx context.Context, chatID, userID, text string, file *api.FileUpload) (string, error) {
	local := models.Message{
		ID:     models.NewPendingID().String(),
		Sender: models.SenderAdmin,
		Text:   text,
		Time:   time.Now(),
	}
	v.disp.Call(func() {
		v.pending[local.ID] = struct{}{}
		v.appendToThread(chatID, local)
	})

	sent, err := v.api.SendMessage(ctx, chatID, userID, api.OutgoingMessage{
		Sender: models.SenderAdmin,
		Text:   text,
		File:   file,
	})
	if err != nil {
		v.disp.Post(func() {
			delete(v.pending, local.ID)
			v.failed[local.ID] = struct{}{}
		})
		return local.ID, err
	}

	v.disp.Post(func() {
		for i := range v.threads {
			if v.threads[i].ChatID == chatID {
				v.threads[i].Messages = reconcile(v.threads[i].Messages, v.pending, local.ID, *sent)
				return
			}
		}
	})
	return local.ID, nil
}

// Typing broadcasts the admin's typing indicator into a user's thread.
func (v *AdminChatView) Typing(chatID string, isTyping bool) {
	v.emitter.Emit(models.EventUserTyping, map[string]any{
		"chatId":   chatID,
		"sender":   models.SenderAdmin,
		"isTyping": isTyping,
	})
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *AdminChatView) apply(u bridge.Update) {
	switch u.Event {
	case models.EventNewMessage:
		var payload struct {
			ChatID  string         `json:"chatId"`
			Message models.Message `json:"message"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		v.applyMessage(payload.ChatID, payload.Message)
	case models.EventUserTyping:
		var payload struct {
			UserID   string        `json:"userId"`
			Sender   models.Sender `json:"sender"`
			IsTyping bool          `json:"isTyping"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		if payload.Sender != models.SenderAdmin {
			v.typing[payload.UserID] = payload.IsTyping
		}
	case bridge.RefreshEvent:
		var threads []models.Chat
		if err := json.Unmarshal(u.Payload, &threads); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
			return
		}
		v.threads = threads
	}
	v.offline = false
}

func (v *AdminChatView) applyMessage(chatID string, msg models.Message) {
	for i := range v.threads {
		if v.threads[i].ChatID == chatID {
			v.threads[i].Messages = mergeConfirmed(v.threads[i].Messages, v.pending, msg)
			return
		}
	}
	// First contact from a user the inbox has not seen yet: threads are
	// created lazily on the backend, so grow one locally until the next
	// full refresh fills in the user details.
	v.threads = append(v.threads, models.Chat{
		ChatID:   chatID,
		Messages: []models.Message{msg},
	})
}

// replaceHistory swaps a thread's messages for the freshly fetched history,
// keeping any local entries still awaiting confirmation. Runs on the
// dispatcher goroutine.
func (v *AdminChatView) replaceHistory(chatID string, history []models.Message) {
	for i := range v.threads {
		if v.threads[i].ChatID != chatID {
			continue
		}
		merged := append([]models.Message(nil), history...)
		for _, msg := range v.threads[i].Messages {
			if _, ok := v.pending[msg.ID]; ok {
				merged = append(merged, msg)
			}
		}
		v.threads[i].Messages = merged
		return
	}
}

func (v *AdminChatView) appendToThread(chatID string, msg models.Message) {
	for i := range v.threads {
		if v.threads[i].ChatID == chatID {
			v.threads[i].Messages = append(v.threads[i].Messages, msg)
			return
		}
	}
	v.threads = append(v.threads, models.Chat{
		ChatID:   chatID,
		Messages: []models.Message{msg},
	})
}
