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

const userChatSubscription = "user-chat-view"

// UserChatSnapshot is the read model the UI host serves for the end-user
// chat surface, including the wishlist of items sent to the user.
type UserChatSnapshot struct {
	ChatID      string           `json:"chatId,omitempty"`
	Messages    []models.Message `json:"messages"`
	Wishlist    []models.Item    `json:"wishlist"`
	AdminTyping bool             `json:"adminTyping"`
	PendingIDs  []string         `json:"pendingIds,omitempty"`
	FailedIDs   []string         `json:"failedIds,omitempty"`
	Offline     bool             `json:"offline"`
}

// UserChatView is the end-user surface: the user's single conversation
// thread with the admin side plus the wishlist of items sent to them.
type UserChatView struct {
	disp    *Dispatcher
	chat    api.ChatAPI
	items   api.ItemsAPI
	br      *bridge.Bridge
	emitter api.Emitter
	log     *logger.Logger

	userID   string
	userName string

	// Confined to the dispatcher goroutine.
	chatID      string
	messages    []models.Message
	wishlist    []models.Item
	adminTyping bool
	pending     map[string]struct{}
	failed      map[string]struct{}
	offline     bool
	cancel      func()
}

// NewUserChatView creates the end-user chat view controller.
func NewUserChatView(disp *Dispatcher, chatAPI api.ChatAPI, itemsAPI api.ItemsAPI, br *bridge.Bridge, emitter api.Emitter, userID, userName string, l *logger.Logger) *UserChatView {
	return &UserChatView{
		disp:     disp,
		chat:     chatAPI,
		items:    itemsAPI,
		br:       br,
		emitter:  emitter,
		log:      l,
		userID:   userID,
		userName: userName,
		pending:  make(map[string]struct{}),
		failed:   make(map[string]struct{}),
	}
}

// Mount subscribes to the user's room, loads the thread (the backend
// creates it lazily on first contact), and loads the wishlist.
func (v *UserChatView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, userChatSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("User chat mounted without real-time updates: %s", err)
	}

	var chatID string
	var messages []models.Message
	thread, fetchErr := v.chat.UserThread(ctx, v.userID)
	if fetchErr == nil {
		chatID = thread.ChatID
		messages = thread.Messages
	}

	wishlist, wishErr := v.fetchWishlist(ctx)
	if wishErr != nil {
		v.log.Sugar().Warnf("Failed to load wishlist: %s", wishErr)
	}

	v.disp.Post(func() {
		v.cancel = cancel
		v.chatID = chatID
		v.messages = messages
		v.wishlist = wishlist
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *UserChatView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state.
func (v *UserChatView) Snapshot() UserChatSnapshot {
	var snap UserChatSnapshot
	v.disp.Call(func() {
		snap.ChatID = v.chatID
		snap.AdminTyping = v.adminTyping
		snap.Offline = v.offline
		snap.Messages = append([]models.Message(nil), v.messages...)
		snap.Wishlist = append([]models.Item(nil), v.wishlist...)
		for id := range v.pending {
			snap.PendingIDs = append(snap.PendingIDs, id)
		}
		for id := range v.failed {
			snap.FailedIDs = append(snap.FailedIDs, id)
		}
	})
	return snap
}

// Send delivers the user's message. The message shows immediately under a
// pending identifier; whichever confirmation lands first, HTTP response or
// push event, reconciles it. A timed-out send stays visible as pending and
// is not retried automatically; a confirmation event that eventually arrives
// still reconciles it by the temporary identifier.
func (v *UserChatView) Send(ctx context.Context, text string, file *api.FileUpload) (string, error) {
	local := models.Message{
		ID:     models.NewPendingID().String(),
		Sender: models.SenderUser,
		Text:   text,
		Time:   time.Now(),
	}

	var chatID string
	v.disp.Call(func() {
		chatID = v.chatID
		v.pending[local.ID] = struct{}{}
		v.messages = append(v.messages, local)
	})

	sent, err := v.chat.SendMessage(ctx, chatID, v.userID, api.OutgoingMessage{
		Sender: models.SenderUser,
		Text:   text,
		File:   file,
	})
	if err != nil {
		if !api.IsKind(err, api.KindTimeout) {
			v.disp.Post(func() {
				delete(v.pending, local.ID)
				v.failed[local.ID] = struct{}{}
			})
		}
		return local.ID, err
	}

	v.disp.Post(func() {
		v.messages = reconcile(v.messages, v.pending, local.ID, *sent)
	})
	return local.ID, nil
}

// Upload pushes an attachment ahead of a send and returns the URL the
// backend stored it under, so the UI can preview it before the message goes
// out.
func (v *UserChatView) Upload(ctx context.Context, file *api.FileUpload) (string, error) {
	return v.chat.Upload(ctx, file)
}

// Typing broadcasts the user's typing indicator to the admin side.
func (v *UserChatView) Typing(isTyping bool) {
	v.emitter.Emit(models.EventUserTyping, map[string]any{
		"userId":   v.userID,
		"sender":   models.SenderUser,
		"isTyping": isTyping,
	})
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *UserChatView) apply(u bridge.Update) {
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
		if v.chatID == "" {
			v.chatID = payload.ChatID
		}
		if payload.ChatID == v.chatID {
			v.messages = mergeConfirmed(v.messages, v.pending, payload.Message)
		}
	case models.EventUserTyping:
		var payload struct {
			Sender   models.Sender `json:"sender"`
			IsTyping bool          `json:"isTyping"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		if payload.Sender == models.SenderAdmin {
			v.adminTyping = payload.IsTyping
		}
	case models.EventItemSent:
		var item models.Item
		if err := json.Unmarshal(u.Payload, &item); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		if item.SentTo == v.userID {
			v.upsertWishlist(item)
		}
	case bridge.RefreshEvent:
		var wishlist []models.Item
		if err := json.Unmarshal(u.Payload, &wishlist); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
			return
		}
		v.wishlist = wishlist
	}
	v.offline = false
}

// fetchWishlist loads the items sent to this user. The backend has no
// dedicated wishlist endpoint; sold-out items record their recipient, so
// the view filters on it.
func (v *UserChatView) fetchWishlist(ctx context.Context) ([]models.Item, error) {
	items, err := v.items.ListByStatus(ctx, models.ItemSoldOut)
	if err != nil {
		return []models.Item{}, err
	}
	wishlist := make([]models.Item, 0, len(items))
	for _, item := range items {
		if item.SentTo == v.userID {
			wishlist = append(wishlist, item)
		}
	}
	return wishlist, nil
}

func (v *UserChatView) upsertWishlist(item models.Item) {
	for i := range v.wishlist {
		if v.wishlist[i].ID == item.ID {
			v.wishlist[i] = item
			return
		}
	}
	v.wishlist = append(v.wishlist, item)
}
