package views

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/api"
	"raharpa/internal/api/mocks"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
)

func userChatEvents() map[string]bridge.Policy {
	return map[string]bridge.Policy{
		models.EventNewMessage:      bridge.PolicyForward,
		models.EventUserTyping:      bridge.PolicyForward,
		models.EventItemSent:        bridge.PolicyForward,
		models.EventWishlistUpdated: bridge.PolicyRefetch,
	}
}

func adminChatEvents() map[string]bridge.Policy {
	return map[string]bridge.Policy{
		models.EventNewMessage:  bridge.PolicyForward,
		models.EventUserTyping:  bridge.PolicyForward,
		models.EventChatUpdated: bridge.PolicyRefetch,
	}
}

func mountUserChat(t *testing.T, chatAPI *mocks.MockChatAPI, itemsAPI *mocks.MockItemsAPI) (*UserChatView, *fakeTransport, *Dispatcher) {
	disp, br, tr := newViewHarness(t, userChatEvents(), nil)
	view := NewUserChatView(disp, chatAPI, itemsAPI, br, tr, "u1", "Alice", testLogger(t))
	view.Mount(context.Background())
	disp.Call(func() {})
	t.Cleanup(view.Unmount)
	return view, tr, disp
}

func userChatMocks(t *testing.T) (*mocks.MockChatAPI, *mocks.MockItemsAPI) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().UserThread(gomock.Any(), "u1").Return(&models.Chat{ChatID: "c1", UserID: "u1"}, nil)

	itemsAPI := mocks.NewMockItemsAPI(ctrl)
	itemsAPI.EXPECT().ListByStatus(gomock.Any(), models.ItemSoldOut).Return([]models.Item{}, nil)
	return chatAPI, itemsAPI
}

func TestUserChatOptimisticSendReconciles(t *testing.T) {
	chatAPI, itemsAPI := userChatMocks(t)
	chatAPI.EXPECT().
		SendMessage(gomock.Any(), "c1", "u1", gomock.Any()).
		Return(&models.Message{ID: "m1", Sender: models.SenderUser, Text: "hello"}, nil)

	view, _, disp := mountUserChat(t, chatAPI, itemsAPI)

	localID, err := view.Send(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.NotEmpty(t, localID)
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "m1", snap.Messages[0].ID)
	assert.Empty(t, snap.PendingIDs)
	assert.Empty(t, snap.FailedIDs)
}

func TestUserChatFailedSendIsMarkedFailed(t *testing.T) {
	chatAPI, itemsAPI := userChatMocks(t)
	chatAPI.EXPECT().
		SendMessage(gomock.Any(), "c1", "u1", gomock.Any()).
		Return(nil, &api.Failure{Kind: api.KindNetwork, Message: "connection refused"})

	view, _, disp := mountUserChat(t, chatAPI, itemsAPI)

	localID, err := view.Send(context.Background(), "hello", nil)
	assert.Error(t, err)
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Messages, 1, "the optimistic entry stays visible")
	assert.Contains(t, snap.FailedIDs, localID, "a failed send must not masquerade as delivered")
	assert.NotContains(t, snap.PendingIDs, localID, "a failed entry is no longer pending")
}

func TestAdminChatFailedSendIsMarkedFailed(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{
		{ChatID: "c1", UserID: "u1"},
	}, nil)
	chatAPI.EXPECT().
		SendMessage(gomock.Any(), "c1", "u1", gomock.Any()).
		Return(nil, &api.Failure{Kind: api.KindNetwork, Message: "connection refused"})

	disp, br, tr := newViewHarness(t, adminChatEvents(), nil)
	view := NewAdminChatView(disp, chatAPI, br, tr, testLogger(t))
	view.Mount(context.Background())
	disp.Call(func() {})
	defer view.Unmount()

	localID, err := view.Send(context.Background(), "c1", "u1", "on its way", nil)
	assert.Error(t, err)
	disp.Call(func() {})

	snap := view.Snapshot()
	assert.Contains(t, snap.FailedIDs, localID, "a failed send must not masquerade as delivered")
	assert.NotContains(t, snap.PendingIDs, localID, "a failed entry is no longer pending")
}

func TestUserChatTimedOutSendStaysPending(t *testing.T) {
	chatAPI, itemsAPI := userChatMocks(t)
	chatAPI.EXPECT().
		SendMessage(gomock.Any(), "c1", "u1", gomock.Any()).
		Return(nil, &api.Failure{Kind: api.KindTimeout, Message: "request exceeded its time bound"})

	view, tr, disp := mountUserChat(t, chatAPI, itemsAPI)

	localID, err := view.Send(context.Background(), "hello", nil)
	assert.Error(t, err)
	disp.Call(func() {})

	snap := view.Snapshot()
	assert.Contains(t, snap.PendingIDs, localID)
	assert.NotContains(t, snap.FailedIDs, localID, "a timed-out send is unconfirmed, not failed")

	// The backend did receive it; the push event reconciles the pending entry.
	tr.inject(t, models.EventNewMessage, map[string]any{
		"chatId":  "c1",
		"message": models.Message{ID: "m1", Sender: models.SenderUser, Text: "hello"},
	})
	disp.Call(func() {})

	snap = view.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "m1", snap.Messages[0].ID)
	assert.Empty(t, snap.PendingIDs)
}

func TestUserChatTypingIndicator(t *testing.T) {
	chatAPI, itemsAPI := userChatMocks(t)
	view, tr, disp := mountUserChat(t, chatAPI, itemsAPI)

	tr.inject(t, models.EventUserTyping, map[string]any{"sender": "admin", "isTyping": true})
	disp.Call(func() {})
	assert.True(t, view.Snapshot().AdminTyping)

	tr.inject(t, models.EventUserTyping, map[string]any{"sender": "admin", "isTyping": false})
	disp.Call(func() {})
	assert.False(t, view.Snapshot().AdminTyping)
}

func TestUserChatWishlistGrowsOnItemSent(t *testing.T) {
	chatAPI, itemsAPI := userChatMocks(t)
	view, tr, disp := mountUserChat(t, chatAPI, itemsAPI)

	tr.inject(t, models.EventItemSent, models.Item{ID: "i1", Status: models.ItemSoldOut, SentTo: "u1"})
	tr.inject(t, models.EventItemSent, models.Item{ID: "i2", Status: models.ItemSoldOut, SentTo: "someone-else"})
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Wishlist, 1, "only items sent to this user belong in the wishlist")
	assert.Equal(t, "i1", snap.Wishlist[0].ID)
}

func TestAdminChatPushAndResponseLandOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{
		{ChatID: "c1", UserID: "u1", UserName: "Alice"},
	}, nil)
	confirmed := &models.Message{ID: "m1", Sender: models.SenderAdmin, Text: "on its way"}
	chatAPI.EXPECT().
		SendMessage(gomock.Any(), "c1", "u1", gomock.Any()).
		Return(confirmed, nil)

	disp, br, tr := newViewHarness(t, adminChatEvents(), nil)
	view := NewAdminChatView(disp, chatAPI, br, tr, testLogger(t))
	view.Mount(context.Background())
	disp.Call(func() {})
	defer view.Unmount()

	_, err := view.Send(context.Background(), "c1", "u1", "on its way", nil)
	require.NoError(t, err)
	disp.Call(func() {})

	// The push event for the same message arrives after the response.
	tr.inject(t, models.EventNewMessage, map[string]any{"chatId": "c1", "message": confirmed})
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Threads, 1)
	require.Len(t, snap.Threads[0].Messages, 1, "response and push event must land as one message")
	assert.Equal(t, "m1", snap.Threads[0].Messages[0].ID)
}

func TestAdminChatOpenThreadLoadsHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{
		{ChatID: "c1", UserID: "u1", Messages: []models.Message{{ID: "m1", Sender: models.SenderUser, Text: "hi"}}},
	}, nil)
	chatAPI.EXPECT().Messages(gomock.Any(), "c1").Return([]models.Message{
		{ID: "m1", Sender: models.SenderUser, Text: "hi"},
		{ID: "m2", Sender: models.SenderAdmin, Text: "hello"},
	}, nil)
	chatAPI.EXPECT().MarkRead(gomock.Any(), "c1").Return(nil)

	disp, br, tr := newViewHarness(t, adminChatEvents(), nil)
	view := NewAdminChatView(disp, chatAPI, br, tr, testLogger(t))
	view.Mount(context.Background())
	disp.Call(func() {})
	defer view.Unmount()

	view.OpenThread(context.Background(), "c1")
	disp.Call(func() {})

	snap := view.Snapshot()
	assert.Equal(t, "c1", snap.ActiveChatID)
	require.Len(t, snap.Threads, 1)
	require.Len(t, snap.Threads[0].Messages, 2, "opening a thread pulls its full history")
	assert.Equal(t, "m2", snap.Threads[0].Messages[1].ID)
}

func TestAdminChatTracksPerUserTyping(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{}, nil)

	disp, br, tr := newViewHarness(t, adminChatEvents(), nil)
	view := NewAdminChatView(disp, chatAPI, br, tr, testLogger(t))
	view.Mount(context.Background())
	defer view.Unmount()

	tr.inject(t, models.EventUserTyping, map[string]any{"userId": "u1", "sender": "user", "isTyping": true})
	disp.Call(func() {})
	assert.True(t, view.Snapshot().Typing["u1"])

	// The admin's own echoed indicator must not flip a user's entry.
	tr.inject(t, models.EventUserTyping, map[string]any{"userId": "u2", "sender": "admin", "isTyping": true})
	disp.Call(func() {})
	assert.False(t, view.Snapshot().Typing["u2"])
}

func TestAdminChatLazyThreadFromFirstContact(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatAPI := mocks.NewMockChatAPI(ctrl)
	chatAPI.EXPECT().AdminThreads(gomock.Any()).Return([]models.Chat{}, nil)

	disp, br, tr := newViewHarness(t, adminChatEvents(), nil)
	view := NewAdminChatView(disp, chatAPI, br, tr, testLogger(t))
	view.Mount(context.Background())
	defer view.Unmount()

	tr.inject(t, models.EventNewMessage, map[string]any{
		"chatId":  "c9",
		"message": models.Message{ID: "m1", Sender: models.SenderUser, Text: "hi there"},
	})
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Threads, 1)
	assert.Equal(t, "c9", snap.Threads[0].ChatID)
	require.Len(t, snap.Threads[0].Messages, 1)
}
