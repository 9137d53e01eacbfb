package models

// Named real-time events published by the backend. Views subscribe to these
// through the bridge layer; the names match the backend's event vocabulary.
const (
	EventUserLoggedIn  = "user-logged-in"
	EventUserLoggedOut = "user-logged-out"
	EventUsersUpdated  = "users-updated"

	EventItemAdded    = "item-added"
	EventItemUpdated  = "item-updated"
	EventItemDeleted  = "item-deleted"
	EventItemSent     = "item-sent"
	EventItemsUpdated = "items-updated"

	EventOrderCreated       = "order-created"
	EventOrderUpdated       = "order-updated"
	EventOrderStatusUpdated = "order-status-updated"
	EventOrderDeleted       = "order-deleted"

	EventNewMessage      = "new-message"
	EventUserTyping      = "user-typing"
	EventChatUpdated     = "chat-updated"
	EventWishlistUpdated = "wishlist-updated"

	EventDashboardUpdate = "dashboard-update"
	EventLaporanUpdated  = "laporan-updated"

	EventWelcome = "welcome"
)

// Room join events emitted by the client after connecting. Room membership is
// connection-scoped on the backend, so joins are re-issued after a reconnect.
const (
	EventJoinUserRoom       = "join-user-room"
	EventJoinAdminRoom      = "join-admin-room"
	EventJoinAdminRoomItems = "join-admin-room-items"
	EventJoinDashboardRoom  = "join-dashboard-room"
)
