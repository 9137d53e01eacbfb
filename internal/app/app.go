// Package app wires the client core together: the shared transport
// connection, the resource clients, the per-domain real-time bridges, the
// session state machines, and the view controllers. It exposes the
// operations the UI host maps onto HTTP: login/logout for both roles and
// access to the mounted views. Views for a role are mounted on login (or
// session resumption) and unmounted on logout or expiry, which drives the
// bridge teardown and, through the connection manager, the transport
// lifecycle.
package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/localstore"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
	"raharpa/internal/session"
	"raharpa/internal/transport"
	"raharpa/internal/views"
)

// Config carries everything App needs to assemble the client core.
type Config struct {
	APIBaseURL         string
	SocketURL          string
	Store              localstore.Storage
	SessionWindow      time.Duration
	AdminSessionWindow time.Duration
	Log                *logger.Logger
}

// AdminViews groups the surfaces mounted for a logged-in admin.
type AdminViews struct {
	Dashboard *views.DashboardView
	Items     *views.ItemsView
	Orders    *views.OrdersView
	Users     *views.UsersView
	Reports   *views.ReportsView
	Chat      *views.AdminChatView
}

// App owns the composed client core for one process.
type App struct {
	log   *logger.Logger
	disp  *views.Dispatcher
	conns *bridge.Manager
	store localstore.Storage

	users     api.UsersAPI
	items     api.ItemsAPI
	orders    api.OrdersAPI
	chat      api.ChatAPI
	dashboard api.DashboardAPI
	reports   api.ReportsAPI
	admin     api.AdminAPI

	userSession  *session.Manager
	adminSession *session.Manager

	mu         sync.Mutex
	adminViews *AdminViews
	userChat   *views.UserChatView
}

// New assembles the client core. Nothing connects until a session is
// resumed or a login succeeds.
func New(cfg Config) *App {
	conns := bridge.NewManager(func() *transport.Client {
		return transport.New(cfg.SocketURL, cfg.Log)
	})

	base := api.NewClient(cfg.APIBaseURL, cfg.Log, conns)

	a := &App{
		log:       cfg.Log,
		disp:      views.NewDispatcher(),
		conns:     conns,
		store:     cfg.Store,
		users:     api.NewUsersClient(base),
		items:     api.NewItemsClient(base),
		orders:    api.NewOrdersClient(base),
		chat:      api.NewChatClient(base),
		dashboard: api.NewDashboardClient(base),
		reports:   api.NewReportsClient(base),
		admin:     api.NewAdminClient(base),
	}

	a.userSession = session.NewManager(cfg.Store, localstore.KeyUserData, cfg.SessionWindow, cfg.Log)
	a.userSession.SetBackendLogout(func(ctx context.Context, subjectID string) error {
		return a.users.Logout(ctx, subjectID)
	})
	a.userSession.SetExpiryHandler(func() {
		a.log.Info("user session expired")
		a.unmountUser()
	})

	a.adminSession = session.NewManager(cfg.Store, localstore.KeyAdminData, cfg.AdminSessionWindow, cfg.Log)
	a.adminSession.SetExpiryHandler(func() {
		a.log.Info("admin session expired")
		a.unmountAdmin()
	})

	a.userSession.Start()
	a.adminSession.Start()
	return a
}

// ResumeUser restores a persisted, unexpired user session and mounts the
// user surfaces.
func (a *App) ResumeUser(ctx context.Context) bool {
	sess, ok := a.userSession.Resume()
	if !ok {
		return false
	}
	a.mountUser(ctx, sess)
	return true
}

// ResumeAdmin restores a persisted, unexpired admin session and mounts the
// admin surfaces.
func (a *App) ResumeAdmin(ctx context.Context) bool {
	_, ok := a.adminSession.Resume()
	if !ok {
		return false
	}
	a.mountAdmin(ctx)
	return true
}

// LoginUser authenticates an end user by name and, on success, mounts the
// user chat surface.
func (a *App) LoginUser(ctx context.Context, name string) (*models.Session, error) {
	sess, err := a.userSession.Login(ctx, func(ctx context.Context) (*models.Session, error) {
		return a.users.Login(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	a.mountUser(ctx, sess)
	return sess, nil
}

// LoginAdmin authenticates an admin and, on success, mounts the dashboard
// surfaces.
func (a *App) LoginAdmin(ctx context.Context, username, password string) (*models.Session, error) {
	sess, err := a.adminSession.Login(ctx, func(ctx context.Context) (*models.Session, error) {
		return a.admin.Login(ctx, username, password)
	})
	if err != nil {
		return nil, err
	}
	a.mountAdmin(ctx)
	return sess, nil
}

// LogoutUser unmounts the user surfaces and leaves the session. Local state
// is cleared regardless of the backend call's outcome.
func (a *App) LogoutUser(ctx context.Context) error {
	a.unmountUser()
	return a.userSession.Logout(ctx)
}

// LogoutAdmin unmounts the admin surfaces and leaves the session.
func (a *App) LogoutAdmin(ctx context.Context) error {
	a.unmountAdmin()
	return a.adminSession.Logout(ctx)
}

// AdminProfile fetches the logged-in admin's account record.
func (a *App) AdminProfile(ctx context.Context) (*models.AdminProfile, error) {
	sess := a.adminSession.Current()
	if sess == nil {
		return nil, session.ErrNotLoggedIn
	}
	return a.admin.Profile(ctx, sess.SubjectID)
}

// UpdateAdminProfile edits the logged-in admin's account record.
func (a *App) UpdateAdminProfile(ctx context.Context, profile models.AdminProfile) (*models.AdminProfile, error) {
	sess := a.adminSession.Current()
	if sess == nil {
		return nil, session.ErrNotLoggedIn
	}
	return a.admin.UpdateProfile(ctx, sess.SubjectID, profile)
}

// Touch refreshes both session timestamps; the UI host funnels tracked
// user activity here.
func (a *App) Touch() {
	a.userSession.Touch()
	a.adminSession.Touch()
}

// UserSession returns the user session manager.
func (a *App) UserSession() *session.Manager { return a.userSession }

// AdminSession returns the admin session manager.
func (a *App) AdminSession() *session.Manager { return a.adminSession }

// AdminViews returns the mounted admin surfaces, or nil when no admin is
// logged in.
func (a *App) AdminViews() *AdminViews {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adminViews
}

// UserChat returns the mounted user chat surface, or nil when no user is
// logged in.
func (a *App) UserChat() *views.UserChatView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.userChat
}

// Close tears the client core down: views unmount (releasing the shared
// connection), the timers stop, and the local store closes.
func (a *App) Close() {
	a.unmountUser()
	a.unmountAdmin()
	a.userSession.Stop()
	a.adminSession.Stop()
	a.disp.Stop()
	if err := a.store.Close(); err != nil {
		a.log.Sugar().Warnf("Failed to close local store: %s", err)
	}
}

func (a *App) mountUser(ctx context.Context, sess *models.Session) {
	a.mu.Lock()
	if a.userChat != nil {
		a.mu.Unlock()
		return
	}

	userBridge := bridge.New(bridge.Config{
		Domain: "user-chat",
		Conns:  a.conns,
		Rooms: []bridge.RoomJoin{
			{Event: models.EventJoinUserRoom, Payload: map[string]string{"userId": sess.SubjectID}},
		},
		Events: map[string]bridge.Policy{
			models.EventNewMessage:      bridge.PolicyForward,
			models.EventUserTyping:      bridge.PolicyForward,
			models.EventItemSent:        bridge.PolicyForward,
			models.EventWishlistUpdated: bridge.PolicyRefetch,
		},
		Fetch: a.wishlistFetch(sess.SubjectID),
		Log:   a.log,
	})

	view := views.NewUserChatView(a.disp, a.chat, a.items, userBridge, a.conns, sess.SubjectID, sess.DisplayName, a.log)
	a.userChat = view
	a.mu.Unlock()

	view.Mount(ctx)
}

func (a *App) unmountUser() {
	a.mu.Lock()
	view := a.userChat
	a.userChat = nil
	a.mu.Unlock()
	if view != nil {
		view.Unmount()
	}
}

func (a *App) mountAdmin(ctx context.Context) {
	a.mu.Lock()
	if a.adminViews != nil {
		a.mu.Unlock()
		return
	}

	adminRoom := []bridge.RoomJoin{{Event: models.EventJoinAdminRoom, Payload: nil}}

	itemsBridge := bridge.New(bridge.Config{
		Domain: "items",
		Conns:  a.conns,
		Rooms:  []bridge.RoomJoin{{Event: models.EventJoinAdminRoomItems, Payload: nil}},
		Events: map[string]bridge.Policy{
			models.EventItemAdded:    bridge.PolicyForward,
			models.EventItemUpdated:  bridge.PolicyForward,
			models.EventItemSent:     bridge.PolicyForward,
			models.EventItemDeleted:  bridge.PolicyForward,
			models.EventItemsUpdated: bridge.PolicyRefetch,
		},
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			items, err := a.items.List(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(items)
		},
		Log: a.log,
	})

	ordersBridge := bridge.New(bridge.Config{
		Domain: "orders",
		Conns:  a.conns,
		Rooms:  adminRoom,
		Events: map[string]bridge.Policy{
			models.EventOrderCreated:       bridge.PolicyForward,
			models.EventOrderUpdated:       bridge.PolicyForward,
			models.EventOrderDeleted:       bridge.PolicyForward,
			models.EventOrderStatusUpdated: bridge.PolicyRefetch,
		},
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			orders, err := a.orders.List(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(orders)
		},
		Log: a.log,
	})

	usersBridge := bridge.New(bridge.Config{
		Domain: "users",
		Conns:  a.conns,
		Rooms:  adminRoom,
		Events: map[string]bridge.Policy{
			models.EventUserLoggedIn:  bridge.PolicyRefetch,
			models.EventUserLoggedOut: bridge.PolicyRefetch,
			models.EventUsersUpdated:  bridge.PolicyRefetch,
		},
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			users, err := a.users.List(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(users)
		},
		Log: a.log,
	})

	dashboardBridge := bridge.New(bridge.Config{
		Domain: "dashboard",
		Conns:  a.conns,
		Rooms:  []bridge.RoomJoin{{Event: models.EventJoinDashboardRoom, Payload: nil}},
		Events: map[string]bridge.Policy{
			models.EventDashboardUpdate: bridge.PolicyForward,
		},
		Log: a.log,
	})

	reportsBridge := bridge.New(bridge.Config{
		Domain: "reports",
		Conns:  a.conns,
		Rooms:  adminRoom,
		Events: map[string]bridge.Policy{
			models.EventLaporanUpdated: bridge.PolicyRefetch,
		},
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			report, err := a.reports.Monthly(ctx, "")
			if err != nil {
				return nil, err
			}
			return json.Marshal(report)
		},
		Log: a.log,
	})

	chatBridge := bridge.New(bridge.Config{
		Domain: "admin-chat",
		Conns:  a.conns,
		Rooms:  adminRoom,
		Events: map[string]bridge.Policy{
			models.EventNewMessage:  bridge.PolicyForward,
			models.EventUserTyping:  bridge.PolicyForward,
			models.EventChatUpdated: bridge.PolicyRefetch,
		},
		Fetch: func(ctx context.Context) (json.RawMessage, error) {
			threads, err := a.chat.AdminThreads(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(threads)
		},
		Log: a.log,
	})

	av := &AdminViews{
		Dashboard: views.NewDashboardView(a.disp, a.dashboard, dashboardBridge, a.log),
		Items:     views.NewItemsView(a.disp, a.items, itemsBridge, a.log),
		Orders:    views.NewOrdersView(a.disp, a.orders, ordersBridge, a.log),
		Users:     views.NewUsersView(a.disp, a.users, usersBridge, a.log),
		Reports:   views.NewReportsView(a.disp, a.reports, reportsBridge, a.log),
		Chat:      views.NewAdminChatView(a.disp, a.chat, chatBridge, a.conns, a.log),
	}
	a.adminViews = av
	a.mu.Unlock()

	av.Dashboard.Mount(ctx)
	av.Items.Mount(ctx)
	av.Orders.Mount(ctx)
	av.Users.Mount(ctx)
	av.Reports.Mount(ctx)
	av.Chat.Mount(ctx)
}

func (a *App) unmountAdmin() {
	a.mu.Lock()
	av := a.adminViews
	a.adminViews = nil
	a.mu.Unlock()
	if av == nil {
		return
	}
	av.Dashboard.Unmount()
	av.Items.Unmount()
	av.Orders.Unmount()
	av.Users.Unmount()
	av.Reports.Unmount()
	av.Chat.Unmount()
}

// wishlistFetch builds the re-fetch closure for the user's wishlist: the
// sold-out items recorded as sent to them.
func (a *App) wishlistFetch(userID string) bridge.FetchFunc {
	return func(ctx context.Context) (json.RawMessage, error) {
		items, err := a.items.ListByStatus(ctx, models.ItemSoldOut)
		if err != nil {
			return nil, err
		}
		wishlist := make([]models.Item, 0, len(items))
		for _, item := range items {
			if item.SentTo == userID {
				wishlist = append(wishlist, item)
			}
		}
		return json.Marshal(wishlist)
	}
}
