package views

import (
	"context"
	"encoding/json"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const usersSubscription = "users-view"

// UsersSnapshot is the read model the UI host serves for the users page.
type UsersSnapshot struct {
	Users   []models.User `json:"users"`
	Offline bool          `json:"offline"`
}

// UsersView is the admin user-management surface. Presence events only
// announce that something changed, so the whole list goes through the
// bridge's debounced re-fetch.
type UsersView struct {
	disp *Dispatcher
	api  api.UsersAPI
	br   *bridge.Bridge
	log  *logger.Logger

	// Confined to the dispatcher goroutine.
	users   []models.User
	offline bool
	cancel  func()
}

// NewUsersView creates the users view controller.
func NewUsersView(disp *Dispatcher, usersAPI api.UsersAPI, br *bridge.Bridge, l *logger.Logger) *UsersView {
	return &UsersView{disp: disp, api: usersAPI, br: br, log: l}
}

// Mount subscribes to the users bridge and performs the initial fetch.
func (v *UsersView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, usersSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Users view mounted without real-time updates: %s", err)
	}

	users, fetchErr := v.api.List(ctx)
	v.disp.Post(func() {
		v.cancel = cancel
		v.users = users
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription.
func (v *UsersView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state.
func (v *UsersView) Snapshot() UsersSnapshot {
	var snap UsersSnapshot
	v.disp.Call(func() {
		snap.Offline = v.offline
		snap.Users = append([]models.User(nil), v.users...)
	})
	return snap
}

// Refresh re-fetches the user list on explicit user request.
func (v *UsersView) Refresh(ctx context.Context) {
	users, err := v.api.List(ctx)
	v.disp.Post(func() {
		if err != nil {
			v.offline = true
			return
		}
		v.users = users
		v.offline = false
	})
}

// ForceLogin marks a user online on the admin's behalf.
func (v *UsersView) ForceLogin(ctx context.Context, id string) (*models.User, error) {
	user, err := v.api.ForceLogin(ctx, id)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*user) })
	return user, nil
}

// Remove deletes a user account.
func (v *UsersView) Remove(ctx context.Context, id string) error {
	if err := v.api.Remove(ctx, id); err != nil {
		return err
	}
	v.disp.Post(func() {
		for i := range v.users {
			if v.users[i].ID == id {
				v.users = append(v.users[:i], v.users[i+1:]...)
				return
			}
		}
	})
	return nil
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *UsersView) apply(u bridge.Update) {
	if u.Event != bridge.RefreshEvent {
		return
	}
	var users []models.User
	if err := json.Unmarshal(u.Payload, &users); err != nil {
		v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
		return
	}
	v.users = users
	v.offline = false
}

func (v *UsersView) upsert(user models.User) {
	for i := range v.users {
		if v.users[i].ID == user.ID {
			v.users[i] = user
			return
		}
	}
	v.users = append(v.users, user)
}
