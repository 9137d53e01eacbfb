package views

import (
	"context"
	"encoding/json"

	"raharpa/internal/api"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

const itemsSubscription = "items-view"

// ItemsSnapshot is the read model the UI host serves for the inventory page.
type ItemsSnapshot struct {
	Items      []models.Item     `json:"items"`
	Filter     models.ItemStatus `json:"filter,omitempty"`
	SelectedID string            `json:"selectedId,omitempty"`
	Offline    bool              `json:"offline"`
}

// ItemsView is the admin inventory surface. It holds the cached item list,
// the status filter, and the selection, and keeps them in sync with both
// HTTP responses and push events; the two are idempotent triggers of the
// same outcome, so whichever arrives first wins and the other is a no-op.
type ItemsView struct {
	disp *Dispatcher
	api  api.ItemsAPI
	br   *bridge.Bridge
	log  *logger.Logger

	// Confined to the dispatcher goroutine.
	items      []models.Item
	filter     models.ItemStatus
	selectedID string
	offline    bool
	cancel     func()
}

// NewItemsView creates the inventory view controller.
func NewItemsView(disp *Dispatcher, itemsAPI api.ItemsAPI, br *bridge.Bridge, l *logger.Logger) *ItemsView {
	return &ItemsView{disp: disp, api: itemsAPI, br: br, log: l}
}

// Mount subscribes the view to the items bridge and performs the initial
// fetch. A failed real-time subscription degrades the view to offline mode
// instead of blocking it.
func (v *ItemsView) Mount(ctx context.Context) {
	cancel, err := v.br.Subscribe(ctx, itemsSubscription, func(u bridge.Update) {
		v.disp.Post(func() { v.apply(u) })
	})
	if err != nil {
		v.log.Sugar().Warnf("Items view mounted without real-time updates: %s", err)
	}

	items, fetchErr := v.api.List(ctx)
	v.disp.Post(func() {
		v.cancel = cancel
		v.items = items
		v.offline = fetchErr != nil || cancel == nil
	})
}

// Unmount unregisters the bridge subscription; when this was the last
// interested view the bridge tears its handlers down.
func (v *ItemsView) Unmount() {
	v.disp.Call(func() {
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
	})
}

// Snapshot returns a consistent copy of the view state, with the status
// filter applied.
func (v *ItemsView) Snapshot() ItemsSnapshot {
	var snap ItemsSnapshot
	v.disp.Call(func() {
		snap.Filter = v.filter
		snap.SelectedID = v.selectedID
		snap.Offline = v.offline
		snap.Items = make([]models.Item, 0, len(v.items))
		for _, item := range v.items {
			if v.filter == "" || item.Status == v.filter {
				snap.Items = append(snap.Items, item)
			}
		}
	})
	return snap
}

// SetFilter narrows the listed items to one availability status; empty
// clears the filter.
func (v *ItemsView) SetFilter(status models.ItemStatus) {
	v.disp.Post(func() { v.filter = status })
}

// Select marks an item as the current selection.
func (v *ItemsView) Select(id string) {
	v.disp.Post(func() { v.selectedID = id })
}

// Refresh re-fetches the inventory on explicit user request. Failed calls
// keep the last known data and flag the view offline.
func (v *ItemsView) Refresh(ctx context.Context) {
	items, err := v.api.List(ctx)
	v.disp.Post(func() {
		if err != nil {
			v.offline = true
			return
		}
		v.items = items
		v.offline = false
	})
}

// Create registers a new item. The confirmed item is merged locally; the
// matching push event arriving later is absorbed by the same upsert.
func (v *ItemsView) Create(ctx context.Context, item models.Item, image *api.FileUpload) (*models.Item, error) {
	created, err := v.api.Create(ctx, item, image)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*created) })
	return created, nil
}

// Update edits an item.
func (v *ItemsView) Update(ctx context.Context, id string, item models.Item) (*models.Item, error) {
	updated, err := v.api.Update(ctx, id, item)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*updated) })
	return updated, nil
}

// Remove deletes an item.
func (v *ItemsView) Remove(ctx context.Context, id string) error {
	if err := v.api.Remove(ctx, id); err != nil {
		return err
	}
	v.disp.Post(func() { v.drop(id) })
	return nil
}

// Send marks an item as sent to a user.
func (v *ItemsView) Send(ctx context.Context, id, recipientID string) (*models.Item, error) {
	sent, err := v.api.Send(ctx, id, recipientID)
	if err != nil {
		return nil, err
	}
	v.disp.Post(func() { v.upsert(*sent) })
	return sent, nil
}

// apply merges one bridge update into the local state. Runs on the
// dispatcher goroutine.
func (v *ItemsView) apply(u bridge.Update) {
	switch u.Event {
	case models.EventItemAdded, models.EventItemUpdated, models.EventItemSent:
		var item models.Item
		if err := json.Unmarshal(u.Payload, &item); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		v.upsert(item)
	case models.EventItemDeleted:
		var payload struct {
			ItemID string `json:"itemId"`
		}
		if err := json.Unmarshal(u.Payload, &payload); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable %s payload: %s", u.Event, err)
			return
		}
		v.drop(payload.ItemID)
	case bridge.RefreshEvent:
		var items []models.Item
		if err := json.Unmarshal(u.Payload, &items); err != nil {
			v.log.Sugar().Warnf("Dropping unreadable refresh payload: %s", err)
			return
		}
		v.items = items
	}
	v.offline = false
}

func (v *ItemsView) upsert(item models.Item) {
	for i := range v.items {
		if v.items[i].ID == item.ID {
			v.items[i] = item
			return
		}
	}
	v.items = append(v.items, item)
}

func (v *ItemsView) drop(id string) {
	for i := range v.items {
		if v.items[i].ID == id {
			v.items = append(v.items[:i], v.items[i+1:]...)
			if v.selectedID == id {
				v.selectedID = ""
			}
			return
		}
	}
}
