package views

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raharpa/internal/api/mocks"
	"raharpa/internal/bridge"
	"raharpa/internal/models"
)

func itemEvents() map[string]bridge.Policy {
	return map[string]bridge.Policy{
		models.EventItemAdded:    bridge.PolicyForward,
		models.EventItemUpdated:  bridge.PolicyForward,
		models.EventItemSent:     bridge.PolicyForward,
		models.EventItemDeleted:  bridge.PolicyForward,
		models.EventItemsUpdated: bridge.PolicyRefetch,
	}
}

func mountItemsView(t *testing.T, initial []models.Item) (*ItemsView, *fakeTransport, *Dispatcher) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	itemsAPI := mocks.NewMockItemsAPI(ctrl)
	itemsAPI.EXPECT().List(gomock.Any()).Return(initial, nil)

	disp, br, tr := newViewHarness(t, itemEvents(), nil)
	view := NewItemsView(disp, itemsAPI, br, testLogger(t))
	view.Mount(context.Background())
	disp.Call(func() {})
	return view, tr, disp
}

func TestItemsViewInitialFetch(t *testing.T) {
	view, _, _ := mountItemsView(t, []models.Item{
		{ID: "i1", Code: "RS-001", Status: models.ItemAvailable},
		{ID: "i2", Code: "RS-002", Status: models.ItemSoldOut},
	})
	defer view.Unmount()

	snap := view.Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.False(t, snap.Offline)
}

func TestItemsViewAppliesDeletionEvent(t *testing.T) {
	view, tr, disp := mountItemsView(t, []models.Item{
		{ID: "i1", Code: "RS-001"},
		{ID: "i2", Code: "RS-002"},
	})
	defer view.Unmount()

	view.Select("i1")
	tr.inject(t, models.EventItemDeleted, map[string]string{"itemId": "i1"})
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "i2", snap.Items[0].ID)
	assert.Empty(t, snap.SelectedID, "deleting the selected item clears the selection")
}

func TestItemsViewUpsertsPushedItem(t *testing.T) {
	view, tr, disp := mountItemsView(t, []models.Item{{ID: "i1", Code: "RS-001"}})
	defer view.Unmount()

	tr.inject(t, models.EventItemAdded, models.Item{ID: "i2", Code: "RS-002"})
	tr.inject(t, models.EventItemUpdated, models.Item{ID: "i1", Code: "RS-001-b"})
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Items, 2)
	assert.Equal(t, "RS-001-b", snap.Items[0].Code)
}

func TestItemsViewFilterAppliesToSnapshot(t *testing.T) {
	view, _, disp := mountItemsView(t, []models.Item{
		{ID: "i1", Status: models.ItemAvailable},
		{ID: "i2", Status: models.ItemSoldOut},
	})
	defer view.Unmount()

	view.SetFilter(models.ItemSoldOut)
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "i2", snap.Items[0].ID)
}

func TestItemsViewSendActionUpserts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	itemsAPI := mocks.NewMockItemsAPI(ctrl)
	itemsAPI.EXPECT().List(gomock.Any()).Return([]models.Item{
		{ID: "i1", Status: models.ItemAvailable},
	}, nil)
	itemsAPI.EXPECT().Send(gomock.Any(), "i1", "u1").Return(&models.Item{
		ID: "i1", Status: models.ItemSoldOut, SentTo: "u1",
	}, nil)

	disp, br, _ := newViewHarness(t, itemEvents(), nil)
	view := NewItemsView(disp, itemsAPI, br, testLogger(t))
	view.Mount(context.Background())
	defer view.Unmount()

	_, err := view.Send(context.Background(), "i1", "u1")
	require.NoError(t, err)
	disp.Call(func() {})

	snap := view.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, models.ItemSoldOut, snap.Items[0].Status)
	assert.Equal(t, "u1", snap.Items[0].SentTo)
}
