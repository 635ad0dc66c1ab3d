package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder() *Order {
	return &Order{
		ID:      "o1",
		TableID: "5",
		OrderNumber: "0001",
		Items: []CartItem{
			{MenuItemID: "latte", Name: "Latte", Price: 200, Quantity: 2, Status: ItemPending},
			{MenuItemID: "cake", Name: "Cake", Price: 350, Quantity: 1, Status: ItemPending},
		},
		TotalPrice: 750,
		Status:     StatusPending,
		Timestamp:  time.Now().UTC(),
	}
}

func TestApprove(t *testing.T) {
	o := testOrder()
	require.NoError(t, o.Approve())
	assert.Equal(t, StatusReceived, o.Status)

	// only Pending orders can be approved
	assert.ErrorIs(t, o.Approve(), ErrInvalidTransition)
}

func TestMarkItemServedWhilePending(t *testing.T) {
	o := testOrder()
	err := o.MarkItemServed(0)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, ItemPending, o.Items[0].Status)
}

func TestMarkItemServedAdvancesImplicitStates(t *testing.T) {
	o := testOrder()
	require.NoError(t, o.Approve())

	require.NoError(t, o.MarkItemServed(0))
	assert.Equal(t, StatusPreparing, o.Status, "first served line moves the order to Preparing")

	require.NoError(t, o.MarkItemServed(1))
	assert.Equal(t, StatusReady, o.Status, "last served line moves the order to Ready")
}

func TestMarkItemServedIdempotent(t *testing.T) {
	o := testOrder()
	require.NoError(t, o.Approve())
	require.NoError(t, o.MarkItemServed(0))

	before := *o
	require.NoError(t, o.MarkItemServed(0))
	assert.Equal(t, before.Status, o.Status)
	assert.Equal(t, before.Items, o.Items)
	assert.Equal(t, before.TotalPrice, o.TotalPrice)
}

func TestMarkItemServedOutOfRange(t *testing.T) {
	o := testOrder()
	require.NoError(t, o.Approve())
	assert.Error(t, o.MarkItemServed(5))
	assert.Error(t, o.MarkItemServed(-1))
}

func TestServe(t *testing.T) {
	o := testOrder()
	assert.ErrorIs(t, o.Serve(), ErrInvalidTransition, "cannot serve a Pending order")

	require.NoError(t, o.Approve())
	require.NoError(t, o.Serve())
	assert.Equal(t, StatusServed, o.Status)
	for _, it := range o.Items {
		assert.Equal(t, ItemServed, it.Status, "final serve marks every line")
	}

	assert.ErrorIs(t, o.Serve(), ErrInvalidTransition, "serving twice is rejected")
}

func TestAppendResetsStatus(t *testing.T) {
	for _, start := range []Status{StatusReceived, StatusPreparing, StatusReady, StatusServed} {
		o := testOrder()
		o.Status = start
		err := o.Append([]CartItem{{MenuItemID: "tea", Name: "Tea", Price: 100, Quantity: 3}})
		require.NoError(t, err, "append from %s", start)
		assert.Equal(t, StatusPending, o.Status, "append from %s resets to Pending", start)
	}
}

func TestAppendBumpsTotalAdditively(t *testing.T) {
	o := testOrder()
	err := o.Append([]CartItem{
		{MenuItemID: "tea", Name: "Tea", Price: 100, Quantity: 3},
		{MenuItemID: "bun", Name: "Bun", Price: 50, Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(750+300+50), o.TotalPrice)
	assert.Equal(t, o.TotalPrice, ItemsTotal(o.Items), "running total matches items sum")
	assert.Len(t, o.Items, 4)
	assert.Equal(t, ItemPending, o.Items[2].Status, "appended lines start pending")
}

func TestAppendRejectsBadLines(t *testing.T) {
	o := testOrder()
	assert.Error(t, o.Append(nil))
	assert.Error(t, o.Append([]CartItem{{MenuItemID: "tea", Name: "Tea", Price: 100, Quantity: 0}}))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusReceived))
	assert.True(t, CanTransition(StatusReceived, StatusServed))
	assert.True(t, CanTransition(StatusPreparing, StatusReady))
	assert.False(t, CanTransition(StatusPending, StatusServed))
	assert.False(t, CanTransition(StatusServed, StatusPending))
	assert.False(t, CanTransition(StatusServed, StatusCompleted), "Completed is reached only through archival")
}

func TestAllServed(t *testing.T) {
	o := testOrder()
	assert.False(t, o.AllServed())
	for i := range o.Items {
		o.Items[i].Status = ItemServed
	}
	assert.True(t, o.AllServed())
	assert.False(t, (&Order{}).AllServed(), "empty order is never all-served")
}
