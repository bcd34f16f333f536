package orders

import (
	"context"
	"testing"

	"store_api/internal/apperr"
	"store_api/internal/model"
	"store_api/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddOrderItemReservesAndRetotals(t *testing.T) {
	f := newFixture(t)
	mug := storetest.Product(t, f.db, "mug", "10.00", 5)
	hat := storetest.Product(t, f.db, "hat", "4.25", 3)
	in := f.input(mug, 1)
	in.Tax = dec("2")
	o, err := f.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)

	item, err := f.svc.AddOrderItem(context.Background(), f.user.ID, AddItemInput{
		OrderID: o.ID, ProductID: hat.Product.ID, ColorID: hat.Color.ID, SizeID: hat.Size.ID, Quantity: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "4.25", item.Price.StringFixed(2))
	assert.Equal(t, "8.50", item.Total.StringFixed(2))
	require.NotNil(t, item.Product)
	assert.Equal(t, "hat", item.Product.Name)
	assert.Equal(t, 1, storetest.Inventory(t, f.db, hat.Product.ID))

	got, err := f.svc.GetOrder(context.Background(), f.user.ID, o.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, "18.50", got.Subtotal.StringFixed(2))
	assert.Equal(t, "20.50", got.Total.StringFixed(2))

	_, err = f.svc.AddOrderItem(context.Background(), f.user.ID, AddItemInput{
		OrderID: o.ID, ProductID: hat.Product.ID, ColorID: hat.Color.ID, SizeID: hat.Size.ID, Quantity: 2,
	})
	var ie *apperr.InsufficientInventoryError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, storetest.Inventory(t, f.db, hat.Product.ID))

	_, err = f.svc.AddOrderItem(context.Background(), f.user.ID, AddItemInput{
		OrderID: o.ID, ProductID: hat.Product.ID, ColorID: mug.Color.ID, SizeID: hat.Size.ID, Quantity: 1,
	})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "color_id")
}

func TestUpdateOrderItemMovesStockByDelta(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.db, "mug", "10.00", 5)
	o, err := f.svc.PlaceOrder(context.Background(), f.input(p, 2))
	require.NoError(t, err)
	itemID := o.Items[0].ID
	price := o.Items[0].Price

	// A later price change must not reach the snapshot.
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", p.Product.ID).Update("price", "99.00").Error)

	qty := 4
	item, err := f.svc.UpdateOrderItem(context.Background(), f.user.ID, itemID, ItemPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)
	assert.True(t, price.Equal(item.Price))
	assert.Equal(t, "40.00", item.Total.StringFixed(2))
	assert.Equal(t, 1, storetest.Inventory(t, f.db, p.Product.ID))

	qty = 1
	_, err = f.svc.UpdateOrderItem(context.Background(), f.user.ID, itemID, ItemPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 4, storetest.Inventory(t, f.db, p.Product.ID))

	qty = 9
	_, err = f.svc.UpdateOrderItem(context.Background(), f.user.ID, itemID, ItemPatch{Quantity: &qty})
	var ie *apperr.InsufficientInventoryError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 4, storetest.Inventory(t, f.db, p.Product.ID))

	got, err := f.svc.GetOrder(context.Background(), f.user.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Total.StringFixed(2))

	other := storetest.User(t, f.db, "other@example.com")
	_, err = f.svc.UpdateOrderItem(context.Background(), other.ID, itemID, ItemPatch{Quantity: &qty})
	assert.True(t, apperr.IsNotFound(err))
}

func TestRemoveOrderItem(t *testing.T) {
	f := newFixture(t)
	mug := storetest.Product(t, f.db, "mug", "10.00", 5)
	hat := storetest.Product(t, f.db, "hat", "5.00", 5)
	in := f.input(mug, 1)
	in.Items = append(in.Items, ItemInput{ProductID: hat.Product.ID, ColorID: hat.Color.ID, SizeID: hat.Size.ID, Quantity: 3})
	o, err := f.svc.PlaceOrder(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)

	require.NoError(t, f.svc.RemoveOrderItem(context.Background(), f.user.ID, o.Items[1].ID))
	assert.Equal(t, 5, storetest.Inventory(t, f.db, hat.Product.ID))

	items, err := f.svc.ListOrderItems(context.Background(), f.user.ID, o.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	got, err := f.svc.GetOrder(context.Background(), f.user.ID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Total.StringFixed(2))

	err = f.svc.RemoveOrderItem(context.Background(), f.user.ID, o.Items[0].ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 4, storetest.Inventory(t, f.db, mug.Product.ID))
}

func TestOrderItemsLockedOnceOrderLeavesOpenStates(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.db, "mug", "10.00", 5)
	o, err := f.svc.PlaceOrder(context.Background(), f.input(p, 1))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", o.ID).Update("status", model.OrderPaid).Error)

	qty := 2
	_, err = f.svc.UpdateOrderItem(context.Background(), f.user.ID, o.Items[0].ID, ItemPatch{Quantity: &qty})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.svc.AddOrderItem(context.Background(), f.user.ID, AddItemInput{
		OrderID: o.ID, ProductID: p.Product.ID, ColorID: p.Color.ID, SizeID: p.Size.ID, Quantity: 1,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, 4, storetest.Inventory(t, f.db, p.Product.ID))
}

func TestGetOrderItemIsOwnerScoped(t *testing.T) {
	f := newFixture(t)
	p := storetest.Product(t, f.db, "mug", "10.00", 5)
	o, err := f.svc.PlaceOrder(context.Background(), f.input(p, 1))
	require.NoError(t, err)

	item, err := f.svc.GetOrderItem(context.Background(), f.user.ID, o.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, item.OrderID)
	require.NotNil(t, item.Size)

	other := storetest.User(t, f.db, "other@example.com")
	_, err = f.svc.GetOrderItem(context.Background(), other.ID, o.Items[0].ID)
	assert.True(t, apperr.IsNotFound(err))
	_, err = f.svc.ListOrderItems(context.Background(), other.ID, o.ID)
	assert.True(t, apperr.IsNotFound(err))
}
