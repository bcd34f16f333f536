package catalog

import (
	"context"
	"testing"

	"store_api/internal/apperr"
	"store_api/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetProduct(t *testing.T) {
	db := storetest.New(t)
	svc := NewService(db)

	p, err := svc.CreateProduct(context.Background(), ProductInput{
		Name:      "T-Shirt",
		Price:     decimal.RequireFromString("19.999"),
		SKU:       "TS-1",
		Inventory: 7,
		Colors:    []ColorInput{{Name: "Red", HexCode: "#ff0000"}},
		Sizes:     []string{"S", "M"},
	})
	require.NoError(t, err)
	assert.Equal(t, "20.00", p.Price.StringFixed(2))

	got, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Inventory)
	assert.Len(t, got.Colors, 1)
	assert.Len(t, got.Sizes, 2)

	list, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = svc.GetProduct(context.Background(), 999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	db := storetest.New(t)
	svc := NewService(db)
	in := ProductInput{Name: "Mug", Price: decimal.NewFromInt(5), SKU: "MUG", Colors: []ColorInput{{Name: "White"}}, Sizes: []string{"One"}}

	_, err := svc.CreateProduct(context.Background(), in)
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), in)
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "sku")
}
