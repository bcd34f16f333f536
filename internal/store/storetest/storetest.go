// Package storetest provides a migrated throwaway database and seed helpers for tests.
package storetest

import (
	"path/filepath"
	"testing"

	"store_api/internal/model"
	"store_api/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns a SQLite database in a temp dir. A single connection serialises
// transactions the way row locks would on a server database.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, 1, "_foreign_keys=on&_busy_timeout=5000")
}

// NewPool returns a SQLite database served by conns connections in WAL mode.
// Statements from different connections really interleave; writers queue on the
// busy timeout and transactions take the write lock at BEGIN.
func NewPool(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	return open(t, conns, "_foreign_keys=on&_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate")
}

func open(t *testing.T, conns int, params string) *gorm.DB {
	t.Helper()
	db, err := store.Open(store.Options{
		Driver:       store.DriverSQLite,
		DSN:          filepath.Join(t.TempDir(), "store.db") + "?" + params,
		MaxOpenConns: conns,
		LogLevel:     logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeededProduct is a product with one color and one size.
type SeededProduct struct {
	Product model.Product
	Color   model.ProductColor
	Size    model.ProductSize
}

// Product inserts a product with the given price and stock plus a color and a size.
func Product(t *testing.T, db *gorm.DB, name, price string, inventory int) SeededProduct {
	t.Helper()
	p := model.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		SKU:       "SKU-" + name,
		Inventory: inventory,
		Colors:    []model.ProductColor{{Name: "Black", HexCode: "#000000"}},
		Sizes:     []model.ProductSize{{Name: "M"}},
	}
	require.NoError(t, db.Create(&p).Error)
	return SeededProduct{Product: p, Color: p.Colors[0], Size: p.Sizes[0]}
}

// User inserts an active customer.
func User(t *testing.T, db *gorm.DB, email string) model.User {
	t.Helper()
	u := model.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: "x",
		Role:         model.RoleUser,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// Inventory reads the current stock of a product.
func Inventory(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var p model.Product
	require.NoError(t, db.First(&p, productID).Error)
	return p.Inventory
}

// Count returns the number of rows of the given model.
func Count(t *testing.T, db *gorm.DB, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

// Order inserts an item-less order with the given total, bypassing placement.
func Order(t *testing.T, db *gorm.DB, userID uint, total string, status model.OrderStatus) model.Order {
	t.Helper()
	amount := decimal.RequireFromString(total)
	o := model.Order{
		UserID:      userID,
		OrderNumber: "ORD-TEST-" + uuid.NewString()[:8],
		Subtotal:    amount,
		Tax:         decimal.Zero,
		Discount:    decimal.Zero,
		Total:       amount,
		Currency:    "USD",
		Status:      status,
	}
	require.NoError(t, db.Create(&o).Error)
	return o
}
