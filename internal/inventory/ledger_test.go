package inventory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"store_api/internal/apperr"
	"store_api/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReserveDecrements(t *testing.T) {
	db := storetest.New(t)
	p := storetest.Product(t, db, "mug", "10.00", 5)
	l := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		return l.Reserve(context.Background(), tx, p.Product.ID, 3)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, storetest.Inventory(t, db, p.Product.ID))
}

func TestReserveInsufficient(t *testing.T) {
	db := storetest.New(t)
	p := storetest.Product(t, db, "mug", "10.00", 2)
	l := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		return l.Reserve(context.Background(), tx, p.Product.ID, 4)
	})
	var ie *apperr.InsufficientInventoryError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "mug", ie.ProductName)
	assert.Equal(t, 4, ie.Requested)
	assert.Equal(t, 2, ie.Available)
	assert.Equal(t, 2, storetest.Inventory(t, db, p.Product.ID))
}

func TestReserveRollsBackEarlierReservations(t *testing.T) {
	db := storetest.New(t)
	a := storetest.Product(t, db, "a", "1.00", 5)
	b := storetest.Product(t, db, "b", "1.00", 1)
	l := NewLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := l.Reserve(context.Background(), tx, a.Product.ID, 5); err != nil {
			return err
		}
		return l.Reserve(context.Background(), tx, b.Product.ID, 2)
	})
	require.Error(t, err)
	assert.Equal(t, 5, storetest.Inventory(t, db, a.Product.ID))
	assert.Equal(t, 1, storetest.Inventory(t, db, b.Product.ID))
}

func TestReserveUnknownProduct(t *testing.T) {
	db := storetest.New(t)
	err := NewLedger().Reserve(context.Background(), db, 999, 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestRelease(t *testing.T) {
	db := storetest.New(t)
	p := storetest.Product(t, db, "mug", "10.00", 1)

	require.NoError(t, NewLedger().Release(context.Background(), db, p.Product.ID, 4))
	assert.Equal(t, 5, storetest.Inventory(t, db, p.Product.ID))
}

func TestLock(t *testing.T) {
	db := storetest.New(t)
	a := storetest.Product(t, db, "a", "1.00", 1)
	b := storetest.Product(t, db, "b", "2.00", 1)
	l := NewLedger()

	got, err := l.Lock(context.Background(), db, []uint{b.Product.ID, a.Product.ID, b.Product.ID})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "b", got[b.Product.ID].Name)

	_, err = l.Lock(context.Background(), db, []uint{a.Product.ID, 42})
	assert.True(t, apperr.IsNotFound(err))
}

func TestReserveRejectsStaleCheck(t *testing.T) {
	db := storetest.New(t)
	p := storetest.Product(t, db, "hot", "1.00", 1)
	l := NewLedger()

	// Buyer A sees one unit left, then buyer B takes it before A writes.
	seen := storetest.Inventory(t, db, p.Product.ID)
	require.Equal(t, 1, seen)
	require.NoError(t, l.Reserve(context.Background(), db, p.Product.ID, 1))

	err := l.Reserve(context.Background(), db, p.Product.ID, seen)
	var ie *apperr.InsufficientInventoryError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 0, ie.Available)
	assert.Equal(t, 0, storetest.Inventory(t, db, p.Product.ID))
}

func TestReserveConcurrentConnectionsNeverOversell(t *testing.T) {
	db := storetest.NewPool(t, 8)
	p := storetest.Product(t, db, "hot", "1.00", 10)
	l := NewLedger()

	const buyers = 40
	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		fail atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := l.Reserve(context.Background(), db, p.Product.ID, 1)
			var ie *apperr.InsufficientInventoryError
			switch {
			case err == nil:
				ok.Add(1)
			case errors.As(err, &ie):
				fail.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, buyers-10, fail.Load())
	assert.Equal(t, 0, storetest.Inventory(t, db, p.Product.ID))
}
