package services

import (
	"sync"
	"testing"
	"time"

	"github.com/kylebanzon/coolworks-api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	adminActor = Actor{ID: 1, Role: models.RoleAdmin}
	techActor  = Actor{ID: 2, Role: models.RoleTechnician}
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Every pooled connection gets its own in-memory database, so pin the
	// pool to one connection; SQLite then serializes concurrent transactions.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access test database pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.InventoryItem{},
		&models.Batch{},
		&models.JobOrder{},
		&models.MaterialUsage{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// requireAggregateInvariant asserts that the derived total always equals the
// sum of live batch quantities
func requireAggregateInvariant(t *testing.T, item *models.InventoryItem) {
	t.Helper()
	sum := 0
	for _, b := range item.Batches {
		sum += b.Quantity
	}
	require.Equal(t, sum, item.TotalQuantity, "TotalQuantity must equal sum of batch quantities")
}

func TestAddItem(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	t.Run("creates item with initial batch", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name:         "Copper tubing",
			Category:     "Piping",
			Unit:         "meters",
			MinThreshold: 10,
			BatchName:    "Delivery 2024-01",
			Quantity:     50,
		})
		require.NoError(t, err)
		assert.Equal(t, 50, item.TotalQuantity)
		assert.False(t, item.LowStock)
		assert.Len(t, item.Batches, 1)
		assert.Equal(t, "Delivery 2024-01", item.Batches[0].Name)
		requireAggregateInvariant(t, item)
	})

	t.Run("zero quantity at threshold is low stock", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name:     "Refrigerant R32",
			Category: "Refrigerant",
			Unit:     "kg",
			Quantity: 0,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, item.TotalQuantity)
		assert.True(t, item.LowStock)
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := []struct {
			name  string
			input AddItemInput
		}{
			{"empty name", AddItemInput{Category: "Piping", Unit: "pcs", Quantity: 1}},
			{"empty category", AddItemInput{Name: "Brackets", Unit: "pcs", Quantity: 1}},
			{"empty unit", AddItemInput{Name: "Brackets", Category: "Mounting", Quantity: 1}},
			{"negative quantity", AddItemInput{Name: "Brackets", Category: "Mounting", Unit: "pcs", Quantity: -1}},
			{"negative threshold", AddItemInput{Name: "Brackets", Category: "Mounting", Unit: "pcs", MinThreshold: -2}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := svc.AddItem(adminActor, tc.input)
				require.Error(t, err)
				de := AsDomainError(err)
				require.NotNil(t, de)
				assert.Equal(t, KindValidation, de.Kind)
			})
		}
	})

	t.Run("technician is forbidden", func(t *testing.T) {
		_, err := svc.AddItem(techActor, AddItemInput{
			Name: "Filter", Category: "Filters", Unit: "pcs", Quantity: 3,
		})
		require.Error(t, err)
		assert.Equal(t, KindForbidden, AsDomainError(err).Kind)
	})
}

func TestAddBatch(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	item, err := svc.AddItem(adminActor, AddItemInput{
		Name: "Copper tubing", Category: "Piping", Unit: "meters", Quantity: 20,
	})
	require.NoError(t, err)

	t.Run("appends batch and recomputes total", func(t *testing.T) {
		updated, err := svc.AddBatch(adminActor, item.ID, "Delivery 2024-02", 30)
		require.NoError(t, err)
		assert.Equal(t, 50, updated.TotalQuantity)
		assert.Len(t, updated.Batches, 2)
		requireAggregateInvariant(t, updated)
	})

	t.Run("missing item", func(t *testing.T) {
		_, err := svc.AddBatch(adminActor, 9999, "Ghost", 1)
		require.Error(t, err)
		assert.Equal(t, KindNotFound, AsDomainError(err).Kind)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := svc.AddBatch(adminActor, item.ID, "Bad", -5)
		require.Error(t, err)
		assert.Equal(t, KindValidation, AsDomainError(err).Kind)
	})

	t.Run("technician is forbidden", func(t *testing.T) {
		_, err := svc.AddBatch(techActor, item.ID, "Sneaky", 1)
		require.Error(t, err)
		assert.Equal(t, KindForbidden, AsDomainError(err).Kind)
	})
}

func TestUpdateBatch(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	item, err := svc.AddItem(adminActor, AddItemInput{
		Name: "Mounting brackets", Category: "Mounting", Unit: "pcs", Quantity: 40,
	})
	require.NoError(t, err)
	batchID := item.Batches[0].ID

	t.Run("partial update of quantity only", func(t *testing.T) {
		qty := 15
		updated, err := svc.UpdateBatch(adminActor, item.ID, batchID, UpdateBatchInput{Quantity: &qty})
		require.NoError(t, err)
		assert.Equal(t, 15, updated.TotalQuantity)
		assert.Equal(t, item.Batches[0].Name, updated.Batches[0].Name, "name should be untouched")
		requireAggregateInvariant(t, updated)
	})

	t.Run("partial update of name only", func(t *testing.T) {
		name := "Initial delivery (recount)"
		updated, err := svc.UpdateBatch(adminActor, item.ID, batchID, UpdateBatchInput{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Batches[0].Name)
		assert.Equal(t, 15, updated.TotalQuantity, "quantity should be untouched")
	})

	t.Run("touches last_updated", func(t *testing.T) {
		var before models.Batch
		require.NoError(t, db.First(&before, batchID).Error)

		time.Sleep(5 * time.Millisecond)
		qty := 12
		_, err := svc.UpdateBatch(adminActor, item.ID, batchID, UpdateBatchInput{Quantity: &qty})
		require.NoError(t, err)

		var after models.Batch
		require.NoError(t, db.First(&after, batchID).Error)
		assert.True(t, after.LastUpdated.After(before.LastUpdated))
	})

	t.Run("missing batch", func(t *testing.T) {
		qty := 1
		_, err := svc.UpdateBatch(adminActor, item.ID, 9999, UpdateBatchInput{Quantity: &qty})
		require.Error(t, err)
		assert.Equal(t, KindNotFound, AsDomainError(err).Kind)
	})

	t.Run("negative quantity rejected", func(t *testing.T) {
		qty := -1
		_, err := svc.UpdateBatch(adminActor, item.ID, batchID, UpdateBatchInput{Quantity: &qty})
		require.Error(t, err)
		assert.Equal(t, KindValidation, AsDomainError(err).Kind)
	})
}

func TestDeleteBatch(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	item, err := svc.AddItem(adminActor, AddItemInput{
		Name: "Air filters", Category: "Filters", Unit: "pcs", MinThreshold: 5, Quantity: 8,
	})
	require.NoError(t, err)

	t.Run("technician is forbidden", func(t *testing.T) {
		_, err := svc.DeleteBatch(techActor, item.ID, item.Batches[0].ID)
		require.Error(t, err)
		assert.Equal(t, KindForbidden, AsDomainError(err).Kind)
	})

	t.Run("deleting the only batch drives total to zero", func(t *testing.T) {
		updated, err := svc.DeleteBatch(adminActor, item.ID, item.Batches[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 0, updated.TotalQuantity, "zero total is allowed, not an error")
		assert.True(t, updated.LowStock)
		assert.Empty(t, updated.Batches)
	})

	t.Run("missing batch", func(t *testing.T) {
		_, err := svc.DeleteBatch(adminActor, item.ID, 9999)
		require.Error(t, err)
		assert.Equal(t, KindNotFound, AsDomainError(err).Kind)
	})
}

func TestDeleteItemCascades(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	item, err := svc.AddItem(adminActor, AddItemInput{
		Name: "Capacitors", Category: "Electrical", Unit: "pcs", Quantity: 10,
	})
	require.NoError(t, err)
	_, err = svc.AddBatch(adminActor, item.ID, "Extra", 5)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(adminActor, item.ID))

	_, err = svc.GetItem(adminActor, item.ID)
	assert.Equal(t, KindNotFound, AsDomainError(err).Kind)

	var count int64
	require.NoError(t, db.Model(&models.Batch{}).Where("item_id = ?", item.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count, "batches should be cascade-deleted")
}

func TestQuery(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	seed := []AddItemInput{
		{Name: "Copper tubing 1/4", Category: "Piping", Unit: "meters", Quantity: 50},
		{Name: "Copper tubing 3/8", Category: "Piping", Unit: "meters", Quantity: 30},
		{Name: "Refrigerant R32", Category: "Refrigerant", Unit: "kg", Quantity: 12},
		{Name: "Air filter 12x12", Category: "Filters", Unit: "pcs", Quantity: 40},
	}
	for _, input := range seed {
		_, err := svc.AddItem(adminActor, input)
		require.NoError(t, err)
	}

	t.Run("unfiltered returns insertion order", func(t *testing.T) {
		items, err := svc.Query(adminActor, "", "")
		require.NoError(t, err)
		require.Len(t, items, 4)
		assert.Equal(t, "Copper tubing 1/4", items[0].Name)
		assert.Equal(t, "Air filter 12x12", items[3].Name)
		for i := range items {
			requireAggregateInvariant(t, &items[i])
		}
	})

	t.Run("category is an exact match", func(t *testing.T) {
		items, err := svc.Query(adminActor, "Piping", "")
		require.NoError(t, err)
		assert.Len(t, items, 2)

		items, err = svc.Query(adminActor, "Pipin", "")
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("search is case-insensitive contains", func(t *testing.T) {
		items, err := svc.Query(adminActor, "", "COPPER")
		require.NoError(t, err)
		assert.Len(t, items, 2)

		items, err = svc.Query(adminActor, "", "r32")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Refrigerant R32", items[0].Name)
	})

	t.Run("category and search combine", func(t *testing.T) {
		items, err := svc.Query(adminActor, "Piping", "3/8")
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Copper tubing 3/8", items[0].Name)
	})

	t.Run("technicians can read", func(t *testing.T) {
		items, err := svc.Query(techActor, "", "")
		require.NoError(t, err)
		assert.Len(t, items, 4)
	})
}

func TestConsumeStock(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	consume := func(itemID uint, qty int) error {
		return db.Transaction(func(tx *gorm.DB) error {
			_, err := consumeStock(tx, itemID, qty, time.Now())
			return err
		})
	}

	t.Run("debits oldest last-updated batch first and splits the last", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name: "Insulation foam", Category: "Insulation", Unit: "meters", Quantity: 10,
		})
		require.NoError(t, err)
		oldBatchID := item.Batches[0].ID

		// Ensure a strictly later last_updated on the second batch
		time.Sleep(5 * time.Millisecond)
		updated, err := svc.AddBatch(adminActor, item.ID, "Newer delivery", 10)
		require.NoError(t, err)
		require.Len(t, updated.Batches, 2)

		require.NoError(t, consume(item.ID, 14))

		after, err := svc.GetItem(adminActor, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, after.TotalQuantity)
		requireAggregateInvariant(t, after)

		var oldBatch models.Batch
		require.NoError(t, db.First(&oldBatch, oldBatchID).Error)
		assert.Equal(t, 0, oldBatch.Quantity, "older batch should be fully drained")

		remaining := 0
		for _, b := range after.Batches {
			if b.ID != oldBatchID {
				remaining = b.Quantity
			}
		}
		assert.Equal(t, 6, remaining, "newer batch should be partially debited")
	})

	t.Run("exact consumption drives total to zero and low stock", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name: "Refrigerant R410A", Category: "Refrigerant", Unit: "kg", MinThreshold: 2, Quantity: 5,
		})
		require.NoError(t, err)

		require.NoError(t, consume(item.ID, 5))

		after, err := svc.GetItem(adminActor, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, after.TotalQuantity)
		assert.True(t, after.LowStock)
	})

	t.Run("overdraw leaves state unchanged", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name: "Condensate pump", Category: "Pumps", Unit: "pcs", Quantity: 3,
		})
		require.NoError(t, err)

		err = consume(item.ID, 4)
		require.Error(t, err)
		assert.Equal(t, KindInsufficientStock, AsDomainError(err).Kind)

		after, err := svc.GetItem(adminActor, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, after.TotalQuantity, "failed consume must not debit anything")
	})

	t.Run("second consume of the last units fails", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name: "Thermostat", Category: "Controls", Unit: "pcs", Quantity: 3,
		})
		require.NoError(t, err)

		require.NoError(t, consume(item.ID, 3))
		err = consume(item.ID, 3)
		require.Error(t, err)
		assert.Equal(t, KindInsufficientStock, AsDomainError(err).Kind)

		after, err := svc.GetItem(adminActor, item.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, after.TotalQuantity)
	})

	t.Run("missing item", func(t *testing.T) {
		err := consume(9999, 1)
		require.Error(t, err)
		assert.Equal(t, KindNotFound, AsDomainError(err).Kind)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		item, err := svc.AddItem(adminActor, AddItemInput{
			Name: "Fan blade", Category: "Parts", Unit: "pcs", Quantity: 2,
		})
		require.NoError(t, err)

		err = consume(item.ID, 0)
		require.Error(t, err)
		assert.Equal(t, KindValidation, AsDomainError(err).Kind)
	})
}

func TestConsumeStockConcurrent(t *testing.T) {
	db := setupInventoryTestDB(t)
	svc := NewInventoryService(db)

	item, err := svc.AddItem(adminActor, AddItemInput{
		Name: "Capacitor 35uF", Category: "Parts", Unit: "pcs", Quantity: 3,
	})
	require.NoError(t, err)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- db.Transaction(func(tx *gorm.DB) error {
				_, err := consumeStock(tx, item.ID, 3, time.Now())
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded, insufficient := 0, 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		de := AsDomainError(err)
		require.NotNil(t, de, "unexpected error: %v", err)
		assert.Equal(t, KindInsufficientStock, de.Kind)
		insufficient++
	}
	assert.Equal(t, 1, succeeded, "exactly one concurrent consumer wins")
	assert.Equal(t, 1, insufficient, "the loser sees insufficient stock")

	after, err := svc.GetItem(adminActor, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.TotalQuantity)
	requireAggregateInvariant(t, after)
}
