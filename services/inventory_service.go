package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kylebanzon/coolworks-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Actor identifies the authenticated account invoking a domain operation.
// It is resolved by the auth middleware and passed into every service call;
// the domain layer never trusts client-supplied role state.
type Actor struct {
	ID   uint
	Role string
}

// IsAdmin returns true when the actor holds the admin role
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// IsTechnician returns true when the actor holds the technician role
func (a Actor) IsTechnician() bool {
	return a.Role == models.RoleTechnician
}

// InventoryService owns inventory items and their stock batches
type InventoryService struct {
	db *gorm.DB
}

// NewInventoryService creates an inventory service backed by the given database
func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

// AddItemInput carries the fields for creating an item with its first batch
type AddItemInput struct {
	Name         string
	Category     string
	Unit         string
	MinThreshold int
	BatchName    string
	Quantity     int
}

// AddItem creates a new inventory item with one initial batch
func (s *InventoryService) AddItem(actor Actor, input AddItemInput) (*models.InventoryItem, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage inventory")
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewValidationError("Item name is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, NewValidationError("Item category is required")
	}
	if strings.TrimSpace(input.Unit) == "" {
		return nil, NewValidationError("Item unit is required")
	}
	if input.Quantity < 0 {
		return nil, NewValidationError("Batch quantity cannot be negative")
	}
	if input.MinThreshold < 0 {
		return nil, NewValidationError("Minimum threshold cannot be negative")
	}

	batchName := strings.TrimSpace(input.BatchName)
	if batchName == "" {
		batchName = "Initial stock"
	}

	item := models.InventoryItem{
		Name:         strings.TrimSpace(input.Name),
		Category:     strings.TrimSpace(input.Category),
		Unit:         strings.TrimSpace(input.Unit),
		MinThreshold: input.MinThreshold,
		Batches: []models.Batch{
			{
				Name:        batchName,
				Quantity:    input.Quantity,
				LastUpdated: time.Now(),
			},
		},
	}

	if err := s.db.Create(&item).Error; err != nil {
		return nil, NewUnavailableError("Failed to create inventory item")
	}

	item.ComputeDerived()
	return &item, nil
}

// AddBatch appends a new batch to an existing item
func (s *InventoryService) AddBatch(actor Actor, itemID uint, name string, quantity int) (*models.InventoryItem, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage inventory")
	}
	if strings.TrimSpace(name) == "" {
		return nil, NewValidationError("Batch name is required")
	}
	if quantity < 0 {
		return nil, NewValidationError("Batch quantity cannot be negative")
	}

	item, err := s.loadItem(s.db, itemID)
	if err != nil {
		return nil, err
	}

	batch := models.Batch{
		ItemID:      item.ID,
		Name:        strings.TrimSpace(name),
		Quantity:    quantity,
		LastUpdated: time.Now(),
	}
	if err := s.db.Create(&batch).Error; err != nil {
		return nil, NewUnavailableError("Failed to add batch")
	}

	return s.loadItem(s.db, itemID)
}

// UpdateBatchInput carries the optional fields of a partial batch update
type UpdateBatchInput struct {
	Name     *string
	Quantity *int
}

// UpdateBatch partially updates a batch's name and/or quantity
func (s *InventoryService) UpdateBatch(actor Actor, itemID, batchID uint, input UpdateBatchInput) (*models.InventoryItem, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage inventory")
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, NewValidationError("Batch name cannot be empty")
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, NewValidationError("Batch quantity cannot be negative")
	}

	if _, err := s.loadItem(s.db, itemID); err != nil {
		return nil, err
	}

	var batch models.Batch
	if err := s.db.Where("id = ? AND item_id = ?", batchID, itemID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Batch not found")
		}
		return nil, NewUnavailableError("Failed to load batch")
	}

	updates := map[string]interface{}{
		"last_updated": time.Now(),
	}
	if input.Name != nil {
		updates["name"] = strings.TrimSpace(*input.Name)
	}
	if input.Quantity != nil {
		updates["quantity"] = *input.Quantity
	}

	if err := s.db.Model(&batch).Updates(updates).Error; err != nil {
		return nil, NewUnavailableError("Failed to update batch")
	}

	return s.loadItem(s.db, itemID)
}

// DeleteBatch removes a single batch. The aggregate quantity may drop to zero;
// that is not an error.
func (s *InventoryService) DeleteBatch(actor Actor, itemID, batchID uint) (*models.InventoryItem, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can manage inventory")
	}

	if _, err := s.loadItem(s.db, itemID); err != nil {
		return nil, err
	}

	result := s.db.Where("id = ? AND item_id = ?", batchID, itemID).Delete(&models.Batch{})
	if result.Error != nil {
		return nil, NewUnavailableError("Failed to delete batch")
	}
	if result.RowsAffected == 0 {
		return nil, NewNotFoundError("Batch not found")
	}

	return s.loadItem(s.db, itemID)
}

// DeleteItem removes an item and cascades to all of its batches
func (s *InventoryService) DeleteItem(actor Actor, itemID uint) error {
	if !actor.IsAdmin() {
		return NewForbiddenError("Only administrators can manage inventory")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewNotFoundError("Inventory item not found")
			}
			return NewUnavailableError("Failed to load inventory item")
		}

		if err := tx.Where("item_id = ?", item.ID).Delete(&models.Batch{}).Error; err != nil {
			return NewUnavailableError("Failed to delete batches")
		}
		if err := tx.Delete(&item).Error; err != nil {
			return NewUnavailableError("Failed to delete inventory item")
		}
		return nil
	})
}

// Query returns items filtered by exact category and case-insensitive name
// search, in insertion order. Derived aggregates are computed on every read.
func (s *InventoryService) Query(actor Actor, category, search string) ([]models.InventoryItem, error) {
	query := s.db.Model(&models.InventoryItem{}).Preload("Batches").Order("id ASC")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if search != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var items []models.InventoryItem
	if err := query.Find(&items).Error; err != nil {
		return nil, NewUnavailableError("Failed to query inventory")
	}

	for i := range items {
		items[i].ComputeDerived()
	}
	return items, nil
}

// GetItem returns a single item with derived aggregates
func (s *InventoryService) GetItem(actor Actor, itemID uint) (*models.InventoryItem, error) {
	return s.loadItem(s.db, itemID)
}

// consumeStock debits quantity units from the item's batches inside the given
// transaction and returns the item as it was at time of use (for denormalized
// usage records). Batches are drained oldest-last-updated-first; the final
// batch is partially debited rather than split below zero. The caller owns
// the transaction, so a failure here rolls back every prior debit.
func consumeStock(tx *gorm.DB, itemID uint, quantity int, now time.Time) (*models.InventoryItem, error) {
	if quantity <= 0 {
		return nil, NewValidationError("Consumption quantity must be positive")
	}

	// Row-level lock serializes concurrent consumption of the same item on
	// PostgreSQL; SQLite serializes writers on its own and rejects FOR UPDATE.
	itemQuery := tx
	if tx.Dialector.Name() == "postgres" {
		itemQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var item models.InventoryItem
	if err := itemQuery.First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Inventory item not found")
		}
		return nil, NewUnavailableError("Failed to load inventory item")
	}

	var batches []models.Batch
	if err := tx.Where("item_id = ?", itemID).Find(&batches).Error; err != nil {
		return nil, NewUnavailableError("Failed to load batches")
	}
	sort.SliceStable(batches, func(a, b int) bool {
		if batches[a].LastUpdated.Equal(batches[b].LastUpdated) {
			return batches[a].ID < batches[b].ID
		}
		return batches[a].LastUpdated.Before(batches[b].LastUpdated)
	})

	total := 0
	for _, b := range batches {
		total += b.Quantity
	}
	if quantity > total {
		return nil, NewInsufficientStockError(fmt.Sprintf(
			"Insufficient stock for %s: requested %d, available %d", item.Name, quantity, total))
	}

	remaining := quantity
	for _, batch := range batches {
		if remaining == 0 {
			break
		}
		take := batch.Quantity
		if take > remaining {
			take = remaining
		}
		if take == 0 {
			continue
		}

		// Conditional debit guards against a concurrent writer having drained
		// this batch after our read; RowsAffected 0 means lost race.
		result := tx.Model(&models.Batch{}).
			Where("id = ? AND quantity >= ?", batch.ID, take).
			Updates(map[string]interface{}{
				"quantity":     gorm.Expr("quantity - ?", take),
				"last_updated": now,
			})
		if result.Error != nil {
			return nil, NewUnavailableError("Failed to debit batch")
		}
		if result.RowsAffected == 0 {
			return nil, NewInsufficientStockError(fmt.Sprintf(
				"Insufficient stock for %s: concurrent consumption depleted a batch", item.Name))
		}
		remaining -= take
	}

	if remaining > 0 {
		// Unreachable while the sum check above holds; kept as a tripwire
		return nil, NewInsufficientStockError(fmt.Sprintf(
			"Insufficient stock for %s: %d units short", item.Name, remaining))
	}
	return &item, nil
}

// loadItem fetches an item with batches and computes derived aggregates
func (s *InventoryService) loadItem(tx *gorm.DB, itemID uint) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := tx.Preload("Batches").First(&item, itemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Inventory item not found")
		}
		return nil, NewUnavailableError("Failed to load inventory item")
	}
	item.ComputeDerived()
	return &item, nil
}
