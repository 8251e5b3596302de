package models

import (
	"time"

	"gorm.io/gorm"
)

// InventoryItem represents a stocked material composed of one or more batches
type InventoryItem struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Name         string  `gorm:"not null" json:"name"`
	Category     string  `gorm:"not null;index" json:"category"`
	Unit         string  `gorm:"not null" json:"unit"` // e.g. "pcs", "meters", "kg"
	MinThreshold int     `gorm:"not null;default:0" json:"min_threshold"`
	Batches      []Batch `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"batches"`
	// Derived fields, recomputed from live batches on every read and never persisted
	TotalQuantity int            `gorm:"-" json:"total_quantity"`
	LowStock      bool           `gorm:"-" json:"low_stock"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the InventoryItem model
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// ComputeDerived recalculates TotalQuantity and LowStock from the loaded batches.
// Call after every load or mutation so aggregates are never stale.
func (i *InventoryItem) ComputeDerived() {
	total := 0
	for _, b := range i.Batches {
		total += b.Quantity
	}
	i.TotalQuantity = total
	i.LowStock = total <= i.MinThreshold
}

// Batch represents a dated quantity lot exclusively owned by one inventory item
type Batch struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ItemID      uint           `gorm:"not null;index" json:"item_id"`
	Name        string         `gorm:"not null" json:"name"`
	Quantity    int            `gorm:"not null;check:quantity >= 0" json:"quantity"`
	LastUpdated time.Time      `gorm:"not null" json:"last_updated"` // touched by edits and consumption; drives FIFO debit order
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Batch model
func (Batch) TableName() string {
	return "batches"
}
