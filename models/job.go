package models

import (
	"time"

	"gorm.io/gorm"
)

// Job type values
const (
	JobTypeInstallation = "Installation"
	JobTypeRepair       = "Repair"
	JobTypeMaintenance  = "Maintenance"
)

// Job status values. Any status may be overwritten with any other; only the
// transition into Completed has side effects (material consumption).
const (
	JobStatusPending   = "Pending"
	JobStatusOngoing   = "Ongoing"
	JobStatusCompleted = "Completed"
)

// ValidJobType reports whether t is one of the known job types
func ValidJobType(t string) bool {
	return t == JobTypeInstallation || t == JobTypeRepair || t == JobTypeMaintenance
}

// ValidJobStatus reports whether s is one of the known job statuses
func ValidJobStatus(s string) bool {
	return s == JobStatusPending || s == JobStatusOngoing || s == JobStatusCompleted
}

// JobOrder represents a service job for a client
type JobOrder struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ClientName    string          `gorm:"not null" json:"client_name"`
	ClientAddress string          `gorm:"not null" json:"client_address"`
	ClientContact string          `gorm:"not null" json:"client_contact"`
	Type          string          `gorm:"not null" json:"type"`                     // Installation, Repair, Maintenance
	Status        string          `gorm:"not null;default:'Pending'" json:"status"` // Pending, Ongoing, Completed
	Remarks       string          `json:"remarks"`
	AssignedToID  *uint           `gorm:"index" json:"assigned_to_id"`
	AssignedTo    *User           `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
	Materials     []MaterialUsage `gorm:"foreignKey:JobID" json:"materials"`
	PhotoS3Key    *string         `json:"photo_s3_key"`
	PhotoURL      *string         `gorm:"-" json:"photo_url,omitempty"` // computed field, presigned URL for completion photo
	DateCompleted *time.Time      `json:"date_completed"`               // set on entering Completed, cleared when leaving it
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"-"`
}

// TableName specifies the table name for the JobOrder model
func (JobOrder) TableName() string {
	return "job_orders"
}

// MaterialUsage records inventory consumed by a completed job. Rows are
// append-only: each completion cycle writes fresh rows and no quantity is
// ever edited. RestockedAt marks rows whose stock a revert already credited
// back, so a later revert cannot credit the same row twice.
// ItemName and Unit are denormalized copies taken at time of use so the
// record stays accurate if the item is later renamed or re-unitized.
type MaterialUsage struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobID       uint       `gorm:"not null;index" json:"job_id"`
	ItemID      uint       `gorm:"not null;index" json:"item_id"`
	ItemName    string     `gorm:"not null" json:"item_name"`
	Unit        string     `gorm:"not null" json:"unit"`
	Quantity    int        `gorm:"not null;check:quantity > 0" json:"quantity"`
	RestockedAt *time.Time `json:"restocked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// TableName specifies the table name for the MaterialUsage model
func (MaterialUsage) TableName() string {
	return "material_usages"
}
