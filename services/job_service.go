package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/kylebanzon/coolworks-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobService owns job orders, their assignment and status transitions, and
// the inventory consumed when a job completes
type JobService struct {
	db *gorm.DB
	// restockOnRevert controls whether reverting a job out of Completed
	// credits its consumed materials back into inventory. Off by default:
	// the operator performs an explicit compensating restock instead, which
	// avoids silent inventory drift.
	restockOnRevert bool
}

// NewJobService creates a job service backed by the given database
func NewJobService(db *gorm.DB, restockOnRevert bool) *JobService {
	return &JobService{db: db, restockOnRevert: restockOnRevert}
}

// CreateJobInput carries the fields for creating a job order
type CreateJobInput struct {
	ClientName    string
	ClientAddress string
	ClientContact string
	Type          string
	AssignedToID  uint
}

// Create opens a new job order in Pending status assigned to a technician
func (s *JobService) Create(actor Actor, input CreateJobInput) (*models.JobOrder, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can create jobs")
	}
	if strings.TrimSpace(input.ClientName) == "" {
		return nil, NewValidationError("Client name is required")
	}
	if strings.TrimSpace(input.ClientAddress) == "" {
		return nil, NewValidationError("Client address is required")
	}
	if strings.TrimSpace(input.ClientContact) == "" {
		return nil, NewValidationError("Client contact is required")
	}
	if !models.ValidJobType(input.Type) {
		return nil, NewValidationError("Job type must be Installation, Repair or Maintenance")
	}

	var technician models.User
	if err := s.db.First(&technician, input.AssignedToID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewValidationError("Assigned technician does not exist")
		}
		return nil, NewUnavailableError("Failed to load technician")
	}
	if !technician.IsTechnician() {
		return nil, NewValidationError("Jobs can only be assigned to technician accounts")
	}

	job := models.JobOrder{
		ClientName:    strings.TrimSpace(input.ClientName),
		ClientAddress: strings.TrimSpace(input.ClientAddress),
		ClientContact: strings.TrimSpace(input.ClientContact),
		Type:          input.Type,
		Status:        models.JobStatusPending,
		AssignedToID:  &technician.ID,
	}
	if err := s.db.Create(&job).Error; err != nil {
		return nil, NewUnavailableError("Failed to create job")
	}

	return s.loadJob(job.ID)
}

// MaterialLine is one inventory consumption request on a job completion
type MaterialLine struct {
	ItemID   uint
	Quantity int
}

// UpdateStatusInput carries the fields of a status mutation
type UpdateStatusInput struct {
	Status    string
	Remarks   *string
	Materials []MaterialLine
}

// UpdateStatus overwrites a job's status. Entering Completed consumes the
// given material lines atomically: if any line cannot be satisfied the whole
// transition aborts and neither the job nor the inventory changes. Leaving
// Completed clears the completion date; consumed stock is only re-credited
// when the restock-on-revert policy is enabled.
func (s *JobService) UpdateStatus(actor Actor, jobID uint, input UpdateStatusInput) (*models.JobOrder, error) {
	if !models.ValidJobStatus(input.Status) {
		return nil, NewValidationError("Status must be Pending, Ongoing or Completed")
	}
	for _, line := range input.Materials {
		if line.Quantity <= 0 {
			return nil, NewValidationError("Material quantities must be positive")
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		jobQuery := tx
		if tx.Dialector.Name() == "postgres" {
			jobQuery = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var job models.JobOrder
		if err := jobQuery.First(&job, jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewNotFoundError("Job not found")
			}
			return NewUnavailableError("Failed to load job")
		}

		if err := s.authorizeJobWrite(actor, &job); err != nil {
			return err
		}

		now := time.Now()
		wasCompleted := job.Status == models.JobStatusCompleted
		entersCompleted := input.Status == models.JobStatusCompleted && !wasCompleted
		leavesCompleted := wasCompleted && input.Status != models.JobStatusCompleted

		if entersCompleted {
			for _, line := range input.Materials {
				item, err := consumeStock(tx, line.ItemID, line.Quantity, now)
				if err != nil {
					// Rolls back every debit already applied for earlier lines
					return err
				}
				usage := models.MaterialUsage{
					JobID:    job.ID,
					ItemID:   item.ID,
					ItemName: item.Name,
					Unit:     item.Unit,
					Quantity: line.Quantity,
				}
				if err := tx.Create(&usage).Error; err != nil {
					return NewUnavailableError("Failed to record material usage")
				}
			}
			job.DateCompleted = &now
		}

		if leavesCompleted {
			job.DateCompleted = nil
			if s.restockOnRevert {
				if err := s.restockConsumed(tx, &job, now); err != nil {
					return err
				}
			}
		}

		job.Status = input.Status
		if input.Remarks != nil {
			job.Remarks = *input.Remarks
		}

		if err := tx.Save(&job).Error; err != nil {
			return NewUnavailableError("Failed to update job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.loadJob(jobID)
}

// Assign reassigns a job to another technician
func (s *JobService) Assign(actor Actor, jobID, technicianID uint) (*models.JobOrder, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can assign jobs")
	}

	var job models.JobOrder
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Job not found")
		}
		return nil, NewUnavailableError("Failed to load job")
	}

	var technician models.User
	if err := s.db.First(&technician, technicianID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Technician not found")
		}
		return nil, NewUnavailableError("Failed to load technician")
	}
	if !technician.IsTechnician() {
		return nil, NewValidationError("Jobs can only be assigned to technician accounts")
	}

	if err := s.db.Model(&job).Update("assigned_to_id", technician.ID).Error; err != nil {
		return nil, NewUnavailableError("Failed to assign job")
	}

	return s.loadJob(jobID)
}

// AttachPhoto stores the S3 key of a completion photo on the job and returns
// the previous key (if any) so the caller can delete the replaced object
func (s *JobService) AttachPhoto(actor Actor, jobID uint, s3Key string) (*models.JobOrder, string, error) {
	var job models.JobOrder
	if err := s.db.First(&job, jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", NewNotFoundError("Job not found")
		}
		return nil, "", NewUnavailableError("Failed to load job")
	}

	if err := s.authorizeJobWrite(actor, &job); err != nil {
		return nil, "", err
	}

	previousKey := ""
	if job.PhotoS3Key != nil {
		previousKey = *job.PhotoS3Key
	}

	if err := s.db.Model(&job).Update("photo_s3_key", s3Key).Error; err != nil {
		return nil, "", NewUnavailableError("Failed to attach photo")
	}

	updated, err := s.loadJob(jobID)
	if err != nil {
		return nil, "", err
	}
	return updated, previousKey, nil
}

// JobQueryInput carries the filters and pagination of a job listing
type JobQueryInput struct {
	Status string
	Type   string
	Search string
	Page   int
	Limit  int
}

// JobPage is one page of a job listing
type JobPage struct {
	Results    []models.JobOrder `json:"results"`
	TotalPages int               `json:"total_pages"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

// Query lists jobs with filtering and 1-indexed offset pagination.
// Technicians only ever see jobs assigned to them.
func (s *JobService) Query(actor Actor, input JobQueryInput) (*JobPage, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = 10
	}

	query := s.db.Model(&models.JobOrder{})
	if actor.IsTechnician() {
		query = query.Where("assigned_to_id = ?", actor.ID)
	}
	if input.Status != "" {
		query = query.Where("status = ?", input.Status)
	}
	if input.Type != "" {
		query = query.Where("type = ?", input.Type)
	}
	if input.Search != "" {
		like := "%" + strings.ToLower(input.Search) + "%"
		query = query.Where(
			"LOWER(client_name) LIKE ? OR LOWER(client_address) LIKE ? OR LOWER(client_contact) LIKE ?",
			like, like, like)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, NewUnavailableError("Failed to count jobs")
	}

	var jobs []models.JobOrder
	err := query.
		Preload("AssignedTo").
		Preload("Materials").
		Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, NewUnavailableError("Failed to query jobs")
	}

	return &JobPage{
		Results:    jobs,
		TotalPages: int(math.Ceil(float64(count) / float64(limit))),
		Page:       page,
		Limit:      limit,
	}, nil
}

// GetJob returns a single job; technicians may only read their own
func (s *JobService) GetJob(actor Actor, jobID uint) (*models.JobOrder, error) {
	job, err := s.loadJob(jobID)
	if err != nil {
		return nil, err
	}
	if actor.IsTechnician() && (job.AssignedToID == nil || *job.AssignedToID != actor.ID) {
		return nil, NewForbiddenError("Technicians can only view their assigned jobs")
	}
	return job, nil
}

// authorizeJobWrite permits admins, and the technician the job is assigned to
func (s *JobService) authorizeJobWrite(actor Actor, job *models.JobOrder) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsTechnician() && job.AssignedToID != nil && *job.AssignedToID == actor.ID {
		return nil
	}
	return NewForbiddenError("Technicians can only update their assigned jobs")
}

// restockConsumed credits a reverted job's recorded material usage back into
// inventory as new batches, one per usage record. Only rows not already
// restocked are credited, and each credited row is stamped with RestockedAt,
// so repeated complete/revert cycles never re-credit an earlier cycle's usage.
func (s *JobService) restockConsumed(tx *gorm.DB, job *models.JobOrder, now time.Time) error {
	var usages []models.MaterialUsage
	if err := tx.Where("job_id = ? AND restocked_at IS NULL", job.ID).Find(&usages).Error; err != nil {
		return NewUnavailableError("Failed to load material usage")
	}

	for _, usage := range usages {
		batch := models.Batch{
			ItemID:      usage.ItemID,
			Name:        fmt.Sprintf("Job #%d reversal", job.ID),
			Quantity:    usage.Quantity,
			LastUpdated: now,
		}
		if err := tx.Create(&batch).Error; err != nil {
			return NewUnavailableError("Failed to restock reverted job")
		}
		err := tx.Model(&models.MaterialUsage{}).
			Where("id = ?", usage.ID).
			Update("restocked_at", now).Error
		if err != nil {
			return NewUnavailableError("Failed to mark usage as restocked")
		}
	}
	return nil
}

// loadJob fetches a job with its relations preloaded
func (s *JobService) loadJob(jobID uint) (*models.JobOrder, error) {
	var job models.JobOrder
	err := s.db.
		Preload("AssignedTo").
		Preload("Materials").
		First(&job, jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Job not found")
		}
		return nil, NewUnavailableError("Failed to load job")
	}
	return &job, nil
}
