package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/config"
	"github.com/kylebanzon/coolworks-api/models"
	"github.com/kylebanzon/coolworks-api/services"
)

// CreateJobRequest represents the request body for creating a job order
type CreateJobRequest struct {
	ClientName    string `json:"client_name" binding:"required"`
	ClientAddress string `json:"client_address" binding:"required"`
	ClientContact string `json:"client_contact" binding:"required"`
	Type          string `json:"type" binding:"required"`
	AssignedToID  uint   `json:"assigned_to_id" binding:"required"`
}

// MaterialLineRequest is one material consumption line on a status update
type MaterialLineRequest struct {
	ItemID   uint `json:"item_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required,gt=0"`
}

// UpdateJobStatusRequest represents the request body for a status mutation
type UpdateJobStatusRequest struct {
	Status    string                `json:"status" binding:"required"`
	Remarks   *string               `json:"remarks"`
	Materials []MaterialLineRequest `json:"materials"`
}

// AssignJobRequest represents the request body for reassigning a job
type AssignJobRequest struct {
	TechnicianID uint `json:"technician_id" binding:"required"`
}

// newJobService builds the job service from the global database and config
func newJobService() *services.JobService {
	restock := false
	if cfg := config.GetConfig(); cfg != nil {
		restock = cfg.RestockOnRevert
	}
	return services.NewJobService(config.GetDB(), restock)
}

// attachPhotoURL fills the presigned photo URL on a job when a photo exists
func attachPhotoURL(job *models.JobOrder) {
	if job.PhotoS3Key == nil || *job.PhotoS3Key == "" {
		return
	}
	photoService := services.GetPhotoService()
	if photoService == nil {
		return
	}
	if url, err := photoService.GetPhotoURL(*job.PhotoS3Key); err == nil && url != "" {
		job.PhotoURL = &url
	}
}

// CreateJob handles POST /api/v1/jobs - creates a job order (admin only)
func CreateJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	job, err := newJobService().Create(actor, services.CreateJobInput{
		ClientName:    req.ClientName,
		ClientAddress: req.ClientAddress,
		ClientContact: req.ClientContact,
		Type:          req.Type,
		AssignedToID:  req.AssignedToID,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    job,
	})
}

// ListJobs handles GET /api/v1/jobs - paginated job listing with filters
func ListJobs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := newJobService().Query(actor, services.JobQueryInput{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	for i := range result.Results {
		attachPhotoURL(&result.Results[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetJob handles GET /api/v1/jobs/:id - fetches a single job
func GetJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid job ID",
			},
		})
		return
	}

	job, err := newJobService().GetJob(actor, uint(jobID))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	attachPhotoURL(job)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// UpdateJobStatus handles PATCH /api/v1/jobs/:id/status - status transition
// with optional remarks and material consumption (admin or assigned technician)
func UpdateJobStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid job ID",
			},
		})
		return
	}

	var req UpdateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	materials := make([]services.MaterialLine, 0, len(req.Materials))
	for _, line := range req.Materials {
		materials = append(materials, services.MaterialLine{
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}

	job, err := newJobService().UpdateStatus(actor, uint(jobID), services.UpdateStatusInput{
		Status:    req.Status,
		Remarks:   req.Remarks,
		Materials: materials,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	attachPhotoURL(job)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// AssignJob handles PATCH /api/v1/jobs/:id/assign - reassigns a job (admin only)
func AssignJob(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	jobID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid job ID",
			},
		})
		return
	}

	var req AssignJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	job, err := newJobService().Assign(actor, uint(jobID), req.TechnicianID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}
