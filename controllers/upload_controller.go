package controllers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/services"
	"github.com/kylebanzon/coolworks-api/utils"
)

// UploadJobPhoto handles POST /api/v1/jobs/:id/photo - uploads a completion
// photo for a job (admin or the assigned technician)
func UploadJobPhoto(c *gin.Context) {
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

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "A photo file is required",
			},
		})
		return
	}

	photoService := services.GetPhotoService()
	if photoService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAVAILABLE",
				"message": "Photo storage is not configured",
			},
		})
		return
	}

	s3Key, err := photoService.UploadPhoto(fileHeader)
	if err != nil {
		if uploadErr, ok := err.(*utils.FileUploadError); ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    uploadErr.Code,
					"message": uploadErr.Message,
				},
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAVAILABLE",
				"message": "Failed to store photo",
			},
		})
		return
	}

	job, previousKey, err := newJobService().AttachPhoto(actor, uint(jobID), s3Key)
	if err != nil {
		// The job update failed after the object was stored; remove the orphan
		if cleanupErr := photoService.DeletePhoto(s3Key); cleanupErr != nil {
			log.Printf("warning: failed to clean up orphaned photo %s: %v", s3Key, cleanupErr)
		}
		respondDomainError(c, err)
		return
	}

	if previousKey != "" {
		if deleteErr := photoService.DeletePhoto(previousKey); deleteErr != nil {
			log.Printf("warning: failed to delete replaced photo %s: %v", previousKey, deleteErr)
		}
	}

	attachPhotoURL(job)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}
