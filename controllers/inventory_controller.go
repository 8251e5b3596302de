package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kylebanzon/coolworks-api/config"
	"github.com/kylebanzon/coolworks-api/services"
)

// CreateItemRequest represents the request body for creating an inventory item
type CreateItemRequest struct {
	Name         string `json:"name" binding:"required"`
	Category     string `json:"category" binding:"required"`
	Unit         string `json:"unit" binding:"required"`
	MinThreshold int    `json:"min_threshold" binding:"omitempty,gte=0"`
	BatchName    string `json:"batch_name" binding:"omitempty"`
	Quantity     int    `json:"quantity" binding:"omitempty,gte=0"`
}

// UpsertBatchRequest represents the request body for adding or updating a batch.
// With batch_id present the named fields are applied as a partial update;
// without it a new batch is appended to the item.
type UpsertBatchRequest struct {
	BatchID  *uint   `json:"batch_id"`
	Name     *string `json:"name"`
	Quantity *int    `json:"quantity"`
}

// CreateInventoryItem handles POST /api/v1/inventory - creates an item with its first batch (admin only)
func CreateInventoryItem(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateItemRequest
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

	svc := services.NewInventoryService(config.GetDB())
	item, err := svc.AddItem(actor, services.AddItemInput{
		Name:         req.Name,
		Category:     req.Category,
		Unit:         req.Unit,
		MinThreshold: req.MinThreshold,
		BatchName:    req.BatchName,
		Quantity:     req.Quantity,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    item,
	})
}

// ListInventory handles GET /api/v1/inventory - lists items with derived aggregates
func ListInventory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	svc := services.NewInventoryService(config.GetDB())
	items, err := svc.Query(actor, c.Query("category"), c.Query("search"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
	})
}

// UpsertBatch handles PUT /api/v1/inventory/:id/batch - adds or updates a batch (admin only)
func UpsertBatch(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid item ID",
			},
		})
		return
	}

	var req UpsertBatchRequest
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

	svc := services.NewInventoryService(config.GetDB())

	if req.BatchID != nil {
		item, err := svc.UpdateBatch(actor, uint(itemID), *req.BatchID, services.UpdateBatchInput{
			Name:     req.Name,
			Quantity: req.Quantity,
		})
		if err != nil {
			respondDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    item,
		})
		return
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	quantity := 0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	item, err := svc.AddBatch(actor, uint(itemID), name, quantity)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    item,
	})
}

// DeleteBatch handles DELETE /api/v1/inventory/:id/batch/:batchId (admin only)
func DeleteBatch(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid item ID",
			},
		})
		return
	}
	batchID, err := strconv.ParseUint(c.Param("batchId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid batch ID",
			},
		})
		return
	}

	svc := services.NewInventoryService(config.GetDB())
	item, err := svc.DeleteBatch(actor, uint(itemID), uint(batchID))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    item,
	})
}

// DeleteInventoryItem handles DELETE /api/v1/inventory/:id - deletes an item and all its batches (admin only)
func DeleteInventoryItem(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid item ID",
			},
		})
		return
	}

	svc := services.NewInventoryService(config.GetDB())
	if err := svc.DeleteItem(actor, uint(itemID)); err != nil {
		respondDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Inventory item deleted",
	})
}

// ExportInventory handles GET /api/v1/inventory/export - downloads an xlsx snapshot (admin only)
func ExportInventory(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	inventory := services.NewInventoryService(config.GetDB())
	reports := services.NewReportService(inventory)

	f, err := reports.BuildInventoryReport(actor)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	defer func() { _ = f.Close() }()

	filename := services.ReportFilename(time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(c.Writer); err != nil {
		// Headers are already out; nothing sensible left to send
		return
	}
}
