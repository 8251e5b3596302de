package services

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ReportService builds spreadsheet exports over the inventory ledger
type ReportService struct {
	inventory *InventoryService
}

// NewReportService creates a report service over the given inventory service
func NewReportService(inventory *InventoryService) *ReportService {
	return &ReportService{inventory: inventory}
}

// BuildInventoryReport renders the current inventory into an xlsx workbook:
// one sheet of items with computed totals and low-stock flags, one sheet of
// individual batches. The caller is responsible for closing the file.
func (s *ReportService) BuildInventoryReport(actor Actor) (*excelize.File, error) {
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Only administrators can export inventory")
	}

	items, err := s.inventory.Query(actor, "", "")
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	itemSheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(itemSheet, "Items"); err != nil {
		_ = f.Close()
		return nil, NewUnavailableError("Failed to build report")
	}

	header := []interface{}{
		"item_id",
		"name",
		"category",
		"unit",
		"total_quantity",
		"min_threshold",
		"low_stock",
		"batch_count",
	}
	if err := f.SetSheetRow("Items", "A1", &header); err != nil {
		_ = f.Close()
		return nil, NewUnavailableError("Failed to build report")
	}

	row := 2
	for _, item := range items {
		itemRow := []interface{}{
			item.ID,
			item.Name,
			item.Category,
			item.Unit,
			item.TotalQuantity,
			item.MinThreshold,
			item.LowStock,
			len(item.Batches),
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			_ = f.Close()
			return nil, NewUnavailableError("Failed to build report")
		}
		if err := f.SetSheetRow("Items", cell, &itemRow); err != nil {
			_ = f.Close()
			return nil, NewUnavailableError("Failed to build report")
		}
		row++
	}

	if _, err := f.NewSheet("Batches"); err != nil {
		_ = f.Close()
		return nil, NewUnavailableError("Failed to build report")
	}

	batchHeader := []interface{}{
		"item_id",
		"item_name",
		"batch_id",
		"batch_name",
		"quantity",
		"last_updated",
	}
	if err := f.SetSheetRow("Batches", "A1", &batchHeader); err != nil {
		_ = f.Close()
		return nil, NewUnavailableError("Failed to build report")
	}

	row = 2
	for _, item := range items {
		for _, batch := range item.Batches {
			batchRow := []interface{}{
				item.ID,
				item.Name,
				batch.ID,
				batch.Name,
				batch.Quantity,
				batch.LastUpdated.Format("2006-01-02 15:04:05"),
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				_ = f.Close()
				return nil, NewUnavailableError("Failed to build report")
			}
			if err := f.SetSheetRow("Batches", cell, &batchRow); err != nil {
				_ = f.Close()
				return nil, NewUnavailableError("Failed to build report")
			}
			row++
		}
	}

	return f, nil
}

// ReportFilename returns the download filename for an inventory export
func ReportFilename(date string) string {
	return fmt.Sprintf("inventory_%s.xlsx", date)
}
