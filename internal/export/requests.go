// Package export renders owner request lists as XLSX workbooks.
package export

import (
	"fmt"
	"io"

	"muadati/internal/models"

	"github.com/xuri/excelize/v2"
)

const requestsSheet = "Requests"

var requestHeaders = []string{
	"Request ID", "Status", "Equipment", "Category", "Customer", "Customer city",
	"Contact phone", "Latitude", "Longitude", "Notes", "Created", "Updated",
}

var statusFills = map[models.RequestStatus]string{
	models.RequestPending:   "#FFEB9C",
	models.RequestAccepted:  "#C6EFCE",
	models.RequestCompleted: "#DDEBF7",
	models.RequestCancelled: "#FFC7CE",
}

// WriteRequests writes one row per request, newest first as given.
func WriteRequests(w io.Writer, requests []*models.Request) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(requestsSheet)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9D9D9"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, h := range requestHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(requestsSheet, cell, h)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(requestHeaders))
	_ = f.SetCellStyle(requestsSheet, "A1", lastCol+"1", headerStyle)

	styles := make(map[models.RequestStatus]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("create status style: %w", err)
		}
		styles[status] = id
	}

	for i, req := range requests {
		row := i + 2
		values := []any{
			req.ID,
			string(req.Status),
			"",
			"",
			"",
			"",
			req.CustomerPhone,
			req.Location.Lat,
			req.Location.Lng,
			req.Notes,
			req.CreatedAt.Format("2006-01-02 15:04"),
			req.UpdatedAt.Format("2006-01-02 15:04"),
		}
		if req.Equipment != nil {
			values[2] = req.Equipment.Title
			values[3] = string(req.Equipment.Category)
		}
		if req.Customer != nil {
			values[4] = req.Customer.Name
			values[5] = req.Customer.City
		}

		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(requestsSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", row, err)
		}
		if style, ok := styles[req.Status]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(2, row)
			_ = f.SetCellStyle(requestsSheet, statusCell, statusCell, style)
		}
	}

	_ = f.SetColWidth(requestsSheet, "A", "B", 12)
	_ = f.SetColWidth(requestsSheet, "C", "F", 22)
	_ = f.SetColWidth(requestsSheet, "G", "I", 14)
	_ = f.SetColWidth(requestsSheet, "J", "J", 40)
	_ = f.SetColWidth(requestsSheet, "K", "L", 18)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
