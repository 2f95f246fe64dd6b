package export

import (
	"bytes"
	"testing"
	"time"

	"muadati/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteRequests(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	requests := []*models.Request{
		{
			ID:            2,
			Status:        models.RequestAccepted,
			CustomerPhone: "0931234567",
			Location:      models.Location{Lat: 33.5, Lng: 36.3},
			Notes:         "gate 3",
			CreatedAt:     now,
			UpdatedAt:     now,
			Customer:      &models.UserSummary{ID: 5, Name: "Sami", City: "Damascus"},
			Equipment:     &models.EquipmentSummary{ID: 9, Title: "Crane", Category: models.CategoryCrane},
		},
		{ID: 1, Status: models.RequestPending, CreatedAt: now, UpdatedAt: now},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteRequests(&buf, requests))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{requestsSheet}, f.GetSheetList())

	rows, err := f.GetRows(requestsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, requestHeaders, rows[0])
	assert.Equal(t, "2", rows[1][0])
	assert.Equal(t, "accepted", rows[1][1])
	assert.Equal(t, "Crane", rows[1][2])
	assert.Equal(t, "Sami", rows[1][4])
	assert.Equal(t, "gate 3", rows[1][9])
	assert.Equal(t, "2025-03-01 10:30", rows[1][10])
	assert.Equal(t, "pending", rows[2][1])
	assert.Equal(t, "", rows[2][2])
}

func TestWriteRequests_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRequests(&buf, nil))
	assert.NotZero(t, buf.Len())
}
