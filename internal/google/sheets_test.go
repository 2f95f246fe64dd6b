package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"muadati/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T) (*http.ServeMux, *SheetsService) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	s, err := newSheetsService(context.Background(), "requests_tid", nil,
		option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return mux, s
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func sampleRequest(id int64) *models.Request {
	now := time.Now()
	return &models.Request{ID: id, Status: models.RequestPending, CreatedAt: now, UpdatedAt: now,
		Equipment: &models.EquipmentSummary{Title: "Crane"}}
}

func TestSheetsService_TestConnection(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestSheetsService_EnsureHeader(t *testing.T) {
	mux, s := setupMockServer(t)
	var got sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A1:K1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, sheets.UpdateValuesResponse{})
	})
	require.NoError(t, s.EnsureHeader(context.Background()))
	require.Len(t, got.Values, 1)
	assert.Len(t, got.Values[0], len(requestHeaders))
}

func TestSheetsService_WarmUpCache(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.ValueRange{Values: [][]interface{}{{"ID"}, {"123"}, {}, {"456"}}})
	})
	require.NoError(t, s.WarmUpCache(context.Background()))

	row, ok := s.getCachedRow(123)
	assert.True(t, ok)
	assert.Equal(t, 2, row)
	row, _ = s.getCachedRow(456)
	assert.Equal(t, 4, row)
}

func TestSheetsService_UpsertAppendsMissingRow(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.ValueRange{Values: [][]interface{}{{"ID"}}})
	})
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.AppendValuesResponse{
			Updates: &sheets.UpdateValuesResponse{UpdatedRange: "Requests!A10:K10"},
		})
	})

	require.NoError(t, s.UpsertRequest(context.Background(), sampleRequest(789)))
	row, ok := s.getCachedRow(789)
	assert.True(t, ok)
	assert.Equal(t, 10, row)
}

func TestSheetsService_UpsertUpdatesCachedRow(t *testing.T) {
	mux, s := setupMockServer(t)
	s.setCachedRow(123, 2)
	var calls int32
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A2:K2", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, sheets.UpdateValuesResponse{})
	})
	require.NoError(t, s.UpsertRequest(context.Background(), sampleRequest(123)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.Error(t, s.UpsertRequest(context.Background(), nil))
}

func TestSheetsService_UpdateRequestStatus(t *testing.T) {
	mux, s := setupMockServer(t)
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!A:A", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.ValueRange{Values: [][]interface{}{{"ID"}, {float64(5)}}})
	})
	var status sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!D2:D2", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&status)
		writeJSON(w, sheets.UpdateValuesResponse{})
	})
	mux.HandleFunc("/v4/spreadsheets/requests_tid/values/Requests!K2:K2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sheets.UpdateValuesResponse{})
	})

	require.NoError(t, s.UpdateRequestStatus(context.Background(), 5, models.RequestAccepted))
	require.Len(t, status.Values, 1)
	assert.Equal(t, "accepted", status.Values[0][0])

	err := s.UpdateRequestStatus(context.Background(), 99, models.RequestAccepted)
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestSheetsService_ClearCache(t *testing.T) {
	_, s := setupMockServer(t)
	s.setCachedRow(1, 2)
	s.ClearCache()
	_, ok := s.getCachedRow(1)
	assert.False(t, ok)
}

func TestFirstRow(t *testing.T) {
	assert.Equal(t, 10, firstRow("Requests!A10:K10"))
	assert.Equal(t, 3, firstRow("A3"))
	assert.Equal(t, 0, firstRow("Requests!A:A"))
}
