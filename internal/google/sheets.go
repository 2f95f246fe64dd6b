// Package google mirrors rental requests into a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"muadati/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	requestsSheet = "Requests"
	timeLayout    = "2006-01-02 15:04:05"
)

var ErrRowNotFound = errors.New("request row not found")

var requestHeaders = []interface{}{
	"ID", "Customer ID", "Equipment ID", "Status", "Customer Phone",
	"Latitude", "Longitude", "Notes", "Equipment", "Created At", "Updated At",
}

type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
	rowCache      map[int64]int
	cacheMu       sync.RWMutex
	logger        *zerolog.Logger
}

// NewSheetsService authenticates with a service account key file.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*SheetsService, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	cfg, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	return newSheetsService(ctx, spreadsheetID, logger, option.WithHTTPClient(cfg.Client(ctx)))
}

func newSheetsService(ctx context.Context, spreadsheetID string, logger *zerolog.Logger, opts ...option.ClientOption) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &SheetsService{
		service:       srv,
		spreadsheetID: spreadsheetID,
		rowCache:      make(map[int64]int),
		logger:        logger,
	}, nil
}

// TestConnection reads the header cell of the requests sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// EnsureHeader writes the column titles into row 1.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Update(s.spreadsheetID, requestsSheet+"!A1:K1", &sheets.ValueRange{
		Values: [][]interface{}{requestHeaders},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// RefreshCache warms the row cache now and then every interval until ctx ends.
func (s *SheetsService) RefreshCache(ctx context.Context, interval time.Duration) {
	refresh := func() {
		c, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.WarmUpCache(c); err != nil {
			s.logger.Warn().Err(err).Msg("sheets cache warm-up failed")
		}
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// WarmUpCache rebuilds the row index cache from the ID column.
func (s *SheetsService) WarmUpCache(ctx context.Context) error {
	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return err
	}

	cache := make(map[int64]int, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if id := cellID(row[0]); id > 0 {
			cache[id] = i + 1
		}
	}

	s.cacheMu.Lock()
	s.rowCache = cache
	s.cacheMu.Unlock()
	return nil
}

// AppendRequest adds a new row and remembers where it landed.
func (s *SheetsService) AppendRequest(ctx context.Context, req *models.Request) error {
	resp, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, requestsSheet+"!A:A", &sheets.ValueRange{
		Values: [][]interface{}{requestRowValues(req)},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return err
	}
	if resp.Updates != nil {
		if row := firstRow(resp.Updates.UpdatedRange); row > 0 {
			s.setCachedRow(req.ID, row)
		}
	}
	return nil
}

// UpsertRequest updates the request's row or appends one if missing.
func (s *SheetsService) UpsertRequest(ctx context.Context, req *models.Request) error {
	if req == nil {
		return errors.New("request is nil")
	}

	rowIdx, err := s.FindRequestRow(ctx, req.ID)
	if err != nil {
		if errors.Is(err, ErrRowNotFound) {
			return s.AppendRequest(ctx, req)
		}
		return err
	}

	rangeData := fmt.Sprintf("%s!A%d:K%d", requestsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rangeData, &sheets.ValueRange{
		Values: [][]interface{}{requestRowValues(req)},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// UpdateRequestStatus rewrites the status and updated-at cells.
func (s *SheetsService) UpdateRequestStatus(ctx context.Context, requestID int64, status models.RequestStatus) error {
	rowIdx, err := s.FindRequestRow(ctx, requestID)
	if err != nil {
		return err
	}

	statusRange := fmt.Sprintf("%s!D%d:D%d", requestsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, statusRange, &sheets.ValueRange{
		Values: [][]interface{}{{string(status)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return err
	}

	updatedRange := fmt.Sprintf("%s!K%d:K%d", requestsSheet, rowIdx, rowIdx)
	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, updatedRange, &sheets.ValueRange{
		Values: [][]interface{}{{time.Now().UTC().Format(timeLayout)}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// FindRequestRow returns the 1-based row holding requestID, using the cache
// before scanning column A.
func (s *SheetsService) FindRequestRow(ctx context.Context, requestID int64) (int, error) {
	if requestID == 0 {
		return 0, errors.New("request id is required")
	}
	if row, ok := s.getCachedRow(requestID); ok {
		return row, nil
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, requestsSheet+"!A:A").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cellID(row[0]) == requestID {
			s.setCachedRow(requestID, i+1)
			return i + 1, nil
		}
	}
	return 0, ErrRowNotFound
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func requestRowValues(req *models.Request) []interface{} {
	title := ""
	if req.Equipment != nil {
		title = req.Equipment.Title
	}
	return []interface{}{
		req.ID,
		req.CustomerID,
		req.EquipmentID,
		string(req.Status),
		req.CustomerPhone,
		req.Location.Lat,
		req.Location.Lng,
		req.Notes,
		title,
		req.CreatedAt.UTC().Format(timeLayout),
		req.UpdatedAt.UTC().Format(timeLayout),
	}
}

func cellID(v interface{}) int64 {
	switch id := v.(type) {
	case float64:
		return int64(id)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		return n
	}
	return 0
}

// firstRow extracts the starting row from an A1 range like "Requests!A10:K10".
func firstRow(a1 string) int {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	a1, _, _ = strings.Cut(a1, ":")
	digits := strings.TrimLeft(a1, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
