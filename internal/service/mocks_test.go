package service

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"muadati/internal/database"
	"muadati/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

var testLogger = zerolog.Nop()

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) CreateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *mockUserRepo) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockEquipmentRepo struct {
	mock.Mock
}

func (m *mockEquipmentRepo) CreateEquipment(ctx context.Context, eq *models.Equipment) error {
	return m.Called(ctx, eq).Error(0)
}
func (m *mockEquipmentRepo) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Equipment), args.Error(1)
}
func (m *mockEquipmentRepo) ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Equipment), args.Error(1)
}
func (m *mockEquipmentRepo) UpdateEquipment(ctx context.Context, eq *models.Equipment) error {
	return m.Called(ctx, eq).Error(0)
}
func (m *mockEquipmentRepo) DeleteEquipment(ctx context.Context, id int64) (models.StringList, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.StringList), args.Error(1)
}

type mockRequestRepo struct {
	mock.Mock
}

func (m *mockRequestRepo) CreateRequestGuarded(ctx context.Context, req *models.Request) error {
	return m.Called(ctx, req).Error(0)
}
func (m *mockRequestRepo) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Request), args.Error(1)
}
func (m *mockRequestRepo) ListRequestsByCustomer(ctx context.Context, id int64) ([]*models.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Request), args.Error(1)
}
func (m *mockRequestRepo) ListRequestsByOwner(ctx context.Context, id int64) ([]*models.Request, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Request), args.Error(1)
}

// TransitionRequest feeds the configured snapshot to decide and reports the
// resulting change the way the database layer does.
func (m *mockRequestRepo) TransitionRequest(ctx context.Context, id int64, decide database.TransitionFunc) (*database.TransitionResult, error) {
	args := m.Called(ctx, id)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	snap := args.Get(0).(database.RequestSnapshot)
	target, err := decide(snap)
	if err != nil {
		return nil, err
	}
	res := &database.TransitionResult{
		From:          snap.Status,
		To:            target,
		EquipmentFrom: snap.EquipmentStatus,
		EquipmentTo:   snap.EquipmentStatus,
	}
	if target == snap.Status {
		return res, nil
	}
	if target == models.RequestAccepted {
		res.EquipmentTo = models.EquipmentBusy
	} else if snap.Status == models.RequestAccepted {
		res.EquipmentTo = models.EquipmentAvailable
	}
	res.Changed = true
	return res, nil
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
func (m *mockSessions) ResetRateLimit(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}
func (m *mockSessions) RevokeToken(ctx context.Context, id string, ttl time.Duration) error {
	return m.Called(ctx, id, ttl).Error(0)
}
func (m *mockSessions) IsTokenRevoked(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type mockSync struct {
	mock.Mock
}

func (m *mockSync) EnqueueTask(ctx context.Context, taskType string, req *models.Request) error {
	return m.Called(ctx, taskType, req).Error(0)
}

type recordedEvent struct {
	Type    string
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishJSON(eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// memoryImages keeps saved images in a map and can fail after n saves.
type memoryImages struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failAt   int
	saves    int
	deletion []string
}

func newMemoryImages() *memoryImages {
	return &memoryImages{objects: make(map[string][]byte), failAt: -1}
}

func (s *memoryImages) Save(_ context.Context, name, _ string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt >= 0 && s.saves == s.failAt {
		return "", io.ErrUnexpectedEOF
	}
	s.saves++
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	ref := "/uploads/" + name
	s.objects[ref] = buf.Bytes()
	return ref, nil
}

func (s *memoryImages) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletion = append(s.deletion, ref)
	delete(s.objects, ref)
	return nil
}

func (s *memoryImages) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
