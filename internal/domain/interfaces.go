package domain

import (
	"context"
	"io"
	"time"

	"muadati/internal/database"
	"muadati/internal/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByLogin(ctx context.Context, identifier string) (*models.User, error)
}

type EquipmentRepository interface {
	CreateEquipment(ctx context.Context, eq *models.Equipment) error
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, error)
	UpdateEquipment(ctx context.Context, eq *models.Equipment) error
	DeleteEquipment(ctx context.Context, id int64) (models.StringList, error)
}

type RequestRepository interface {
	CreateRequestGuarded(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	ListRequestsByCustomer(ctx context.Context, customerID int64) ([]*models.Request, error)
	ListRequestsByOwner(ctx context.Context, ownerID int64) ([]*models.Request, error)
	TransitionRequest(ctx context.Context, id int64, decide database.TransitionFunc) (*database.TransitionResult, error)
}

// SessionRepository holds short-lived auth state: login throttling and
// revoked token ids.
type SessionRepository interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ResetRateLimit(ctx context.Context, key string) error
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// ImageStore persists uploaded pictures and returns the public reference
// stored on the listing.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
}

type SheetsWriter interface {
	UpsertRequest(ctx context.Context, req *models.Request) error
	UpdateRequestStatus(ctx context.Context, requestID int64, status models.RequestStatus) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, req *models.Request) error
}
