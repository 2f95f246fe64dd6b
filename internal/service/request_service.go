package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"muadati/internal/database"
	"muadati/internal/domain"
	"muadati/internal/events"
	"muadati/internal/export"
	"muadati/internal/metrics"
	"muadati/internal/models"
	"muadati/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	SyncTaskUpsert       = "upsert"
	SyncTaskUpdateStatus = "update_status"
)

type LocationInput struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type CreateRequestInput struct {
	EquipmentID   int64          `json:"equipmentId" validate:"required,gt=0"`
	Location      *LocationInput `json:"location" validate:"required"`
	CustomerPhone string         `json:"customerPhone" validate:"required"`
	Notes         string         `json:"notes" validate:"max=500"`
}

type UpdateStatusInput struct {
	Status models.RequestStatus `json:"status"`
}

type RequestService struct {
	repo     domain.RequestRepository
	eventBus domain.EventPublisher
	sync     domain.SyncWorker
	logger   *zerolog.Logger
}

func NewRequestService(repo domain.RequestRepository, eventBus domain.EventPublisher, sync domain.SyncWorker, logger *zerolog.Logger) *RequestService {
	return &RequestService{
		repo:     repo,
		eventBus: eventBus,
		sync:     sync,
		logger:   logger,
	}
}

func (s *RequestService) Create(ctx context.Context, customerID int64, in CreateRequestInput) (*models.Request, error) {
	ctx, span := tracing.Tracer().Start(ctx, "RequestService.Create")
	defer span.End()

	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("equipment.id", in.EquipmentID))

	req := &models.Request{
		CustomerID:    customerID,
		EquipmentID:   in.EquipmentID,
		Location:      models.Location{Lat: *in.Location.Lat, Lng: *in.Location.Lng},
		CustomerPhone: in.CustomerPhone,
		Notes:         in.Notes,
		Status:        models.RequestPending,
	}
	if err := s.repo.CreateRequestGuarded(ctx, req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		switch {
		case errors.Is(err, database.ErrNotFound):
			return nil, domain.NotFound("equipment not found")
		case errors.Is(err, database.ErrEquipmentBusy):
			return nil, domain.Conflict("equipment is not available right now")
		}
		return nil, domain.Internal("failed to create request", err)
	}

	created, err := s.repo.GetRequest(ctx, req.ID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("request_id", req.ID).Msg("reload created request failed")
		created = req
	}

	s.publishRequest(events.EventRequestCreated, created, "", "customer", customerID, ownerOf(created))
	s.enqueueSync(ctx, created, SyncTaskUpsert)
	return created, nil
}

func (s *RequestService) ListForCustomer(ctx context.Context, customerID int64) ([]*models.Request, error) {
	list, err := s.repo.ListRequestsByCustomer(ctx, customerID)
	if err != nil {
		return nil, domain.Internal("failed to fetch requests", err)
	}
	return list, nil
}

func (s *RequestService) ListForOwner(ctx context.Context, ownerID int64) ([]*models.Request, error) {
	list, err := s.repo.ListRequestsByOwner(ctx, ownerID)
	if err != nil {
		return nil, domain.Internal("failed to fetch requests", err)
	}
	return list, nil
}

// SetStatus moves a request to target on behalf of actorID. The equipment
// availability is updated in the same transaction.
func (s *RequestService) SetStatus(ctx context.Context, requestID, actorID int64, target models.RequestStatus) (*models.Request, error) {
	ctx, span := tracing.Tracer().Start(ctx, "RequestService.SetStatus")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("request.id", requestID),
		attribute.String("request.target", string(target)),
	)

	var (
		role  ActorRole
		owner int64
	)
	result, err := s.repo.TransitionRequest(ctx, requestID, func(snap database.RequestSnapshot) (models.RequestStatus, error) {
		role = ActorFor(snap, actorID)
		owner = snap.OwnerID
		if err := Decide(role, snap.Status, target); err != nil {
			return "", err
		}
		return target, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		var derr *domain.Error
		switch {
		case errors.As(err, &derr):
			return nil, err
		case errors.Is(err, database.ErrNotFound):
			return nil, domain.NotFound("request not found")
		case errors.Is(err, database.ErrEquipmentBusy):
			return nil, domain.Conflict("equipment is already rented to another customer")
		case errors.Is(err, database.ErrConcurrentModification):
			return nil, domain.Conflict("request was modified by someone else, please retry")
		}
		return nil, domain.Internal("failed to update request status", err)
	}

	req, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NotFound("request not found")
		}
		return nil, domain.Internal("failed to fetch request", err)
	}

	if !result.Changed {
		return req, nil
	}

	metrics.IncTransition(string(result.From), string(result.To))
	s.logger.Info().
		Int64("request_id", requestID).
		Int64("actor_id", actorID).
		Str("from", string(result.From)).
		Str("to", string(result.To)).
		Msg("request status changed")

	if eventType, ok := statusEvents[result.To]; ok {
		s.publishRequest(eventType, req, result.From, role.String(), actorID, owner)
	}
	if result.EquipmentFrom != result.EquipmentTo {
		s.publishAvailability(req.EquipmentID, owner, result.EquipmentTo)
	}
	s.enqueueSync(ctx, req, SyncTaskUpdateStatus)
	return req, nil
}

// ExportForOwner writes the owner's incoming requests as an XLSX workbook.
func (s *RequestService) ExportForOwner(ctx context.Context, ownerID int64, w io.Writer) error {
	list, err := s.ListForOwner(ctx, ownerID)
	if err != nil {
		return err
	}
	if err := export.WriteRequests(w, list); err != nil {
		return domain.Internal("failed to export requests", err)
	}
	return nil
}

var statusEvents = map[models.RequestStatus]string{
	models.RequestAccepted:  events.EventRequestAccepted,
	models.RequestCompleted: events.EventRequestCompleted,
	models.RequestCancelled: events.EventRequestCancelled,
}

func ownerOf(req *models.Request) int64 {
	if req.Equipment != nil {
		return req.Equipment.OwnerID
	}
	return 0
}

func (s *RequestService) publishRequest(eventType string, req *models.Request, prev models.RequestStatus, changedBy string, changedByID, ownerID int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.RequestEventPayload{
		RequestID:   req.ID,
		CustomerID:  req.CustomerID,
		EquipmentID: req.EquipmentID,
		OwnerID:     ownerID,
		Status:      string(req.Status),
		PrevStatus:  string(prev),
		ChangedBy:   changedBy,
		ChangedByID: changedByID,
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("request_id", req.ID).Msg("publish event error")
	}
}

func (s *RequestService) publishAvailability(equipmentID, ownerID int64, status models.EquipmentStatus) {
	if s.eventBus == nil {
		return
	}
	payload := events.EquipmentEventPayload{
		EquipmentID: equipmentID,
		OwnerID:     ownerID,
		Status:      string(status),
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.eventBus.PublishJSON(events.EventEquipmentAvailability, payload); err != nil {
		s.logger.Error().Err(err).Int64("equipment_id", equipmentID).Msg("publish availability error")
	}
}

func (s *RequestService) enqueueSync(ctx context.Context, req *models.Request, taskType string) {
	if s.sync == nil {
		return
	}
	if err := s.sync.EnqueueTask(ctx, taskType, req); err != nil {
		s.logger.Error().Err(err).Int64("request_id", req.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
