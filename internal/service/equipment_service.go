package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"muadati/internal/config"
	"muadati/internal/database"
	"muadati/internal/domain"
	"muadati/internal/events"
	"muadati/internal/models"
	"muadati/internal/storage"

	"github.com/rs/zerolog"
)

// ImageUpload is one picture attached to a create or update call.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CreateEquipmentInput struct {
	Title        string                 `json:"title" validate:"required,max=200"`
	Category     models.Category        `json:"category" validate:"required"`
	Description  string                 `json:"description" validate:"required,max=1000"`
	PricePerDay  *float64               `json:"pricePerDay" validate:"required,gte=0"`
	PricePerHour *float64               `json:"pricePerHour" validate:"omitnil,gte=0"`
	City         string                 `json:"city" validate:"required"`
	PhoneNumber  string                 `json:"phoneNumber" validate:"required,phone"`
	Status       models.EquipmentStatus `json:"status" validate:"omitempty,oneof=available busy"`
}

// UpdateEquipmentInput replaces only the fields that are set.
type UpdateEquipmentInput struct {
	Title        *string          `json:"title" validate:"omitnil,min=1,max=200"`
	Category     *models.Category `json:"category"`
	Description  *string          `json:"description" validate:"omitnil,min=1,max=1000"`
	PricePerDay  *float64         `json:"pricePerDay" validate:"omitnil,gte=0"`
	PricePerHour *float64         `json:"pricePerHour" validate:"omitnil,gte=0"`
	City         *string          `json:"city" validate:"omitnil,min=1"`
	PhoneNumber  *string          `json:"phoneNumber" validate:"omitnil,phone"`
}

type EquipmentService struct {
	repo     domain.EquipmentRepository
	images   domain.ImageStore
	eventBus domain.EventPublisher
	uploads  config.UploadsConfig
	logger   *zerolog.Logger
}

func NewEquipmentService(repo domain.EquipmentRepository, images domain.ImageStore, eventBus domain.EventPublisher, uploads config.UploadsConfig, logger *zerolog.Logger) *EquipmentService {
	return &EquipmentService{
		repo:     repo,
		images:   images,
		eventBus: eventBus,
		uploads:  uploads,
		logger:   logger,
	}
}

func (s *EquipmentService) List(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, error) {
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, domain.Validation("invalid category")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Validation("invalid status")
	}
	list, err := s.repo.ListEquipment(ctx, filter)
	if err != nil {
		return nil, domain.Internal("failed to fetch equipment", err)
	}
	return list, nil
}

func (s *EquipmentService) ListByOwner(ctx context.Context, ownerID int64) ([]*models.Equipment, error) {
	return s.List(ctx, models.EquipmentFilter{OwnerID: ownerID})
}

func (s *EquipmentService) Get(ctx context.Context, id int64) (*models.Equipment, error) {
	eq, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NotFound("equipment not found")
		}
		return nil, domain.Internal("failed to fetch equipment", err)
	}
	return eq, nil
}

func (s *EquipmentService) Create(ctx context.Context, ownerID int64, in CreateEquipmentInput, uploads []ImageUpload) (*models.Equipment, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.City = strings.TrimSpace(in.City)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := checkPrices(in.PricePerDay, in.PricePerHour); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if !in.Category.Valid() {
		return nil, domain.Validation("invalid category")
	}
	// Availability follows accepted requests, so a listing starts available.
	if in.Status == models.EquipmentBusy {
		return nil, domain.Validation("new equipment is always listed as available")
	}

	refs, err := s.saveImages(ctx, uploads)
	if err != nil {
		return nil, err
	}

	eq := &models.Equipment{
		OwnerID:      ownerID,
		Title:        in.Title,
		Category:     in.Category,
		Description:  in.Description,
		PricePerDay:  *in.PricePerDay,
		PricePerHour: in.PricePerHour,
		City:         in.City,
		Images:       refs,
		PhoneNumber:  in.PhoneNumber,
		Status:       models.EquipmentAvailable,
	}
	if err := s.repo.CreateEquipment(ctx, eq); err != nil {
		s.discardImages(ctx, refs)
		return nil, domain.Internal("failed to add equipment", err)
	}

	s.publish(events.EventEquipmentCreated, eq)
	return eq, nil
}

// Update applies a partial change. New images are appended to the existing set.
func (s *EquipmentService) Update(ctx context.Context, actorID, id int64, in UpdateEquipmentInput, uploads []ImageUpload) (*models.Equipment, error) {
	if err := checkPrices(in.PricePerDay, in.PricePerHour); err != nil {
		return nil, err
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Category != nil && !in.Category.Valid() {
		return nil, domain.Validation("invalid category")
	}

	eq, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if eq.OwnerID != actorID {
		return nil, domain.Forbidden("you are not authorized to modify this equipment")
	}

	applyString(&eq.Title, in.Title)
	applyString(&eq.Description, in.Description)
	applyString(&eq.City, in.City)
	applyString(&eq.PhoneNumber, in.PhoneNumber)
	if in.Category != nil {
		eq.Category = *in.Category
	}
	if in.PricePerDay != nil {
		eq.PricePerDay = *in.PricePerDay
	}
	if in.PricePerHour != nil {
		eq.PricePerHour = in.PricePerHour
	}

	refs, err := s.saveImages(ctx, uploads)
	if err != nil {
		return nil, err
	}
	eq.Images = append(eq.Images, refs...)

	if err := s.repo.UpdateEquipment(ctx, eq); err != nil {
		s.discardImages(ctx, refs)
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.NotFound("equipment not found")
		}
		return nil, domain.Internal("failed to update equipment", err)
	}

	s.publish(events.EventEquipmentUpdated, eq)
	return eq, nil
}

// Delete removes the listing and its stored images.
func (s *EquipmentService) Delete(ctx context.Context, actorID, id int64) error {
	eq, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if eq.OwnerID != actorID {
		return domain.Forbidden("you are not authorized to delete this equipment")
	}

	refs, err := s.repo.DeleteEquipment(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			return domain.NotFound("equipment not found")
		case errors.Is(err, database.ErrEquipmentEngaged):
			return domain.Conflict("equipment has pending or accepted requests")
		}
		return domain.Internal("failed to delete equipment", err)
	}

	s.discardImages(ctx, refs)
	s.publish(events.EventEquipmentDeleted, eq)
	return nil
}

func (s *EquipmentService) saveImages(ctx context.Context, uploads []ImageUpload) (models.StringList, error) {
	refs := models.StringList{}
	if len(uploads) == 0 {
		return refs, nil
	}
	if s.uploads.MaxFiles > 0 && len(uploads) > s.uploads.MaxFiles {
		return nil, domain.Validation(fmt.Sprintf("at most %d images are allowed", s.uploads.MaxFiles))
	}

	exts := make([]string, len(uploads))
	for i, up := range uploads {
		ext, err := storage.Extension(up.Filename, up.ContentType, s.uploads.AllowedTypes)
		if err != nil {
			return nil, domain.Validation("only images are allowed (" + strings.Join(s.uploads.AllowedTypes, ", ") + ")")
		}
		if s.uploads.MaxFileSize > 0 && up.Size > s.uploads.MaxFileSize {
			return nil, domain.Validation(fmt.Sprintf("image %s exceeds %d MB", up.Filename, s.uploads.MaxFileSize>>20))
		}
		exts[i] = ext
	}

	if s.images == nil {
		return nil, domain.Internal("image storage is not configured", nil)
	}
	for i, up := range uploads {
		name := storage.ObjectName(exts[i])
		ref, err := s.images.Save(ctx, name, storage.ContentType(exts[i]), up.Body)
		if err != nil {
			s.discardImages(ctx, refs)
			return nil, domain.Internal("failed to store image", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *EquipmentService) discardImages(ctx context.Context, refs models.StringList) {
	if s.images == nil {
		return
	}
	for _, ref := range refs {
		if err := s.images.Delete(ctx, ref); err != nil {
			s.logger.Warn().Err(err).Str("image", ref).Msg("failed to delete image")
		}
	}
}

func (s *EquipmentService) publish(eventType string, eq *models.Equipment) {
	if s.eventBus == nil {
		return
	}
	payload := events.EquipmentEventPayload{
		EquipmentID: eq.ID,
		OwnerID:     eq.OwnerID,
		Title:       eq.Title,
		Status:      string(eq.Status),
		OccurredAt:  time.Now().UTC(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("equipment_id", eq.ID).Msg("publish event error")
	}
}

func applyString(dst *string, v *string) {
	if v == nil {
		return
	}
	if trimmed := strings.TrimSpace(*v); trimmed != "" {
		*dst = trimmed
	}
}
