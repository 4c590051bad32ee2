package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type roomRepository interface {
	List(ctx context.Context, filter models.RoomFilter) ([]models.Room, int, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
	Update(ctx context.Context, room *models.Room) error
	Deactivate(ctx context.Context, id string) error
}

// CreateRoomRequest describes a new room.
type CreateRoomRequest struct {
	Number   string `json:"number" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=CLASSROOM LABORATORY COMPUTER_LAB AUDITORIUM GYM LIBRARY"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
	Building string `json:"building"`
	Floor    int    `json:"floor"`
}

// UpdateRoomRequest carries partial room updates.
type UpdateRoomRequest struct {
	Number   *string `json:"number"`
	Type     *string `json:"type" validate:"omitempty,oneof=CLASSROOM LABORATORY COMPUTER_LAB AUDITORIUM GYM LIBRARY"`
	Capacity *int    `json:"capacity" validate:"omitempty,gt=0"`
	Building *string `json:"building"`
	Floor    *int    `json:"floor"`
}

// RoomService manages the room catalog.
type RoomService struct {
	repo      roomRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomService instantiates RoomService.
func NewRoomService(repo roomRepository, validate *validator.Validate, logger *zap.Logger) *RoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomService{repo: repo, validator: validate, logger: logger}
}

// List returns rooms with pagination metadata.
func (s *RoomService) List(ctx context.Context, filter models.RoomFilter) ([]models.Room, *models.Pagination, error) {
	rooms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return rooms, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one room.
func (s *RoomService) Get(ctx context.Context, id string) (*models.Room, error) {
	room, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	return room, nil
}

// Create validates and stores a new room.
func (s *RoomService) Create(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room := models.Room{
		Number:   req.Number,
		Type:     models.RoomType(req.Type),
		Capacity: req.Capacity,
		Building: req.Building,
		Floor:    req.Floor,
	}
	if err := s.repo.Create(ctx, &room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}

	s.logger.Info("room created", zap.String("room_id", room.ID), zap.String("number", room.Number))
	return &room, nil
}

// Update applies partial changes to a room.
func (s *RoomService) Update(ctx context.Context, id string, req UpdateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid room payload")
	}

	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, appErrors.Clone(appErrors.ErrStateConflict, "room is inactive")
	}

	if req.Number != nil {
		room.Number = *req.Number
	}
	if req.Type != nil {
		room.Type = models.RoomType(*req.Type)
	}
	if req.Capacity != nil {
		room.Capacity = *req.Capacity
	}
	if req.Building != nil {
		room.Building = *req.Building
	}
	if req.Floor != nil {
		room.Floor = *req.Floor
	}

	if err := s.repo.Update(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update room")
	}
	return room, nil
}

// Deactivate retires a room. Entries that reference it keep their reference.
func (s *RoomService) Deactivate(ctx context.Context, id string) error {
	room, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !room.Active {
		return appErrors.Clone(appErrors.ErrStateConflict, "room already inactive")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate room")
	}
	return nil
}
