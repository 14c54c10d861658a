package exercise

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/yanqian/fittrack/pkg/errors"
)

// Service exposes the exercise catalog.
type Service interface {
	// List returns built-in exercises plus the viewer's custom ones; viewerID 0 means anonymous.
	List(ctx context.Context, viewerID int64, filter Filter) ([]Exercise, error)
	Create(ctx context.Context, ownerID int64, req CreateRequest) (Exercise, error)
}

var (
	categories   = map[string]struct{}{"strength": {}, "cardio": {}, "flexibility": {}, "balance": {}}
	muscleGroups = map[string]struct{}{
		"chest": {}, "back": {}, "legs": {}, "shoulders": {}, "arms": {}, "core": {}, "full_body": {},
	}
)

type service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService constructs a Service instance.
func NewService(repo Repository, logger *slog.Logger) Service {
	return &service{repo: repo, logger: logger.With("component", "exercise.service")}
}

func (s *service) List(ctx context.Context, viewerID int64, filter Filter) ([]Exercise, error) {
	filter.Category = strings.ToLower(strings.TrimSpace(filter.Category))
	filter.MuscleGroup = strings.ToLower(strings.TrimSpace(filter.MuscleGroup))
	filter.OwnerID = viewerID
	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, apperrors.Wrap("exercise_error", "failed to list exercises", err)
	}
	return items, nil
}

func (s *service) Create(ctx context.Context, ownerID int64, req CreateRequest) (Exercise, error) {
	if ownerID <= 0 {
		return Exercise{}, apperrors.Wrap("unauthorized", "owner is required", nil)
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.MuscleGroup = strings.ToLower(strings.TrimSpace(req.MuscleGroup))
	req.Equipment = strings.TrimSpace(req.Equipment)
	req.Description = strings.TrimSpace(req.Description)
	if req.Name == "" || len([]rune(req.Name)) > 100 {
		return Exercise{}, apperrors.Wrap("invalid_input", "name must be 1-100 characters", nil)
	}
	if _, ok := categories[req.Category]; !ok {
		return Exercise{}, apperrors.Wrap("invalid_input", "unknown category", nil)
	}
	if _, ok := muscleGroups[req.MuscleGroup]; !ok {
		return Exercise{}, apperrors.Wrap("invalid_input", "unknown muscle group", nil)
	}
	created, err := s.repo.Create(ctx, ownerID, req)
	if err != nil {
		return Exercise{}, apperrors.Wrap("exercise_error", "failed to create exercise", err)
	}
	s.logger.Info("custom exercise created", "user_id", ownerID, "exercise_id", created.ID)
	return created, nil
}
