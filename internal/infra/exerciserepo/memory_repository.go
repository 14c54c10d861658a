package exerciserepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanqian/fittrack/internal/domain/exercise"
)

// MemoryRepository keeps the catalog in process memory, seeded with built-in exercises.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[int64]exercise.Exercise
	seq   int64
}

// NewMemoryRepository constructs a repository holding the built-in catalog.
func NewMemoryRepository() *MemoryRepository {
	r := &MemoryRepository{items: make(map[int64]exercise.Exercise)}
	now := time.Now().UTC()
	for _, seed := range builtins {
		r.seq++
		seed.ID = r.seq
		seed.CreatedAt = now
		r.items[seed.ID] = seed
	}
	return r
}

var builtins = []exercise.Exercise{
	{Name: "Push-up", Category: "strength", MuscleGroup: "chest", Equipment: "bodyweight"},
	{Name: "Squat", Category: "strength", MuscleGroup: "legs", Equipment: "barbell"},
	{Name: "Deadlift", Category: "strength", MuscleGroup: "back", Equipment: "barbell"},
	{Name: "Plank", Category: "strength", MuscleGroup: "core", Equipment: "bodyweight"},
	{Name: "Running", Category: "cardio", MuscleGroup: "full_body", Equipment: "none"},
	{Name: "Cycling", Category: "cardio", MuscleGroup: "legs", Equipment: "bike"},
}

// List implements exercise.Repository.
func (r *MemoryRepository) List(_ context.Context, filter exercise.Filter) ([]exercise.Exercise, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]exercise.Exercise, 0, len(r.items))
	for _, item := range r.items {
		if item.IsCustom && (filter.OwnerID == 0 || item.CreatedBy != filter.OwnerID) {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.MuscleGroup != "" && item.MuscleGroup != filter.MuscleGroup {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create implements exercise.Repository.
func (r *MemoryRepository) Create(_ context.Context, ownerID int64, req exercise.CreateRequest) (exercise.Exercise, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	item := exercise.Exercise{
		ID:          r.seq,
		Name:        req.Name,
		Category:    req.Category,
		MuscleGroup: req.MuscleGroup,
		Equipment:   req.Equipment,
		Description: req.Description,
		CreatedBy:   ownerID,
		IsCustom:    true,
		CreatedAt:   time.Now().UTC(),
	}
	r.items[item.ID] = item
	return item, nil
}

var _ exercise.Repository = (*MemoryRepository)(nil)
