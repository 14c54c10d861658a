package exercise

import (
	"context"
	"time"
)

// Exercise is a catalog entry. Built-in entries have a zero CreatedBy.
type Exercise struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	MuscleGroup string    `json:"muscleGroup"`
	Equipment   string    `json:"equipment,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedBy   int64     `json:"createdBy,omitempty"`
	IsCustom    bool      `json:"isCustom"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Filter narrows a catalog listing.
type Filter struct {
	Category    string
	MuscleGroup string
	// OwnerID includes the owner's custom exercises when non-zero.
	OwnerID int64
}

// CreateRequest captures a custom exercise payload.
type CreateRequest struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	MuscleGroup string `json:"muscleGroup"`
	Equipment   string `json:"equipment"`
	Description string `json:"description"`
}

// Repository abstracts exercise persistence.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Exercise, error)
	Create(ctx context.Context, ownerID int64, req CreateRequest) (Exercise, error)
}
