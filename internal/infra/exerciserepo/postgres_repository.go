package exerciserepo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/fittrack/internal/domain/exercise"
)

// PostgresRepository reads and writes the exercises table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// List implements exercise.Repository.
func (r *PostgresRepository) List(ctx context.Context, filter exercise.Filter) ([]exercise.Exercise, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, category, muscle_group, equipment, description, COALESCE(created_by, 0), created_at
		FROM exercises
		WHERE (created_by IS NULL OR ($1::bigint > 0 AND created_by = $1::bigint))
		  AND ($2 = '' OR category = $2)
		  AND ($3 = '' OR muscle_group = $3)
		ORDER BY id
	`, filter.OwnerID, filter.Category, filter.MuscleGroup)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []exercise.Exercise
	for rows.Next() {
		var (
			item    exercise.Exercise
			created time.Time
		)
		if err := rows.Scan(&item.ID, &item.Name, &item.Category, &item.MuscleGroup, &item.Equipment,
			&item.Description, &item.CreatedBy, &created); err != nil {
			return nil, err
		}
		item.IsCustom = item.CreatedBy != 0
		item.CreatedAt = created.UTC()
		out = append(out, item)
	}
	return out, rows.Err()
}

// Create implements exercise.Repository.
func (r *PostgresRepository) Create(ctx context.Context, ownerID int64, req exercise.CreateRequest) (exercise.Exercise, error) {
	item := exercise.Exercise{
		Name:        req.Name,
		Category:    req.Category,
		MuscleGroup: req.MuscleGroup,
		Equipment:   req.Equipment,
		Description: req.Description,
		CreatedBy:   ownerID,
		IsCustom:    true,
	}
	var created time.Time
	err := r.pool.QueryRow(ctx, `
		INSERT INTO exercises (name, category, muscle_group, equipment, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, req.Name, req.Category, req.MuscleGroup, req.Equipment, req.Description, ownerID).Scan(&item.ID, &created)
	if err != nil {
		return exercise.Exercise{}, err
	}
	item.CreatedAt = created.UTC()
	return item, nil
}

var _ exercise.Repository = (*PostgresRepository)(nil)
