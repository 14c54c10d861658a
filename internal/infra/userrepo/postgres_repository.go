package userrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

const uniqueViolation = "23505"

// Username uniqueness moved from the plain constraint to a lower(username) index; both names
// are recognised so the mapping holds before and after the migration.
var usernameConstraints = map[string]struct{}{
	"users_username_key":       {},
	"users_username_lower_key": {},
}

// profileColumns never include password_hash or refresh_tokens.
const profileColumns = `id, username, email, first_name, last_name, date_of_birth, gender,
	height_cm, weight_kg, fitness_level, created_at, updated_at`

// PostgresRepository persists users in Postgres. The refresh-token registry lives in the
// users.refresh_tokens array column.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new user row.
func (r *PostgresRepository) Create(ctx context.Context, in auth.NewUser) (auth.User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, first_name, last_name, date_of_birth,
			gender, height_cm, weight_kg, fitness_level)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+profileColumns,
		in.Username, in.Email, in.PasswordHash, in.Profile.FirstName, in.Profile.LastName,
		in.Profile.DateOfBirth, in.Profile.Gender, in.Profile.HeightCm, in.Profile.WeightKg,
		in.Profile.FitnessLevel)
	user, err := scanUser(row)
	if err != nil {
		return auth.User{}, mapCreateError(err)
	}
	return user, nil
}

func mapCreateError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	if _, ok := usernameConstraints[pgErr.ConstraintName]; ok {
		return auth.ErrUsernameExists
	}
	return auth.ErrEmailExists
}

// GetByID fetches by primary key.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail fetches a user by email.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM users WHERE email = lower($1)`, email)
}

// GetByUsername fetches a user by exact username.
func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (auth.User, bool, error) {
	return r.getOne(ctx, `SELECT `+profileColumns+` FROM users WHERE username = $1`, username)
}

// FindCredentials loads the user together with the password hash.
func (r *PostgresRepository) FindCredentials(ctx context.Context, lookup auth.CredentialLookup) (auth.User, bool, error) {
	query := `SELECT ` + profileColumns + `, password_hash FROM users WHERE `
	var arg any
	switch {
	case lookup.Email != "":
		query += `email = lower($1)`
		arg = lookup.Email
	case lookup.Username != "":
		query += `username = $1`
		arg = lookup.Username
	default:
		query += `id = $1`
		arg = lookup.ID
	}
	var hash string
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg), &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	user.PasswordHash = hash
	return user, true, nil
}

// UpdatePasswordHash replaces the stored secret.
func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

// AddSession appends a digest, trimming the oldest entries beyond limit.
func (r *PostgresRepository) AddSession(ctx context.Context, userID int64, digest string, limit int) error {
	return r.mutateSessions(ctx, userID, func(sessions []string) ([]string, bool) {
		return auth.AppendSession(sessions, digest, limit), true
	})
}

// RotateSession swaps oldDigest for newDigest while holding the user row lock.
func (r *PostgresRepository) RotateSession(ctx context.Context, userID int64, oldDigest, newDigest string, limit int) (bool, error) {
	rotated := false
	err := r.mutateSessions(ctx, userID, func(sessions []string) ([]string, bool) {
		remaining, found := auth.RemoveSessionDigest(sessions, oldDigest)
		if !found {
			return nil, false
		}
		rotated = true
		return auth.AppendSession(remaining, newDigest, limit), true
	})
	if errors.Is(err, auth.ErrUserNotFound) {
		return false, nil
	}
	return rotated, err
}

// RemoveSession drops one digest.
func (r *PostgresRepository) RemoveSession(ctx context.Context, userID int64, digest string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET refresh_tokens = array_remove(refresh_tokens, $2) WHERE id = $1
	`, userID, digest)
	return err
}

// RemoveAllSessions clears the registry.
func (r *PostgresRepository) RemoveAllSessions(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET refresh_tokens = '{}' WHERE id = $1`, userID)
	return err
}

// HasSession reports registry membership.
func (r *PostgresRepository) HasSession(ctx context.Context, userID int64, digest string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM users WHERE id = $1 AND $2 = ANY(refresh_tokens))
	`, userID, digest).Scan(&ok)
	return ok, err
}

// mutateSessions runs a read-modify-write of refresh_tokens under SELECT ... FOR UPDATE.
// fn returns the new list and whether to write it.
func (r *PostgresRepository) mutateSessions(ctx context.Context, userID int64, fn func([]string) ([]string, bool)) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var sessions []string
		err := tx.QueryRow(ctx, `SELECT refresh_tokens FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&sessions)
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		next, write := fn(sessions)
		if !write {
			return nil
		}
		_, err = tx.Exec(ctx, `UPDATE users SET refresh_tokens = $2 WHERE id = $1`, userID, next)
		return err
	})
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (auth.User, bool, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.User{}, false, nil
	}
	if err != nil {
		return auth.User{}, false, err
	}
	return user, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (auth.User, error) {
	var (
		user             auth.User
		created, updated time.Time
	)
	dest := []any{
		&user.ID, &user.Username, &user.Email, &user.FirstName, &user.LastName, &user.DateOfBirth,
		&user.Gender, &user.HeightCm, &user.WeightKg, &user.FitnessLevel, &created, &updated,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return auth.User{}, err
	}
	user.CreatedAt = created.UTC()
	user.UpdatedAt = updated.UTC()
	return user, nil
}

var (
	_ auth.Repository   = (*PostgresRepository)(nil)
	_ auth.SessionStore = (*PostgresRepository)(nil)
)
