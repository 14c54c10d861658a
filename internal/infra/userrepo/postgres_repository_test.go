package userrepo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

func TestMapCreateError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"username constraint", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_key"}, auth.ErrUsernameExists},
		{"case-folded username index", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_lower_key"}, auth.ErrUsernameExists},
		{"email constraint", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_email_key"}, auth.ErrEmailExists},
		{"wrapped violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "users_username_lower_key"}), auth.ErrUsernameExists},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, mapCreateError(tc.err), tc.want)
		})
	}

	check := &pgconn.PgError{Code: "23514", ConstraintName: "users_email_lower"}
	require.Same(t, check, mapCreateError(check))

	plain := errors.New("connection reset")
	require.Same(t, plain, mapCreateError(plain))
}
