package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"forbidden", Forbidden("no"), KindForbidden},
		{"wrapped conflict", fmt.Errorf("join: %w", Conflict("dup")), KindConflict},
		{"plain error", errors.New("boom"), KindInternal},
		{"internal", Internal("op", errors.New("boom")), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("load user", cause)
	if !errors.Is(err, cause) {
		t.Error("Internal should unwrap to its cause")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"postgres unique", &pgconn.PgError{Code: pgerrcode.UniqueViolation}, true},
		{"postgres wrapped", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), true},
		{"postgres fk", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, false},
		{"sqlite unique", errors.New("constraint failed: UNIQUE constraint failed: feature_votes.feature_request_id (2067)"), true},
		{"other", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}
