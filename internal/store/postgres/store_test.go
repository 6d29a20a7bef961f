package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"docs-cataguases/portal-backend/internal/apperrors"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind apperrors.Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, apperrors.KindNotFound},
		{"wrapped not found", fmt.Errorf("query: %w", gorm.ErrRecordNotFound), apperrors.KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "idx_portaria_numero_escopo"}, apperrors.KindConflict},
		{"duplicated key", gorm.ErrDuplicatedKey, apperrors.KindConflict},
		{"other driver error", &pgconn.PgError{Code: "08006"}, apperrors.KindStorage},
		{"plain error", errors.New("connection reset"), apperrors.KindStorage},
		{"application error passes through", apperrors.Validation("bad"), apperrors.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, apperrors.KindOf(translate(tt.err, "failed")))
		})
	}
	assert.NoError(t, translate(nil, "failed"))
}

func TestNotFound(t *testing.T) {
	err := notFound(gorm.ErrRecordNotFound, "portaria %s not found", "abc")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	assert.Contains(t, err.Error(), "abc")

	err = notFound(errors.New("timeout"), "portaria %s not found", "abc")
	assert.True(t, apperrors.Is(err, apperrors.KindStorage))
}
