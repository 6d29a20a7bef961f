package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/users"
)

type tx struct {
	db *gorm.DB
}

func (t *tx) GetPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	var p portarias.Portaria
	if err := t.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "portaria %s not found", id)
	}
	return &p, nil
}

// LockPortaria selects the row FOR UPDATE.
func (t *tx) LockPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	var p portarias.Portaria
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err, "portaria %s not found", id)
	}
	return &p, nil
}

func (t *tx) CreatePortaria(ctx context.Context, p *portarias.Portaria) error {
	return translate(t.db.WithContext(ctx).Create(p).Error, "failed to create portaria")
}

func (t *tx) UpdatePortaria(ctx context.Context, p *portarias.Portaria) error {
	return translate(t.db.WithContext(ctx).Save(p).Error, "failed to update portaria")
}

func (t *tx) DeletePortaria(ctx context.Context, id uuid.UUID) error {
	res := t.db.WithContext(ctx).Delete(&portarias.Portaria{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, "failed to delete portaria")
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("portaria %s not found", id)
	}
	return nil
}

func (t *tx) GetModelo(ctx context.Context, id uuid.UUID) (*portarias.Modelo, error) {
	var m portarias.Modelo
	if err := t.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "modelo %s not found", id)
	}
	return &m, nil
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var u users.User
	if err := t.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user %s not found", id)
	}
	return &u, nil
}

func (t *tx) AppendEntry(ctx context.Context, e *feed.Entry) error {
	return translate(t.db.WithContext(ctx).Create(e).Error, "failed to append feed entry")
}

func (t *tx) Ledgers() numbering.Repository {
	return t
}

// EnsureLedger inserts the ledger if missing, then locks it. The insert
// ignores conflicts so two first allocations of a year cannot both create it.
func (t *tx) EnsureLedger(ctx context.Context, scope numbering.Scope, ano int, defaults numbering.Ledger) (*numbering.Ledger, error) {
	db := t.db.WithContext(ctx)
	defaults.SecretariaID, defaults.SetorID, defaults.Ano = scope.SecretariaID, scope.SetorID, ano
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&defaults).Error; err != nil {
		return nil, translate(err, "failed to create ledger")
	}

	var l numbering.Ledger
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("secretaria_id = ? AND setor_id = ? AND ano = ?", scope.SecretariaID, scope.SetorID, ano).
		First(&l).Error
	if err != nil {
		return nil, translate(err, "failed to lock ledger")
	}
	return &l, nil
}

func (t *tx) FindLedger(ctx context.Context, scope numbering.Scope, ano int) (*numbering.Ledger, error) {
	var l numbering.Ledger
	err := t.db.WithContext(ctx).
		Where("secretaria_id = ? AND setor_id = ? AND ano = ?", scope.SecretariaID, scope.SetorID, ano).
		First(&l).Error
	if err != nil {
		return nil, notFound(err, "ledger %s/%d not found", scope.SecretariaID, ano)
	}
	return &l, nil
}

func (t *tx) SaveLedger(ctx context.Context, l *numbering.Ledger) error {
	return translate(t.db.WithContext(ctx).Save(l).Error, "failed to save ledger")
}

func notFound(err error, format string, args ...interface{}) error {
	if err == gorm.ErrRecordNotFound {
		return apperrors.NotFound(format, args...)
	}
	return translate(err, "query failed")
}
