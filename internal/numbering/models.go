package numbering

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Scope is the organizational unit a ledger numbers for. An empty SetorID
// means the ledger belongs to the whole secretaria.
type Scope struct {
	SecretariaID string `json:"secretaria_id"`
	SetorID      string `json:"setor_id,omitempty"`
}

// Ledger is the numbering book (livro de numeração) of one scope and year.
type Ledger struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SecretariaID  string    `gorm:"not null;uniqueIndex:idx_livro_escopo_ano" json:"secretaria_id"`
	SetorID       string    `gorm:"not null;default:'';uniqueIndex:idx_livro_escopo_ano" json:"setor_id"`
	Ano           int       `gorm:"not null;uniqueIndex:idx_livro_escopo_ano" json:"ano"`
	ProximoNumero int       `gorm:"not null;default:1" json:"proximo_numero"`
	Formato       string    `gorm:"not null" json:"formato"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Ledger) TableName() string {
	return "livros_numeracao"
}

func (l *Ledger) Scope() Scope {
	return Scope{SecretariaID: l.SecretariaID, SetorID: l.SetorID}
}

// ConfigureRequest changes a ledger. Nil fields are left alone.
type ConfigureRequest struct {
	SecretariaID  string  `json:"secretaria_id" binding:"required"`
	SetorID       string  `json:"setor_id"`
	Ano           int     `json:"ano"`
	Formato       *string `json:"formato"`
	ProximoNumero *int    `json:"proximo_numero"`
}

// Repository reads and writes ledgers inside one transaction.
type Repository interface {
	// EnsureLedger returns the ledger of scope and year locked for update,
	// creating it from defaults when it does not exist yet.
	EnsureLedger(ctx context.Context, scope Scope, ano int, defaults Ledger) (*Ledger, error)
	// FindLedger returns the ledger of scope and year without locking or
	// creating it. A missing ledger is a NotFound error.
	FindLedger(ctx context.Context, scope Scope, ano int) (*Ledger, error)
	SaveLedger(ctx context.Context, ledger *Ledger) error
}

// Store opens ledger transactions.
type Store interface {
	WithinLedgerTx(ctx context.Context, fn func(repo Repository) error) error
	ListLedgers(ctx context.Context, secretariaID string) ([]Ledger, error)
}
