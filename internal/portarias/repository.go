package portarias

import (
	"context"

	"github.com/google/uuid"

	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/users"
)

// Repository is bound to one transaction. Nothing it writes is visible to
// other callers until the transaction commits.
type Repository interface {
	feed.Repository

	GetPortaria(ctx context.Context, id uuid.UUID) (*Portaria, error)
	// LockPortaria reads the portaria and holds it until the transaction ends.
	LockPortaria(ctx context.Context, id uuid.UUID) (*Portaria, error)
	CreatePortaria(ctx context.Context, p *Portaria) error
	UpdatePortaria(ctx context.Context, p *Portaria) error
	DeletePortaria(ctx context.Context, id uuid.UUID) error

	GetModelo(ctx context.Context, id uuid.UUID) (*Modelo, error)
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)

	Ledgers() numbering.Repository
}

// Store opens transactions and serves reads outside of them.
type Store interface {
	WithinTx(ctx context.Context, fn func(repo Repository) error) error

	GetPortaria(ctx context.Context, id uuid.UUID) (*Portaria, error)
	ListPortarias(ctx context.Context, filter ListFilter) ([]Portaria, error)

	CreateModelo(ctx context.Context, m *Modelo) error
	GetModelo(ctx context.Context, id uuid.UUID) (*Modelo, error)
	ListModelos(ctx context.Context, secretariaID string) ([]Modelo, error)
}
