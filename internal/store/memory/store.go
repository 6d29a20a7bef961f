// Package memory keeps every record in process memory. Transactions work on
// a private copy of the state that replaces the committed state on success.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/users"
)

type ledgerKey struct {
	scope numbering.Scope
	ano   int
}

type state struct {
	users     map[uuid.UUID]users.User
	portarias map[uuid.UUID]portarias.Portaria
	modelos   map[uuid.UUID]portarias.Modelo
	ledgers   map[ledgerKey]numbering.Ledger
	entries   []feed.Entry
}

func newState() *state {
	return &state{
		users:     map[uuid.UUID]users.User{},
		portarias: map[uuid.UUID]portarias.Portaria{},
		modelos:   map[uuid.UUID]portarias.Modelo{},
		ledgers:   map[ledgerKey]numbering.Ledger{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:     make(map[uuid.UUID]users.User, len(s.users)),
		portarias: make(map[uuid.UUID]portarias.Portaria, len(s.portarias)),
		modelos:   make(map[uuid.UUID]portarias.Modelo, len(s.modelos)),
		ledgers:   make(map[ledgerKey]numbering.Ledger, len(s.ledgers)),
		entries:   append([]feed.Entry(nil), s.entries...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.portarias {
		c.portarias[k] = v
	}
	for k, v := range s.modelos {
		c.modelos[k] = v
	}
	for k, v := range s.ledgers {
		c.ledgers[k] = v
	}
	return c
}

// Store implements every repository of the application in memory.
type Store struct {
	// txMu serializes writers, which gives the row locks of the SQL store for free.
	txMu   sync.Mutex
	dataMu sync.RWMutex
	data   *state
}

func New() *Store {
	return &Store{data: newState()}
}

// write runs fn against a copy of the state and commits the copy when fn succeeds.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.dataMu.RLock()
	working := s.data.clone()
	s.dataMu.RUnlock()

	if err := fn(working); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.dataMu.Lock()
	s.data = working
	s.dataMu.Unlock()
	return nil
}

func (s *Store) read() *state {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.data
}

// WithinTx implements portarias.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(repo portarias.Repository) error) error {
	return s.write(ctx, func(st *state) error {
		return fn(&tx{st: st})
	})
}

// WithinLedgerTx implements numbering.Store.
func (s *Store) WithinLedgerTx(ctx context.Context, fn func(repo numbering.Repository) error) error {
	return s.write(ctx, func(st *state) error {
		return fn(&tx{st: st})
	})
}

func (s *Store) GetPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	return getPortaria(s.read(), id)
}

func (s *Store) ListPortarias(ctx context.Context, filter portarias.ListFilter) ([]portarias.Portaria, error) {
	st := s.read()
	var out []portarias.Portaria
	for _, p := range st.portarias {
		if !matchesPortaria(&p, filter) {
			continue
		}
		out = append(out, clonePortaria(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, filter.Offset, filter.Limit), nil
}

func matchesPortaria(p *portarias.Portaria, f portarias.ListFilter) bool {
	switch {
	case f.SecretariaID != "" && p.SecretariaID != f.SecretariaID:
		return false
	case f.SetorID != "" && p.SetorID != f.SetorID:
		return false
	case f.Status != "" && p.Status != f.Status:
		return false
	case f.Ano > 0 && p.AnoNumeracao != f.Ano:
		return false
	case f.CriadoPorID != nil && p.CriadoPorID != *f.CriadoPorID:
		return false
	}
	return true
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (s *Store) CreateModelo(ctx context.Context, m *portarias.Modelo) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.modelos[m.ID]; ok {
			return apperrors.Conflict("modelo %s already exists", m.ID)
		}
		st.modelos[m.ID] = cloneModelo(*m)
		return nil
	})
}

func (s *Store) GetModelo(ctx context.Context, id uuid.UUID) (*portarias.Modelo, error) {
	return getModelo(s.read(), id)
}

// ListModelos returns the shared templates plus those of secretariaID, or
// every template when it is empty.
func (s *Store) ListModelos(ctx context.Context, secretariaID string) ([]portarias.Modelo, error) {
	st := s.read()
	out := []portarias.Modelo{}
	for _, m := range st.modelos {
		if secretariaID == "" || m.SecretariaID == "" || m.SecretariaID == secretariaID {
			out = append(out, cloneModelo(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nome < out[j].Nome })
	return out, nil
}

func (s *Store) ListLedgers(ctx context.Context, secretariaID string) ([]numbering.Ledger, error) {
	st := s.read()
	out := []numbering.Ledger{}
	for _, l := range st.ledgers {
		if secretariaID == "" || l.SecretariaID == secretariaID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Ano != b.Ano {
			return a.Ano > b.Ano
		}
		if a.SecretariaID != b.SecretariaID {
			return a.SecretariaID < b.SecretariaID
		}
		return a.SetorID < b.SetorID
	})
	return out, nil
}

// ListEntries implements feed.Reader, newest first.
func (s *Store) ListEntries(ctx context.Context, filter feed.Filter) ([]feed.Entry, error) {
	st := s.read()
	out := []feed.Entry{}
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		if filter.SecretariaID != "" && e.SecretariaID != filter.SecretariaID {
			continue
		}
		if filter.PortariaID != nil && (e.PortariaID == nil || *e.PortariaID != *filter.PortariaID) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateUser(ctx context.Context, user *users.User) error {
	return s.write(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Email == user.Email {
				return apperrors.Conflict("email %s is already registered", user.Email)
			}
		}
		st.users[user.ID] = cloneUser(*user)
		return nil
	})
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return getUser(s.read(), id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range s.read().users {
		if u.Email == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("user %s not found", email)
}

func (s *Store) ListUsers(ctx context.Context, secretariaID string) ([]users.User, error) {
	out := []users.User{}
	for _, u := range s.read().users {
		if secretariaID == "" || u.SecretariaID == secretariaID {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nome < out[j].Nome })
	return out, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *users.User) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.users[user.ID]; !ok {
			return apperrors.NotFound("user %s not found", user.ID)
		}
		st.users[user.ID] = cloneUser(*user)
		return nil
	})
}
