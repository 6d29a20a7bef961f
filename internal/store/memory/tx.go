package memory

import (
	"context"

	"github.com/google/uuid"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/users"
)

// tx writes to the working copy of a transaction.
type tx struct {
	st *state
}

func (t *tx) GetPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	return getPortaria(t.st, id)
}

// LockPortaria needs no lock of its own, transactions are already serialized.
func (t *tx) LockPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	return getPortaria(t.st, id)
}

func (t *tx) CreatePortaria(ctx context.Context, p *portarias.Portaria) error {
	if _, ok := t.st.portarias[p.ID]; ok {
		return apperrors.Conflict("portaria %s already exists", p.ID)
	}
	if err := t.checkNumber(p); err != nil {
		return err
	}
	t.st.portarias[p.ID] = clonePortaria(*p)
	return nil
}

func (t *tx) UpdatePortaria(ctx context.Context, p *portarias.Portaria) error {
	if _, ok := t.st.portarias[p.ID]; !ok {
		return apperrors.NotFound("portaria %s not found", p.ID)
	}
	if err := t.checkNumber(p); err != nil {
		return err
	}
	t.st.portarias[p.ID] = clonePortaria(*p)
	return nil
}

// checkNumber mirrors the unique index on the official number.
func (t *tx) checkNumber(p *portarias.Portaria) error {
	if !p.Numbered() {
		return nil
	}
	for id, other := range t.st.portarias {
		if id == p.ID || !other.Numbered() {
			continue
		}
		if *other.NumeroOficial == *p.NumeroOficial && other.AnoNumeracao == p.AnoNumeracao &&
			other.SecretariaID == p.SecretariaID && other.SetorID == p.SetorID {
			return apperrors.Conflict("numero %s is already assigned", *p.NumeroOficial)
		}
	}
	return nil
}

func (t *tx) DeletePortaria(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st.portarias[id]; !ok {
		return apperrors.NotFound("portaria %s not found", id)
	}
	delete(t.st.portarias, id)
	return nil
}

func (t *tx) GetModelo(ctx context.Context, id uuid.UUID) (*portarias.Modelo, error) {
	return getModelo(t.st, id)
}

func (t *tx) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return getUser(t.st, id)
}

func (t *tx) AppendEntry(ctx context.Context, e *feed.Entry) error {
	t.st.entries = append(t.st.entries, *e)
	return nil
}

func (t *tx) Ledgers() numbering.Repository {
	return t
}

func (t *tx) EnsureLedger(ctx context.Context, scope numbering.Scope, ano int, defaults numbering.Ledger) (*numbering.Ledger, error) {
	key := ledgerKey{scope: scope, ano: ano}
	l, ok := t.st.ledgers[key]
	if !ok {
		l = defaults
		t.st.ledgers[key] = l
	}
	return &l, nil
}

func (t *tx) FindLedger(ctx context.Context, scope numbering.Scope, ano int) (*numbering.Ledger, error) {
	l, ok := t.st.ledgers[ledgerKey{scope: scope, ano: ano}]
	if !ok {
		return nil, apperrors.NotFound("ledger %s/%d not found", scope.SecretariaID, ano)
	}
	return &l, nil
}

func (t *tx) SaveLedger(ctx context.Context, l *numbering.Ledger) error {
	t.st.ledgers[ledgerKey{scope: l.Scope(), ano: l.Ano}] = *l
	return nil
}

func getPortaria(st *state, id uuid.UUID) (*portarias.Portaria, error) {
	p, ok := st.portarias[id]
	if !ok {
		return nil, apperrors.NotFound("portaria %s not found", id)
	}
	c := clonePortaria(p)
	return &c, nil
}

func getModelo(st *state, id uuid.UUID) (*portarias.Modelo, error) {
	m, ok := st.modelos[id]
	if !ok {
		return nil, apperrors.NotFound("modelo %s not found", id)
	}
	c := cloneModelo(m)
	return &c, nil
}

func getUser(st *state, id uuid.UUID) (*users.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, apperrors.NotFound("user %s not found", id)
	}
	c := cloneUser(u)
	return &c, nil
}

func clonePortaria(p portarias.Portaria) portarias.Portaria {
	if p.NumeroOficial != nil {
		n := *p.NumeroOficial
		p.NumeroOficial = &n
	}
	if p.DadosFormulario != nil {
		data := make(map[string]interface{}, len(p.DadosFormulario))
		for k, v := range p.DadosFormulario {
			data[k] = v
		}
		p.DadosFormulario = data
	}
	p.ResponsavelRevisaoID = cloneUUID(p.ResponsavelRevisaoID)
	p.AssinadoPorID = cloneUUID(p.AssinadoPorID)
	if p.DataPublicacao != nil {
		t := *p.DataPublicacao
		p.DataPublicacao = &t
	}
	if p.AssinadoEm != nil {
		t := *p.AssinadoEm
		p.AssinadoEm = &t
	}
	return p
}

func cloneUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func cloneModelo(m portarias.Modelo) portarias.Modelo {
	m.Variaveis = append([]string(nil), m.Variaveis...)
	return m
}

func cloneUser(u users.User) users.User {
	u.PermissoesExtra = append([]string(nil), u.PermissoesExtra...)
	return u
}
