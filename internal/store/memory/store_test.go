package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/users"
)

var (
	_ portarias.Store  = (*Store)(nil)
	_ numbering.Store  = (*Store)(nil)
	_ feed.Reader      = (*Store)(nil)
	_ users.Repository = (*Store)(nil)
)

func newPortaria(secretaria string) *portarias.Portaria {
	return &portarias.Portaria{
		ID:           uuid.New(),
		Titulo:       "Nomeação",
		Status:       portarias.StatusDraft,
		SecretariaID: secretaria,
		CriadoPorID:  uuid.New(),
		CreatedAt:    time.Now(),
	}
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newPortaria("sec-rh")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(repo portarias.Repository) error {
		require.NoError(t, repo.CreatePortaria(ctx, p))
		require.NoError(t, repo.AppendEntry(ctx, &feed.Entry{ID: uuid.New(), SecretariaID: "sec-rh"}))
		_, err := repo.Ledgers().EnsureLedger(ctx, numbering.Scope{SecretariaID: "sec-rh"}, 2025, numbering.Ledger{ProximoNumero: 1})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetPortaria(ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	entries, _ := s.ListEntries(ctx, feed.Filter{})
	assert.Empty(t, entries)
	ledgers, _ := s.ListLedgers(ctx, "")
	assert.Empty(t, ledgers)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := newPortaria("sec-rh")

	require.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error {
		return repo.CreatePortaria(ctx, p)
	}))

	got, err := s.GetPortaria(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Titulo, got.Titulo)

	// Returned records are copies.
	got.Titulo = "changed"
	again, _ := s.GetPortaria(ctx, p.ID)
	assert.Equal(t, "Nomeação", again.Titulo)
}

func TestFindLedgerDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	s := New()
	scope := numbering.Scope{SecretariaID: "sec-rh"}

	require.NoError(t, s.WithinLedgerTx(ctx, func(repo numbering.Repository) error {
		_, err := repo.FindLedger(ctx, scope, 2025)
		assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
		return nil
	}))
	ledgers, _ := s.ListLedgers(ctx, "")
	assert.Empty(t, ledgers)

	require.NoError(t, s.WithinLedgerTx(ctx, func(repo numbering.Repository) error {
		_, err := repo.EnsureLedger(ctx, scope, 2025, numbering.Ledger{SecretariaID: "sec-rh", Ano: 2025, ProximoNumero: 7, Formato: "XXX/YYYY"})
		return err
	}))
	require.NoError(t, s.WithinLedgerTx(ctx, func(repo numbering.Repository) error {
		l, err := repo.FindLedger(ctx, scope, 2025)
		require.NoError(t, err)
		assert.Equal(t, 7, l.ProximoNumero)
		return nil
	}))
}

func TestOfficialNumberIsUniquePerScope(t *testing.T) {
	ctx := context.Background()
	s := New()
	numero := "001/2025"

	a := newPortaria("sec-rh")
	a.NumeroOficial, a.AnoNumeracao = &numero, 2025
	b := newPortaria("sec-rh")
	b.NumeroOficial, b.AnoNumeracao = &numero, 2025
	c := newPortaria("sec-obras")
	c.NumeroOficial, c.AnoNumeracao = &numero, 2025

	require.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error { return repo.CreatePortaria(ctx, a) }))
	err := s.WithinTx(ctx, func(repo portarias.Repository) error { return repo.CreatePortaria(ctx, b) })
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error { return repo.CreatePortaria(ctx, c) }))
}

func TestListPortariasFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		p := newPortaria("sec-rh")
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if i%2 == 0 {
			p.Status = portarias.StatusPublished
		}
		require.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error { return repo.CreatePortaria(ctx, p) }))
	}
	other := newPortaria("sec-obras")
	require.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error { return repo.CreatePortaria(ctx, other) }))

	list, err := s.ListPortarias(ctx, portarias.ListFilter{SecretariaID: "sec-rh"})
	require.NoError(t, err)
	require.Len(t, list, 5)
	assert.True(t, list[0].CreatedAt.After(list[4].CreatedAt))

	published, _ := s.ListPortarias(ctx, portarias.ListFilter{Status: portarias.StatusPublished})
	assert.Len(t, published, 3)

	paged, _ := s.ListPortarias(ctx, portarias.ListFilter{SecretariaID: "sec-rh", Limit: 2, Offset: 4})
	assert.Len(t, paged, 1)

	empty, _ := s.ListPortarias(ctx, portarias.ListFilter{Offset: 50})
	assert.Empty(t, empty)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()
	u := &users.User{ID: uuid.New(), Nome: "Ana", Email: "ana@cataguases.mg.gov.br", SecretariaID: "sec-rh", Ativo: true}
	require.NoError(t, s.CreateUser(ctx, u))

	dup := &users.User{ID: uuid.New(), Nome: "Outra", Email: u.Email}
	assert.True(t, apperrors.Is(s.CreateUser(ctx, dup), apperrors.KindConflict))

	got, err := s.GetUserByEmail(ctx, u.Email)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got.Ativo = false
	require.NoError(t, s.UpdateUser(ctx, got))
	reloaded, _ := s.GetUser(ctx, u.ID)
	assert.False(t, reloaded.Ativo)

	_, err = s.GetUser(ctx, uuid.New())
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	list, _ := s.ListUsers(ctx, "sec-obras")
	assert.Empty(t, list)
}

func TestListModelosIncludesShared(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateModelo(ctx, &portarias.Modelo{ID: uuid.New(), Nome: "Geral", Ativo: true}))
	require.NoError(t, s.CreateModelo(ctx, &portarias.Modelo{ID: uuid.New(), Nome: "RH", SecretariaID: "sec-rh", Ativo: true}))
	require.NoError(t, s.CreateModelo(ctx, &portarias.Modelo{ID: uuid.New(), Nome: "Obras", SecretariaID: "sec-obras", Ativo: true}))

	list, err := s.ListModelos(ctx, "sec-rh")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Geral", list[0].Nome)
	assert.Equal(t, "RH", list[1].Nome)

	all, _ := s.ListModelos(ctx, "")
	assert.Len(t, all, 3)
}

func TestListEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	pid := uuid.New()
	require.NoError(t, s.WithinTx(ctx, func(repo portarias.Repository) error {
		for i := 0; i < 3; i++ {
			msg := []string{"primeira", "segunda", "terceira"}[i]
			if err := repo.AppendEntry(ctx, &feed.Entry{ID: uuid.New(), Mensagem: msg, PortariaID: &pid, SecretariaID: "sec-rh"}); err != nil {
				return err
			}
		}
		return repo.AppendEntry(ctx, &feed.Entry{ID: uuid.New(), Mensagem: "outra", SecretariaID: "sec-obras"})
	}))

	entries, err := s.ListEntries(ctx, feed.Filter{PortariaID: &pid, Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "terceira", entries[0].Mensagem)
	assert.Equal(t, "segunda", entries[1].Mensagem)

	obras, _ := s.ListEntries(ctx, feed.Filter{SecretariaID: "sec-obras"})
	assert.Len(t, obras, 1)
}

func TestCancelledContextDoesNotCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New()
	p := newPortaria("sec-rh")

	err := s.WithinTx(ctx, func(repo portarias.Repository) error {
		cancel()
		return repo.CreatePortaria(ctx, p)
	})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.GetPortaria(context.Background(), p.ID)
	assert.Error(t, err)
}
