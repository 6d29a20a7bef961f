package numbering

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/apperrors"
)

// Recorder is notified of every number handed out.
type Recorder interface {
	NumberAllocated(secretariaID string)
}

// Allocator hands out official portaria numbers.
type Allocator struct {
	store         Store
	defaultFormat string
	recorder      Recorder
	now           func() time.Time
	logger        *zap.Logger
}

func NewAllocator(store Store, defaultFormat string, logger *zap.Logger) *Allocator {
	if defaultFormat == "" {
		defaultFormat = "XXX/YYYY"
	}
	return &Allocator{
		store:         store,
		defaultFormat: defaultFormat,
		now:           time.Now,
		logger:        logger,
	}
}

// WithRecorder sets the recorder and returns the allocator.
func (a *Allocator) WithRecorder(r Recorder) *Allocator {
	a.recorder = r
	return a
}

// WithClock replaces the clock used to pick the current year.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// CurrentYear is the year used when a caller passes ano <= 0.
func (a *Allocator) CurrentYear() int {
	return a.now().Year()
}

func (a *Allocator) resolve(secretariaID, setorID string, ano int) (Scope, int, error) {
	secretariaID = strings.TrimSpace(secretariaID)
	if secretariaID == "" {
		return Scope{}, 0, apperrors.Validation("secretaria is required for numbering")
	}
	if ano <= 0 {
		ano = a.CurrentYear()
	}
	return Scope{SecretariaID: secretariaID, SetorID: strings.TrimSpace(setorID)}, ano, nil
}

func (a *Allocator) defaults(scope Scope, ano int) Ledger {
	now := a.now()
	return Ledger{
		ID:            uuid.New(),
		SecretariaID:  scope.SecretariaID,
		SetorID:       scope.SetorID,
		Ano:           ano,
		ProximoNumero: 1,
		Formato:       a.defaultFormat,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Allocate issues the next number of the scope and year in its own transaction.
func (a *Allocator) Allocate(ctx context.Context, secretariaID, setorID string, ano int) (string, error) {
	var numero string
	err := a.store.WithinLedgerTx(ctx, func(repo Repository) error {
		var err error
		numero, err = a.AllocateWith(ctx, repo, secretariaID, setorID, ano)
		return err
	})
	if err != nil {
		return "", err
	}
	return numero, nil
}

// AllocateWith issues the next number using a repository bound to a
// transaction the caller owns. Nothing is consumed if that transaction rolls back.
func (a *Allocator) AllocateWith(ctx context.Context, repo Repository, secretariaID, setorID string, ano int) (string, error) {
	scope, ano, err := a.resolve(secretariaID, setorID, ano)
	if err != nil {
		return "", err
	}

	ledger, err := repo.EnsureLedger(ctx, scope, ano, a.defaults(scope, ano))
	if err != nil {
		return "", wrapStorage(err, "failed to load numbering ledger")
	}

	numero, err := Format(ledger.Formato, ledger.ProximoNumero, ledger.Ano)
	if err != nil {
		return "", err
	}

	ledger.ProximoNumero++
	ledger.UpdatedAt = a.now()
	if err := repo.SaveLedger(ctx, ledger); err != nil {
		return "", wrapStorage(err, "failed to save numbering ledger")
	}

	if a.recorder != nil {
		a.recorder.NumberAllocated(scope.SecretariaID)
	}
	a.logger.Info("Official number allocated",
		zap.String("secretaria_id", scope.SecretariaID),
		zap.String("setor_id", scope.SetorID),
		zap.Int("ano", ano),
		zap.String("numero", numero))
	return numero, nil
}

// Peek returns the number the next allocation would issue without consuming
// it. A ledger that does not exist yet is previewed from the defaults and is
// not created.
func (a *Allocator) Peek(ctx context.Context, secretariaID, setorID string, ano int) (string, error) {
	scope, year, err := a.resolve(secretariaID, setorID, ano)
	if err != nil {
		return "", err
	}

	var numero string
	err = a.store.WithinLedgerTx(ctx, func(repo Repository) error {
		ledger, err := repo.FindLedger(ctx, scope, year)
		if apperrors.Is(err, apperrors.KindNotFound) {
			d := a.defaults(scope, year)
			ledger, err = &d, nil
		}
		if err != nil {
			return wrapStorage(err, "failed to load numbering ledger")
		}
		numero, err = Format(ledger.Formato, ledger.ProximoNumero, ledger.Ano)
		return err
	})
	if err != nil {
		return "", err
	}
	return numero, nil
}

// Configure changes the format or raises the next number of a ledger.
func (a *Allocator) Configure(ctx context.Context, req ConfigureRequest) (*Ledger, error) {
	if req.Formato != nil {
		if err := ValidatePattern(*req.Formato); err != nil {
			return nil, err
		}
	}

	var result *Ledger
	err := a.store.WithinLedgerTx(ctx, func(repo Repository) error {
		scope, ano, err := a.resolve(req.SecretariaID, req.SetorID, req.Ano)
		if err != nil {
			return err
		}
		ledger, err := repo.EnsureLedger(ctx, scope, ano, a.defaults(scope, ano))
		if err != nil {
			return wrapStorage(err, "failed to load numbering ledger")
		}

		if req.ProximoNumero != nil {
			if *req.ProximoNumero < ledger.ProximoNumero {
				return apperrors.Validation("proximo_numero cannot go back from %d to %d",
					ledger.ProximoNumero, *req.ProximoNumero)
			}
			ledger.ProximoNumero = *req.ProximoNumero
		}
		if req.Formato != nil {
			ledger.Formato = *req.Formato
		}
		ledger.UpdatedAt = a.now()

		if err := repo.SaveLedger(ctx, ledger); err != nil {
			return wrapStorage(err, "failed to save numbering ledger")
		}
		result = ledger
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Numbering ledger configured",
		zap.String("secretaria_id", result.SecretariaID),
		zap.String("setor_id", result.SetorID),
		zap.Int("ano", result.Ano),
		zap.Int("proximo_numero", result.ProximoNumero),
		zap.String("formato", result.Formato))
	return result, nil
}

// List returns the ledgers of a secretaria, or all ledgers when it is empty.
func (a *Allocator) List(ctx context.Context, secretariaID string) ([]Ledger, error) {
	ledgers, err := a.store.ListLedgers(ctx, secretariaID)
	if err != nil {
		return nil, wrapStorage(err, "failed to list numbering ledgers")
	}
	return ledgers, nil
}

func wrapStorage(err error, msg string) error {
	if apperrors.KindOf(err) != "" {
		return err
	}
	return apperrors.Storage(err, "%s", msg)
}
