// Package postgres persists the application state with gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/config"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/portarias"
	"docs-cataguases/portal-backend/internal/users"
)

const uniqueViolation = "23505"

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open connects, sizes the pool and optionally migrates the schema.
func Open(cfg config.DatabaseConfig, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.MaxConnections > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	s := New(db, logger)
	if cfg.AutoMigrate {
		if err := s.Migrate(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// Migrate creates or updates every table.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&users.User{},
		&portarias.Modelo{},
		&portarias.Portaria{},
		&numbering.Ledger{},
		&feed.Entry{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	s.logger.Info("Database schema migrated")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	if err != nil {
		return translate(err, "transaction failed")
	}
	return nil
}

// WithinTx implements portarias.Store.
func (s *Store) WithinTx(ctx context.Context, fn func(repo portarias.Repository) error) error {
	return s.transaction(ctx, func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

// WithinLedgerTx implements numbering.Store.
func (s *Store) WithinLedgerTx(ctx context.Context, fn func(repo numbering.Repository) error) error {
	return s.transaction(ctx, func(db *gorm.DB) error {
		return fn(&tx{db: db})
	})
}

func (s *Store) GetPortaria(ctx context.Context, id uuid.UUID) (*portarias.Portaria, error) {
	return (&tx{db: s.db.WithContext(ctx)}).GetPortaria(ctx, id)
}

func (s *Store) ListPortarias(ctx context.Context, filter portarias.ListFilter) ([]portarias.Portaria, error) {
	q := s.db.WithContext(ctx).Model(&portarias.Portaria{})
	if filter.SecretariaID != "" {
		q = q.Where("secretaria_id = ?", filter.SecretariaID)
	}
	if filter.SetorID != "" {
		q = q.Where("setor_id = ?", filter.SetorID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Ano > 0 {
		q = q.Where("ano_numeracao = ?", filter.Ano)
	}
	if filter.CriadoPorID != nil {
		q = q.Where("criado_por_id = ?", *filter.CriadoPorID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var list []portarias.Portaria
	if err := q.Order("created_at DESC, id").Find(&list).Error; err != nil {
		return nil, translate(err, "failed to list portarias")
	}
	return list, nil
}

func (s *Store) CreateModelo(ctx context.Context, m *portarias.Modelo) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err, "failed to create modelo")
	}
	return nil
}

func (s *Store) GetModelo(ctx context.Context, id uuid.UUID) (*portarias.Modelo, error) {
	return (&tx{db: s.db.WithContext(ctx)}).GetModelo(ctx, id)
}

func (s *Store) ListModelos(ctx context.Context, secretariaID string) ([]portarias.Modelo, error) {
	q := s.db.WithContext(ctx)
	if secretariaID != "" {
		q = q.Where("secretaria_id = '' OR secretaria_id IS NULL OR secretaria_id = ?", secretariaID)
	}
	var list []portarias.Modelo
	if err := q.Order("nome").Find(&list).Error; err != nil {
		return nil, translate(err, "failed to list modelos")
	}
	return list, nil
}

func (s *Store) ListLedgers(ctx context.Context, secretariaID string) ([]numbering.Ledger, error) {
	q := s.db.WithContext(ctx)
	if secretariaID != "" {
		q = q.Where("secretaria_id = ?", secretariaID)
	}
	var list []numbering.Ledger
	if err := q.Order("ano DESC, secretaria_id, setor_id").Find(&list).Error; err != nil {
		return nil, translate(err, "failed to list ledgers")
	}
	return list, nil
}

// ListEntries implements feed.Reader.
func (s *Store) ListEntries(ctx context.Context, filter feed.Filter) ([]feed.Entry, error) {
	q := s.db.WithContext(ctx)
	if filter.SecretariaID != "" {
		q = q.Where("secretaria_id = ?", filter.SecretariaID)
	}
	if filter.PortariaID != nil {
		q = q.Where("portaria_id = ?", *filter.PortariaID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var list []feed.Entry
	if err := q.Order("created_at DESC, id").Find(&list).Error; err != nil {
		return nil, translate(err, "failed to list feed entries")
	}
	return list, nil
}

func (s *Store) CreateUser(ctx context.Context, user *users.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return translate(err, "failed to create user")
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	return (&tx{db: s.db.WithContext(ctx)}).GetUser(ctx, id)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	var user users.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err, "failed to load user")
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, secretariaID string) ([]users.User, error) {
	q := s.db.WithContext(ctx)
	if secretariaID != "" {
		q = q.Where("secretaria_id = ?", secretariaID)
	}
	var list []users.User
	if err := q.Order("nome").Find(&list).Error; err != nil {
		return nil, translate(err, "failed to list users")
	}
	return list, nil
}

func (s *Store) UpdateUser(ctx context.Context, user *users.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return translate(err, "failed to update user")
	}
	return nil
}

// translate maps driver errors to application errors. Errors that already
// carry a kind pass through.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if apperrors.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperrors.Conflict("%s: %s", msg, pgErr.ConstraintName)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Conflict("%s: duplicated key", msg)
	}
	return apperrors.Storage(err, "%s", msg)
}
