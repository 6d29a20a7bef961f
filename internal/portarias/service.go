package portarias

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/ability"
	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/users"
	"docs-cataguases/portal-backend/pkg/export"
	"docs-cataguases/portal-backend/pkg/security"
	"docs-cataguases/portal-backend/pkg/storage"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// Service manages portarias and their templates outside of the workflow.
type Service struct {
	store      Store
	storage    storage.Client
	validator  security.Validator
	publisher  feed.Publisher
	presignTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewService(store Store, client storage.Client, publisher feed.Publisher, presignTTL time.Duration, logger *zap.Logger) *Service {
	if presignTTL <= 0 {
		presignTTL = 15 * time.Minute
	}
	return &Service{
		store:      store,
		storage:    client,
		validator:  security.NewValidator(),
		publisher:  publisher,
		presignTTL: presignTTL,
		now:        time.Now,
		logger:     logger,
	}
}

func (s *Service) CreatePortaria(ctx context.Context, actor *users.User, req CreatePortariaRequest) (*Portaria, error) {
	if actor == nil {
		return nil, apperrors.Authorization("authentication required")
	}
	titulo := strings.TrimSpace(req.Titulo)
	if titulo == "" {
		return nil, apperrors.Validation("titulo is required")
	}
	secretaria := strings.TrimSpace(req.SecretariaID)
	if secretaria == "" {
		secretaria = actor.SecretariaID
	}
	if secretaria == "" {
		return nil, apperrors.Validation("secretaria_id is required")
	}
	setor := strings.TrimSpace(req.SetorID)
	if setor == "" && secretaria == actor.SecretariaID {
		setor = actor.SetorID
	}

	now := s.now()
	p := &Portaria{
		ID:              uuid.New(),
		Titulo:          titulo,
		Descricao:       req.Descricao,
		Status:          StatusDraft,
		CriadoPorID:     actor.ID,
		SecretariaID:    secretaria,
		SetorID:         setor,
		ModeloID:        req.ModeloID,
		DadosFormulario: req.DadosFormulario,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.DadosFormulario == nil {
		p.DadosFormulario = map[string]interface{}{}
	}
	if err := ability.Check(actor, ability.ActionCriar, ability.SubjectPortaria, p); err != nil {
		return nil, err
	}

	var entry *feed.Entry
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		modelo, err := repo.GetModelo(ctx, req.ModeloID)
		if err != nil {
			if apperrors.Is(err, apperrors.KindNotFound) {
				return apperrors.Validation("modelo %s does not exist", req.ModeloID)
			}
			return err
		}
		if !modelo.Ativo {
			return apperrors.Validation("modelo %s is inactive", modelo.ID)
		}
		if modelo.SecretariaID != "" && modelo.SecretariaID != secretaria {
			return apperrors.Validation("modelo %s belongs to another secretaria", modelo.ID)
		}

		if err := repo.CreatePortaria(ctx, p); err != nil {
			return err
		}
		entry = s.entry(feed.EventCriada, actor, p, fmt.Sprintf("%s criou a portaria %q", actor.Nome, p.Titulo))
		return repo.AppendEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.publish(entry)
	s.logger.Info("Portaria created",
		zap.String("portaria_id", p.ID.String()),
		zap.String("secretaria_id", p.SecretariaID),
		zap.String("actor_id", actor.ID.String()))
	return p, nil
}

func (s *Service) GetPortaria(ctx context.Context, actor *users.User, id uuid.UUID) (*Portaria, error) {
	p, err := s.store.GetPortaria(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ability.Check(actor, ability.ActionLer, ability.SubjectPortaria, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPortarias returns the portarias matching filter that actor may read.
func (s *Service) ListPortarias(ctx context.Context, actor *users.User, filter ListFilter) ([]Portaria, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	return s.visible(ctx, actor, filter)
}

func (s *Service) visible(ctx context.Context, actor *users.User, filter ListFilter) ([]Portaria, error) {
	if actor == nil || !actor.Ativo {
		return nil, apperrors.Authorization("authentication required")
	}
	a := ability.Build(actor)
	if !a.Can(ability.ActionLer, ability.SubjectPortaria, ability.Attributes{}) && filter.SecretariaID == "" {
		if actor.SecretariaID == "" {
			return nil, apperrors.Authorization("cannot list portarias without a secretaria")
		}
		filter.SecretariaID = actor.SecretariaID
	}

	list, err := s.store.ListPortarias(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Portaria, 0, len(list))
	for i := range list {
		if a.Can(ability.ActionLer, ability.SubjectPortaria, &list[i]) {
			out = append(out, list[i])
		}
	}
	return out, nil
}

// UpdatePortaria changes the content of a portaria that is still editable.
func (s *Service) UpdatePortaria(ctx context.Context, actor *users.User, id uuid.UUID, req UpdatePortariaRequest) (*Portaria, error) {
	var (
		result *Portaria
		entry  *feed.Entry
	)
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.LockPortaria(ctx, id)
		if err != nil {
			return err
		}
		if err := ability.Check(actor, ability.ActionEditar, ability.SubjectPortaria, p); err != nil {
			return err
		}
		if !p.Status.Editable() {
			return apperrors.Conflict("portaria in status %s cannot be edited", p.Status)
		}

		if req.Titulo != nil {
			titulo := strings.TrimSpace(*req.Titulo)
			if titulo == "" {
				return apperrors.Validation("titulo cannot be empty")
			}
			p.Titulo = titulo
		}
		if req.Descricao != nil {
			p.Descricao = *req.Descricao
		}
		if req.DadosFormulario != nil {
			p.DadosFormulario = req.DadosFormulario
		}
		p.UpdatedAt = s.now()

		if err := repo.UpdatePortaria(ctx, p); err != nil {
			return err
		}
		entry = s.entry(feed.EventEditada, actor, p, fmt.Sprintf("%s editou a portaria %q", actor.Nome, p.Titulo))
		if err := repo.AppendEntry(ctx, entry); err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(entry)
	return result, nil
}

// DeletePortaria removes a draft.
func (s *Service) DeletePortaria(ctx context.Context, actor *users.User, id uuid.UUID) error {
	var entry *feed.Entry
	err := s.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.LockPortaria(ctx, id)
		if err != nil {
			return err
		}
		if err := ability.Check(actor, ability.ActionDeletar, ability.SubjectPortaria, p); err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return apperrors.Conflict("only drafts can be deleted, portaria is %s", p.Status)
		}
		if err := repo.DeletePortaria(ctx, id); err != nil {
			return err
		}
		entry = s.entry(feed.EventExcluida, actor, p, fmt.Sprintf("%s excluiu a portaria %q", actor.Nome, p.Titulo))
		return repo.AppendEntry(ctx, entry)
	})
	if err != nil {
		return err
	}
	s.publish(entry)
	s.logger.Info("Portaria deleted", zap.String("portaria_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return nil
}

// DownloadLink returns a presigned URL to the rendered PDF.
func (s *Service) DownloadLink(ctx context.Context, actor *users.User, id uuid.UUID) (*DownloadLink, error) {
	p, err := s.GetPortaria(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.PDFKey == "" {
		return nil, apperrors.NotFound("portaria %s has not been rendered", id)
	}
	url, err := s.storage.GetPresignedURL(ctx, p.PDFKey, s.presignTTL)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to presign download")
	}
	return &DownloadLink{URL: url, ExpiresAt: s.now().Add(s.presignTTL)}, nil
}

// VerifyIntegrity re-hashes the stored PDF and compares it with the recorded hash.
func (s *Service) VerifyIntegrity(ctx context.Context, actor *users.User, id uuid.UUID) (*security.IntegrityInfo, error) {
	p, err := s.GetPortaria(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.PDFKey == "" || p.HashIntegridade == "" {
		return nil, apperrors.NotFound("portaria %s has not been rendered", id)
	}
	body, err := s.storage.Download(ctx, p.PDFKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperrors.NotFound("rendered file of portaria %s is missing", id)
		}
		return nil, apperrors.Storage(err, "failed to download rendered file")
	}
	defer body.Close()

	info, err := s.validator.Verify(ctx, body, p.HashIntegridade)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to hash rendered file")
	}
	if !info.IsValid {
		s.logger.Warn("Integrity check failed",
			zap.String("portaria_id", id.String()),
			zap.String("expected", info.Expected),
			zap.String("actual", info.Actual))
	}
	return info, nil
}

var registerColumns = []export.Column{
	{Key: "numero", Label: "Número", Width: 14},
	{Key: "ano", Label: "Ano", Width: 8},
	{Key: "titulo", Label: "Título", Width: 48},
	{Key: "secretaria", Label: "Secretaria", Width: 18},
	{Key: "setor", Label: "Setor", Width: 14},
	{Key: "data_publicacao", Label: "Publicação", Width: 18},
	{Key: "hash", Label: "Hash SHA-256", Width: 66},
}

// ExportRegister writes the published portarias visible to actor as an XLSX register.
func (s *Service) ExportRegister(ctx context.Context, actor *users.User, filter ListFilter, w io.Writer) error {
	filter.Status = StatusPublished
	filter.Limit, filter.Offset = 0, 0
	list, err := s.visible(ctx, actor, filter)
	if err != nil {
		return err
	}

	exporter, err := export.NewExcelExporter(export.DefaultExcelOptions())
	if err != nil {
		return apperrors.Storage(err, "failed to create register")
	}
	defer exporter.Close()

	if err := exporter.WriteHeader(registerColumns); err != nil {
		return apperrors.Storage(err, "failed to write register header")
	}
	rows := make([]map[string]interface{}, 0, len(list))
	for _, p := range list {
		numero := ""
		if p.Numbered() {
			numero = *p.NumeroOficial
		}
		rows = append(rows, map[string]interface{}{
			"numero":          numero,
			"ano":             p.AnoNumeracao,
			"titulo":          p.Titulo,
			"secretaria":      p.SecretariaID,
			"setor":           p.SetorID,
			"data_publicacao": p.DataPublicacao,
			"hash":            p.HashIntegridade,
		})
	}
	if err := exporter.WriteRows(rows); err != nil {
		return apperrors.Storage(err, "failed to write register rows")
	}
	if err := exporter.WriteTo(w); err != nil {
		return apperrors.Storage(err, "failed to write register")
	}
	return nil
}

func (s *Service) CreateModelo(ctx context.Context, actor *users.User, req CreateModeloRequest) (*Modelo, error) {
	nome := strings.TrimSpace(req.Nome)
	if nome == "" || strings.TrimSpace(req.Conteudo) == "" {
		return nil, apperrors.Validation("nome and conteudo are required")
	}
	now := s.now()
	m := &Modelo{
		ID:           uuid.New(),
		Nome:         nome,
		Descricao:    req.Descricao,
		Conteudo:     req.Conteudo,
		Variaveis:    req.Variaveis,
		SecretariaID: strings.TrimSpace(req.SecretariaID),
		Ativo:        true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := ability.Check(actor, ability.ActionCriar, ability.SubjectModelo, m); err != nil {
		return nil, err
	}
	if len(m.Variaveis) == 0 {
		m.Variaveis = DeclaredVariables(m)
	}
	if err := s.store.CreateModelo(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("Modelo created", zap.String("modelo_id", m.ID.String()), zap.Strings("variaveis", m.Variaveis))
	return m, nil
}

func (s *Service) GetModelo(ctx context.Context, actor *users.User, id uuid.UUID) (*Modelo, error) {
	m, err := s.store.GetModelo(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ability.Check(actor, ability.ActionLer, ability.SubjectModelo, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListModelos returns the shared templates plus those of secretariaID.
func (s *Service) ListModelos(ctx context.Context, actor *users.User, secretariaID string) ([]Modelo, error) {
	if err := ability.Check(actor, ability.ActionLer, ability.SubjectModelo, nil); err != nil {
		return nil, err
	}
	if secretariaID == "" {
		secretariaID = actor.SecretariaID
	}
	return s.store.ListModelos(ctx, secretariaID)
}

func (s *Service) entry(tipo feed.EventType, actor *users.User, p *Portaria, msg string) *feed.Entry {
	return &feed.Entry{
		ID:           uuid.New(),
		Tipo:         tipo,
		Mensagem:     msg,
		AutorID:      actor.ID,
		PortariaID:   &p.ID,
		SecretariaID: p.SecretariaID,
		SetorID:      p.SetorID,
		Metadata:     map[string]interface{}{"status": string(p.Status)},
		CreatedAt:    s.now(),
	}
}

func (s *Service) publish(entry *feed.Entry) {
	if s.publisher != nil && entry != nil {
		s.publisher.Publish(*entry)
	}
}
