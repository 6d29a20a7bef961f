package portarias

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docs-cataguases/portal-backend/internal/ability"
	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/config"
	"docs-cataguases/portal-backend/internal/feed"
	"docs-cataguases/portal-backend/internal/numbering"
	"docs-cataguases/portal-backend/internal/users"
	"docs-cataguases/portal-backend/pkg/workflows"
)

// StageNumbering marks a failure of the allocator inside the pipeline.
const StageNumbering RenderStage = "numbering"

// WorkflowConfig tunes the lifecycle.
type WorkflowConfig struct {
	// NumberingStage is config.NumberingOnSubmit or config.NumberingOnSign.
	NumberingStage      string
	RequireReview       bool
	RevertOnFailure     bool
	EscalationThreshold int
}

// WorkflowConfigFrom maps the application configuration.
func WorkflowConfigFrom(cfg config.WorkflowConfig) WorkflowConfig {
	return WorkflowConfig{
		NumberingStage:      cfg.NumberingStage,
		RequireReview:       cfg.RequireReview,
		RevertOnFailure:     cfg.RevertOnFailure,
		EscalationThreshold: cfg.EscalationThreshold,
	}
}

// TransitionRecorder observes committed and failed transitions.
type TransitionRecorder interface {
	TransitionCommitted(action, to string)
	TransitionFailed(action, kind string)
	ReviewEscalated()
}

// WorkflowService applies workflow actions to portarias.
type WorkflowService struct {
	store     Store
	allocator *numbering.Allocator
	renderer  Renderer
	publisher feed.Publisher
	recorder  TransitionRecorder
	machine   *workflows.StateMachine
	cfg       WorkflowConfig
	now       func() time.Time
	logger    *zap.Logger
}

func NewWorkflowService(store Store, allocator *numbering.Allocator, renderer Renderer, publisher feed.Publisher, cfg WorkflowConfig, logger *zap.Logger) *WorkflowService {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = 3
	}
	if cfg.NumberingStage == "" {
		cfg.NumberingStage = config.NumberingOnSubmit
	}
	return &WorkflowService{
		store:     store,
		allocator: allocator,
		renderer:  renderer,
		publisher: publisher,
		machine:   newStateMachine(cfg),
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// WithRecorder sets the transition recorder and returns the service.
func (w *WorkflowService) WithRecorder(r TransitionRecorder) *WorkflowService {
	w.recorder = r
	return w
}

// WithClock replaces the clock used for timestamps.
func (w *WorkflowService) WithClock(now func() time.Time) *WorkflowService {
	w.now = now
	return w
}

func newStateMachine(cfg WorkflowConfig) *workflows.StateMachine {
	rendered := string(StatusPendingReview)
	if !cfg.RequireReview {
		rendered = string(StatusAwaitingSignature)
	}
	s := func(statuses ...Status) []string {
		out := make([]string, len(statuses))
		for i, st := range statuses {
			out[i] = string(st)
		}
		return out
	}
	decidable := s(StatusPendingReview, StatusReviewOpen, StatusReviewAssigned)
	failed := s(StatusGenerationFailed, StatusProcessingFailed)

	return workflows.NewStateMachine(
		workflows.Transition{Action: string(ActionSubmit), From: s(StatusDraft, StatusCorrectionNeeded), To: rendered},
		workflows.Transition{Action: string(ActionSendToReview), From: s(StatusDraft, StatusPendingReview, StatusCorrectionNeeded), To: string(StatusReviewOpen)},
		workflows.Transition{Action: string(ActionAssumeReview), From: s(StatusReviewOpen), To: string(StatusReviewAssigned)},
		workflows.Transition{Action: string(ActionApproveReview), From: s(StatusReviewAssigned), To: string(StatusAwaitingSignature)},
		workflows.Transition{Action: string(ActionRejectReview), From: s(StatusReviewAssigned), To: string(StatusCorrectionNeeded)},
		workflows.Transition{Action: string(ActionApprove), From: decidable, To: string(StatusApproved)},
		workflows.Transition{Action: string(ActionReject), From: decidable, To: string(StatusCorrectionNeeded)},
		workflows.Transition{Action: string(ActionSign), From: s(StatusAwaitingSignature, StatusApproved), To: string(StatusPublished)},
		workflows.Transition{Action: string(ActionRetry), From: failed, To: rendered},
		workflows.Transition{Action: string(ActionRevert), From: failed, To: string(StatusDraft)},
	)
}

type guard func(u *users.User, a *ability.Ability, p *Portaria) bool

func isAssignee(u *users.User, p *Portaria) bool {
	return p.ResponsavelRevisaoID != nil && *p.ResponsavelRevisaoID == u.ID
}

func can(action ability.Action) guard {
	return func(_ *users.User, a *ability.Ability, p *Portaria) bool {
		return a.Can(action, ability.SubjectPortaria, p)
	}
}

var guards = map[Action]guard{
	ActionSubmit: func(u *users.User, a *ability.Ability, p *Portaria) bool {
		return p.CriadoPorID == u.ID || a.Can(ability.ActionSubmeter, ability.SubjectPortaria, p)
	},
	ActionSendToReview:  can(ability.ActionEnviarRevisao),
	ActionAssumeReview:  can(ability.ActionAssumirRevisao),
	ActionApproveReview: decideReview,
	ActionRejectReview:  decideReview,
	ActionApprove:       can(ability.ActionAprovar),
	ActionReject:        can(ability.ActionRejeitar),
	ActionSign:          can(ability.ActionAssinar),
	// Retrying a failed signature signs again, so it needs signing authority.
	ActionRetry: func(u *users.User, a *ability.Ability, p *Portaria) bool {
		if p.AcaoFalhada == ActionSign {
			return a.Can(ability.ActionAssinar, ability.SubjectPortaria, p)
		}
		return a.Can(ability.ActionEditar, ability.SubjectPortaria, p)
	},
	ActionRevert: can(ability.ActionEditar),
}

// decideReview lets the assignee close the review while they can still review
// the document, and lets review managers override.
func decideReview(u *users.User, a *ability.Ability, p *Portaria) bool {
	if isAssignee(u, p) && a.Can(ability.ActionRevisar, ability.SubjectPortaria, p) {
		return true
	}
	return a.Can(ability.ActionGerenciarRevisao, ability.SubjectPortaria, p)
}

// pipelineActions render the document and recover locally on storage failure.
var pipelineActions = map[Action]bool{
	ActionSubmit: true,
	ActionSign:   true,
	ActionRetry:  true,
}

// pipelineFailure carries what the failure record needs out of the rolled back transaction.
type pipelineFailure struct {
	actor *users.User
	stage RenderStage
}

// Transition applies action to the portaria on behalf of actorID. The status
// change and its feed entry commit together or not at all.
func (w *WorkflowService) Transition(ctx context.Context, id uuid.UUID, action Action, actorID uuid.UUID, payload Payload) (*Portaria, error) {
	if _, ok := guards[action]; !ok {
		return nil, apperrors.Validation("unknown action %q", action)
	}

	var (
		result   *Portaria
		entry    *feed.Entry
		failure  *pipelineFailure
		from     Status
		escal    bool
		uploaded string
	)
	err := w.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.LockPortaria(ctx, id)
		if err != nil {
			return err
		}
		from = p.Status

		actor, err := w.loadActor(ctx, repo, actorID)
		if err != nil {
			return err
		}

		target, ok := w.machine.Target(string(action), string(p.Status))
		if !ok {
			return apperrors.Conflict("cannot %s a portaria in status %s", action, p.Status)
		}
		if !guards[action](actor, ability.Build(actor), p) {
			return apperrors.Authorization("%s is not allowed to %s this portaria", actor.Role, action)
		}
		resumeSign := action == ActionRetry && p.AcaoFalhada == ActionSign
		if resumeSign {
			target = string(StatusPublished)
		}
		prevKey := p.PDFKey

		now := w.now()
		e := &feed.Entry{
			ID:           uuid.New(),
			AutorID:      actor.ID,
			PortariaID:   &p.ID,
			SecretariaID: p.SecretariaID,
			SetorID:      p.SetorID,
			CreatedAt:    now,
			Metadata: map[string]interface{}{
				"action":      string(action),
				"status_from": string(from),
				"status_to":   target,
			},
		}

		switch action {
		case ActionSubmit, ActionRetry:
			if resumeSign {
				if stage, err := w.sign(ctx, repo, p, actor, now); err != nil {
					failure = &pipelineFailure{actor: actor, stage: stage}
					return err
				}
				e.Tipo = feed.EventReprocessada
				e.Mensagem = fmt.Sprintf("%s reprocessou a assinatura e publicou a portaria %s", actor.Nome, *p.NumeroOficial)
				break
			}
			p.Status = StatusProcessing
			if action == ActionSubmit && w.cfg.NumberingStage == config.NumberingOnSubmit && !p.Numbered() {
				if err := w.allocate(ctx, repo, p, now); err != nil {
					failure = &pipelineFailure{actor: actor, stage: StageNumbering}
					return err
				}
			}
			if err := w.render(ctx, repo, p, nil, time.Time{}); err != nil {
				failure = &pipelineFailure{actor: actor, stage: StageOf(err)}
				return err
			}
			e.Tipo = feed.EventSubmetida
			e.Mensagem = fmt.Sprintf("%s submeteu a portaria %q", actor.Nome, p.Titulo)
			if action == ActionRetry {
				e.Tipo = feed.EventReprocessada
				e.Mensagem = fmt.Sprintf("%s reprocessou a portaria %q", actor.Nome, p.Titulo)
			}

		case ActionSendToReview:
			e.Tipo = feed.EventEnviadaRevisao
			e.Mensagem = fmt.Sprintf("%s enviou a portaria %q para revisão", actor.Nome, p.Titulo)

		case ActionAssumeReview:
			p.ResponsavelRevisaoID = &actor.ID
			e.Tipo = feed.EventRevisaoAssumida
			e.Mensagem = fmt.Sprintf("%s assumiu a revisão da portaria %q", actor.Nome, p.Titulo)

		case ActionApproveReview:
			e.Tipo = feed.EventRevisaoAprovada
			e.Mensagem = fmt.Sprintf("%s aprovou a revisão da portaria %q", actor.Nome, p.Titulo)

		case ActionRejectReview:
			note := strings.TrimSpace(payload.Observacao)
			if note == "" {
				return apperrors.Validation("a rejection note is required")
			}
			p.RevisoesCount++
			p.ResponsavelRevisaoID = nil
			e.Tipo = feed.EventRevisaoRejeitada
			e.Mensagem = fmt.Sprintf("%s rejeitou a revisão da portaria %q: %s", actor.Nome, p.Titulo, note)
			e.Metadata["observacao"] = note
			e.Metadata["revisoes_count"] = p.RevisoesCount
			if p.RevisoesCount >= w.cfg.EscalationThreshold {
				e.Mensagem += " " + feed.EscalationMarker
				e.Metadata["escalonada"] = true
				escal = true
			}

		case ActionApprove:
			e.Tipo = feed.EventAprovada
			e.Mensagem = fmt.Sprintf("%s aprovou a portaria %q", actor.Nome, p.Titulo)

		case ActionReject:
			reason := strings.TrimSpace(payload.Observacao)
			if reason == "" {
				return apperrors.Validation("a rejection reason is required")
			}
			p.ResponsavelRevisaoID = nil
			e.Tipo = feed.EventRejeitada
			e.Mensagem = fmt.Sprintf("%s rejeitou a portaria %q: %s", actor.Nome, p.Titulo, reason)
			e.Metadata["observacao"] = reason

		case ActionSign:
			if stage, err := w.sign(ctx, repo, p, actor, now); err != nil {
				failure = &pipelineFailure{actor: actor, stage: stage}
				return err
			}
			e.Tipo = feed.EventPublicada
			e.Mensagem = fmt.Sprintf("%s assinou e publicou a portaria %s", actor.Nome, *p.NumeroOficial)

		case ActionRevert:
			e.Tipo = feed.EventRevertida
			e.Mensagem = fmt.Sprintf("%s devolveu a portaria %q para rascunho", actor.Nome, p.Titulo)
		}

		if p.PDFKey != prevKey {
			uploaded = p.PDFKey
		}
		if p.Numbered() {
			e.Metadata["numero_oficial"] = *p.NumeroOficial
		}
		p.Status = Status(target)
		p.AcaoFalhada = ""
		p.UpdatedAt = now

		if err := repo.UpdatePortaria(ctx, p); err != nil {
			return err
		}
		if err := repo.AppendEntry(ctx, e); err != nil {
			return err
		}
		result, entry = p, e
		return nil
	})
	if err != nil {
		if uploaded != "" {
			w.discard(ctx, id, uploaded)
		}
		if w.recorder != nil {
			w.recorder.TransitionFailed(string(action), string(apperrors.KindOf(err)))
		}
		if failure != nil && pipelineActions[action] && apperrors.Is(err, apperrors.KindStorage) {
			return w.recordFailure(ctx, id, action, from, failure, err)
		}
		return nil, err
	}

	w.publish(*entry)
	if w.recorder != nil {
		w.recorder.TransitionCommitted(string(action), string(result.Status))
		if escal {
			w.recorder.ReviewEscalated()
		}
	}
	if escal {
		w.logger.Warn("Review rejection threshold reached",
			zap.String("portaria_id", id.String()),
			zap.Int("revisoes_count", result.RevisoesCount),
			zap.Int("threshold", w.cfg.EscalationThreshold))
	}
	w.logger.Info("Portaria transitioned",
		zap.String("portaria_id", id.String()),
		zap.String("action", string(action)),
		zap.String("from", string(from)),
		zap.String("to", string(result.Status)),
		zap.String("actor_id", actorID.String()))
	return result, nil
}

func (w *WorkflowService) loadActor(ctx context.Context, repo Repository, actorID uuid.UUID) (*users.User, error) {
	actor, err := repo.GetUser(ctx, actorID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil, apperrors.Authorization("unknown actor %s", actorID)
		}
		return nil, err
	}
	if !actor.Ativo {
		return nil, apperrors.Authorization("user %s is inactive", actorID)
	}
	return actor, nil
}

func (w *WorkflowService) allocate(ctx context.Context, repo Repository, p *Portaria, now time.Time) error {
	ano := now.Year()
	numero, err := w.allocator.AllocateWith(ctx, repo.Ledgers(), p.SecretariaID, p.SetorID, ano)
	if err != nil {
		return err
	}
	p.NumeroOficial = &numero
	p.AnoNumeracao = ano
	return nil
}

// sign numbers the portaria if needed, renders the signed rendition and
// stamps the signature. The stage tells where a failure happened.
func (w *WorkflowService) sign(ctx context.Context, repo Repository, p *Portaria, signer *users.User, now time.Time) (RenderStage, error) {
	if !p.Numbered() {
		if err := w.allocate(ctx, repo, p, now); err != nil {
			return StageNumbering, err
		}
	}
	if err := w.render(ctx, repo, p, signer, now); err != nil {
		return StageOf(err), err
	}
	p.DataPublicacao = &now
	p.AssinadoPorID = &signer.ID
	p.AssinadoEm = &now
	return "", nil
}

// discard removes a rendition uploaded by a transaction that rolled back.
func (w *WorkflowService) discard(ctx context.Context, id uuid.UUID, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.renderer.Discard(ctx, key); err != nil {
		w.logger.Warn("Failed to discard orphaned rendition",
			zap.String("portaria_id", id.String()),
			zap.String("pdf_key", key),
			zap.Error(err))
	}
}

func (w *WorkflowService) render(ctx context.Context, repo Repository, p *Portaria, signer *users.User, signedAt time.Time) error {
	modelo, err := repo.GetModelo(ctx, p.ModeloID)
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return apperrors.Storage(&RenderError{Stage: StageGeneration, Err: err}, "failed to render portaria")
		}
		return err
	}
	if missing := missingVariables(DeclaredVariables(modelo), p.DadosFormulario); len(missing) > 0 {
		return apperrors.Validation("missing form fields: %s", strings.Join(missing, ", "))
	}

	res, err := w.renderer.Render(ctx, RenderInput{Portaria: p, Modelo: modelo, Signer: signer, SignedAt: signedAt})
	if err != nil {
		return apperrors.Storage(err, "failed to render portaria")
	}
	p.PDFKey = res.PDFKey
	p.HashIntegridade = res.Hash
	return nil
}

// recordFailure runs after the pipeline transaction rolled back. It appends
// the failure entry and, unless the document reverts, parks it in a failed status.
func (w *WorkflowService) recordFailure(ctx context.Context, id uuid.UUID, action Action, from Status, failure *pipelineFailure, cause error) (*Portaria, error) {
	var (
		current *Portaria
		entry   *feed.Entry
	)
	err := w.store.WithinTx(ctx, func(repo Repository) error {
		p, err := repo.LockPortaria(ctx, id)
		if err != nil {
			return err
		}

		now := w.now()
		if !w.cfg.RevertOnFailure && p.Status == from {
			p.Status = StatusProcessingFailed
			if failure.stage == StageGeneration {
				p.Status = StatusGenerationFailed
			}
			if action != ActionRetry {
				p.AcaoFalhada = action
			}
			p.UpdatedAt = now
			if err := repo.UpdatePortaria(ctx, p); err != nil {
				return err
			}
		}

		e := &feed.Entry{
			ID:           uuid.New(),
			Tipo:         feed.EventFalhaProcessamento,
			Mensagem:     fmt.Sprintf("Falha ao processar a portaria %q (%s): %v", p.Titulo, action, cause),
			AutorID:      failure.actor.ID,
			PortariaID:   &p.ID,
			SecretariaID: p.SecretariaID,
			SetorID:      p.SetorID,
			CreatedAt:    now,
			Metadata: map[string]interface{}{
				"action":      string(action),
				"stage":       string(failure.stage),
				"status_from": string(from),
				"status_to":   string(p.Status),
			},
		}
		if p.AcaoFalhada != "" {
			e.Metadata["acao_falhada"] = string(p.AcaoFalhada)
		}
		if err := repo.AppendEntry(ctx, e); err != nil {
			return err
		}
		current, entry = p, e
		return nil
	})
	if err != nil {
		w.logger.Error("Failed to record pipeline failure",
			zap.String("portaria_id", id.String()),
			zap.String("action", string(action)),
			zap.NamedError("cause", cause),
			zap.Error(err))
		return nil, cause
	}

	w.publish(*entry)
	w.logger.Warn("Portaria pipeline failed",
		zap.String("portaria_id", id.String()),
		zap.String("action", string(action)),
		zap.String("stage", string(failure.stage)),
		zap.String("status", string(current.Status)),
		zap.Error(cause))
	return current, cause
}

func (w *WorkflowService) publish(entry feed.Entry) {
	if w.publisher != nil {
		w.publisher.Publish(entry)
	}
}

// AvailableActions lists the actions actor may apply to the portaria now.
func (w *WorkflowService) AvailableActions(ctx context.Context, id uuid.UUID, actor *users.User) ([]Action, error) {
	p, err := w.store.GetPortaria(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ability.Check(actor, ability.ActionLer, ability.SubjectPortaria, p); err != nil {
		return nil, err
	}

	a := ability.Build(actor)
	actions := []Action{}
	for _, name := range w.machine.AllowedActions(string(p.Status)) {
		action := Action(name)
		if guards[action](actor, a, p) {
			actions = append(actions, action)
		}
	}
	return actions, nil
}
