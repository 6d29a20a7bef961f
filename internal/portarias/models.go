package portarias

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"

	"docs-cataguases/portal-backend/internal/ability"
)

// Status is the lifecycle state of a portaria
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusProcessing        Status = "PROCESSING"
	StatusPendingReview     Status = "PENDING_REVIEW"
	StatusReviewOpen        Status = "REVIEW_OPEN"
	StatusReviewAssigned    Status = "REVIEW_ASSIGNED"
	StatusApproved          Status = "APPROVED"
	StatusCorrectionNeeded  Status = "CORRECTION_NEEDED"
	StatusAwaitingSignature Status = "AWAITING_SIGNATURE"
	StatusPublished         Status = "PUBLISHED"
	StatusGenerationFailed  Status = "GENERATION_FAILED"
	StatusProcessingFailed  Status = "PROCESSING_FAILED"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{
		StatusDraft, StatusProcessing, StatusPendingReview, StatusReviewOpen, StatusReviewAssigned,
		StatusApproved, StatusCorrectionNeeded, StatusAwaitingSignature, StatusPublished,
		StatusGenerationFailed, StatusProcessingFailed,
	}
}

func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

// Editable reports whether content may still change in this status.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusCorrectionNeeded
}

// Action is a workflow command
type Action string

const (
	ActionSubmit        Action = "SUBMIT"
	ActionSendToReview  Action = "SEND_TO_REVIEW"
	ActionAssumeReview  Action = "ASSUME_REVIEW"
	ActionApproveReview Action = "APPROVE_REVIEW"
	ActionRejectReview  Action = "REJECT_REVIEW"
	ActionApprove       Action = "APPROVE"
	ActionReject        Action = "REJECT"
	ActionSign          Action = "SIGN"
	ActionRetry         Action = "RETRY"
	ActionRevert        Action = "REVERT"
)

// Portaria is an administrative ordinance
type Portaria struct {
	ID                   uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Titulo               string            `gorm:"not null" json:"titulo"`
	Descricao            string            `gorm:"type:text" json:"descricao,omitempty"`
	NumeroOficial        *string           `gorm:"uniqueIndex:idx_portaria_numero_escopo" json:"numero_oficial,omitempty"`
	AnoNumeracao         int               `gorm:"uniqueIndex:idx_portaria_numero_escopo" json:"ano_numeracao,omitempty"`
	Status               Status            `gorm:"type:varchar(30);not null;index" json:"status"`
	CriadoPorID          uuid.UUID         `gorm:"type:uuid;not null;index" json:"criado_por_id"`
	SecretariaID         string            `gorm:"not null;index;uniqueIndex:idx_portaria_numero_escopo" json:"secretaria_id"`
	SetorID              string            `gorm:"not null;default:'';uniqueIndex:idx_portaria_numero_escopo" json:"setor_id,omitempty"`
	ModeloID             uuid.UUID         `gorm:"type:uuid;not null" json:"modelo_id"`
	DadosFormulario      datatypes.JSONMap `gorm:"type:jsonb" json:"dados_formulario"`
	PDFKey               string            `json:"pdf_key,omitempty"`
	HashIntegridade      string            `json:"hash_integridade,omitempty"`
	ResponsavelRevisaoID *uuid.UUID        `gorm:"type:uuid" json:"responsavel_revisao_id,omitempty"`
	RevisoesCount        int               `gorm:"not null;default:0" json:"revisoes_count"`
	// AcaoFalhada is the pipeline action a failed status came from; RETRY resumes it.
	AcaoFalhada          Action            `gorm:"type:varchar(30)" json:"acao_falhada,omitempty"`
	DataPublicacao       *time.Time        `json:"data_publicacao,omitempty"`
	AssinadoPorID        *uuid.UUID        `gorm:"type:uuid" json:"assinado_por_id,omitempty"`
	AssinadoEm           *time.Time        `json:"assinado_em,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

func (Portaria) TableName() string {
	return "portarias"
}

// AbilityAttributes exposes the fields that ability conditions refer to.
func (p *Portaria) AbilityAttributes() map[string]string {
	attrs := map[string]string{
		ability.AttrSecretariaID: p.SecretariaID,
		ability.AttrCriadoPorID:  p.CriadoPorID.String(),
		ability.AttrStatus:       string(p.Status),
	}
	if p.ResponsavelRevisaoID != nil {
		attrs[ability.AttrResponsavelRevisaoID] = p.ResponsavelRevisaoID.String()
	}
	return attrs
}

// Numbered reports whether an official number has been assigned.
func (p *Portaria) Numbered() bool {
	return p.NumeroOficial != nil && *p.NumeroOficial != ""
}

// Modelo is a portaria template. Conteudo holds {{variavel}} placeholders.
type Modelo struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Nome         string         `gorm:"not null" json:"nome"`
	Descricao    string         `gorm:"type:text" json:"descricao,omitempty"`
	Conteudo     string         `gorm:"type:text;not null" json:"conteudo"`
	Variaveis    pq.StringArray `gorm:"type:text[]" json:"variaveis"`
	SecretariaID string         `gorm:"index" json:"secretaria_id,omitempty"`
	Ativo        bool           `gorm:"not null;default:true" json:"ativo"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Modelo) TableName() string {
	return "modelos"
}

// AbilityAttributes scopes a template to its secretaria.
func (m *Modelo) AbilityAttributes() map[string]string {
	return map[string]string{ability.AttrSecretariaID: m.SecretariaID}
}

type CreatePortariaRequest struct {
	Titulo          string                 `json:"titulo" binding:"required"`
	Descricao       string                 `json:"descricao"`
	ModeloID        uuid.UUID              `json:"modelo_id" binding:"required"`
	SecretariaID    string                 `json:"secretaria_id"`
	SetorID         string                 `json:"setor_id"`
	DadosFormulario map[string]interface{} `json:"dados_formulario"`
}

type UpdatePortariaRequest struct {
	Titulo          *string                `json:"titulo"`
	Descricao       *string                `json:"descricao"`
	DadosFormulario map[string]interface{} `json:"dados_formulario"`
}

type CreateModeloRequest struct {
	Nome         string   `json:"nome" binding:"required"`
	Descricao    string   `json:"descricao"`
	Conteudo     string   `json:"conteudo" binding:"required"`
	Variaveis    []string `json:"variaveis"`
	SecretariaID string   `json:"secretaria_id"`
}

// Payload carries the optional input of a transition.
type Payload struct {
	// Observacao is the review note or the rejection reason.
	Observacao string `json:"observacao"`
}

type TransitionRequest struct {
	Action     Action `json:"action" binding:"required"`
	Observacao string `json:"observacao"`
}

// ListFilter narrows ListPortarias. Zero values match everything.
type ListFilter struct {
	SecretariaID string
	SetorID      string
	Status       Status
	Ano          int
	CriadoPorID  *uuid.UUID
	Limit        int
	Offset       int
}

// DownloadLink is a short-lived URL to the rendered PDF.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
