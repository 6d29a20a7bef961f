package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType names what happened to a portaria.
type EventType string

const (
	EventCriada             EventType = "PORTARIA_CRIADA"
	EventEditada            EventType = "PORTARIA_EDITADA"
	EventExcluida           EventType = "PORTARIA_EXCLUIDA"
	EventSubmetida          EventType = "PORTARIA_SUBMETIDA"
	EventEnviadaRevisao     EventType = "ENVIADA_REVISAO"
	EventRevisaoAssumida    EventType = "REVISAO_ASSUMIDA"
	EventRevisaoAprovada    EventType = "REVISAO_APROVADA"
	EventRevisaoRejeitada   EventType = "REVISAO_REJEITADA"
	EventAprovada           EventType = "PORTARIA_APROVADA"
	EventRejeitada          EventType = "PORTARIA_REJEITADA"
	EventPublicada          EventType = "PORTARIA_PUBLICADA"
	EventReprocessada       EventType = "PORTARIA_REPROCESSADA"
	EventRevertida          EventType = "PORTARIA_REVERTIDA"
	EventFalhaProcessamento EventType = "FALHA_PROCESSAMENTO"
)

// EscalationMarker is appended to the message of a review rejection that
// reaches the escalation threshold.
const EscalationMarker = "[ESCALONAMENTO]"

// Entry is one append-only line of the activity feed.
type Entry struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Tipo         EventType         `gorm:"type:varchar(40);not null;index" json:"tipo"`
	Mensagem     string            `gorm:"type:text;not null" json:"mensagem"`
	AutorID      uuid.UUID         `gorm:"type:uuid;not null" json:"autor_id"`
	PortariaID   *uuid.UUID        `gorm:"type:uuid;index" json:"portaria_id,omitempty"`
	SecretariaID string            `gorm:"index" json:"secretaria_id"`
	SetorID      string            `json:"setor_id,omitempty"`
	Metadata     datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt    time.Time         `gorm:"index" json:"created_at"`
}

func (Entry) TableName() string {
	return "feed_atividades"
}

// Filter narrows a feed listing. Zero values match everything.
type Filter struct {
	PortariaID   *uuid.UUID
	SecretariaID string
	Limit        int
}

// Repository appends entries inside the caller's transaction.
type Repository interface {
	AppendEntry(ctx context.Context, entry *Entry) error
}

// Reader lists committed entries, newest first.
type Reader interface {
	ListEntries(ctx context.Context, filter Filter) ([]Entry, error)
}

// Publisher receives entries after the transaction that wrote them commits.
type Publisher interface {
	Publish(entry Entry)
}
