package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RolePrefeito   Role = "PREFEITO"
	RoleSecretario Role = "SECRETARIO"
	RoleRevisor    Role = "REVISOR"
	RoleOperador   Role = "OPERADOR"
)

// Roles lists every role from the most to the least privileged.
func Roles() []Role {
	return []Role{RoleAdmin, RolePrefeito, RoleSecretario, RoleRevisor, RoleOperador}
}

func (r Role) Valid() bool {
	for _, role := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// User is an account of the municipal staff.
type User struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Nome            string         `gorm:"not null" json:"nome"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	Role            Role           `gorm:"type:varchar(20);not null;default:'OPERADOR'" json:"role"`
	Ativo           bool           `gorm:"not null;default:true" json:"ativo"`
	SecretariaID    string         `gorm:"index" json:"secretaria_id"`
	SetorID         string         `json:"setor_id,omitempty"`
	PermissoesExtra pq.StringArray `gorm:"type:text[]" json:"permissoes_extra"`
	SenhaHash       string         `gorm:"not null" json:"-"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (User) TableName() string {
	return "usuarios"
}

type CreateUserRequest struct {
	Nome            string   `json:"nome" binding:"required"`
	Email           string   `json:"email" binding:"required,email"`
	Senha           string   `json:"senha" binding:"required"`
	Role            Role     `json:"role"`
	SecretariaID    string   `json:"secretaria_id"`
	SetorID         string   `json:"setor_id"`
	PermissoesExtra []string `json:"permissoes_extra"`
}

type UpdateUserRequest struct {
	Nome            *string   `json:"nome"`
	Role            *Role     `json:"role"`
	Ativo           *bool     `json:"ativo"`
	SecretariaID    *string   `json:"secretaria_id"`
	SetorID         *string   `json:"setor_id"`
	PermissoesExtra *[]string `json:"permissoes_extra"`
}
