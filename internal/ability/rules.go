package ability

import (
	"docs-cataguases/portal-backend/internal/users"
)

// Action is what a user wants to do.
type Action string

const (
	ActionManage           Action = "manage"
	ActionCriar            Action = "criar"
	ActionLer              Action = "ler"
	ActionEditar           Action = "editar"
	ActionDeletar          Action = "deletar"
	ActionSubmeter         Action = "submeter"
	ActionEnviarRevisao    Action = "enviar_revisao"
	ActionAssumirRevisao   Action = "assumir_revisao"
	ActionRevisar          Action = "revisar"
	ActionGerenciarRevisao Action = "gerenciar_revisao"
	ActionAprovar          Action = "aprovar"
	ActionRejeitar         Action = "rejeitar"
	ActionAssinar          Action = "assinar"
	ActionPublicar         Action = "publicar"
	ActionGerenciar        Action = "gerenciar"
)

// Subject is the type of record an action applies to.
type Subject string

const (
	SubjectAll            Subject = "all"
	SubjectPortaria       Subject = "Portaria"
	SubjectModelo         Subject = "Modelo"
	SubjectUsuario        Subject = "Usuario"
	SubjectFeed           Subject = "Feed"
	SubjectLivroNumeracao Subject = "LivroNumeracao"
)

// Record attribute keys that role conditions refer to.
const (
	AttrSecretariaID         = "secretariaId"
	AttrCriadoPorID          = "criadoPorId"
	AttrStatus               = "status"
	AttrResponsavelRevisaoID = "responsavelRevisaoId"
)

// Source tags where a rule came from.
type Source string

const (
	SourceRole  Source = "role"
	SourceGrant Source = "grant"
)

// Condition values are resolved against the user when the ability is built.
type conditionValue func(u *users.User) string

func userSecretaria(u *users.User) string { return u.SecretariaID }
func userID(u *users.User) string         { return u.ID.String() }
func literal(v string) conditionValue     { return func(*users.User) string { return v } }

type ruleTemplate struct {
	action     Action
	subject    Subject
	conditions map[string]conditionValue
	inverted   bool
}

func can(action Action, subject Subject, conditions map[string]conditionValue) ruleTemplate {
	return ruleTemplate{action: action, subject: subject, conditions: conditions}
}

func cannot(action Action, subject Subject) ruleTemplate {
	return ruleTemplate{action: action, subject: subject, inverted: true}
}

var (
	sameSecretaria  = map[string]conditionValue{AttrSecretariaID: userSecretaria}
	ownDocument     = map[string]conditionValue{AttrCriadoPorID: userID}
	ownDraft        = map[string]conditionValue{AttrCriadoPorID: userID, AttrStatus: literal("DRAFT")}
	secretariaDraft = map[string]conditionValue{AttrSecretariaID: userSecretaria, AttrStatus: literal("DRAFT")}
)

// roleRules is the baseline rule table. Every role has an entry.
var roleRules = map[users.Role][]ruleTemplate{
	users.RoleAdmin: {
		can(ActionManage, SubjectAll, nil),
	},
	users.RolePrefeito: {
		can(ActionLer, SubjectPortaria, nil),
		can(ActionAprovar, SubjectPortaria, nil),
		can(ActionRejeitar, SubjectPortaria, nil),
		can(ActionAssinar, SubjectPortaria, nil),
		can(ActionPublicar, SubjectPortaria, nil),
		can(ActionGerenciarRevisao, SubjectPortaria, nil),
		can(ActionLer, SubjectModelo, nil),
		can(ActionLer, SubjectFeed, nil),
		can(ActionLer, SubjectLivroNumeracao, nil),
	},
	users.RoleSecretario: {
		can(ActionLer, SubjectPortaria, sameSecretaria),
		can(ActionCriar, SubjectPortaria, sameSecretaria),
		can(ActionEditar, SubjectPortaria, sameSecretaria),
		can(ActionDeletar, SubjectPortaria, secretariaDraft),
		can(ActionSubmeter, SubjectPortaria, sameSecretaria),
		can(ActionEnviarRevisao, SubjectPortaria, sameSecretaria),
		can(ActionGerenciarRevisao, SubjectPortaria, sameSecretaria),
		can(ActionAprovar, SubjectPortaria, sameSecretaria),
		can(ActionRejeitar, SubjectPortaria, sameSecretaria),
		can(ActionAssinar, SubjectPortaria, sameSecretaria),
		can(ActionPublicar, SubjectPortaria, sameSecretaria),
		can(ActionLer, SubjectModelo, nil),
		can(ActionLer, SubjectFeed, sameSecretaria),
		can(ActionLer, SubjectLivroNumeracao, sameSecretaria),
		can(ActionGerenciar, SubjectLivroNumeracao, sameSecretaria),
	},
	users.RoleRevisor: {
		can(ActionLer, SubjectPortaria, sameSecretaria),
		can(ActionEnviarRevisao, SubjectPortaria, sameSecretaria),
		can(ActionAssumirRevisao, SubjectPortaria, sameSecretaria),
		can(ActionRevisar, SubjectPortaria, sameSecretaria),
		can(ActionLer, SubjectModelo, nil),
		can(ActionLer, SubjectFeed, sameSecretaria),
	},
	users.RoleOperador: {
		can(ActionCriar, SubjectPortaria, sameSecretaria),
		can(ActionLer, SubjectPortaria, ownDocument),
		can(ActionEditar, SubjectPortaria, ownDocument),
		can(ActionSubmeter, SubjectPortaria, ownDocument),
		can(ActionEnviarRevisao, SubjectPortaria, ownDraft),
		can(ActionLer, SubjectModelo, nil),
		can(ActionLer, SubjectFeed, sameSecretaria),
		cannot(ActionDeletar, SubjectPortaria),
		cannot(ActionPublicar, SubjectPortaria),
	},
}
