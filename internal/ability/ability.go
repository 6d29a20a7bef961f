package ability

import (
	"strings"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/users"
)

// Rule is one (action, subject, conditions) entry of a user's ability.
type Rule struct {
	Action     Action            `json:"action"`
	Subject    Subject           `json:"subject"`
	Conditions map[string]string `json:"conditions,omitempty"`
	Inverted   bool              `json:"inverted,omitempty"`
	Source     Source            `json:"source"`
}

// Record is anything the conditions can be evaluated against.
type Record interface {
	AbilityAttributes() map[string]string
}

// Attributes is a plain attribute map usable as a Record.
type Attributes map[string]string

func (a Attributes) AbilityAttributes() map[string]string { return a }

func (r Rule) matchesAction(action Action) bool {
	return r.Action == ActionManage || r.Action == action
}

func (r Rule) matchesSubject(subject Subject) bool {
	return r.Subject == SubjectAll || r.Subject == subject
}

func (r Rule) matchesRecord(attrs map[string]string) bool {
	for key, want := range r.Conditions {
		if got, ok := attrs[key]; !ok || got != want {
			return false
		}
	}
	return true
}

// Ability is the resolved rule set of one user.
type Ability struct {
	rules   []Rule
	ignored []string
	super   bool
}

// Build resolves the ability of user from its role and extra grants.
func Build(user *users.User) *Ability {
	a := &Ability{}
	if user == nil || !user.Ativo {
		return a
	}

	for _, tmpl := range roleRules[user.Role] {
		rule := Rule{
			Action:   tmpl.action,
			Subject:  tmpl.subject,
			Inverted: tmpl.inverted,
			Source:   SourceRole,
		}
		if len(tmpl.conditions) > 0 {
			rule.Conditions = make(map[string]string, len(tmpl.conditions))
			skip := false
			for key, value := range tmpl.conditions {
				v := value(user)
				if v == "" {
					skip = true
					break
				}
				rule.Conditions[key] = v
			}
			// A scoped rule without a scope value would never match anything.
			if skip {
				continue
			}
		}
		if rule.Action == ActionManage && rule.Subject == SubjectAll && !rule.Inverted {
			a.super = true
		}
		a.rules = append(a.rules, rule)
	}

	for _, grant := range user.PermissoesExtra {
		action, subject, ok := parseGrant(grant)
		if !ok {
			a.ignored = append(a.ignored, grant)
			continue
		}
		// Grants never short-circuit: a role negation still beats manage:all.
		a.rules = append(a.rules, Rule{Action: action, Subject: subject, Source: SourceGrant})
	}
	return a
}

func parseGrant(grant string) (Action, Subject, bool) {
	parts := strings.Split(strings.TrimSpace(grant), ":")
	if len(parts) != 2 {
		return "", "", false
	}
	action := strings.TrimSpace(parts[0])
	subject := strings.TrimSpace(parts[1])
	if action == "" || subject == "" {
		return "", "", false
	}
	return Action(action), Subject(subject), true
}

// Can reports whether the action is allowed on the subject. A nil record asks
// whether the action is allowed on some record of that subject.
func (a *Ability) Can(action Action, subject Subject, record Record) bool {
	if a.super {
		return true
	}

	var attrs map[string]string
	if record != nil {
		attrs = record.AbilityAttributes()
	}

	allowed := false
	for _, rule := range a.rules {
		if !rule.matchesAction(action) || !rule.matchesSubject(subject) {
			continue
		}
		if record == nil {
			if rule.Inverted {
				if len(rule.Conditions) == 0 {
					return false
				}
				continue
			}
			allowed = true
			continue
		}
		if !rule.matchesRecord(attrs) {
			continue
		}
		if rule.Inverted {
			return false
		}
		allowed = true
	}
	return allowed
}

// Rules returns a copy of the resolved rules, packed for the client.
func (a *Ability) Rules() []Rule {
	out := make([]Rule, len(a.rules))
	copy(out, a.rules)
	return out
}

// Ignored lists the extra grants that could not be parsed.
func (a *Ability) Ignored() []string {
	return a.ignored
}

// Check builds the ability of user and returns an authorization error when
// the action is not allowed.
func Check(user *users.User, action Action, subject Subject, record Record) error {
	if user == nil {
		return apperrors.Authorization("authentication required")
	}
	if !user.Ativo {
		return apperrors.Authorization("user %s is inactive", user.ID)
	}
	if !Build(user).Can(action, subject, record) {
		return apperrors.Authorization("%s cannot %s %s", user.Role, action, subject)
	}
	return nil
}
