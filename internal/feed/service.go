package feed

import (
	"context"

	"docs-cataguases/portal-backend/internal/ability"
	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/users"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// Scope returns the secretaria filter the user is allowed to read, with ""
// meaning every secretaria.
func Scope(user *users.User, requested string) (string, error) {
	a := ability.Build(user)
	if requested != "" {
		if a.Can(ability.ActionLer, ability.SubjectFeed, ability.Attributes{ability.AttrSecretariaID: requested}) {
			return requested, nil
		}
		return "", apperrors.Authorization("cannot read the feed of secretaria %s", requested)
	}
	// Only unconditioned rules match an empty record.
	if a.Can(ability.ActionLer, ability.SubjectFeed, ability.Attributes{}) {
		return "", nil
	}
	if user != nil && user.SecretariaID != "" &&
		a.Can(ability.ActionLer, ability.SubjectFeed, ability.Attributes{ability.AttrSecretariaID: user.SecretariaID}) {
		return user.SecretariaID, nil
	}
	return "", apperrors.Authorization("cannot read the feed")
}

// List returns the entries the user may see, newest first.
func (s *Service) List(ctx context.Context, user *users.User, filter Filter) ([]Entry, error) {
	secretaria, err := Scope(user, filter.SecretariaID)
	if err != nil {
		return nil, err
	}
	filter.SecretariaID = secretaria

	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	entries, err := s.reader.ListEntries(ctx, filter)
	if err != nil {
		if apperrors.KindOf(err) != "" {
			return nil, err
		}
		return nil, apperrors.Storage(err, "failed to list feed entries")
	}
	return entries, nil
}
