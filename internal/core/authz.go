package core

import (
	"errors"
	"fmt"
)

var errAccessDenied = errors.New("access denied")

// Subject описывает автора сообщения и транспорт, через который оно пришло.
type Subject struct {
	Source string
	ID     string
}

// Action описывает запрошенную операцию: язык или служебную команду.
type Action struct {
	Kind     string
	Language string
}

// Authorizer решает, может ли subject выполнить action.
type Authorizer interface {
	Authorize(subject Subject, action Action) error
}

// AllowlistAuthorizer ограничивает доступ списком id по каждому source.
// Пустой или отсутствующий список означает открытый доступ для source.
type AllowlistAuthorizer struct {
	allowed map[string]map[string]struct{}
}

// NewAllowlistAuthorizer создает authorizer из map[source][]id.
func NewAllowlistAuthorizer(src map[string][]string) *AllowlistAuthorizer {
	allowed := make(map[string]map[string]struct{}, len(src))
	for source, ids := range src {
		idSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id == "" {
				continue
			}
			idSet[id] = struct{}{}
		}
		if len(idSet) > 0 {
			allowed[source] = idSet
		}
	}
	return &AllowlistAuthorizer{allowed: allowed}
}

// Authorize возвращает ошибку, если source ограничен и subject не в списке.
func (a *AllowlistAuthorizer) Authorize(subject Subject, action Action) error {
	if subject.Source == "" || subject.ID == "" {
		return fmt.Errorf("empty subject: %w", errInvalidArguments)
	}
	bySource, restricted := a.allowed[subject.Source]
	if !restricted {
		return nil
	}
	if _, ok := bySource[subject.ID]; !ok {
		return fmt.Errorf("subject %s/%s (%s): %w", subject.Source, subject.ID, action.Kind, errAccessDenied)
	}
	return nil
}

// IsAccessDenied сообщает, что ошибка получена от Authorizer.
func IsAccessDenied(err error) bool {
	return errors.Is(err, errAccessDenied)
}
