package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	errHandlerExists    = errors.New("handler already registered")
	errInvalidArguments = errors.New("invalid arguments")
	errEmptyRegistry    = errors.New("no handlers registered")
)

// UnsupportedLanguageError возвращается роутером для неизвестного языка.
type UnsupportedLanguageError struct {
	Language  string
	Supported []string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Language)
}

// Message формирует ответ пользователю со списком поддерживаемых языков.
func (e *UnsupportedLanguageError) Message() string {
	return fmt.Sprintf("Unsupported language: %s. Supported languages: %s", e.Language, strings.Join(e.Supported, ", "))
}

// Registry хранит обработчики языков; после создания не изменяется.
type Registry struct {
	handlers  map[string]Handler
	languages []string
}

// NewRegistry инициализирует обработчики и строит неизменяемую таблицу.
func NewRegistry(ctx context.Context, handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[string]Handler, len(handlers))}
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("handler is nil: %w", errInvalidArguments)
		}
		name := NormalizeLanguage(h.Language())
		if name == "" {
			return nil, fmt.Errorf("handler language is empty: %w", errInvalidArguments)
		}
		if _, exists := r.handlers[name]; exists {
			return nil, fmt.Errorf("%s: %w", name, errHandlerExists)
		}
		if err := h.Init(ctx); err != nil {
			return nil, fmt.Errorf("init %s: %w", name, err)
		}
		r.handlers[name] = h
		r.languages = append(r.languages, name)
	}
	if len(r.handlers) == 0 {
		return nil, errEmptyRegistry
	}
	sort.Strings(r.languages)
	return r, nil
}

// Route возвращает обработчик языка или *UnsupportedLanguageError.
func (r *Registry) Route(language string) (Handler, error) {
	name := NormalizeLanguage(language)
	h, ok := r.handlers[name]
	if !ok {
		return nil, &UnsupportedLanguageError{Language: name, Supported: r.Languages()}
	}
	return h, nil
}

// Languages возвращает отсортированный список поддерживаемых языков.
func (r *Registry) Languages() []string {
	return append([]string(nil), r.languages...)
}
