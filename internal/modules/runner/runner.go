// Package runner связывает язык каталога с внешним сервисом исполнения.
package runner

import (
	"context"
	"errors"

	"codebot/internal/core"
	"codebot/internal/languages"
	"codebot/internal/remote"
)

// Handler передает код в remote.Backend и возвращает его текст без изменений.
type Handler struct {
	name    string
	lang    remote.Language
	backend remote.Backend
}

// New создает обработчик для языка каталога.
func New(entry languages.Entry, backend remote.Backend) (*Handler, error) {
	if backend == nil {
		return nil, errors.New("runner: backend is nil")
	}
	return &Handler{
		name: entry.Name,
		lang: remote.Language{
			ID:      entry.Judge0ID,
			Name:    entry.JDoodle,
			Version: entry.JDoodleVersion,
		},
		backend: backend,
	}, nil
}

func (h *Handler) Language() string { return h.name }

func (h *Handler) Init(ctx context.Context) error { return nil }

func (h *Handler) Handle(ctx context.Context, req core.CodeRequest) core.Result {
	out := h.backend.Execute(ctx, remote.Submission{
		Language: h.lang,
		Source:   req.Source,
		Stdin:    req.Stdin,
	})
	return core.Result{Text: out.Text, IsError: out.IsError}
}
