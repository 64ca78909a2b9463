// Package markup форматирует HTML и CSS без исполнения кода.
package markup

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/yosssi/gohtml"

	"codebot/internal/core"
)

const (
	// DefaultStyle - стиль chroma для подсветки.
	DefaultStyle = "monokai"

	ansiFormatter = "terminal8"
	ansiFence     = "ansi"
)

// Options управляет подсветкой результата.
type Options struct {
	Highlight bool
	Style     string
}

// Handler - обработчик форматирования для одного языка разметки.
type Handler struct {
	language string
	format   func(string) (string, error)
	opts     Options
}

// NewHTML создает обработчик html на основе gohtml (отступ 2 пробела).
func NewHTML(opts Options) *Handler {
	return &Handler{language: "html", format: formatHTML, opts: opts}
}

// NewCSS создает обработчик css.
func NewCSS(opts Options) *Handler {
	return &Handler{language: "css", format: FormatCSS, opts: opts}
}

func (h *Handler) Language() string { return h.language }

func (h *Handler) Init(ctx context.Context) error { return nil }

func (h *Handler) Handle(ctx context.Context, req core.CodeRequest) core.Result {
	formatted, err := h.format(req.Source)
	if err != nil {
		return core.Result{Text: fmt.Sprintf("Could not format %s: %v", h.language, err), IsError: true}
	}
	if !h.opts.Highlight {
		return core.Result{Text: formatted}
	}

	style := h.opts.Style
	if style == "" {
		style = DefaultStyle
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, formatted, h.language, ansiFormatter, style); err != nil {
		// без подсветки результат все равно полезен
		return core.Result{Text: formatted}
	}
	return core.Result{Text: strings.TrimRight(buf.String(), "\n"), Fence: ansiFence}
}

func formatHTML(src string) (string, error) {
	return strings.TrimSpace(gohtml.Format(src)), nil
}
