package core

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultInlineLimit держит сообщение ниже лимита чата в 2000 символов.
	DefaultInlineLimit = 1900
	// DefaultMaxAttachment ограничивает размер вложения (8 MiB).
	DefaultMaxAttachment = 8 << 20
	// MessageLimit - жесткий потолок длины сообщения в чате.
	MessageLimit = 2000
)

// Delivery описывает способ, которым был доставлен ответ.
type Delivery string

const (
	DeliveryInline Delivery = "inline"
	DeliveryFile   Delivery = "file"
)

// Formatter выбирает между inline-сообщением и файлом по длине результата.
type Formatter struct {
	InlineLimit   int
	MaxAttachment int
	// Extensions сопоставляет тег языка с расширением файла.
	Extensions map[string]string
}

// NewFormatter создает Formatter с лимитами по умолчанию.
func NewFormatter(extensions map[string]string) *Formatter {
	return &Formatter{
		InlineLimit:   DefaultInlineLimit,
		MaxAttachment: DefaultMaxAttachment,
		Extensions:    extensions,
	}
}

// Deliver отправляет ровно одно сообщение: inline-блок или файл.
// Файл уходит и тогда, когда экранирование делает сообщение длиннее MessageLimit.
func (f *Formatter) Deliver(ctx context.Context, r Replier, res Result, tag string) (Delivery, error) {
	text := res.Text
	if strings.TrimSpace(text) == "" {
		text = NoOutput
	}
	if res.Fence != "" {
		tag = res.Fence
	}

	limit := f.InlineLimit
	if limit <= 0 {
		limit = DefaultInlineLimit
	}
	if utf8.RuneCountInString(text) <= limit {
		msg := inlineMessage(text, tag, res.IsError)
		if utf8.RuneCountInString(msg) <= MessageLimit {
			if err := r.SendText(ctx, msg); err != nil {
				return DeliveryInline, fmt.Errorf("send inline reply: %w", err)
			}
			return DeliveryInline, nil
		}
	}
	return f.deliverFile(ctx, r, res, text, tag)
}

func inlineMessage(text, tag string, isError bool) string {
	if isError {
		return "Error:\n" + Fence(text, "")
	}
	return Fence(text, tag)
}

func (f *Formatter) deliverFile(ctx context.Context, r Replier, res Result, text, tag string) (Delivery, error) {
	maxBytes := f.MaxAttachment
	if maxBytes <= 0 {
		maxBytes = DefaultMaxAttachment
	}
	truncated := res.Truncated
	if len(text) > maxBytes {
		text = truncateUTF8(text, maxBytes)
		truncated = true
	}
	caption := fmt.Sprintf("Output is too long (%d characters), sent as a file.", utf8.RuneCountInString(res.Text))
	if res.IsError {
		caption = "Error: " + caption
	}
	if truncated {
		caption += " (truncated)"
	}
	if err := r.SendFile(ctx, f.fileName(tag), caption, []byte(text)); err != nil {
		return DeliveryFile, fmt.Errorf("send file reply: %w", err)
	}
	return DeliveryFile, nil
}

func (f *Formatter) fileName(tag string) string {
	ext := f.Extensions[tag]
	if ext == "" {
		ext = "txt"
	}
	return "output." + ext
}

// Fence оборачивает текст в блок кода с тегом языка.
func Fence(text, tag string) string {
	return "```" + tag + "\n" + strings.ReplaceAll(text, "```", "`\u200b``") + "\n```"
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
