package core

import "context"

// CodeRequest описывает фрагмент кода, извлеченный из сообщения.
type CodeRequest struct {
	Language string
	Source   string
	Stdin    string
}

// Result описывает унифицированный результат обработчика языка.
type Result struct {
	Text      string `json:"text"`
	Truncated bool   `json:"truncated,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
	// Fence переопределяет тег блока кода при доставке (например, "ansi").
	Fence string `json:"fence,omitempty"`
}

// Handler определяет контракт обработчика языка.
type Handler interface {
	Language() string
	Init(ctx context.Context) error
	Handle(ctx context.Context, req CodeRequest) Result
}

// Replier отправляет ответ в канал, из которого пришло сообщение.
type Replier interface {
	SendText(ctx context.Context, text string) error
	SendFile(ctx context.Context, name, caption string, content []byte) error
}

// NoOutput подставляется, когда программа ничего не напечатала.
const NoOutput = "No output."
