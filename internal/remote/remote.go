// Package remote реализует клиенты внешних сервисов исполнения кода.
//
// Поддерживаются два протокола: синхронный (JDoodle, один POST) и
// асинхронный с опросом (Judge0: POST создает submission, затем GET по
// токену). Оба скрыты за интерфейсом Backend, который всегда возвращает
// текст для пользователя и никогда не пробрасывает транспортные ошибки.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"codebot/internal/core"
)

const (
	// DefaultCPUTimeLimit - лимит процессорного времени, передаваемый сервису.
	DefaultCPUTimeLimit = 5 * time.Second
	// DefaultMemoryLimitKB - лимит памяти (128 MB), передаваемый сервису.
	DefaultMemoryLimitKB = 128000

	maxResponseBytes = 4 << 20
)

var (
	errUnexpectedStatus = errors.New("unexpected http status")
	errInvalidResponse  = errors.New("invalid response")
)

// Language - идентификаторы языка во внешнем сервисе.
type Language struct {
	ID      int
	Name    string
	Version string
}

// Submission - код, отправляемый на исполнение.
type Submission struct {
	Language Language
	Source   string
	Stdin    string
}

// Outcome - итог исполнения в виде текста для пользователя.
type Outcome struct {
	Text    string
	IsError bool
	Status  string
}

// Backend исполняет код во внешнем сервисе.
type Backend interface {
	Name() string
	Execute(ctx context.Context, sub Submission) Outcome
}

// Limits задает ограничения, передаваемые сервису в каждом запросе.
type Limits struct {
	CPUTime       time.Duration
	MemoryLimitKB int
}

func (l Limits) withDefaults() Limits {
	if l.CPUTime <= 0 {
		l.CPUTime = DefaultCPUTimeLimit
	}
	if l.MemoryLimitKB <= 0 {
		l.MemoryLimitKB = DefaultMemoryLimitKB
	}
	return l
}

// newSubmitLimiter ограничивает частоту отправки кода в сервис; perMinute <= 0 отключает лимит.
func newSubmitLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w %d: %s", errUnexpectedStatus, resp.StatusCode, snippet(string(data)))
	}
	return data, nil
}

// transportFailure переводит ошибку транспорта в текст для пользователя.
func transportFailure(stage string, err error) Outcome {
	var text string
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		text = fmt.Sprintf("Remote execution %s timed out or was cancelled.", stage)
	case errors.Is(err, errUnexpectedStatus):
		text = fmt.Sprintf("Remote execution %s failed: %v", stage, err)
	case errors.Is(err, errInvalidResponse):
		text = fmt.Sprintf("Remote execution service returned an invalid response during %s: %v", stage, err)
	default:
		text = fmt.Sprintf("Remote execution service is unreachable (%s): %v", stage, err)
	}
	return Outcome{Text: text, IsError: true, Status: "transport_error"}
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return core.NoOutput
	}
	return strings.TrimRight(s, "\n")
}
