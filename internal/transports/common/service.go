package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"codebot/internal/core"
)

const (
	DefaultPrefix         = "!code"
	DefaultHelpCommand    = "!help"
	DefaultHandlerTimeout = 60 * time.Second
)

var (
	// ErrRateLimited возвращается, когда subject превысил лимит запросов.
	ErrRateLimited = errors.New("rate limit exceeded")
	errNoStatus    = errors.New("status provider is not configured")
)

// Service объединяет общий пайплайн
// prefix -> extract -> authz -> ratelimit -> route -> handler -> formatter -> audit.
type Service struct {
	Source      string
	Prefix      string
	HelpCommand string
	Registry    *core.Registry
	Formatter   *core.Formatter
	// Fences сопоставляет язык с тегом блока кода в ответе.
	Fences      map[string]string
	Authorizer  core.Authorizer
	RateLimiter *RateLimiter
	AuditSink   AuditSink
	Status      func(ctx context.Context) (string, error)
	Timeout     time.Duration
	Logger      *slog.Logger
}

// WithSource возвращает копию сервиса для другого транспорта.
func (s *Service) WithSource(source string) *Service {
	c := *s
	c.Source = source
	return &c
}

// Languages возвращает список поддерживаемых языков.
func (s *Service) Languages() []string {
	return s.Registry.Languages()
}

// HandleMessage обрабатывает одно сообщение чата. Возвращает false, если
// сообщение не адресовано боту. Ошибка означает, что ответ не удалось отправить.
func (s *Service) HandleMessage(ctx context.Context, subjectID, text string, r core.Replier) (bool, error) {
	text = strings.TrimSpace(text)
	if text == s.helpCommand() {
		return true, r.SendText(ctx, s.HelpText())
	}
	command, ok := s.stripPrefix(text)
	if !ok {
		return false, nil
	}

	switch strings.ToLower(command) {
	case "", "help":
		return true, r.SendText(ctx, s.HelpText())
	case "status":
		return true, r.SendText(ctx, s.statusReply(ctx, subjectID))
	}

	req, ok := core.Extract(command)
	if !ok {
		s.writeAudit(ctx, subjectID, core.Action{Kind: "code"}, "bad_command", newRequestID(), auditDetails{})
		return true, r.SendText(ctx, s.HelpText())
	}

	res, requestID, err := s.run(ctx, subjectID, req)
	if err != nil {
		return true, r.SendText(ctx, errorReply(err))
	}

	delivery, sendErr := s.formatter().Deliver(ctx, r, res, s.fence(req.Language))
	if sendErr != nil {
		s.logger().Error("deliver reply failed", "source", s.Source, "subject", subjectID, "language", req.Language, "request_id", requestID, "err", sendErr)
	}
	s.logger().Info("code handled", "source", s.Source, "subject", subjectID, "language", req.Language, "request_id", requestID, "delivery", delivery, "is_error", res.IsError)
	return true, sendErr
}

// Run исполняет запрос без чата (web, MCP, CLI).
func (s *Service) Run(ctx context.Context, subjectID string, req core.CodeRequest) (core.Result, error) {
	req.Language = core.NormalizeLanguage(req.Language)
	if req.Language == "" {
		req.Language = core.DefaultLanguage
	}
	if strings.TrimSpace(req.Source) == "" {
		return core.Result{}, fmt.Errorf("source is empty: %w", errBadRequest)
	}
	res, _, err := s.run(ctx, subjectID, req)
	return res, err
}

var errBadRequest = errors.New("bad request")

// RateLimitError сообщает, через сколько subject снова сможет отправить код.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// IsBadRequest сообщает, что запрос отклонен из-за некорректных данных.
func IsBadRequest(err error) bool {
	return errors.Is(err, errBadRequest)
}

func (s *Service) run(ctx context.Context, subjectID string, req core.CodeRequest) (core.Result, string, error) {
	requestID := newRequestID()
	action := core.Action{Kind: "code", Language: req.Language}
	details := auditDetails{Language: req.Language, SourceLen: utf8.RuneCountInString(req.Source)}

	if s.Authorizer != nil {
		if err := s.Authorizer.Authorize(core.Subject{Source: s.Source, ID: subjectID}, action); err != nil {
			s.writeAudit(ctx, subjectID, action, "denied", requestID, details)
			return core.Result{}, requestID, err
		}
	}
	if s.RateLimiter != nil {
		if ok, wait := s.RateLimiter.Reserve(s.Source+":"+subjectID, time.Now()); !ok {
			s.writeAudit(ctx, subjectID, action, "rate_limited", requestID, details)
			return core.Result{}, requestID, &RateLimitError{RetryAfter: wait}
		}
	}
	handler, err := s.Registry.Route(req.Language)
	if err != nil {
		s.writeAudit(ctx, subjectID, action, "unsupported", requestID, details)
		return core.Result{}, requestID, err
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	res := handler.Handle(runCtx, req)
	cancel()

	details.ResultLen = utf8.RuneCountInString(res.Text)
	details.Truncated = res.Truncated
	details.DurationMS = time.Since(start).Milliseconds()
	status := "ok"
	if res.IsError {
		status = "error"
	}
	s.writeAudit(ctx, subjectID, action, status, requestID, details)
	return res, requestID, nil
}

func (s *Service) statusReply(ctx context.Context, subjectID string) string {
	action := core.Action{Kind: "status"}
	requestID := newRequestID()
	if s.Authorizer != nil {
		if err := s.Authorizer.Authorize(core.Subject{Source: s.Source, ID: subjectID}, action); err != nil {
			s.writeAudit(ctx, subjectID, action, "denied", requestID, auditDetails{})
			return errorReply(err)
		}
	}
	if s.Status == nil {
		return errorReply(errNoStatus)
	}
	text, err := s.Status(ctx)
	if err != nil {
		s.logger().Warn("status failed", "source", s.Source, "subject", subjectID, "request_id", requestID, "err", err)
		s.writeAudit(ctx, subjectID, action, "error", requestID, auditDetails{})
		return errorReply(err)
	}
	s.writeAudit(ctx, subjectID, action, "ok", requestID, auditDetails{})
	return core.Fence(text, "")
}

// HelpText перечисляет форматы команды и поддерживаемые языки.
func (s *Service) HelpText() string {
	p := s.prefix()
	var b strings.Builder
	fmt.Fprintf(&b, "Usage: %s ```<language>\n<code>\n```\n", p)
	fmt.Fprintf(&b, "   or: %s <language> <code>\n", p)
	fmt.Fprintf(&b, "A block without a language tag runs as %s. Add a second block tagged stdin to pass input.\n", core.DefaultLanguage)
	fmt.Fprintf(&b, "Other commands: %s status, %s help, %s\n", p, p, s.helpCommand())
	fmt.Fprintf(&b, "Supported languages: %s", strings.Join(s.Registry.Languages(), ", "))
	return b.String()
}

// stripPrefix отделяет команду от префикса; "!codex" префиксом не считается.
func (s *Service) stripPrefix(text string) (string, bool) {
	p := s.prefix()
	if !strings.HasPrefix(text, p) {
		return "", false
	}
	rest := text[len(p):]
	if rest == "" {
		return "", true
	}
	first, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsSpace(first) && first != '`' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (s *Service) prefix() string {
	if s.Prefix == "" {
		return DefaultPrefix
	}
	return s.Prefix
}

func (s *Service) helpCommand() string {
	if s.HelpCommand == "" {
		return DefaultHelpCommand
	}
	return s.HelpCommand
}

func (s *Service) fence(language string) string {
	if tag, ok := s.Fences[language]; ok && tag != "" {
		return tag
	}
	return language
}

func (s *Service) formatter() *core.Formatter {
	if s.Formatter == nil {
		return core.NewFormatter(nil)
	}
	return s.Formatter
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// errorReply переводит ошибку пайплайна в текст для пользователя.
func errorReply(err error) string {
	var (
		unsupported *core.UnsupportedLanguageError
		limited     *RateLimitError
	)
	switch {
	case errors.As(err, &unsupported):
		return unsupported.Message()
	case core.IsAccessDenied(err):
		return "Error: access denied."
	case errors.As(err, &limited):
		return fmt.Sprintf("Error: rate limit exceeded, try again in %s.", limited.RetryAfter.Round(time.Second))
	case errors.Is(err, ErrRateLimited):
		return "Error: rate limit exceeded, try again later."
	case errors.Is(err, errNoStatus):
		return "Error: status is not available."
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
