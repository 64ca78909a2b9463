package discord

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"codebot/internal/core"
	"codebot/internal/transports/common"
)

type sentMessage struct {
	channelID string
	data      *discordgo.MessageSend
	file      string
}

type fakeSession struct {
	mu       sync.Mutex
	handlers []interface{}
	opened   bool
	closed   bool
	openErr  error
	sent     []sentMessage
}

func (f *fakeSession) AddHandler(handler interface{}) func() {
	f.handlers = append(f.handlers, handler)
	return func() { f.handlers = nil }
}

func (f *fakeSession) Open() error {
	if f.openErr != nil {
		return f.openErr
	}
	f.opened = true
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := sentMessage{channelID: channelID, data: data}
	if len(data.Files) > 0 {
		body, _ := io.ReadAll(data.Files[0].Reader)
		msg.file = string(body)
	}
	f.sent = append(f.sent, msg)
	return &discordgo.Message{}, nil
}

type echoHandler struct{}

func (echoHandler) Language() string               { return "python" }
func (echoHandler) Init(ctx context.Context) error { return nil }
func (echoHandler) Handle(ctx context.Context, req core.CodeRequest) core.Result {
	return core.Result{Text: req.Source}
}

func newTestAdapter(t *testing.T) (*Adapter, *fakeSession) {
	t.Helper()
	reg, err := core.NewRegistry(context.Background(), echoHandler{})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc := &common.Service{
		Source:     "discord",
		Registry:   reg,
		Formatter:  core.NewFormatter(nil),
		Authorizer: core.NewAllowlistAuthorizer(nil),
	}
	s := &fakeSession{}
	return newAdapter(s, svc, nil), s
}

func message(authorID, content string, bot bool) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "m1",
		ChannelID: "c1",
		Content:   content,
		Author:    &discordgo.User{ID: authorID, Bot: bot},
	}}
}

func TestAdapterRepliesInline(t *testing.T) {
	a, s := newTestAdapter(t)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.opened || len(s.handlers) != 1 {
		t.Fatalf("session must be opened with a handler")
	}

	a.onMessage(nil, message("u1", "!code python print(1)", false))
	if len(s.sent) != 1 {
		t.Fatalf("expected one reply, got %d", len(s.sent))
	}
	got := s.sent[0]
	if got.channelID != "c1" || got.data.Content != "```python\nprint(1)\n```" {
		t.Fatalf("unexpected reply: %#v", got.data)
	}
	if got.data.Reference == nil || got.data.Reference.MessageID != "m1" {
		t.Fatalf("reply must reference the source message")
	}

	if err := a.Stop(context.Background()); err != nil || !s.closed {
		t.Fatalf("stop: %v", err)
	}
}

func TestAdapterIgnoresBotsAndOtherMessages(t *testing.T) {
	a, s := newTestAdapter(t)
	_ = a.Start(context.Background())

	a.onMessage(nil, message("bot", "!code python print(1)", true))
	a.onMessage(nil, message("u1", "hello there", false))
	a.onMessage(nil, &discordgo.MessageCreate{Message: &discordgo.Message{Content: "!code"}})
	if len(s.sent) != 0 {
		t.Fatalf("expected no replies, got %d", len(s.sent))
	}
}

func TestAdapterIgnoresMessagesWhenStopped(t *testing.T) {
	a, s := newTestAdapter(t)
	a.onMessage(nil, message("u1", "!code python print(1)", false))
	if len(s.sent) != 0 {
		t.Fatalf("stopped adapter must not reply")
	}
}

func TestAdapterSendsLongOutputAsFile(t *testing.T) {
	a, s := newTestAdapter(t)
	_ = a.Start(context.Background())

	long := strings.Repeat("y", core.DefaultInlineLimit+10)
	a.onMessage(nil, message("u1", "!code python "+long, false))
	if len(s.sent) != 1 || len(s.sent[0].data.Files) != 1 {
		t.Fatalf("expected one file reply, got %#v", s.sent)
	}
	if s.sent[0].data.Files[0].Name != "output.txt" || s.sent[0].file != long {
		t.Fatalf("unexpected file %q", s.sent[0].data.Files[0].Name)
	}
}

func TestAdapterStartError(t *testing.T) {
	a, s := newTestAdapter(t)
	s.openErr = errors.New("invalid token")
	if err := a.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if len(s.handlers) != 0 {
		t.Fatalf("handler must be removed after failed start")
	}
}

func TestClip(t *testing.T) {
	if clip("short") != "short" {
		t.Fatalf("short text must be unchanged")
	}
	clipped := clip(strings.Repeat("ж", 3000))
	if utf8.RuneCountInString(clipped) != maxMessageRunes || !strings.HasSuffix(clipped, "(truncated)") {
		t.Fatalf("unexpected clip result length %d", utf8.RuneCountInString(clipped))
	}
}

func TestNewAdapterRequiresToken(t *testing.T) {
	if _, err := NewAdapter("", nil, nil); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
