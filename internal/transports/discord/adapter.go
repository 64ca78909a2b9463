// Package discord подключает пайплайн к Discord через gateway discordgo.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"codebot/internal/transports/common"
)

// maxMessageRunes - жесткий лимит Discord на длину сообщения.
const maxMessageRunes = 2000

// session - часть discordgo.Session, которую использует адаптер.
type session interface {
	AddHandler(handler interface{}) func()
	Open() error
	Close() error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter предоставляет transport-слой для Discord.
type Adapter struct {
	svc     *common.Service
	session session
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	remove  func()
	wg      sync.WaitGroup
}

// NewAdapter создает Discord адаптер; token - токен бота без префикса "Bot ".
func NewAdapter(token string, svc *common.Service, logger *slog.Logger) (*Adapter, error) {
	if token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent
	return newAdapter(s, svc, logger), nil
}

func newAdapter(s session, svc *common.Service, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{svc: svc, session: s, logger: logger}
}

func (a *Adapter) Name() string { return "discord" }

func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.remove = a.session.AddHandler(a.onMessage)
	if err := a.session.Open(); err != nil {
		a.remove()
		a.cancel()
		return fmt.Errorf("discord open: %w", err)
	}
	a.running = true
	a.logger.Info("discord transport started")
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.remove()
	a.cancel()
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("discord stop: in-flight messages abandoned", "err", ctx.Err())
	}
	if err := a.session.Close(); err != nil {
		return fmt.Errorf("discord close: %w", err)
	}
	return nil
}

func (a *Adapter) onMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil {
		return
	}
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	ctx := a.ctx
	a.wg.Add(1)
	a.mu.Unlock()
	defer a.wg.Done()

	a.handle(ctx, m.Message)
}

// handle обрабатывает одно сообщение; сообщения ботов игнорируются.
func (a *Adapter) handle(ctx context.Context, msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	r := &replier{session: a.session, channelID: msg.ChannelID, messageID: msg.ID}
	if _, err := a.svc.HandleMessage(ctx, msg.Author.ID, msg.Content, r); err != nil {
		a.logger.Error("discord reply failed", "source", a.Name(), "subject", msg.Author.ID, "channel", msg.ChannelID, "err", err)
	}
}

// replier отвечает в канал исходного сообщения со ссылкой на него.
type replier struct {
	session   session
	channelID string
	messageID string
}

func (r *replier) SendText(ctx context.Context, text string) error {
	_, err := r.session.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
		Content:         clip(text),
		Reference:       r.reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}, discordgo.WithContext(ctx))
	return err
}

func (r *replier) SendFile(ctx context.Context, name, caption string, content []byte) error {
	_, err := r.session.ChannelMessageSendComplex(r.channelID, &discordgo.MessageSend{
		Content:         clip(caption),
		Reference:       r.reference(),
		AllowedMentions: &discordgo.MessageAllowedMentions{},
		Files: []*discordgo.File{{
			Name:        name,
			ContentType: "text/plain; charset=utf-8",
			Reader:      bytes.NewReader(content),
		}},
	}, discordgo.WithContext(ctx))
	return err
}

func (r *replier) reference() *discordgo.MessageReference {
	if r.messageID == "" {
		return nil
	}
	return &discordgo.MessageReference{MessageID: r.messageID, ChannelID: r.channelID}
}

// clip обрезает текст до лимита Discord с маркером усечения.
func clip(text string) string {
	if utf8.RuneCountInString(text) <= maxMessageRunes {
		return text
	}
	const marker = "\n(truncated)"
	runes := []rune(text)
	return string(runes[:maxMessageRunes-utf8.RuneCountInString(marker)]) + marker
}
