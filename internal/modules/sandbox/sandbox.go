// Package sandbox исполняет Python-код в одноразовом Docker-контейнере без
// сети и с ограничениями по памяти, CPU, числу процессов и времени.
package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/client"

	"codebot/internal/core"
)

const (
	DefaultImage          = "python:3.12-alpine"
	DefaultWorkdir        = "/tmp"
	DefaultUser           = "65534:65534"
	DefaultTimeLimit      = 5 * time.Second
	DefaultMemoryLimit    = 128 << 20
	DefaultNanoCPUs       = 1_000_000_000
	DefaultPidsLimit      = 64
	DefaultMaxOutputBytes = 1 << 20
	DefaultScratchMB      = 16

	scriptName = "main.py"
)

// bootstrap читает из stdin первые argv[1] байт как исходник программы,
// остаток stdin достается самой программе.
const bootstrap = `import sys
n = int(sys.argv[1])
src = sys.stdin.buffer.read(n).decode("utf-8")
sys.argv = ["` + scriptName + `"]
code = compile(src, "` + scriptName + `", "exec")
del n, src
exec(code, {"__name__": "__main__"})
`

// Config задает образ и лимиты песочницы.
type Config struct {
	Image            string
	Workdir          string
	User             string
	TimeLimit        time.Duration
	MemoryLimitBytes int64
	NanoCPUs         int64
	PidsLimit        int64
	MaxOutputBytes   int
	// ScratchMB - размер tmpfs в Workdir, единственного места для записи.
	ScratchMB int
	// PullOnInit загружает образ при старте, а не при первом запуске.
	PullOnInit bool
}

func (c Config) withDefaults() Config {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Workdir == "" {
		c.Workdir = DefaultWorkdir
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = DefaultTimeLimit
	}
	if c.MemoryLimitBytes <= 0 {
		c.MemoryLimitBytes = DefaultMemoryLimit
	}
	if c.NanoCPUs <= 0 {
		c.NanoCPUs = DefaultNanoCPUs
	}
	if c.PidsLimit <= 0 {
		c.PidsLimit = DefaultPidsLimit
	}
	if c.MaxOutputBytes <= 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.ScratchMB <= 0 {
		c.ScratchMB = DefaultScratchMB
	}
	return c
}

// Handler - обработчик языка python поверх Docker.
type Handler struct {
	cli    dockerClient
	cfg    Config
	logger *slog.Logger
}

// New подключается к Docker по переменным окружения (DOCKER_HOST и т.д.).
func New(cfg Config, logger *slog.Logger) (*Handler, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("sandbox: create docker client: %w", err)
	}
	return newWithClient(cli, cfg, logger), nil
}

func newWithClient(cli dockerClient, cfg Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{cli: cli, cfg: cfg.withDefaults(), logger: logger}
}

func (h *Handler) Language() string { return "python" }

func (h *Handler) Init(ctx context.Context) error {
	if !h.cfg.PullOnInit {
		return nil
	}
	return h.pullImage(ctx)
}

// Close освобождает соединение с Docker.
func (h *Handler) Close() error {
	return h.cli.Close()
}

func (h *Handler) Handle(ctx context.Context, req core.CodeRequest) core.Result {
	src := []byte(req.Source)
	cmd := []string{"python", "-u", "-c", bootstrap, strconv.Itoa(len(src))}
	res, err := h.run(ctx, cmd, append(src, req.Stdin...))
	if err != nil {
		h.logger.Error("sandbox run failed", "language", h.Language(), "err", err)
		return core.Result{Text: fmt.Sprintf("Sandbox failure: %v", err), IsError: true}
	}
	h.logger.Debug("sandbox run finished", "exit_code", res.ExitCode, "duration", res.Duration)

	switch {
	case res.Status == runTimeLimit:
		return core.Result{
			Text:    fmt.Sprintf("Time limit exceeded: the program ran longer than %s.", h.cfg.TimeLimit),
			IsError: true,
		}
	case res.Status == runMemoryLimit:
		return core.Result{
			Text:    fmt.Sprintf("Memory limit exceeded: the program used more than %d MB.", h.cfg.MemoryLimitBytes>>20),
			IsError: true,
		}
	case res.ExitCode != 0:
		return core.Result{Text: Diagnose(res.Stderr, res.ExitCode), IsError: true, Truncated: res.Truncated}
	}

	out := strings.TrimRight(res.Stdout, " \t\r\n")
	if out == "" {
		out = core.NoOutput
	}
	return core.Result{Text: out, Truncated: res.Truncated}
}
