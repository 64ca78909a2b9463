package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"codebot/internal/config"
	"codebot/internal/core"
	"codebot/internal/languages"
	"codebot/internal/modules/host"
	"codebot/internal/modules/markup"
	"codebot/internal/modules/runner"
	"codebot/internal/modules/sandbox"
	"codebot/internal/remote"
	"codebot/internal/storage"
	"codebot/internal/storage/kafka"
	"codebot/internal/storage/sqlite"
	"codebot/internal/transports/common"
	"codebot/internal/transports/discord"
	"codebot/internal/transports/web"
)

// Options управляет сборкой приложения.
type Options struct {
	Version string
	// NoTransports собирает только пайплайн (для CLI run).
	NoTransports bool
}

// App агрегирует зависимости бота.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Registry   *core.Registry
	Service    *common.Service
	Transports *core.TransportManager
	Store      storage.Store
	Limiter    *common.RateLimiter
	Host       *host.Collector

	closers []io.Closer
}

// NewApp строит приложение: обработчики языков, хранилище, аудит и транспорты.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Transports: core.NewTransportManager(),
		Host:       host.NewCollector(),
	}

	backend, err := newBackend(cfg, logger)
	if err != nil {
		return nil, err
	}
	handlers, closers, err := buildHandlers(cfg, backend, logger)
	a.closers = append(a.closers, closers...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Registry, err = core.NewRegistry(ctx, handlers...)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}

	sinks, err := a.openStorage(cfg)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Bot.RateLimit.Requests > 0 {
		a.Limiter = common.NewRateLimiter(cfg.Bot.RateLimit.Requests, time.Duration(cfg.Bot.RateLimit.WindowSeconds)*time.Second)
	}
	formatter := core.NewFormatter(languages.Extensions())
	formatter.InlineLimit = cfg.Formatter.InlineLimit
	formatter.MaxAttachment = cfg.Formatter.MaxAttachmentBytes

	a.Service = &common.Service{
		Source:      "discord",
		Prefix:      cfg.Bot.Prefix,
		HelpCommand: cfg.Bot.HelpCommand,
		Registry:    a.Registry,
		Formatter:   formatter,
		Fences:      fences(),
		Authorizer:  core.NewAllowlistAuthorizer(cfg.Security.AuthAllowlist),
		RateLimiter: a.Limiter,
		Status:      a.hostStatus,
		Timeout:     time.Duration(cfg.Bot.HandlerTimeoutSeconds) * time.Second,
		Logger:      logger,
	}
	if len(sinks) > 0 {
		a.Service.AuditSink = sinks
	}

	if opts.NoTransports {
		return a, nil
	}
	if err := a.registerTransports(cfg, opts); err != nil {
		_ = a.Close()
		return nil, err
	}
	logger.Info("app ready",
		"languages", a.Registry.Languages(),
		"transports", a.Transports.Names(),
		"remote_backend", cfg.Remote.Backend,
		"sandbox", cfg.Sandbox.Enabled,
	)
	return a, nil
}

func newBackend(cfg config.Config, logger *slog.Logger) (remote.Backend, error) {
	limits := remote.Limits{
		CPUTime:       time.Duration(cfg.Remote.CPUTimeSeconds * float64(time.Second)),
		MemoryLimitKB: cfg.Remote.MemoryLimitKB,
	}
	timeout := time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	switch cfg.Remote.Backend {
	case config.BackendJudge0:
		b, err := remote.NewJudge0(remote.Judge0Config{
			BaseURL:         cfg.Remote.Judge0.URL,
			APIKey:          cfg.Remote.Judge0.APIKey,
			APIHost:         cfg.Remote.Judge0.APIHost,
			AuthToken:       cfg.Remote.Judge0.AuthToken,
			Timeout:         timeout,
			PollInterval:    time.Duration(cfg.Remote.PollIntervalMS) * time.Millisecond,
			MaxPolls:        cfg.Remote.MaxPolls,
			SubmitPerMinute: cfg.Remote.SubmitPerMinute,
			Limits:          limits,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("judge0 backend: %w", err)
		}
		return b, nil
	case config.BackendJDoodle:
		b, err := remote.NewJDoodle(remote.JDoodleConfig{
			URL:             cfg.Remote.JDoodle.URL,
			ClientID:        cfg.Remote.JDoodle.ClientID,
			ClientSecret:    cfg.Remote.JDoodle.ClientSecret,
			Timeout:         timeout,
			SubmitPerMinute: cfg.Remote.SubmitPerMinute,
			Logger:          logger,
		})
		if err != nil {
			return nil, fmt.Errorf("jdoodle backend: %w", err)
		}
		return b, nil
	case config.BackendNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown remote backend %q", cfg.Remote.Backend)
	}
}

// buildHandlers выбирает обработчик для каждого языка каталога. Языки,
// которые нечем исполнить, пропускаются.
func buildHandlers(cfg config.Config, backend remote.Backend, logger *slog.Logger) ([]core.Handler, []io.Closer, error) {
	var (
		handlers []core.Handler
		closers  []io.Closer
	)
	markupOpts := markup.Options{Highlight: cfg.Formatter.Highlight, Style: cfg.Formatter.Style}
	for _, entry := range languages.All() {
		switch {
		case entry.Strategy == languages.StrategyMarkup && entry.Name == "html":
			handlers = append(handlers, markup.NewHTML(markupOpts))
		case entry.Strategy == languages.StrategyMarkup && entry.Name == "css":
			handlers = append(handlers, markup.NewCSS(markupOpts))
		case entry.Strategy == languages.StrategySandbox && cfg.Sandbox.Enabled:
			h, err := sandbox.New(sandbox.Config{
				Image:            cfg.Sandbox.Image,
				TimeLimit:        time.Duration(cfg.Sandbox.TimeLimitSeconds) * time.Second,
				MemoryLimitBytes: cfg.Sandbox.MemoryMB << 20,
				NanoCPUs:         int64(cfg.Sandbox.CPUs * 1e9),
				PidsLimit:        cfg.Sandbox.PidsLimit,
				MaxOutputBytes:   cfg.Sandbox.MaxOutputBytes,
				PullOnInit:       cfg.Sandbox.PullOnStart,
			}, logger)
			if err != nil {
				return nil, closers, err
			}
			handlers = append(handlers, h)
			closers = append(closers, h)
		case supports(backend, entry):
			h, err := runner.New(entry, backend)
			if err != nil {
				return nil, closers, fmt.Errorf("%s: %w", entry.Name, err)
			}
			handlers = append(handlers, h)
		default:
			logger.Debug("language skipped: no executor", "language", entry.Name)
		}
	}
	return handlers, closers, nil
}

func supports(backend remote.Backend, entry languages.Entry) bool {
	if backend == nil {
		return false
	}
	switch backend.Name() {
	case config.BackendJudge0:
		return entry.Judge0ID > 0
	case config.BackendJDoodle:
		return entry.JDoodle != ""
	default:
		return entry.Remote()
	}
}

func fences() map[string]string {
	out := make(map[string]string)
	for _, e := range languages.All() {
		out[e.Name] = e.Fence
	}
	return out
}

func (a *App) openStorage(cfg config.Config) (storage.FanOut, error) {
	var sinks storage.FanOut
	if cfg.SQLite.Enabled {
		st, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.Store = st
		sinks = append(sinks, st)
	}
	if cfg.Kafka.Enabled {
		sink, err := kafka.NewSink(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		a.closers = append(a.closers, sink)
		sinks = append(sinks, sink)
	}
	return sinks, nil
}

func (a *App) registerTransports(cfg config.Config, opts Options) error {
	if cfg.Discord.Enabled {
		dc, err := discord.NewAdapter(cfg.Discord.Token, a.Service.WithSource("discord"), a.Logger)
		if err != nil {
			return fmt.Errorf("discord transport: %w", err)
		}
		if err := a.Transports.Register(dc); err != nil {
			return fmt.Errorf("register discord transport: %w", err)
		}
	}
	if cfg.Web.Enabled {
		tokens := make([]web.TokenEntry, 0, len(cfg.Web.Tokens))
		for _, token := range cfg.Web.Tokens {
			tokens = append(tokens, web.TokenEntry{
				ID:          token.ID,
				TokenSHA256: token.TokenSHA256,
				Subject:     token.Subject,
				Roles:       token.Roles,
				Enabled:     token.Enabled,
			})
		}
		webAdapter := web.NewAdapter(a.Service, a.Store, web.Config{
			ListenAddr:               cfg.Web.ListenAddr,
			ReadTimeout:              time.Duration(cfg.Web.ReadTimeoutMS) * time.Millisecond,
			WriteTimeout:             time.Duration(cfg.Web.WriteTimeoutMS) * time.Millisecond,
			RequestTimeout:           time.Duration(cfg.Web.RequestTimeoutMS) * time.Millisecond,
			ShutdownTimeout:          time.Duration(cfg.Web.ShutdownTimeoutS) * time.Second,
			MaxRequestBody:           cfg.Web.MaxBodyBytes,
			AllowLegacySubjectHeader: cfg.Web.AllowLegacySubjectHeader,
			EnableMCP:                cfg.Web.EnableMCP,
			Version:                  opts.Version,
			Tokens:                   tokens,
			CORSAllowedOrigins:       cfg.Web.CORSAllowedOrigins,
		}, a.Logger)
		if err := a.Transports.Register(webAdapter); err != nil {
			return fmt.Errorf("register web transport: %w", err)
		}
	}
	return nil
}

func (a *App) hostStatus(ctx context.Context) (string, error) {
	st, err := a.Host.Collect(ctx)
	if err != nil {
		return "", err
	}
	return st.Render(), nil
}

// Close высвобождает ресурсы приложения.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.Store = nil
	}
	return errors.Join(errs...)
}

// Serve запускает транспорты и планировщик до отмены контекста.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Transports.StartAll(ctx); err != nil {
		return fmt.Errorf("start transports: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Transports.StopAll(stopCtx); err != nil {
			a.Logger.Warn("stop transports", "err", err)
		}
	}()

	interval := time.Duration(a.Config.Scheduler.IntervalSeconds) * time.Second
	sched := core.NewScheduler(interval, a.Logger)
	a.addJobs(sched)
	sched.Start(ctx)
	return ctx.Err()
}

func (a *App) addJobs(sched *core.Scheduler) {
	if a.Store != nil {
		sched.Add("host_snapshot", a.snapshotHost)
		if a.Config.SQLite.RetentionDays > 0 {
			sched.Add("retention", a.purgeExpired)
		}
	}
	if a.Limiter != nil {
		sched.Add("rate_limit_prune", func(ctx context.Context) error {
			if n := a.Limiter.Prune(time.Now()); n > 0 {
				a.Logger.Debug("rate limiter pruned", "keys", n)
			}
			return nil
		})
	}
}

func (a *App) snapshotHost(ctx context.Context) error {
	runCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	st, err := a.Host.Collect(runCtx)
	if err != nil {
		return fmt.Errorf("host status: %w", err)
	}
	payload, err := sqlite.MarshalPayload(st)
	if err != nil {
		return err
	}
	return a.Store.SaveMetric(ctx, storage.MetricRecord{Module: "host", Payload: payload, TS: st.CollectedAt})
}

func (a *App) purgeExpired(ctx context.Context) error {
	before := time.Now().UTC().AddDate(0, 0, -a.Config.SQLite.RetentionDays)
	audit, err := a.Store.PurgeAudit(ctx, before)
	if err != nil {
		return fmt.Errorf("purge audit: %w", err)
	}
	metrics, err := a.Store.PurgeMetrics(ctx, before)
	if err != nil {
		return fmt.Errorf("purge metrics: %w", err)
	}
	if audit > 0 || metrics > 0 {
		a.Logger.Info("retention purge", "audit_rows", audit, "metric_rows", metrics, "before", before)
	}
	return nil
}
