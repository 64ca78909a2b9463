package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"codebot/internal/app"
	"codebot/internal/config"
	"codebot/internal/core"
	"codebot/internal/languages"
	"codebot/pkg/logger"
)

// AppFactory строит приложение по конфигу; подменяется в тестах.
type AppFactory func(ctx context.Context, cfg config.Config, log *slog.Logger, opts app.Options) (*app.App, error)

type rootOptions struct {
	configPath string
	version    string
	newApp     AppFactory
}

// New создает корневую CLI-команду.
func New(version string) *cobra.Command {
	return newRoot(version, app.NewApp)
}

func newRoot(version string, factory AppFactory) *cobra.Command {
	opts := &rootOptions{version: version, newApp: factory}
	root := &cobra.Command{
		Use:           "codebot",
		Short:         "Чат-бот, исполняющий фрагменты кода",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("CODEBOT_CONFIG"), "путь к YAML-конфигу")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newLanguagesCmd(opts))

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить транспорты и планировщик",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log := logger.New(cfg.Bot.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := opts.newApp(ctx, cfg, log, app.Options{Version: opts.version})
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					log.Warn("close app", "err", err)
				}
			}()

			log.Info("codebot started", "version", opts.version)
			if err := a.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			log.Info("codebot stopped")
			return nil
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		message string
		subject string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Обработать одно сообщение и напечатать ответ",
		Long:  "Сообщение берется из --message или из stdin, например: codebot run -m '!code python print(1)'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := message
			if text == "" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("message is empty")
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.Discord.Enabled = false
			cfg.Web.Enabled = false
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Bot.LogLevel)

			a, err := opts.newApp(cmd.Context(), cfg, log, app.Options{Version: opts.version, NoTransports: true})
			if err != nil {
				return err
			}
			defer a.Close()

			svc := a.Service.WithSource("cli")
			handled, err := svc.HandleMessage(cmd.Context(), subject, text, &writerReplier{w: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			if !handled {
				return fmt.Errorf("message must start with %s", cfg.Bot.Prefix)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "текст сообщения")
	cmd.Flags().StringVar(&subject, "subject", "local", "идентификатор автора для allowlist и лимитов")
	return cmd
}

func newLanguagesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "Показать каталог языков",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tFENCE\tEXECUTOR")
			for _, e := range languages.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Name, e.Fence, executor(cfg, e))
			}
			return tw.Flush()
		},
	}
}

func executor(cfg config.Config, e languages.Entry) string {
	switch {
	case e.Strategy == languages.StrategyMarkup:
		return "markup"
	case e.Strategy == languages.StrategySandbox && cfg.Sandbox.Enabled:
		return "sandbox (" + cfg.Sandbox.Image + ")"
	case cfg.Remote.Backend == config.BackendJudge0 && e.Judge0ID > 0,
		cfg.Remote.Backend == config.BackendJDoodle && e.JDoodle != "":
		return cfg.Remote.Backend
	default:
		return "-"
	}
}

// writerReplier печатает ответы бота в терминал.
type writerReplier struct {
	w io.Writer
}

func (r *writerReplier) SendText(ctx context.Context, text string) error {
	_, err := fmt.Fprintln(r.w, text)
	return err
}

func (r *writerReplier) SendFile(ctx context.Context, name, caption string, content []byte) error {
	if _, err := fmt.Fprintf(r.w, "%s\n--- %s ---\n", caption, name); err != nil {
		return err
	}
	_, err := r.w.Write(content)
	if err == nil && len(content) > 0 && content[len(content)-1] != '\n' {
		_, err = fmt.Fprintln(r.w)
	}
	return err
}

var _ core.Replier = (*writerReplier)(nil)
