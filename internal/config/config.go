package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config описывает параметры бота.
type Config struct {
	Bot struct {
		Prefix                string `yaml:"prefix"`
		HelpCommand           string `yaml:"help_command"`
		LogLevel              string `yaml:"log_level"`
		HandlerTimeoutSeconds int    `yaml:"handler_timeout_seconds"`
		RateLimit             struct {
			Requests      int `yaml:"requests"`
			WindowSeconds int `yaml:"window_seconds"`
		} `yaml:"rate_limit"`
	} `yaml:"bot"`
	Discord struct {
		Enabled bool   `yaml:"enabled"`
		Token   string `yaml:"token"`
	} `yaml:"discord"`
	Remote struct {
		// Backend: judge0, jdoodle или none.
		Backend         string  `yaml:"backend"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		PollIntervalMS  int     `yaml:"poll_interval_ms"`
		MaxPolls        int     `yaml:"max_polls"`
		SubmitPerMinute int     `yaml:"submit_per_minute"`
		CPUTimeSeconds  float64 `yaml:"cpu_time_seconds"`
		MemoryLimitKB   int     `yaml:"memory_limit_kb"`
		Judge0          struct {
			URL       string `yaml:"url"`
			APIKey    string `yaml:"api_key"`
			APIHost   string `yaml:"api_host"`
			AuthToken string `yaml:"auth_token"`
		} `yaml:"judge0"`
		JDoodle struct {
			URL          string `yaml:"url"`
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
		} `yaml:"jdoodle"`
	} `yaml:"remote"`
	Sandbox struct {
		Enabled          bool    `yaml:"enabled"`
		Image            string  `yaml:"image"`
		TimeLimitSeconds int     `yaml:"time_limit_seconds"`
		MemoryMB         int64   `yaml:"memory_mb"`
		CPUs             float64 `yaml:"cpus"`
		PidsLimit        int64   `yaml:"pids_limit"`
		MaxOutputBytes   int     `yaml:"max_output_bytes"`
		PullOnStart      bool    `yaml:"pull_on_start"`
	} `yaml:"sandbox"`
	Formatter struct {
		InlineLimit        int    `yaml:"inline_limit"`
		MaxAttachmentBytes int    `yaml:"max_attachment_bytes"`
		Highlight          bool   `yaml:"highlight"`
		Style              string `yaml:"style"`
	} `yaml:"formatter"`
	Security struct {
		AuthAllowlist map[string][]string `yaml:"auth_allowlist"`
	} `yaml:"security"`
	SQLite struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"sqlite"`
	Scheduler struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"scheduler"`
	Web struct {
		Enabled                  bool       `yaml:"enabled"`
		ListenAddr               string     `yaml:"listen_addr"`
		ReadTimeoutMS            int        `yaml:"read_timeout_ms"`
		WriteTimeoutMS           int        `yaml:"write_timeout_ms"`
		RequestTimeoutMS         int        `yaml:"request_timeout_ms"`
		ShutdownTimeoutS         int        `yaml:"shutdown_timeout_s"`
		MaxBodyBytes             int64      `yaml:"max_body_bytes"`
		AllowLegacySubjectHeader bool       `yaml:"allow_legacy_subject_header"`
		EnableMCP                bool       `yaml:"enable_mcp"`
		Tokens                   []WebToken `yaml:"tokens"`
		CORSAllowedOrigins       []string   `yaml:"cors_allowed_origins"`
	} `yaml:"web"`
	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

// WebToken описывает bearer-токен web API; хранится только sha256.
type WebToken struct {
	ID          string   `yaml:"id"`
	TokenSHA256 string   `yaml:"token_sha256"`
	Subject     string   `yaml:"subject"`
	Roles       []string `yaml:"roles"`
	Enabled     bool     `yaml:"enabled"`
}

// envOverrides - переменные окружения, перекрывающие YAML. Незаданные
// переменные оставляют поля nil.
type envOverrides struct {
	BotToken        *string  `env:"BOT_TOKEN"`
	Prefix          *string  `env:"CODEBOT_PREFIX"`
	LogLevel        *string  `env:"LOG_LEVEL"`
	Judge0URL       *string  `env:"JUDGE0_URL"`
	Judge0APIKey    *string  `env:"JUDGE0_API_KEY"`
	Judge0APIHost   *string  `env:"JUDGE0_API_HOST"`
	Judge0AuthToken *string  `env:"JUDGE0_AUTH_TOKEN"`
	ClientID        *string  `env:"CLIENT_ID"`
	ClientSecret    *string  `env:"CLIENT_SECRET"`
	RemoteBackend   *string  `env:"CODEBOT_REMOTE_BACKEND"`
	SQLitePath      *string  `env:"CODEBOT_SQLITE_PATH"`
	WebListen       *string  `env:"CODEBOT_WEB_LISTEN"`
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
}

const (
	BackendJudge0  = "judge0"
	BackendJDoodle = "jdoodle"
	BackendNone    = "none"
)

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	var cfg Config
	cfg.Bot.Prefix = "!code"
	cfg.Bot.HelpCommand = "!help"
	cfg.Bot.LogLevel = "info"
	cfg.Bot.HandlerTimeoutSeconds = 60
	cfg.Bot.RateLimit.Requests = 5
	cfg.Bot.RateLimit.WindowSeconds = 60
	cfg.Discord.Enabled = true
	cfg.Remote.Backend = BackendJudge0
	cfg.Remote.TimeoutSeconds = 10
	cfg.Remote.PollIntervalMS = 1000
	cfg.Remote.MaxPolls = 10
	cfg.Remote.SubmitPerMinute = 30
	cfg.Remote.CPUTimeSeconds = 5
	cfg.Remote.MemoryLimitKB = 128000
	cfg.Remote.Judge0.URL = "https://judge0-ce.p.rapidapi.com"
	cfg.Remote.Judge0.APIHost = "judge0-ce.p.rapidapi.com"
	cfg.Remote.JDoodle.URL = "https://api.jdoodle.com/v1/execute"
	cfg.Sandbox.Enabled = true
	cfg.Sandbox.Image = "python:3.12-alpine"
	cfg.Sandbox.TimeLimitSeconds = 5
	cfg.Sandbox.MemoryMB = 128
	cfg.Sandbox.CPUs = 1
	cfg.Sandbox.PidsLimit = 64
	cfg.Sandbox.MaxOutputBytes = 1 << 20
	cfg.Sandbox.PullOnStart = true
	cfg.Formatter.InlineLimit = 1900
	cfg.Formatter.MaxAttachmentBytes = 8 << 20
	cfg.Formatter.Highlight = true
	cfg.Formatter.Style = "monokai"
	cfg.Security.AuthAllowlist = map[string][]string{"discord": {}, "web": {}, "mcp": {}, "cli": {}}
	cfg.SQLite.Enabled = true
	cfg.SQLite.Path = "/var/lib/codebot/state.db"
	cfg.SQLite.RetentionDays = 30
	cfg.Scheduler.IntervalSeconds = 60
	cfg.Web.Enabled = false
	cfg.Web.ListenAddr = "127.0.0.1:8080"
	cfg.Web.ReadTimeoutMS = 5000
	cfg.Web.WriteTimeoutMS = 90000
	cfg.Web.RequestTimeoutMS = 75000
	cfg.Web.ShutdownTimeoutS = 5
	cfg.Web.MaxBodyBytes = 1 << 20
	cfg.Kafka.Topic = "codebot.audit"
	return cfg
}

// Load читает конфиг из файла YAML поверх значений по умолчанию и
// применяет переменные окружения.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- путь к конфигу задается доверенным оператором.
		if err != nil {
			return cfg, err
		}
		if len(data) == 0 {
			return cfg, errors.New("config file is empty")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv перекрывает значения переменными окружения.
func ApplyEnv(cfg *Config) error {
	ov, err := env.ParseAs[envOverrides]()
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&cfg.Discord.Token, ov.BotToken)
	set(&cfg.Bot.Prefix, ov.Prefix)
	set(&cfg.Bot.LogLevel, ov.LogLevel)
	set(&cfg.Remote.Judge0.URL, ov.Judge0URL)
	set(&cfg.Remote.Judge0.APIKey, ov.Judge0APIKey)
	set(&cfg.Remote.Judge0.APIHost, ov.Judge0APIHost)
	set(&cfg.Remote.Judge0.AuthToken, ov.Judge0AuthToken)
	set(&cfg.Remote.JDoodle.ClientID, ov.ClientID)
	set(&cfg.Remote.JDoodle.ClientSecret, ov.ClientSecret)
	set(&cfg.Remote.Backend, ov.RemoteBackend)
	set(&cfg.SQLite.Path, ov.SQLitePath)
	set(&cfg.Web.ListenAddr, ov.WebListen)
	if len(ov.KafkaBrokers) > 0 {
		cfg.Kafka.Brokers = ov.KafkaBrokers
		cfg.Kafka.Enabled = true
	}
	return nil
}

// Validate проверяет, что у включенных компонентов есть обязательные параметры.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Prefix) == "" {
		errs = append(errs, errors.New("bot.prefix is empty"))
	}
	if c.Bot.HandlerTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("bot.handler_timeout_seconds must be positive"))
	}
	if c.Discord.Enabled && c.Discord.Token == "" {
		errs = append(errs, errors.New("discord token is required (BOT_TOKEN)"))
	}

	switch c.Remote.Backend {
	case BackendJudge0:
		if c.Remote.Judge0.URL == "" {
			errs = append(errs, errors.New("remote.judge0.url is required (JUDGE0_URL)"))
		}
		if strings.Contains(c.Remote.Judge0.URL, "rapidapi.com") && c.Remote.Judge0.APIKey == "" {
			errs = append(errs, errors.New("remote.judge0.api_key is required for RapidAPI (JUDGE0_API_KEY)"))
		}
	case BackendJDoodle:
		if c.Remote.JDoodle.ClientID == "" || c.Remote.JDoodle.ClientSecret == "" {
			errs = append(errs, errors.New("jdoodle credentials are required (CLIENT_ID, CLIENT_SECRET)"))
		}
	case BackendNone:
		if !c.Sandbox.Enabled {
			errs = append(errs, errors.New("remote backend none requires sandbox.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("remote.backend %q is unknown", c.Remote.Backend))
	}

	if c.Sandbox.Enabled {
		if c.Sandbox.Image == "" {
			errs = append(errs, errors.New("sandbox.image is empty"))
		}
		if c.Sandbox.TimeLimitSeconds <= 0 || c.Sandbox.MemoryMB <= 0 || c.Sandbox.CPUs <= 0 || c.Sandbox.PidsLimit <= 0 {
			errs = append(errs, errors.New("sandbox limits must be positive"))
		}
	}
	if c.SQLite.Enabled && c.SQLite.Path == "" {
		errs = append(errs, errors.New("sqlite.path is empty"))
	}
	if c.SQLite.RetentionDays < 0 {
		errs = append(errs, errors.New("sqlite.retention_days must not be negative"))
	}
	if c.Web.Enabled {
		if c.Web.ListenAddr == "" {
			errs = append(errs, errors.New("web.listen_addr is empty"))
		}
		for _, tok := range c.Web.Tokens {
			if len(strings.TrimSpace(tok.TokenSHA256)) != 64 {
				errs = append(errs, fmt.Errorf("web token %q: token_sha256 must be 64 hex chars", tok.ID))
			}
		}
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka brokers and topic are required (KAFKA_BROKERS)"))
	}
	return errors.Join(errs...)
}
