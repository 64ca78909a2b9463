package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultJDoodleURL - endpoint синхронного исполнения JDoodle.
const DefaultJDoodleURL = "https://api.jdoodle.com/v1/execute"

// compileErrorMarkers - признаки ошибки компиляции в поле output.
var compileErrorMarkers = []string{"Compilation Error", "error: compilation failed"}

// JDoodleConfig настраивает синхронный клиент JDoodle.
type JDoodleConfig struct {
	URL             string
	ClientID        string
	ClientSecret    string
	Timeout         time.Duration
	SubmitPerMinute int
	Logger          *slog.Logger
	HTTPClient      *http.Client
}

// JDoodle - синхронный клиент: один POST возвращает вывод программы.
type JDoodle struct {
	url          string
	clientID     string
	clientSecret string
	client       *http.Client
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewJDoodle создает клиент JDoodle; учетные данные обязательны.
func NewJDoodle(cfg JDoodleConfig) (*JDoodle, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("jdoodle client id and secret are required")
	}
	endpoint := strings.TrimSpace(cfg.URL)
	if endpoint == "" {
		endpoint = DefaultJDoodleURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JDoodle{
		url:          endpoint,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       client,
		limiter:      newSubmitLimiter(cfg.SubmitPerMinute),
		logger:       logger,
	}, nil
}

func (j *JDoodle) Name() string { return "jdoodle" }

type jdoodleRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	Script       string `json:"script"`
	Language     string `json:"language"`
	VersionIndex string `json:"versionIndex"`
	Stdin        string `json:"stdin,omitempty"`
}

type jdoodleResponse struct {
	Output     *string `json:"output"`
	StatusCode int     `json:"statusCode"`
	Error      string  `json:"error"`
}

// Execute отправляет код и возвращает поле output без изменений.
func (j *JDoodle) Execute(ctx context.Context, sub Submission) Outcome {
	if sub.Language.Name == "" {
		return Outcome{Text: "Language is not supported by the execution service.", IsError: true, Status: "unsupported"}
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return transportFailure("request", err)
	}

	body, err := json.Marshal(jdoodleRequest{
		ClientID:     j.clientID,
		ClientSecret: j.clientSecret,
		Script:       sub.Source,
		Language:     sub.Language.Name,
		VersionIndex: sub.Language.Version,
		Stdin:        sub.Stdin,
	})
	if err != nil {
		return transportFailure("request", fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return transportFailure("request", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := doRequest(j.client, req)
	if err != nil {
		j.logger.Warn("jdoodle request failed", "language", sub.Language.Name, "err", err)
		return transportFailure("request", err)
	}
	var parsed jdoodleResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return transportFailure("request", fmt.Errorf("%w: %v", errInvalidResponse, err))
	}
	if parsed.Error != "" {
		return Outcome{Text: fmt.Sprintf("Execution service rejected the request: %s", parsed.Error), IsError: true, Status: "rejected"}
	}
	if parsed.Output == nil {
		return transportFailure("request", fmt.Errorf("%w: missing output field", errInvalidResponse))
	}

	output := *parsed.Output
	for _, marker := range compileErrorMarkers {
		if strings.Contains(output, marker) {
			return Outcome{Text: output, IsError: true, Status: "compilation_error"}
		}
	}
	if strings.TrimSpace(output) == "" {
		output = orPlaceholder(output)
	}
	return Outcome{Text: output, Status: "ok"}
}
