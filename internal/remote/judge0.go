package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultPollInterval - пауза перед каждым опросом статуса.
	DefaultPollInterval = time.Second
	// DefaultMaxPolls - максимальное число опросов одной submission.
	DefaultMaxPolls = 10

	judge0Fields = "stdout,stderr,compile_output,message,status"
)

// Judge0Config настраивает клиент Judge0.
type Judge0Config struct {
	BaseURL string
	// APIKey и APIHost используются для Judge0 на RapidAPI.
	APIKey  string
	APIHost string
	// AuthToken используется для self-hosted Judge0 (X-Auth-Token).
	AuthToken       string
	Timeout         time.Duration
	PollInterval    time.Duration
	MaxPolls        int
	SubmitPerMinute int
	Limits          Limits
	Logger          *slog.Logger
	HTTPClient      *http.Client
}

// Judge0 - асинхронный клиент: создает submission и опрашивает ее статус.
type Judge0 struct {
	baseURL  string
	headers  map[string]string
	client   *http.Client
	interval time.Duration
	maxPolls int
	limits   Limits
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewJudge0 создает клиент Judge0.
func NewJudge0(cfg Judge0Config) (*Judge0, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("judge0 base url is empty")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("judge0 base url: %w", err)
	}
	headers := map[string]string{}
	if cfg.APIKey != "" {
		headers["X-RapidAPI-Key"] = cfg.APIKey
	}
	if cfg.APIHost != "" {
		headers["X-RapidAPI-Host"] = cfg.APIHost
	}
	if cfg.AuthToken != "" {
		headers["X-Auth-Token"] = cfg.AuthToken
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxPolls := cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge0{
		baseURL:  base,
		headers:  headers,
		client:   client,
		interval: interval,
		maxPolls: maxPolls,
		limits:   cfg.Limits.withDefaults(),
		limiter:  newSubmitLimiter(cfg.SubmitPerMinute),
		logger:   logger,
	}, nil
}

func (j *Judge0) Name() string { return "judge0" }

type judge0Request struct {
	SourceCode   string  `json:"source_code"`
	LanguageID   int     `json:"language_id"`
	Stdin        string  `json:"stdin,omitempty"`
	CPUTimeLimit float64 `json:"cpu_time_limit"`
	MemoryLimit  int     `json:"memory_limit"`
}

type judge0Token struct {
	Token string `json:"token"`
}

type judge0Submission struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Message       *string `json:"message"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

// Execute отправляет код и опрашивает статус не более MaxPolls раз.
func (j *Judge0) Execute(ctx context.Context, sub Submission) Outcome {
	if sub.Language.ID <= 0 {
		return Outcome{Text: "Language is not supported by the execution service.", IsError: true, Status: "unsupported"}
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return transportFailure("submission", err)
	}

	token, err := j.submit(ctx, sub)
	if err != nil {
		j.logger.Warn("judge0 submit failed", "language_id", sub.Language.ID, "err", err)
		return transportFailure("submission", err)
	}

	var report Report
	for attempt := 1; attempt <= j.maxPolls; attempt++ {
		if err := sleep(ctx, j.interval); err != nil {
			return transportFailure("polling", err)
		}
		report, err = j.poll(ctx, token)
		if err != nil {
			j.logger.Warn("judge0 poll failed", "token", token, "attempt", attempt, "err", err)
			return transportFailure("polling", err)
		}
		if !report.Status.Pending() {
			break
		}
	}
	if report.Status.Pending() {
		return Outcome{
			Text:    fmt.Sprintf("Execution is still processing after %d status checks (last status: %s). Try again later.", j.maxPolls, report.Status),
			IsError: true,
			Status:  report.Status.String(),
		}
	}
	return Describe(report, j.limits)
}

func (j *Judge0) submit(ctx context.Context, sub Submission) (string, error) {
	payload := judge0Request{
		SourceCode:   encode(sub.Source),
		LanguageID:   sub.Language.ID,
		Stdin:        encode(sub.Stdin),
		CPUTimeLimit: j.limits.CPUTime.Seconds(),
		MemoryLimit:  j.limits.MemoryLimitKB,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/submissions?base64_encoded=true&wait=false", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	j.setHeaders(req)

	data, err := doRequest(j.client, req)
	if err != nil {
		return "", err
	}
	var tok judge0Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", errInvalidResponse, err)
	}
	if strings.TrimSpace(tok.Token) == "" {
		return "", fmt.Errorf("%w: empty submission token", errInvalidResponse)
	}
	return tok.Token, nil
}

func (j *Judge0) poll(ctx context.Context, token string) (Report, error) {
	endpoint := fmt.Sprintf("%s/submissions/%s?base64_encoded=true&fields=%s", j.baseURL, url.PathEscape(token), judge0Fields)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Report{}, fmt.Errorf("build request: %w", err)
	}
	j.setHeaders(req)

	data, err := doRequest(j.client, req)
	if err != nil {
		return Report{}, err
	}
	var sub judge0Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return Report{}, fmt.Errorf("%w: decode submission: %v", errInvalidResponse, err)
	}

	report := Report{Status: StatusID(sub.Status.ID), Description: sub.Status.Description}
	fields := []struct {
		src *string
		dst *string
	}{
		{sub.Stdout, &report.Stdout},
		{sub.Stderr, &report.Stderr},
		{sub.CompileOutput, &report.CompileOutput},
		{sub.Message, &report.Message},
	}
	for _, f := range fields {
		if f.src == nil {
			continue
		}
		decoded, err := decode(*f.src)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %v", errInvalidResponse, err)
		}
		*f.dst = decoded
	}
	return report, nil
}

func (j *Judge0) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	for key, value := range j.headers {
		req.Header.Set(key, value)
	}
}

func encode(s string) string {
	if s == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(s))
}

// decode терпит переводы строк, которые Judge0 вставляет в base64.
func decode(s string) (string, error) {
	clean := strings.NewReplacer("\n", "", "\r", "").Replace(s)
	out, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return "", fmt.Errorf("decode base64 field: %w", err)
	}
	return string(out), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
