package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codebot/internal/core"
	"codebot/internal/storage"
	"codebot/internal/transports/common"
)

type contextKey string

const (
	ctxRequestID  contextKey = "request_id"
	ctxSubjectID  contextKey = "subject_id"
	ctxRoles      contextKey = "roles"
	ctxAuthMethod contextKey = "auth_method"
)

// TokenEntry описывает web bearer-токен.
type TokenEntry struct {
	ID          string   `yaml:"id"`
	TokenSHA256 string   `yaml:"token_sha256"`
	Subject     string   `yaml:"subject"`
	Roles       []string `yaml:"roles"`
	Enabled     bool     `yaml:"enabled"`
}

// Config определяет параметры HTTP-транспорта.
type Config struct {
	ListenAddr               string
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	ShutdownTimeout          time.Duration
	RequestTimeout           time.Duration
	MaxRequestBody           int64
	AllowLegacySubjectHeader bool
	EnableMCP                bool
	Version                  string
	Tokens                   []TokenEntry
	CORSAllowedOrigins       []string
	CORSAllowedMethods       []string
	CORSAllowedHeaders       []string
}

// Adapter реализует web transport поверх net/http.
type Adapter struct {
	svc        *common.Service
	mcpSvc     *common.Service
	authorizer core.Authorizer
	store      storage.Store
	cfg        Config
	logger     *slog.Logger

	tokensByHash map[string]TokenEntry
	corsOrigins  map[string]struct{}

	mu     sync.Mutex
	server *http.Server
}

type runRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
	Stdin    string `json:"stdin"`
}

// NewAdapter создает web transport. store может быть nil: тогда endpoints
// аудита и метрик отвечают 503.
func NewAdapter(svc *common.Service, store storage.Store, cfg Config, logger *slog.Logger) *Adapter {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 75 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = cfg.RequestTimeout + 15*time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if cfg.MaxRequestBody <= 0 {
		cfg.MaxRequestBody = 1 << 20
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if len(cfg.CORSAllowedMethods) == 0 {
		cfg.CORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(cfg.CORSAllowedHeaders) == 0 {
		cfg.CORSAllowedHeaders = []string{"Authorization", "Content-Type", "X-Request-ID", "Mcp-Session-Id"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	tokensByHash := make(map[string]TokenEntry, len(cfg.Tokens))
	for _, token := range cfg.Tokens {
		h := strings.ToLower(strings.TrimSpace(token.TokenSHA256))
		if len(h) != 64 {
			logger.Warn("web token skipped: bad sha256", "token_id", token.ID)
			continue
		}
		tokensByHash[h] = token
	}

	corsOrigins := make(map[string]struct{}, len(cfg.CORSAllowedOrigins))
	for _, origin := range cfg.CORSAllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		corsOrigins[trimmed] = struct{}{}
	}

	return &Adapter{
		svc:          svc.WithSource("web"),
		mcpSvc:       svc.WithSource("mcp"),
		authorizer:   svc.Authorizer,
		store:        store,
		cfg:          cfg,
		logger:       logger,
		tokensByHash: tokensByHash,
		corsOrigins:  corsOrigins,
	}
}

func (a *Adapter) Name() string { return "web" }

// Start запускает HTTP server и останавливает его при отмене контекста.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.server != nil {
		a.mu.Unlock()
		return errors.New("web transport already started")
	}
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.routes(),
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: a.cfg.ReadTimeout,
		WriteTimeout:      a.cfg.WriteTimeout,
	}
	a.server = srv
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(stopCtx)
	}()

	go func() {
		a.logger.Info("web transport listening", "addr", a.cfg.ListenAddr, "mcp", a.cfg.EnableMCP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("web transport stopped", "err", err)
			_ = a.writeAudit(context.Background(), "", "web:serve", "error", map[string]string{"error": err.Error()}, "")
		}
	}()
	return nil
}

// Stop завершает HTTP server.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.server
	a.server = nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type middleware func(http.Handler) http.Handler

func chain(h http.Handler, mws ...middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func (a *Adapter) routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /v1/health", http.HandlerFunc(a.handleHealth))

	protected := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), a.timeoutMiddleware(), a.authSubjectMiddleware())

	mux.Handle("GET /v1/", protected)
	mux.Handle("POST /v1/", protected)

	mux.Handle("GET /v1/me", chain(http.HandlerFunc(a.handleMe),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
	))

	mux.Handle("GET /v1/languages", chain(http.HandlerFunc(a.handleLanguages),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
	))

	// Авторизация и лимиты для run выполняются внутри common.Service.
	mux.Handle("POST /v1/run", chain(http.HandlerFunc(a.handleRun),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
		a.maxBodyMiddleware(),
	))

	mux.Handle("GET /v1/metrics/latest", chain(http.HandlerFunc(a.handleLatestMetric),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
		a.authorizeActionMiddleware("web:metrics_latest", core.Action{Kind: "metrics"}),
	))

	mux.Handle("GET /v1/audit", chain(http.HandlerFunc(a.handleAudit),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
		a.authorizeActionMiddleware("web:audit_query", core.Action{Kind: "audit"}),
	))

	mux.Handle("GET /v1/audit/stats", chain(http.HandlerFunc(a.handleAuditStats),
		a.timeoutMiddleware(),
		a.authSubjectMiddleware(),
		a.authorizeActionMiddleware("web:audit_stats", core.Action{Kind: "audit"}),
	))

	if a.cfg.EnableMCP {
		mux.Handle("/mcp", chain(a.mcpHandler(),
			a.authSubjectMiddleware(),
			a.maxBodyMiddleware(),
		))
	}

	return chain(mux, a.requestIDMiddleware(), a.corsMiddleware())
}

func (a *Adapter) requestIDMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := sanitizeRequestID(r.Header.Get("X-Request-ID"))
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), ctxRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) corsMiddleware() middleware {
	allowMethods := strings.Join(a.cfg.CORSAllowedMethods, ", ")
	allowHeaders := strings.Join(a.cfg.CORSAllowedHeaders, ", ")

	isMethodAllowed := func(method string) bool {
		for _, m := range a.cfg.CORSAllowedMethods {
			if strings.EqualFold(strings.TrimSpace(m), method) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimSpace(r.Header.Get("Origin"))
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			if _, ok := a.corsOrigins[origin]; !ok {
				writeError(w, r, http.StatusForbidden, "cors_denied")
				return
			}

			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", allowMethods)
			w.Header().Set("Access-Control-Allow-Headers", allowHeaders)

			if r.Method == http.MethodOptions {
				preflightMethod := strings.TrimSpace(r.Header.Get("Access-Control-Request-Method"))
				if preflightMethod != "" && !isMethodAllowed(preflightMethod) {
					writeError(w, r, http.StatusForbidden, "cors_method_denied")
					return
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) timeoutMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), a.cfg.RequestTimeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) authSubjectMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID, roles, authMethod, code := a.resolveSubject(r)
			if code != "" {
				writeError(w, r, http.StatusUnauthorized, code)
				return
			}
			ctx := context.WithValue(r.Context(), ctxSubjectID, subjectID)
			ctx = context.WithValue(ctx, ctxRoles, roles)
			ctx = context.WithValue(ctx, ctxAuthMethod, authMethod)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (a *Adapter) resolveSubject(r *http.Request) (string, []string, string, string) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[7:])
		if token == "" {
			return "", nil, "", "invalid_token"
		}
		sum := sha256.Sum256([]byte(token))
		hash := hex.EncodeToString(sum[:])
		entry, ok := a.tokensByHash[hash]
		if !ok || !entry.Enabled || entry.Subject == "" {
			return "", nil, "", "invalid_token"
		}
		roles := append([]string(nil), entry.Roles...)
		return entry.Subject, roles, "bearer", ""
	}

	if a.cfg.AllowLegacySubjectHeader {
		subjectID := strings.TrimSpace(r.Header.Get("X-Subject-ID"))
		if subjectID != "" {
			return subjectID, nil, "legacy_header", ""
		}
	}

	return "", nil, "", "auth_required"
}

func (a *Adapter) maxBodyMiddleware() middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestBody)
			next.ServeHTTP(w, r)
		})
	}
}

func (a *Adapter) authorizeActionMiddleware(auditAction string, authAction core.Action) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subjectID := subjectIDFromContext(r.Context())
			if subjectID == "" {
				writeError(w, r, http.StatusUnauthorized, "auth_required")
				return
			}
			if a.authorizer != nil {
				if err := a.authorizer.Authorize(core.Subject{Source: "web", ID: subjectID}, authAction); err != nil {
					writeError(w, r, http.StatusForbidden, "access_denied")
					_ = a.writeAudit(r.Context(), subjectID, auditAction, "denied", map[string]string{"auth_method": authMethodFromContext(r.Context())}, requestIDFromContext(r.Context()))
					return
				}
			}
			if a.store == nil {
				writeError(w, r, http.StatusServiceUnavailable, "storage_disabled")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func decodeRunRequest(r *http.Request) (runRequest, string, int) {
	var req runRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return runRequest{}, "payload_too_large", http.StatusRequestEntityTooLarge
		}
		return runRequest{}, "invalid_json", http.StatusBadRequest
	}
	if dec.More() {
		return runRequest{}, "invalid_json", http.StatusBadRequest
	}
	if strings.TrimSpace(req.Source) == "" {
		return runRequest{}, "source_required", http.StatusBadRequest
	}
	return req, "", 0
}

func sanitizeRequestID(v string) string {
	id := strings.TrimSpace(v)
	if id == "" || len(id) > 64 {
		return ""
	}
	for _, ch := range id {
		if (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			continue
		}
		switch ch {
		case '-', '_', '.', ':':
			continue
		default:
			return ""
		}
	}
	return id
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Adapter) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id":  requestIDFromContext(r.Context()),
		"subject":     subjectIDFromContext(r.Context()),
		"roles":       rolesFromContext(r.Context()),
		"auth_method": authMethodFromContext(r.Context()),
	})
}

func (a *Adapter) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"items":      a.svc.Languages(),
	})
}

func (a *Adapter) handleRun(w http.ResponseWriter, r *http.Request) {
	subjectID := subjectIDFromContext(r.Context())
	requestID := requestIDFromContext(r.Context())

	req, code, statusCode := decodeRunRequest(r)
	if code != "" {
		writeError(w, r, statusCode, code)
		return
	}

	res, err := a.svc.Run(r.Context(), subjectID, core.CodeRequest{Language: req.Language, Source: req.Source, Stdin: req.Stdin})
	if err != nil {
		a.writeRunError(w, r, err)
		return
	}
	if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
		writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"language":   core.NormalizeLanguage(orDefault(req.Language)),
		"text":       res.Text,
		"is_error":   res.IsError,
		"truncated":  res.Truncated,
		"fence":      res.Fence,
	})
}

func (a *Adapter) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		unsupported *core.UnsupportedLanguageError
		limited     *common.RateLimitError
	)
	switch {
	case errors.As(err, &unsupported):
		writeJSON(w, r, http.StatusBadRequest, map[string]interface{}{
			"request_id": requestIDFromContext(r.Context()),
			"error_code": "unsupported_language",
			"message":    unsupported.Message(),
			"supported":  unsupported.Supported,
		})
	case core.IsAccessDenied(err):
		writeError(w, r, http.StatusForbidden, "access_denied")
	case errors.As(err, &limited):
		secs := int(limited.RetryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, r, http.StatusTooManyRequests, "rate_limited")
	case common.IsBadRequest(err):
		writeError(w, r, http.StatusBadRequest, "source_required")
	default:
		a.logger.Error("web run failed", "request_id", requestIDFromContext(r.Context()), "err", err)
		writeError(w, r, http.StatusInternalServerError, "run_failed")
	}
}

func (a *Adapter) handleLatestMetric(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	subjectID := subjectIDFromContext(r.Context())
	authMethod := authMethodFromContext(r.Context())

	module := r.URL.Query().Get("module")
	if module == "" {
		module = "host"
	}

	rec, err := a.store.LatestMetric(r.Context(), module)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			_ = a.writeAudit(r.Context(), subjectID, "web:metrics_latest", "error", map[string]string{"module": module, "error_code": "request_timeout", "auth_method": authMethod}, requestID)
			return
		}
		writeError(w, r, http.StatusNotFound, "metric_not_found")
		_ = a.writeAudit(r.Context(), subjectID, "web:metrics_latest", "error", map[string]string{"module": module, "auth_method": authMethod}, requestID)
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"module":     rec.Module,
		"ts":         rec.TS.UTC().Format(time.RFC3339),
		"payload":    json.RawMessage(rec.Payload),
	})
	_ = a.writeAudit(r.Context(), subjectID, "web:metrics_latest", "ok", map[string]string{"module": module, "auth_method": authMethod}, requestID)
}

func (a *Adapter) handleAudit(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())
	subjectID := subjectIDFromContext(r.Context())
	authMethod := authMethodFromContext(r.Context())

	q := storage.AuditQuery{
		Subject: r.URL.Query().Get("subject"),
		Action:  r.URL.Query().Get("action"),
		Limit:   parseLimit(r.URL.Query().Get("limit")),
	}
	from, ok := parseTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := parseTime(w, r, "to")
	if !ok {
		return
	}
	q.From, q.To = from, to

	events, err := a.store.QueryAudit(r.Context(), q)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			_ = a.writeAudit(r.Context(), subjectID, "web:audit_query", "error", map[string]string{"error_code": "request_timeout", "auth_method": authMethod}, requestID)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "query_failed")
		_ = a.writeAudit(r.Context(), subjectID, "web:audit_query", "error", map[string]string{"auth_method": authMethod}, requestID)
		return
	}

	type eventDTO struct {
		Subject   string          `json:"subject"`
		Action    string          `json:"action"`
		Source    string          `json:"source"`
		Status    string          `json:"status"`
		RequestID string          `json:"request_id"`
		Payload   json.RawMessage `json:"payload,omitempty"`
		TS        string          `json:"ts"`
	}
	payload := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dto := eventDTO{
			Subject:   ev.Subject,
			Action:    ev.Action,
			Source:    ev.Source,
			Status:    ev.Status,
			RequestID: ev.RequestID,
			TS:        ev.TS.UTC().Format(time.RFC3339),
		}
		if json.Valid(ev.Payload) {
			dto.Payload = json.RawMessage(ev.Payload)
		}
		payload = append(payload, dto)
	}

	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"items":      payload,
	})
	_ = a.writeAudit(r.Context(), subjectID, "web:audit_query", "ok", map[string]string{"items": strconv.Itoa(len(payload)), "auth_method": authMethod}, requestID)
}

func (a *Adapter) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	since, ok := parseTime(w, r, "since")
	if !ok {
		return
	}
	if since.IsZero() {
		since = time.Now().Add(-24 * time.Hour)
	}
	stats, err := a.store.AuditStats(r.Context(), since)
	if err != nil {
		if errors.Is(r.Context().Err(), context.DeadlineExceeded) {
			writeError(w, r, http.StatusGatewayTimeout, "request_timeout")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "query_failed")
		return
	}
	if stats == nil {
		stats = []storage.ActionStat{}
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"request_id": requestIDFromContext(r.Context()),
		"since":      since.UTC().Format(time.RFC3339),
		"items":      stats,
	})
}

func parseTime(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, true
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_"+key)
		return time.Time{}, false
	}
	return ts, true
}

func requestIDFromContext(ctx context.Context) string {
	v, ok := ctx.Value(ctxRequestID).(string)
	if !ok || v == "" {
		return uuid.NewString()
	}
	return v
}

func subjectIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxSubjectID).(string)
	return v
}

func rolesFromContext(ctx context.Context) []string {
	v, _ := ctx.Value(ctxRoles).([]string)
	return v
}

func authMethodFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxAuthMethod).(string)
	return v
}

func (a *Adapter) writeAudit(ctx context.Context, subject, action, status string, payload interface{}, requestID string) error {
	if a.store == nil {
		return nil
	}
	var rawPayload []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		rawPayload = data
	}
	err := a.store.SaveAudit(ctx, storage.AuditEvent{
		Subject:   subject,
		Action:    action,
		Source:    "web",
		Status:    status,
		RequestID: requestID,
		Payload:   rawPayload,
		TS:        time.Now().UTC(),
	})
	if err != nil {
		a.logger.Warn("web audit write failed", "action", action, "request_id", requestID, "err", err)
	}
	return err
}

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}

func orDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return core.DefaultLanguage
	}
	return lang
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code string) {
	writeJSON(w, r, statusCode, map[string]string{
		"request_id": requestIDFromContext(r.Context()),
		"error_code": code,
		"message":    errorMessage(code),
	})
}

func errorMessage(code string) string {
	switch code {
	case "auth_required":
		return "authentication is required"
	case "invalid_token":
		return "token is invalid"
	case "access_denied":
		return "access denied"
	case "payload_too_large":
		return "request payload is too large"
	case "request_timeout":
		return "request timeout"
	case "rate_limited":
		return "rate limit exceeded"
	case "source_required":
		return "source code is empty"
	case "storage_disabled":
		return "storage is not configured"
	case "cors_denied", "cors_method_denied":
		return "cors policy denied request"
	default:
		return code
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestIDFromContext(r.Context()))
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
