package storage

import (
	"context"
	"time"
)

// MetricRecord сохраняет снимок метрик (например, состояние узла).
type MetricRecord struct {
	Module  string
	Payload []byte
	TS      time.Time
}

// AuditEvent фиксирует обработанный запрос: кто, какой язык, чем закончилось.
type AuditEvent struct {
	Subject   string    `json:"subject"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	RequestID string    `json:"request_id"`
	Payload   []byte    `json:"payload,omitempty"`
	TS        time.Time `json:"ts"`
}

// AuditQuery задает фильтры выборки аудита.
type AuditQuery struct {
	From    time.Time
	To      time.Time
	Subject string
	Action  string
	Limit   int
}

// ActionStat - число событий с данными action и status.
type ActionStat struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Store описывает операции хранилища.
type Store interface {
	SaveMetric(ctx context.Context, rec MetricRecord) error
	SaveAudit(ctx context.Context, ev AuditEvent) error
	LatestMetric(ctx context.Context, module string) (MetricRecord, error)
	QueryAudit(ctx context.Context, q AuditQuery) ([]AuditEvent, error)
	AuditStats(ctx context.Context, since time.Time) ([]ActionStat, error)
	PurgeAudit(ctx context.Context, before time.Time) (int64, error)
	PurgeMetrics(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
