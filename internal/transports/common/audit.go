package common

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"codebot/internal/core"
	"codebot/internal/storage"
)

// AuditSink записывает аудиторные события.
type AuditSink interface {
	Write(ctx context.Context, ev storage.AuditEvent) error
}

type auditDetails struct {
	Language   string `json:"language,omitempty"`
	SourceLen  int    `json:"source_len"`
	ResultLen  int    `json:"result_len"`
	Truncated  bool   `json:"truncated,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

func newRequestID() string {
	return uuid.NewString()
}

func (s *Service) writeAudit(ctx context.Context, subjectID string, action core.Action, status, requestID string, details auditDetails) {
	if s.AuditSink == nil {
		return
	}
	name := action.Kind
	if action.Language != "" {
		name += ":" + action.Language
	}
	payload, _ := json.Marshal(details)
	if err := s.AuditSink.Write(ctx, storage.AuditEvent{
		Subject:   subjectID,
		Action:    name,
		Source:    s.Source,
		Status:    status,
		RequestID: requestID,
		Payload:   payload,
	}); err != nil {
		s.logger().Warn("audit write failed", "source", s.Source, "subject", subjectID, "request_id", requestID, "err", err)
	}
}
