package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"codebot/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "codebot.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestAuditRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	events := []storage.AuditEvent{
		{Subject: "u1", Action: "code:python", Source: "discord", Status: "ok", RequestID: "r1", Payload: []byte(`{"language":"python"}`), TS: now.Add(-2 * time.Minute)},
		{Subject: "u2", Action: "code:go", Source: "web", Status: "error", RequestID: "r2", TS: now.Add(-time.Minute)},
		{Subject: "u1", Action: "code:python", Source: "discord", Status: "rate_limited", RequestID: "r3", TS: now},
	}
	for _, ev := range events {
		if err := st.Write(ctx, ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got, err := st.QueryAudit(ctx, storage.AuditQuery{Subject: "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].RequestID != "r3" || got[1].RequestID != "r1" {
		t.Fatalf("unexpected events: %#v", got)
	}
	if string(got[1].Payload) != `{"language":"python"}` {
		t.Fatalf("payload mismatch: %s", got[1].Payload)
	}

	byAction, err := st.QueryAudit(ctx, storage.AuditQuery{Action: "code:go"})
	if err != nil || len(byAction) != 1 || byAction[0].Subject != "u2" {
		t.Fatalf("unexpected action filter result: %#v err=%v", byAction, err)
	}

	stats, err := st.AuditStats(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 3 {
		t.Fatalf("expected 3 groups, got %#v", stats)
	}

	removed, err := st.PurgeAudit(ctx, now.Add(-30*time.Second))
	if err != nil || removed != 2 {
		t.Fatalf("expected 2 purged, got %d err=%v", removed, err)
	}
	rest, _ := st.QueryAudit(ctx, storage.AuditQuery{})
	if len(rest) != 1 || rest[0].RequestID != "r3" {
		t.Fatalf("unexpected remaining events: %#v", rest)
	}
}

func TestLatestMetric(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	if _, err := st.LatestMetric(ctx, "host"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now().UTC()
	_ = st.SaveMetric(ctx, storage.MetricRecord{Module: "host", Payload: []byte(`{"load1":1}`), TS: now.Add(-time.Minute)})
	_ = st.SaveMetric(ctx, storage.MetricRecord{Module: "host", Payload: []byte(`{"load1":2}`), TS: now})

	rec, err := st.LatestMetric(ctx, "host")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if string(rec.Payload) != `{"load1":2}` {
		t.Fatalf("unexpected payload %s", rec.Payload)
	}

	removed, err := st.PurgeMetrics(ctx, now.Add(-30*time.Second))
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 purged, got %d err=%v", removed, err)
	}
}
