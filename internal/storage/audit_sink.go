package storage

import (
	"context"
	"errors"
	"time"
)

// AuditWriter позволяет использовать Store как AuditSink.
type AuditWriter interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// FanOut пишет событие во все приемники; ошибки объединяются.
type FanOut []AuditWriter

func (f FanOut) Write(ctx context.Context, ev AuditEvent) error {
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}
	var errs []error
	for _, w := range f {
		if w == nil {
			continue
		}
		if err := w.Write(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
