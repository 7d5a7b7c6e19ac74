package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventUserRegistered   ActivityEventType = "auth.user.registered"
	ActivityEventAccountConfirmed ActivityEventType = "auth.account.confirmed"
	ActivityEventPasswordReset    ActivityEventType = "auth.password.reset"
	ActivityEventPasswordChanged  ActivityEventType = "auth.password.changed"
	ActivityEventEmailChanged     ActivityEventType = "auth.email.changed"
	ActivityEventTokenIssued      ActivityEventType = "auth.token.issued"
	ActivityEventRolesSeeded      ActivityEventType = "auth.roles.seeded"
	ActivityEventProfileUpdated   ActivityEventType = "auth.profile.updated"
	ActivityEventAccountUpdated   ActivityEventType = "auth.account.updated"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// recordActivity never fails the calling workflow, sink errors are logged
func recordActivity(ctx context.Context, sink ActivitySink, logger Logger, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if err := normalizeActivitySink(sink).Record(ctx, event); err != nil {
		normalizeLogger(logger).Warn("activity sink failed for %s: %v", event.EventType, err)
	}
}
