package activitymap_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-blog-auth"
	"github.com/goliatone/go-blog-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventEmailChanged,
		UserID:    "user-100",
		Metadata: map[string]any{
			"old_email": "old@example.com",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventEmailChanged) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventEmailChanged, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "blog.auth" {
		t.Fatalf("expected channel blog.auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["old_email"] != "old@example.com" {
		t.Fatalf("expected metadata old_email, got %#v", out.Metadata["old_email"])
	}
}

func TestNormalizeSystemEvent(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventRolesSeeded,
	})

	if out.ActorID != "system" {
		t.Fatalf("expected fallback actor system, got %q", out.ActorID)
	}
	if out.ObjectType != "role" {
		t.Fatalf("expected object_type role, got %q", out.ObjectType)
	}
	if out.ObjectID != "" {
		t.Fatalf("expected empty object_id, got %q", out.ObjectID)
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be filled")
	}
}

func TestNormalizeOptions(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventUserRegistered,
	},
		activitymap.WithDefaultChannel(" blog "),
		activitymap.WithDefaultObjectType("member"),
		activitymap.WithActorFallback("seeder"),
	)

	if out.Channel != "blog" {
		t.Fatalf("expected trimmed channel blog, got %q", out.Channel)
	}
	if out.ObjectType != "member" {
		t.Fatalf("expected object_type member, got %q", out.ObjectType)
	}
	if out.ActorID != "seeder" {
		t.Fatalf("expected actor seeder, got %q", out.ActorID)
	}
}

func TestNormalizeDoesNotShareMetadata(t *testing.T) {
	t.Parallel()

	meta := map[string]any{"k": "v"}
	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordReset,
		UserID:    "u1",
		Metadata:  meta,
	})

	out.Metadata["k"] = "changed"
	if meta["k"] != "v" {
		t.Fatalf("expected source metadata to stay untouched, got %#v", meta["k"])
	}
}

func TestNewSinkEmitsNormalizedRecords(t *testing.T) {
	t.Parallel()

	var got []activitymap.Normalized
	sink := activitymap.NewSink(func(n activitymap.Normalized) error {
		got = append(got, n)
		return nil
	}, activitymap.WithObjectType(auth.ActivityEventPasswordChanged, "credential"))

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType: auth.ActivityEventPasswordChanged,
		UserID:    "u2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	if got[0].ObjectType != "credential" {
		t.Fatalf("expected object_type credential, got %q", got[0].ObjectType)
	}
}
