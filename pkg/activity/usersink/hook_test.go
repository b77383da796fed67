package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/inkcloud/go-settings/pkg/activity"
	"github.com/inkcloud/go-settings/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()

	event := activity.BuildSettingsUpdatedEvent(activity.SettingsEventInput{
		ActorID:    actorID.String(),
		TenantID:   "112233445566778899",
		Domain:     "payments",
		Path:       "gateways.pix.enabled",
		NewValue:   true,
		OccurredAt: now,
	})
	event.Channel = "dashboard"

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID {
		t.Fatalf("expected actor %s got %s", actorID, record.ActorID)
	}
	wantTenant := uuid.NewSHA1(usersink.Namespace, []byte("112233445566778899"))
	if record.TenantID != wantTenant {
		t.Fatalf("expected derived tenant id %s got %s", wantTenant, record.TenantID)
	}
	if record.Verb != activity.VerbSettingsUpdated || record.ObjectType != "settings" || record.ObjectID != "payments" {
		t.Fatalf("unexpected record identity: %+v", record)
	}
	if record.Channel != "dashboard" {
		t.Fatalf("expected channel dashboard got %q", record.Channel)
	}
	if record.Data["path"] != "gateways.pix.enabled" || record.Data["tenant"] != "112233445566778899" {
		t.Fatalf("unexpected data: %+v", record.Data)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}
	if err := hook.Notify(context.Background(), activity.Event{Verb: "stock.added"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 0 {
		t.Fatalf("expected no records, got %d", len(sink.records))
	}
}

func TestHookNotifyReturnsSinkError(t *testing.T) {
	boom := errors.New("sink down")
	hook := usersink.Hook{Sink: &recordingSink{err: boom}}
	event := activity.BuildStockEvent(activity.VerbStockCleared, activity.StockEventInput{ProductID: "p", FieldID: "f"})
	if err := hook.Notify(context.Background(), event); !errors.Is(err, boom) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestHookWithoutSinkIsNoop(t *testing.T) {
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{}); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestUUID(t *testing.T) {
	id := uuid.New()
	if got := usersink.UUID(" " + id.String() + " "); got != id {
		t.Fatalf("expected parsed uuid %s, got %s", id, got)
	}
	if got := usersink.UUID(""); got != uuid.Nil {
		t.Fatalf("expected nil uuid, got %s", got)
	}
	a, b := usersink.UUID("guild-1"), usersink.UUID("guild-1")
	if a != b || a == uuid.Nil {
		t.Fatalf("derived ids should be stable and non-nil: %s %s", a, b)
	}
}

func TestRecordWithoutTenantOrMetadata(t *testing.T) {
	record := usersink.Record(activity.Event{Verb: "stock.cleared", ObjectType: "stock", ObjectID: "p:f"})
	if record.Data != nil {
		t.Fatalf("expected nil data, got %+v", record.Data)
	}
	if record.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be stamped")
	}
}
