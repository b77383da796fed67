// Package usersink forwards activity events into a go-users ActivitySink.
package usersink

import (
	"context"
	"strings"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/inkcloud/go-settings/pkg/activity"
)

// Namespace seeds the name-based UUIDs derived for identifiers such as Discord
// guild snowflakes.
var Namespace = uuid.MustParse("6f1c1c52-54e4-4a8e-9d53-3c3f3b0d7a11")

// Hook is an activity.Hook writing to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
}

var _ activity.Hook = Hook{}

func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil || !event.Complete() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record converts event into an ActivityRecord. The raw tenant identifier is
// kept under Data["tenant"] since TenantID only holds its derived UUID.
func Record(event activity.Event) usertypes.ActivityRecord {
	event = event.Normalized(time.Now())

	var data map[string]any
	if len(event.Metadata) > 0 || event.TenantID != "" {
		data = make(map[string]any, len(event.Metadata)+1)
		for key, value := range event.Metadata {
			data[key] = value
		}
		if event.TenantID != "" {
			data["tenant"] = event.TenantID
		}
	}

	return usertypes.ActivityRecord{
		ActorID:    UUID(event.ActorID),
		TenantID:   UUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

// UUID parses id, falling back to a SHA-1 UUID under Namespace. Blank ids map
// to uuid.Nil.
func UUID(id string) uuid.UUID {
	id = strings.TrimSpace(id)
	switch parsed, err := uuid.Parse(id); {
	case id == "":
		return uuid.Nil
	case err == nil:
		return parsed
	default:
		return uuid.NewSHA1(Namespace, []byte(id))
	}
}
