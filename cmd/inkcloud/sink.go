package main

import (
	"context"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"go.uber.org/zap"
)

// logSink writes activity records to the structured log.
type logSink struct {
	logger *zap.Logger
}

func (s logSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.logger.Info("activity",
		zap.String("verb", record.Verb),
		zap.String("object_type", record.ObjectType),
		zap.String("object_id", record.ObjectID),
		zap.String("channel", record.Channel),
		zap.Stringer("actor_id", record.ActorID),
		zap.Stringer("tenant_id", record.TenantID),
		zap.Any("data", record.Data),
		zap.Time("occurred_at", record.OccurredAt),
	)
	return nil
}
