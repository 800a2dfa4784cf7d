package services

import (
	"context"

	"github.com/zatekoja/referralintake/internal/domain/entities"
	"github.com/zatekoja/referralintake/internal/domain/providers"
	"github.com/zatekoja/referralintake/internal/infrastructure/observability"
)

// publishCaseEvent notifies case subscribers. Failures are only logged.
func publishCaseEvent(ctx context.Context, bus providers.EventBus, caseID string, eventType entities.CaseEventType, fields map[string]interface{}) {
	if bus == nil {
		return
	}
	event := entities.NewCaseEvent(caseID, eventType, fields)
	if err := bus.Publish(ctx, providers.GetCaseChannel(caseID), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("event_type", string(eventType)).
			Msg("Failed to publish case event")
	}
}
