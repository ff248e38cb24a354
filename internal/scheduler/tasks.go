package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"govcon_outreach_backend/internal/tracking/ingest"
)

const TaskTrackingSignal = "tracking:signal"

const TaskContractorSync = "sync:contractors"

const TaskOpportunitySync = "sync:opportunities"

const TaskFollowUpSweep = "sweep:followups"

const TaskTrialSweep = "sweep:trials"

// Engagement signals are retried independently of the request that
// produced them.
const signalMaxRetry = 5

func NewTrackingSignalTask(payload ingest.SignalPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTrackingSignal, data, asynq.MaxRetry(signalMaxRetry)), nil
}

func ParseTrackingSignalPayload(task *asynq.Task) (ingest.SignalPayload, error) {
	var payload ingest.SignalPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ingest.SignalPayload{}, err
	}
	return payload, nil
}

// Periodic tasks carry no payload; each run uses the configured defaults.
func newPeriodicTask(name string) *asynq.Task {
	return asynq.NewTask(name, nil)
}
