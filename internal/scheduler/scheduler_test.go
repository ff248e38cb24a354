package scheduler

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/tracking/ingest"
)

type cronConfig struct {
	contractors, opportunities, sweep string
}

func (c cronConfig) GetRedisURL() string                    { return "redis://localhost:6379/0" }
func (c cronConfig) GetSchedulerConcurrency() int           { return 2 }
func (c cronConfig) GetContractorSyncCron() string          { return c.contractors }
func (c cronConfig) GetOpportunitySyncCron() string         { return c.opportunities }
func (c cronConfig) GetSweepCron() string                   { return c.sweep }
func (c cronConfig) GetContractorSyncWindow() time.Duration { return 24 * time.Hour }
func (c cronConfig) GetSyncMaxRecords() int                 { return 1000 }

func TestEntriesSkipDisabledCrons(t *testing.T) {
	entries := Entries(cronConfig{contractors: "0 2 * * *", sweep: "15 6 * * *"})

	var tasks []string
	for _, e := range entries {
		tasks = append(tasks, e.Task)
	}
	want := []string{TaskContractorSync, TaskFollowUpSweep, TaskTrialSweep}
	if len(tasks) != len(want) {
		t.Fatalf("expected %v, got %v", want, tasks)
	}
	for i := range want {
		if tasks[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, tasks)
		}
	}
}

func TestTrackingSignalTaskRoundTrip(t *testing.T) {
	id := uuid.New()
	task, err := NewTrackingSignalTask(ingest.SignalPayload{Kind: "click", ContractorID: &id, Metadata: map[string]any{"url": "https://sam.example"}})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskTrackingSignal {
		t.Fatalf("unexpected type %q", task.Type())
	}

	got, err := ParseTrackingSignalPayload(task)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Kind != "click" || *got.ContractorID != id || got.Metadata["url"] != "https://sam.example" {
		t.Fatalf("unexpected payload %+v", got)
	}
}
