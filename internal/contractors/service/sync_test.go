package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/contractors/repository"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/scoring"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/logger"
)

type fakeEntities struct {
	byCode map[string][]registry.EntityRecord
	errs   map[string]error
}

func (f *fakeEntities) Entities(ctx context.Context, q registry.Query) iter.Seq2[registry.EntityRecord, error] {
	return func(yield func(registry.EntityRecord, error) bool) {
		for i, record := range f.byCode[q.Code] {
			if q.MaxRecords > 0 && i >= q.MaxRecords {
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := f.errs[q.Code]; err != nil {
			yield(registry.EntityRecord{}, err)
		}
	}
}

type fakeMarkets struct{ codes []string }

func (f fakeMarkets) Market(ctx context.Context, asOf time.Time) (scoring.Market, error) {
	return scoring.NewMarket(f.codes, asOf), nil
}

type memoryContractors struct {
	mu     sync.Mutex
	rows   map[string]repository.Contractor
	failOn string
}

func newMemoryContractors() *memoryContractors {
	return &memoryContractors{rows: make(map[string]repository.Contractor)}
}

func (m *memoryContractors) Upsert(ctx context.Context, p repository.UpsertParams) (repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.UEI == m.failOn {
		return repository.UpsertResult{}, fmt.Errorf("write %s failed", p.UEI)
	}
	row, exists := m.rows[p.UEI]
	if !exists {
		row = repository.Contractor{ID: uuid.New(), UEI: p.UEI, Stage: "new"}
	}
	row.LegalName = p.LegalName
	if p.Email != "" {
		email := p.Email
		row.Email = &email
	}
	row.Score = p.Score
	row.Priority = p.Priority
	row.LastSyncedAt = p.SyncedAt
	m.rows[p.UEI] = row
	return repository.UpsertResult{ID: row.ID, Inserted: !exists}, nil
}

func (m *memoryContractors) StoredEmail(ctx context.Context, uei string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[uei]; ok && row.Email != nil {
		return *row.Email, nil
	}
	return "", nil
}

type memoryRuns struct{ runs []syncjob.Summary }

func (m *memoryRuns) Insert(ctx context.Context, s syncjob.Summary) error {
	m.runs = append(m.runs, s)
	return nil
}

func (m *memoryRuns) List(ctx context.Context, kind syncjob.Kind, limit int) ([]syncjob.Summary, error) {
	return m.runs, nil
}

func contractorRecords(code string, n int) []registry.EntityRecord {
	out := make([]registry.EntityRecord, 0, n)
	for i := range n {
		out = append(out, registry.EntityRecord{
			UEI:          fmt.Sprintf("UEI%s%03d", code, i),
			LegalName:    fmt.Sprintf("Contractor %d", i),
			Email:        fmt.Sprintf("bd%d@contractor%d.com", i, i),
			PrimaryNAICS: code,
			State:        "VA",
		})
	}
	return out
}

func newContractorRunner(source EntitySource, markets MarketSource, repo repository.Writer, runs *memoryRuns, codes ...string) *syncjob.Runner {
	log := logger.New("development")
	strategy := NewSyncStrategy(source, markets, repo, 3, log)
	return syncjob.NewRunner(strategy, runs, nil, nil, nil, syncjob.Defaults{Codes: codes}, log)
}

func TestSyncTwiceKeepsOneRowPerUEI(t *testing.T) {
	repo := newMemoryContractors()
	runs := &memoryRuns{}
	source := &fakeEntities{byCode: map[string][]registry.EntityRecord{"541512": contractorRecords("541512", 10)}}
	runner := newContractorRunner(source, nil, repo, runs, "541512")

	first, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Fetched != 10 || first.New != 10 || first.Updated != 0 {
		t.Fatalf("unexpected first summary %+v", first)
	}

	second, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.New != 0 || second.Updated != 10 {
		t.Fatalf("expected all rows updated on the second run, got %+v", second)
	}
	if len(repo.rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(repo.rows))
	}
	if len(runs.runs) != 2 {
		t.Fatalf("expected one run record per sync, got %d", len(runs.runs))
	}
}

func TestSyncRescoresExistingRowsAgainstTodaysMarket(t *testing.T) {
	repo := newMemoryContractors()
	runs := &memoryRuns{}
	records := contractorRecords("541512", 1)
	source := &fakeEntities{byCode: map[string][]registry.EntityRecord{"541512": records}}

	if _, err := newContractorRunner(source, fakeMarkets{}, repo, runs, "541512").Run(context.Background(), syncjob.Request{}); err != nil {
		t.Fatalf("sync without market: %v", err)
	}
	before := repo.rows[records[0].UEI].Score

	if _, err := newContractorRunner(source, fakeMarkets{codes: []string{"541512"}}, repo, runs, "541512").Run(context.Background(), syncjob.Request{}); err != nil {
		t.Fatalf("sync with market: %v", err)
	}
	after := repo.rows[records[0].UEI].Score
	if after <= before {
		t.Fatalf("expected existing row to be rescored upward, before=%d after=%d", before, after)
	}
}

func TestSyncCountsSkippedAndFailedRecords(t *testing.T) {
	repo := newMemoryContractors()
	records := contractorRecords("541511", 3)
	records = append(records,
		registry.EntityRecord{LegalName: "no uei"},
		registry.EntityRecord{UEI: "UNREACHABLE1"},
	)
	repo.failOn = records[1].UEI
	source := &fakeEntities{byCode: map[string][]registry.EntityRecord{"541511": records}}

	summary, err := newContractorRunner(source, nil, repo, &memoryRuns{}, "541511").Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Fetched != 5 || summary.Skipped != 2 || summary.Failed != 1 || summary.New != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.Status != syncjob.StatusSucceeded {
		t.Fatalf("record-level failures should not fail the run, got %s", summary.Status)
	}
}

func TestSyncWritesRecordsFetchedBeforeUpstreamError(t *testing.T) {
	repo := newMemoryContractors()
	source := &fakeEntities{
		byCode: map[string][]registry.EntityRecord{"541330": contractorRecords("541330", 4)},
		errs:   map[string]error{"541330": fmt.Errorf("page 2: %w", registry.ErrTransient)},
	}

	summary, err := newContractorRunner(source, nil, repo, &memoryRuns{}, "541330").Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if summary.Status != syncjob.StatusPartial || len(summary.Errors) != 1 {
		t.Fatalf("expected a partial run with one code error, got %+v", summary)
	}
	if len(repo.rows) != 4 {
		t.Fatalf("records fetched before the error must be kept, have %d", len(repo.rows))
	}
}

func TestSyncScoresAgainstTheEmailTheRowKeeps(t *testing.T) {
	repo := newMemoryContractors()
	runs := &memoryRuns{}
	withEmail := registry.EntityRecord{UEI: "KEEPMAIL0001", CAGECode: "7K7K7", Email: "bd@keepmail-federal.com", PrimaryNAICS: "541512"}
	withoutEmail := withEmail
	withoutEmail.Email = ""

	first := &fakeEntities{byCode: map[string][]registry.EntityRecord{"541512": {withEmail}}}
	if _, err := newContractorRunner(first, nil, repo, runs, "541512").Run(context.Background(), syncjob.Request{}); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	want := repo.rows[withEmail.UEI].Score

	second := &fakeEntities{byCode: map[string][]registry.EntityRecord{"541512": {withoutEmail}}}
	if _, err := newContractorRunner(second, nil, repo, runs, "541512").Run(context.Background(), syncjob.Request{}); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	row := repo.rows[withEmail.UEI]
	if row.Email == nil || *row.Email != "bd@keepmail-federal.com" {
		t.Fatalf("expected the stored email to be kept, got %v", row.Email)
	}
	if row.Score != want {
		t.Fatalf("expected score %d computed with the kept email, got %d", want, row.Score)
	}
}
