package service

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sync"
	"testing"

	"govcon_outreach_backend/internal/opportunities/repository"
	"govcon_outreach_backend/internal/registry"
	"govcon_outreach_backend/internal/syncjob"
	"govcon_outreach_backend/platform/logger"
)

type fakeSource struct {
	byCode map[string][]registry.OpportunityRecord
	errs   map[string]error
}

func (f *fakeSource) Opportunities(ctx context.Context, q registry.Query) iter.Seq2[registry.OpportunityRecord, error] {
	return func(yield func(registry.OpportunityRecord, error) bool) {
		for i, record := range f.byCode[q.Code] {
			if q.MaxRecords > 0 && i >= q.MaxRecords {
				return
			}
			if !yield(record, nil) {
				return
			}
		}
		if err := f.errs[q.Code]; err != nil {
			yield(registry.OpportunityRecord{}, err)
		}
	}
}

type fakeStore struct {
	mu          sync.Mutex
	rows        map[string]repository.Opportunity
	deactivated [][]string
	calls       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]repository.Opportunity)}
}

func (f *fakeStore) DeactivateActive(ctx context.Context, codes []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.deactivated = append(f.deactivated, codes)
	var n int64
	for id, row := range f.rows {
		if !row.Active {
			continue
		}
		if codes != nil && (row.NAICSCode == nil || !slices.Contains(codes, *row.NAICSCode)) {
			continue
		}
		row.Active = false
		f.rows[id] = row
		n++
	}
	return n, nil
}

func (f *fakeStore) Upsert(ctx context.Context, p repository.UpsertParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.rows[p.NoticeID]
	code := p.NAICSCode
	f.rows[p.NoticeID] = repository.Opportunity{NoticeID: p.NoticeID, Title: p.Title, NAICSCode: &code, Active: true, SyncedAt: p.SyncedAt}
	return !exists, nil
}

func (f *fakeStore) activeCount() int {
	n := 0
	for _, row := range f.rows {
		if row.Active {
			n++
		}
	}
	return n
}

type runStore struct{ runs []syncjob.Summary }

func (r *runStore) Insert(ctx context.Context, s syncjob.Summary) error {
	r.runs = append(r.runs, s)
	return nil
}

func (r *runStore) List(ctx context.Context, kind syncjob.Kind, limit int) ([]syncjob.Summary, error) {
	return r.runs, nil
}

func notices(code string, n int) []registry.OpportunityRecord {
	out := make([]registry.OpportunityRecord, 0, n)
	for i := range n {
		out = append(out, registry.OpportunityRecord{
			NoticeID:  fmt.Sprintf("%s-%02d", code, i),
			Title:     "Notice " + code,
			NAICSCode: code,
		})
	}
	return out
}

func newRefreshRunner(source OpportunitySource, store *fakeStore, codes ...string) *syncjob.Runner {
	log := logger.New("development")
	strategy := NewRefreshStrategy(source, store, nil, 2, log)
	return syncjob.NewRunner(strategy, &runStore{}, nil, nil, nil, syncjob.Defaults{Codes: codes}, log)
}

func TestRefreshUpsertsAndDeactivatesEverything(t *testing.T) {
	store := newFakeStore()
	store.rows["stale"] = repository.Opportunity{NoticeID: "stale", Active: true}
	source := &fakeSource{byCode: map[string][]registry.OpportunityRecord{
		"541511": notices("541511", 3),
		"541512": notices("541512", 2),
	}}
	runner := newRefreshRunner(source, store, "541511", "541512")

	summary, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.New != 5 || summary.Status != syncjob.StatusSucceeded {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if len(store.deactivated) != 1 || store.deactivated[0] != nil {
		t.Fatalf("expected one full-table deactivation, got %v", store.deactivated)
	}
	if store.rows["stale"].Active {
		t.Fatal("notice no longer echoed upstream should be inactive")
	}
	if store.activeCount() != 5 {
		t.Fatalf("expected 5 active rows, got %d", store.activeCount())
	}

	again, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if again.New != 0 || again.Updated != 5 {
		t.Fatalf("expected second refresh to update, got %+v", again)
	}
}

func TestRefreshWithZeroRecordsKeepsRows(t *testing.T) {
	store := newFakeStore()
	store.rows["old-1"] = repository.Opportunity{NoticeID: "old-1", Active: true}
	store.rows["old-2"] = repository.Opportunity{NoticeID: "old-2", Active: true}
	runner := newRefreshRunner(&fakeSource{}, store, "541511")

	summary, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.Fetched != 0 {
		t.Fatalf("expected zero fetched, got %d", summary.Fetched)
	}
	if len(store.rows) != 2 {
		t.Fatalf("rows must never be deleted, have %d", len(store.rows))
	}
	if store.activeCount() != 0 {
		t.Fatal("expected prior rows to be marked inactive")
	}
}

func TestRefreshTotalFailureLeavesRowsActive(t *testing.T) {
	store := newFakeStore()
	store.rows["old"] = repository.Opportunity{NoticeID: "old", Active: true}
	source := &fakeSource{errs: map[string]error{
		"541511": fmt.Errorf("code 541511: %w", registry.ErrTransient),
		"541512": fmt.Errorf("code 541512: %w", registry.ErrTransient),
	}}
	runner := newRefreshRunner(source, store, "541511", "541512")

	_, err := runner.Run(context.Background(), syncjob.Request{})
	if err == nil {
		t.Fatal("expected an unavailable error when nothing was reachable")
	}
	if store.calls != 0 {
		t.Fatal("deactivation must be skipped when every code failed")
	}
	if !store.rows["old"].Active {
		t.Fatal("stale row should stay active")
	}
}

func TestRefreshFilteredScopeOnlyTouchesSucceededCodes(t *testing.T) {
	store := newFakeStore()
	keep := "236220"
	store.rows["other"] = repository.Opportunity{NoticeID: "other", Active: true, NAICSCode: &keep}
	source := &fakeSource{
		byCode: map[string][]registry.OpportunityRecord{"541511": notices("541511", 1)},
		errs:   map[string]error{"541512": fmt.Errorf("code 541512: %w", registry.ErrTransient)},
	}
	runner := newRefreshRunner(source, store)

	summary, err := runner.Run(context.Background(), syncjob.Request{Codes: []string{"541511", "541512"}})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.Status != syncjob.StatusPartial {
		t.Fatalf("expected partial, got %s", summary.Status)
	}
	if len(store.deactivated) != 1 || !slices.Equal(store.deactivated[0], []string{"541511"}) {
		t.Fatalf("expected scope [541511], got %v", store.deactivated)
	}
	if !store.rows["other"].Active {
		t.Fatal("rows outside the refreshed codes must stay active")
	}
}

func TestRefreshSkipsRecordsWithoutNoticeID(t *testing.T) {
	store := newFakeStore()
	records := append(notices("541511", 2), registry.OpportunityRecord{Title: "broken"})
	runner := newRefreshRunner(&fakeSource{byCode: map[string][]registry.OpportunityRecord{"541511": records}}, store, "541511")

	summary, err := runner.Run(context.Background(), syncjob.Request{})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if summary.Fetched != 3 || summary.Skipped != 1 || summary.New != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
