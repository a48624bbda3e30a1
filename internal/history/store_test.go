package history_test

import (
	"context"
	"testing"
	"time"

	"binder/internal/history"
	"binder/internal/testsupport"
)

func TestAppendAssignsIdentifiers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	record := &history.RunRecord{
		Kind:         history.KindScan,
		Status:       history.StatusOK,
		Workbooks:    3,
		LinksFound:   12,
		LinksUpdated: 0,
		LinksSkipped: 2,
		Detail:       "workspace scan",
		ReportPath:   "/tmp/scan.xlsx",
	}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if record.ID == 0 {
		t.Fatal("expected record ID to be assigned")
	}
	if record.RunID == "" {
		t.Fatal("expected run ID to be assigned")
	}
	if record.StartedAt.IsZero() || record.FinishedAt.IsZero() {
		t.Fatal("expected timestamps to be assigned")
	}

	fetched, err := store.Get(ctx, record.RunID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("expected run to be found")
	}
	if fetched.Kind != history.KindScan || fetched.Status != history.StatusOK {
		t.Fatalf("unexpected fetched run: %#v", fetched)
	}
	if fetched.LinksFound != 12 || fetched.LinksSkipped != 2 || fetched.Workbooks != 3 {
		t.Fatalf("unexpected counts: %#v", fetched)
	}
	if fetched.Detail != "workspace scan" || fetched.ReportPath != "/tmp/scan.xlsx" {
		t.Fatalf("unexpected text fields: %#v", fetched)
	}
	if !fetched.StartedAt.Equal(record.StartedAt) {
		t.Fatalf("started at mismatch: %v vs %v", fetched.StartedAt, record.StartedAt)
	}
}

func TestGetMissingRunReturnsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	fetched, err := store.Get(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched != nil {
		t.Fatalf("expected nil for missing run, got %#v", fetched)
	}
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	record := &history.RunRecord{Kind: history.Kind("bogus"), Status: history.StatusOK}
	if err := store.Append(context.Background(), record); err == nil {
		t.Fatal("expected error for unknown kind")
	}

	record = &history.RunRecord{Kind: history.KindScan, Status: history.Status("meh")}
	if err := store.Append(context.Background(), record); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	seed := []struct {
		kind   history.Kind
		offset time.Duration
	}{
		{history.KindScan, 0},
		{history.KindUpdate, time.Minute},
		{history.KindScan, 2 * time.Minute},
		{history.KindSessionSave, 3 * time.Minute},
	}
	for _, s := range seed {
		record := &history.RunRecord{
			Kind:      s.kind,
			Status:    history.StatusOK,
			StartedAt: base.Add(s.offset),
		}
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	scans, err := store.List(ctx, history.KindScan, 0)
	if err != nil {
		t.Fatalf("List scans failed: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
	if !scans[0].StartedAt.After(scans[1].StartedAt) {
		t.Fatalf("expected newest first: %v then %v", scans[0].StartedAt, scans[1].StartedAt)
	}

	all, err := store.List(ctx, "", 3)
	if err != nil {
		t.Fatalf("List all failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(all))
	}
	if all[0].Kind != history.KindSessionSave {
		t.Fatalf("expected newest run first, got %s", all[0].Kind)
	}
}

func TestStatsGroupsByKindAndStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	seed := []struct {
		kind   history.Kind
		status history.Status
	}{
		{history.KindScan, history.StatusOK},
		{history.KindScan, history.StatusError},
		{history.KindUpdate, history.StatusPartial},
	}
	for _, s := range seed {
		if err := store.Append(ctx, &history.RunRecord{Kind: s.kind, Status: s.status}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	summary, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Total != 3 {
		t.Fatalf("expected total 3, got %d", summary.Total)
	}
	if summary.ByKind[history.KindScan] != 2 {
		t.Fatalf("expected 2 scans, got %d", summary.ByKind[history.KindScan])
	}
	if summary.ByStatus[history.StatusPartial] != 1 {
		t.Fatalf("expected 1 partial, got %d", summary.ByStatus[history.StatusPartial])
	}
}

func TestPruneRemovesOldRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)

	ctx := context.Background()
	old := &history.RunRecord{
		Kind:      history.KindScan,
		Status:    history.StatusOK,
		StartedAt: time.Now().UTC().AddDate(0, 0, -30),
	}
	recent := &history.RunRecord{
		Kind:      history.KindScan,
		Status:    history.StatusOK,
		StartedAt: time.Now().UTC().Add(-time.Hour),
	}
	if err := store.Append(ctx, old); err != nil {
		t.Fatalf("Append old failed: %v", err)
	}
	if err := store.Append(ctx, recent); err != nil {
		t.Fatalf("Append recent failed: %v", err)
	}

	removed, err := store.Prune(ctx, 14)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned run, got %d", removed)
	}

	remaining, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].RunID != recent.RunID {
		t.Fatalf("unexpected remaining runs: %#v", remaining)
	}

	if _, err := store.Prune(ctx, 0); err == nil {
		t.Fatal("expected error for non-positive keep days")
	}
}
