package procs_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"binder/internal/procs"
	"binder/internal/testsupport"
)

func newSupervisor(t *testing.T, lister procs.Lister) *procs.Supervisor {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return procs.NewSupervisor(lister, cfg, nil,
		procs.WithWaits(25*time.Millisecond, 25*time.Millisecond),
		procs.WithPollInterval(2*time.Millisecond),
		procs.WithGracefulPause(0))
}

func TestListFiltersAndSnapshots(t *testing.T) {
	created := time.Date(2025, 8, 24, 7, 0, 0, 0, time.UTC)
	lister := &testsupport.FakeLister{Procs: []procs.Proc{
		&testsupport.FakeProc{Pid: 101, ProcName: "EXCEL.EXE", Statuses: []string{"zombie"},
			Created: created, Memory: 600.06, Alive: true},
		&testsupport.FakeProc{Pid: 102, ProcName: "excel", Statuses: []string{"running"},
			Memory: 120, Alive: true},
		&testsupport.FakeProc{Pid: 103, ProcName: "chrome", Alive: true},
		&testsupport.FakeProc{Pid: 104, NameErr: errors.New("access denied")},
	}}
	sup := newSupervisor(t, lister)

	list, err := sup.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 matched processes, got %d: %+v", len(list), list)
	}
	first := list[0]
	if first.PID != 101 || first.Status != "zombie" || !first.Zombie {
		t.Fatalf("unexpected first process: %+v", first)
	}
	if first.MemoryMB != 600.1 {
		t.Fatalf("memory not rounded to 0.1: %v", first.MemoryMB)
	}
	if !first.Created.Equal(created) {
		t.Fatalf("unexpected create time: %v", first.Created)
	}
	if list[1].Zombie {
		t.Fatalf("running process flagged zombie: %+v", list[1])
	}
}

func TestCleanupZombiesTerminatesAndEscalates(t *testing.T) {
	polite := &testsupport.FakeProc{Pid: 201, ProcName: "excel.exe",
		Statuses: []string{"zombie"}, Alive: true, DieOnTerminate: true}
	stubborn := &testsupport.FakeProc{Pid: 202, ProcName: "excel.exe",
		Statuses: []string{"zombie"}, Alive: true}
	healthy := &testsupport.FakeProc{Pid: 203, ProcName: "excel.exe",
		Statuses: []string{"running"}, Alive: true}
	stale := &testsupport.FakeProc{Pid: 204, ProcName: "excel.exe",
		Statuses: []string{"running"}, Alive: false}
	lister := &testsupport.FakeLister{Procs: []procs.Proc{polite, stubborn, healthy, stale}}
	sup := newSupervisor(t, lister)

	result, err := sup.CleanupZombies(context.Background())
	if err != nil {
		t.Fatalf("CleanupZombies failed: %v", err)
	}
	if result.Matched != 4 {
		t.Fatalf("expected 4 matched, got %d", result.Matched)
	}
	if len(result.Cleaned) != 3 {
		t.Fatalf("expected 3 cleaned, got %v", result.Cleaned)
	}
	if len(result.Forced) != 1 || result.Forced[0] != 202 {
		t.Fatalf("expected only the stubborn zombie killed, got %v", result.Forced)
	}
	if stubborn.Killed != 1 || polite.Killed != 0 {
		t.Fatalf("unexpected kill counts: stubborn=%d polite=%d", stubborn.Killed, polite.Killed)
	}
	if healthy.Terminated != 0 {
		t.Fatal("healthy process should not be touched")
	}
	if stale.Terminated != 1 {
		t.Fatal("stale table entry should be reaped")
	}
}

func TestForceCloseAllRunsGracefulFirst(t *testing.T) {
	polite := &testsupport.FakeProc{Pid: 301, ProcName: "excel.exe",
		Statuses: []string{"running"}, Alive: true, DieOnTerminate: true}
	stubborn := &testsupport.FakeProc{Pid: 302, ProcName: "excel.exe",
		Statuses: []string{"running"}, Alive: true}
	lister := &testsupport.FakeLister{Procs: []procs.Proc{polite, stubborn}}
	sup := newSupervisor(t, lister)

	gracefulCalled := false
	result, err := sup.ForceCloseAll(context.Background(), func(ctx context.Context) error {
		gracefulCalled = true
		return nil
	})
	if err != nil {
		t.Fatalf("ForceCloseAll failed: %v", err)
	}
	if !gracefulCalled {
		t.Fatal("graceful quit not attempted")
	}
	if len(result.Cleaned) != 2 {
		t.Fatalf("expected both processes closed, got %v", result.Cleaned)
	}
	if len(result.Forced) != 1 || result.Forced[0] != 302 {
		t.Fatalf("expected the stubborn process killed, got %v", result.Forced)
	}
}

func TestHealthRecommendations(t *testing.T) {
	healthyLister := &testsupport.FakeLister{Procs: []procs.Proc{
		&testsupport.FakeProc{Pid: 1, ProcName: "excel.exe", Statuses: []string{"running"}, Memory: 80, Alive: true},
	}}
	report, err := newSupervisor(t, healthyLister).Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if report.Total != 1 || len(report.Recommendations) != 1 ||
		report.Recommendations[0] != "Excel processes are healthy." {
		t.Fatalf("unexpected healthy report: %+v", report)
	}

	var sick []procs.Proc
	for pid := int32(10); pid < 16; pid++ {
		p := &testsupport.FakeProc{Pid: pid, ProcName: "excel.exe",
			Statuses: []string{"running"}, Memory: 100, Alive: true}
		sick = append(sick, p)
	}
	sick[0].(*testsupport.FakeProc).Statuses = []string{"zombie"}
	sick[1].(*testsupport.FakeProc).Memory = 700
	report, err = newSupervisor(t, &testsupport.FakeLister{Procs: sick}).Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if report.Total != 6 || report.Zombies != 1 || report.HighMemory != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	joined := strings.Join(report.Recommendations, "\n")
	for _, want := range []string{"zombie process(es)", "high-memory process(es)", "critical threshold"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("recommendations missing %q:\n%s", want, joined)
		}
	}

	warnLister := &testsupport.FakeLister{Procs: sick[:4]}
	report, err = newSupervisor(t, warnLister).Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if !strings.Contains(strings.Join(report.Recommendations, "\n"), "Consider closing unused instances") {
		t.Fatalf("expected count warning, got %+v", report.Recommendations)
	}
}

func TestRunningReportsMatches(t *testing.T) {
	sup := newSupervisor(t, &testsupport.FakeLister{})
	running, err := sup.Running(context.Background())
	if err != nil || running {
		t.Fatalf("expected no matches, got %v, %v", running, err)
	}

	sup = newSupervisor(t, &testsupport.FakeLister{Procs: []procs.Proc{
		&testsupport.FakeProc{Pid: 1, ProcName: "Microsoft Excel", Alive: true},
	}})
	running, err = sup.Running(context.Background())
	if err != nil || !running {
		t.Fatalf("expected a match, got %v, %v", running, err)
	}

	sup = newSupervisor(t, &testsupport.FakeLister{Err: errors.New("table unavailable")})
	if _, err := sup.Running(context.Background()); err == nil {
		t.Fatal("expected lister error to propagate")
	}
}
