package testsupport

import (
	"context"
	"sync"
	"time"

	"binder/internal/procs"
)

// FakeProc is a scriptable procs.Proc.
type FakeProc struct {
	mu sync.Mutex

	Pid      int32
	ProcName string
	NameErr  error
	Statuses []string
	Created  time.Time
	Memory   float64
	Alive    bool

	// DieOnTerminate makes Terminate stop the process; otherwise only Kill
	// does, modeling a process that ignores the polite signal.
	DieOnTerminate bool
	TerminateErr   error
	KillErr        error

	Terminated int
	Killed     int
}

func (p *FakeProc) PID() int32 { return p.Pid }

func (p *FakeProc) Name(ctx context.Context) (string, error) {
	if p.NameErr != nil {
		return "", p.NameErr
	}
	return p.ProcName, nil
}

func (p *FakeProc) Status(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.Statuses...), nil
}

// SetStatuses swaps the reported status set, safe against concurrent reads.
func (p *FakeProc) SetStatuses(statuses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Statuses = append([]string{}, statuses...)
}

func (p *FakeProc) CreateTime(ctx context.Context) (time.Time, error) {
	return p.Created, nil
}

func (p *FakeProc) MemoryMB(ctx context.Context) (float64, error) {
	return p.Memory, nil
}

func (p *FakeProc) Running(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Alive, nil
}

func (p *FakeProc) Terminate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Terminated++
	if p.TerminateErr != nil {
		return p.TerminateErr
	}
	if p.DieOnTerminate {
		p.Alive = false
	}
	return nil
}

func (p *FakeProc) Kill(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Killed++
	if p.KillErr != nil {
		return p.KillErr
	}
	p.Alive = false
	return nil
}

// FakeLister serves a fixed process table.
type FakeLister struct {
	Procs []procs.Proc
	Err   error
}

func (l *FakeLister) Processes(ctx context.Context) ([]procs.Proc, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return append([]procs.Proc{}, l.Procs...), nil
}
