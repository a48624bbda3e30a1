package procs

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Proc is one process visible through a Lister.
type Proc interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Status(ctx context.Context) ([]string, error)
	CreateTime(ctx context.Context) (time.Time, error)
	MemoryMB(ctx context.Context) (float64, error)
	Running(ctx context.Context) (bool, error)
	Terminate(ctx context.Context) error
	Kill(ctx context.Context) error
}

// Lister enumerates candidate processes.
type Lister interface {
	Processes(ctx context.Context) ([]Proc, error)
}

// Process is a point-in-time snapshot of one matched process.
type Process struct {
	PID      int32     `json:"pid"`
	Name     string    `json:"name"`
	Status   string    `json:"status"`
	Created  time.Time `json:"created"`
	MemoryMB float64   `json:"memory_mb"`
	Zombie   bool      `json:"zombie"`
}

// SystemLister reads the host process table via gopsutil.
type SystemLister struct{}

func (SystemLister) Processes(ctx context.Context) ([]Proc, error) {
	list, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Proc, 0, len(list))
	for _, p := range list {
		out = append(out, systemProc{p})
	}
	return out, nil
}

type systemProc struct {
	p *process.Process
}

func (s systemProc) PID() int32 { return s.p.Pid }

func (s systemProc) Name(ctx context.Context) (string, error) {
	return s.p.NameWithContext(ctx)
}

func (s systemProc) Status(ctx context.Context) ([]string, error) {
	return s.p.StatusWithContext(ctx)
}

func (s systemProc) CreateTime(ctx context.Context) (time.Time, error) {
	ms, err := s.p.CreateTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}

func (s systemProc) MemoryMB(ctx context.Context) (float64, error) {
	info, err := s.p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / 1024 / 1024, nil
}

func (s systemProc) Running(ctx context.Context) (bool, error) {
	return s.p.IsRunningWithContext(ctx)
}

func (s systemProc) Terminate(ctx context.Context) error {
	return s.p.TerminateWithContext(ctx)
}

func (s systemProc) Kill(ctx context.Context) error {
	return s.p.KillWithContext(ctx)
}
