package history

import "time"

// Kind identifies which operation a run record describes.
type Kind string

const (
	KindScan           Kind = "scan"
	KindUpdate         Kind = "update"
	KindSave           Kind = "save"
	KindSessionSave    Kind = "session-save"
	KindSessionRestore Kind = "session-restore"
	KindProcsCleanup   Kind = "procs-cleanup"
)

var allKinds = []Kind{
	KindScan,
	KindUpdate,
	KindSave,
	KindSessionSave,
	KindSessionRestore,
	KindProcsCleanup,
}

var kindSet = func() map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(allKinds))
	for _, kind := range allKinds {
		set[kind] = struct{}{}
	}
	return set
}()

// KnownKind reports whether kind names a recorded run type.
func KnownKind(kind Kind) bool {
	_, ok := kindSet[kind]
	return ok
}

// Status is the outcome of a recorded run.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

var statusSet = map[Status]struct{}{
	StatusOK:      {},
	StatusPartial: {},
	StatusError:   {},
}

// KnownStatus reports whether status names a recorded outcome.
func KnownStatus(status Status) bool {
	_, ok := statusSet[status]
	return ok
}

// RunRecord is one completed run persisted in SQLite. Counts that do not
// apply to a kind stay zero (a session save has no link counts).
type RunRecord struct {
	ID           int64
	RunID        string
	Kind         Kind
	Status       Status
	StartedAt    time.Time
	FinishedAt   time.Time
	Workbooks    int
	LinksFound   int
	LinksUpdated int
	LinksSkipped int
	LinksFailed  int
	Detail       string
	ReportPath   string
}

// Duration returns the wall-clock span of the run.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary aggregates run counts for diagnostics.
type Summary struct {
	Total    int
	ByKind   map[Kind]int
	ByStatus map[Status]int
}
