package engine

import "github.com/rvolosatovs/systemgo/job"

// Result is how a finished job is reported back through the run queue's
// normal completion notifications.
type Result int

const (
	Completed Result = iota
	Canceled
	Superseded
)

func (r Result) String() string {
	switch r {
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	case Superseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// RunQueue, Timer and BusQueue are the manager's fire-and-forget
// collaborators. The engine never blocks on them.
type RunQueue interface {
	Add(j *job.Job)
}

type Timer interface {
	Start(j *job.Job)
}

type BusQueue interface {
	Post(j *job.Job)
}

// LiveJobFinisher finishes a job still in the manager's live set, used by
// the isolate cancel-sweep. It reports whether finishing j cascaded into
// touching other live jobs, in which case the sweep must restart its
// iteration.
type LiveJobFinisher interface {
	FinishAndInvalidate(j *job.Job, result Result) (touchedOthers bool)
}

type nopRunQueue struct{}

func (nopRunQueue) Add(*job.Job) {}

type nopTimer struct{}

func (nopTimer) Start(*job.Job) {}

type nopBusQueue struct{}

func (nopBusQueue) Post(*job.Job) {}

type nopFinisher struct{}

func (nopFinisher) FinishAndInvalidate(*job.Job, Result) bool { return false }
