// Package txn implements the transaction builder and reconciler: expanding
// a root request into a job graph and rewriting it in place until it is
// mergeable, acyclic and non-destructive.
package txn

import (
	"github.com/google/uuid"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/unit"
)

// LiveJobs is the manager's current live job table, read-only from the
// transaction's perspective.
type LiveJobs interface {
	Get(unitName string) (*job.Job, bool)
}

// Mode selects how Activate reconciles the transaction.
type Mode int

const (
	ModeFail Mode = iota
	ModeReplace
	ModeIsolate
)

func (m Mode) String() string {
	switch m {
	case ModeFail:
		return "fail"
	case ModeReplace:
		return "replace"
	case ModeIsolate:
		return "isolate"
	default:
		return "unknown"
	}
}

// Transaction is a mapping from unit name to the head of that unit's
// pending-job list, plus the anchor job of the request.
type Transaction struct {
	ID uuid.UUID

	Registry unit.Registry
	Live     LiveJobs

	jobs   map[string]*job.Job
	Anchor *job.Job

	// gen is bumped once per essential-marking run; Job.Generation records
	// the last generation a job was visited in, standing in for a separate
	// visited-set during the BFS.
	gen uint64

	// Stats is incidental bookkeeping for callers that want to export
	// metrics (engine.metrics); the reconciler's correctness never
	// depends on it.
	Stats Stats
}

// Stats counts reconciler activity for observability.
type Stats struct {
	JobsDropped  int
	CyclesBroken int
}

// New starts an empty transaction against reg/live. The anchor job is set
// by the first top-level AddJobAndDependencies call (puller == nil).
func New(reg unit.Registry, live LiveJobs) *Transaction {
	return &Transaction{
		ID:       uuid.New(),
		Registry: reg,
		Live:     live,
		jobs:     make(map[string]*job.Job),
	}
}

// JobsFor returns every job currently queued for unitName, in list order.
func (tr *Transaction) JobsFor(unitName string) []*job.Job {
	var out []*job.Job
	for j := tr.jobs[unitName]; j != nil; j = j.Next {
		out = append(out, j)
	}
	return out
}

// Units returns the names of every unit with at least one pending job.
func (tr *Transaction) Units() []string {
	out := make([]string, 0, len(tr.jobs))
	for name := range tr.jobs {
		out = append(out, name)
	}
	return out
}

// Len reports the number of units with pending jobs.
func (tr *Transaction) Len() int { return len(tr.jobs) }

// findJob looks for an existing job of type t already queued for u.
func (tr *Transaction) findJob(u unit.Unit, t job.Type) *job.Job {
	for j := tr.jobs[u.Name()]; j != nil; j = j.Next {
		if j.Type == t {
			return j
		}
	}
	return nil
}

// appendJob threads a newly created job onto u's pending-job list.
func (tr *Transaction) appendJob(u unit.Unit, j *job.Job) {
	head, ok := tr.jobs[u.Name()]
	if !ok {
		tr.jobs[u.Name()] = j
		return
	}
	last := head
	for last.Next != nil {
		last = last.Next
	}
	last.Next = j
}

// removeJob unthreads j from its unit's pending-job list without touching
// its links; callers use Delete for the full cascade.
func (tr *Transaction) removeJob(j *job.Job) {
	name := j.Unit.Name()
	head := tr.jobs[name]
	if head == j {
		if j.Next == nil {
			delete(tr.jobs, name)
		} else {
			tr.jobs[name] = j.Next
		}
		j.Next = nil
		return
	}
	for prev := head; prev != nil; prev = prev.Next {
		if prev.Next == j {
			prev.Next = j.Next
			j.Next = nil
			return
		}
	}
}

// Delete removes j from the transaction and frees its links. With
// deleteDependencies set it also cascades: every job that pulled j in
// through a Matters link (j's ObjectList) cannot proceed without j and is
// deleted too, recursively. Drop-redundant deletions pass false, since a
// job dropped for being already satisfied leaves its pullers perfectly
// able to proceed.
func (tr *Transaction) Delete(j *job.Job, deleteDependencies bool) {
	tr.Stats.JobsDropped++
	if j == tr.Anchor {
		tr.Anchor = nil
	}

	var cascade []*job.Job
	if deleteDependencies {
		for _, l := range j.ObjectList {
			if l.Matters {
				cascade = append(cascade, l.Subject)
			}
		}
	}

	j.Unlink()
	tr.removeJob(j)

	for _, other := range cascade {
		if tr.contains(other) {
			tr.Delete(other, true)
		}
	}
}

func (tr *Transaction) contains(j *job.Job) bool {
	for cur := tr.jobs[j.Unit.Name()]; cur != nil; cur = cur.Next {
		if cur == j {
			return true
		}
	}
	return false
}

// Abort drops every job in the transaction without touching the live set.
func Abort(tr *Transaction) {
	for _, name := range tr.Units() {
		for _, j := range tr.JobsFor(name) {
			j.Unlink()
		}
	}
	tr.jobs = make(map[string]*job.Job)
	tr.Anchor = nil
}
