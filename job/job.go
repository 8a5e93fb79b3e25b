// Package job implements the transaction engine's job model and
// dependency-link graph.
package job

import (
	log "github.com/sirupsen/logrus"

	"github.com/rvolosatovs/systemgo/unit"
)

// Job represents one pending operation on one unit.
type Job struct {
	Unit unit.Unit
	Type Type

	Installed   bool
	Override    bool
	IgnoreOrder bool

	// MattersToAnchor is recomputed by the reconciler's pass 1 every run.
	MattersToAnchor bool

	// Generation and Marker are scratch fields for graph traversals;
	// callers must not rely on their value across engine calls.
	Generation uint64
	Marker     *Job

	// Next chains additional pending jobs queued for the same unit,
	// before pass 6 collapses them into one survivor.
	Next *Job

	// SubjectList holds links where this job is the puller; ObjectList
	// holds links where this job is the pulled-in dependency.
	SubjectList []*Link
	ObjectList  []*Link

	// id is the manager-assigned monotonic id, set once Install runs.
	id uint64
}

// New allocates a job. It does not insert it into any transaction.
func New(u unit.Unit, t Type) *Job {
	log.WithFields(log.Fields{"unit": u.Name(), "type": t}).Debug("job.New")
	return &Job{Unit: u, Type: t}
}

// Install marks the job as moved into the manager's live job set. It is
// idempotent: calling it again with a different id is a no-op.
func (j *Job) Install(id uint64) {
	if j.Installed {
		return
	}
	j.Installed = true
	j.id = id
}

// ID returns the manager-assigned id, valid only once Installed is true.
func (j *Job) ID() uint64 { return j.id }

// Uninstall reverts Install. It exists solely for the applier's rollback
// path; the engine is the only caller with a legitimate reason to
// un-publish a job.
func (j *Job) Uninstall() {
	j.Installed = false
	j.id = 0
}

// IsOrphan reports whether nothing still pulls this job in (empty
// ObjectList), the reconciler's garbage-collection criterion.
func (j *Job) IsOrphan() bool {
	return len(j.ObjectList) == 0
}

// Unlink severs every link this job participates in, on both ends. It does
// not follow the "matters" delete cascade; that is a transaction-level
// concern since it must recurse across jobs the transaction still tracks.
func (j *Job) Unlink() {
	for _, l := range append([]*Link(nil), j.SubjectList...) {
		l.Free()
	}
	for _, l := range append([]*Link(nil), j.ObjectList...) {
		l.Free()
	}
}

// PulledByConflict reports whether any inbound link marks this job as
// having been pulled in by a Conflicts edge, which the merge-conflict
// drop heuristic treats specially.
func (j *Job) PulledByConflict() bool {
	for _, l := range j.ObjectList {
		if l.Conflicts {
			return true
		}
	}
	return false
}
