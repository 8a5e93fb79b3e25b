package engine

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/txn"
)

// Activate reconciles tr and, on success, installs it into the live job
// set atomically with respect to failure.
func (e *Engine) Activate(tr *txn.Transaction, mode txn.Mode) (err error) {
	start := time.Now()
	entry := e.log.WithFields(log.Fields{"txn": tr.ID, "mode": mode})
	entry.Debug("activate: start")

	defer func() {
		e.metrics.activateLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			entry.WithError(err).Warn("activate: failed")
			return
		}
		e.metrics.cyclesBroken.Add(float64(tr.Stats.CyclesBroken))
		entry.Debug("activate: installed")
	}()

	if err = txn.Reconcile(tr, mode); err != nil {
		if kind, ok := txn.KindOf(err); ok {
			e.metrics.jobsDropped.WithLabelValues(kind.String()).Inc()
		}
		return err
	}

	if mode == txn.ModeIsolate {
		e.isolateCancelSweep(tr)
	}

	return e.install(tr)
}

// isolateCancelSweep finishes every live job whose unit is not in tr with
// Canceled. It runs to completion before any install starts.
func (e *Engine) isolateCancelSweep(tr *txn.Transaction) {
	for {
		restarted := false
		for name, j := range e.live {
			if len(tr.JobsFor(name)) > 0 {
				continue
			}
			touched := e.finisher.FinishAndInvalidate(j, Canceled)
			delete(e.live, name)
			if touched {
				restarted = true
				break
			}
		}
		if !restarted {
			return
		}
	}
}

// insertedJob records one unit's newly installed job and whatever live job
// it replaces, for rollback and for the commit phase's notifications.
type insertedJob struct {
	name string
	job  *job.Job
	old  *job.Job // nil if nothing was live for this unit
}

// install moves every not-yet-installed job in tr into the live set,
// rolling back every insertion made in this call if any single insertion
// fails. The live set itself is left untouched until every job in the
// batch has been validated and assigned an id, so a failure partway
// through never leaves a superseded live job unaccounted for: a failed
// Activate leaves the live set exactly as it found it.
func (e *Engine) install(tr *txn.Transaction) (err error) {
	var done []insertedJob

	rollback := func() {
		for _, ins := range done {
			ins.job.Uninstall()
		}
	}

	for _, name := range tr.Units() {
		jobs := tr.JobsFor(name)
		if len(jobs) != 1 {
			// Reconcile guarantees one job per unit on return; treat any
			// violation as an internal error rather than silently
			// installing the wrong job.
			rollback()
			return fmt.Errorf("engine: unit %s left with %d jobs after reconcile", name, len(jobs))
		}
		j := jobs[0]
		if j.Installed {
			continue
		}

		id, ierr := e.assignID()
		if ierr != nil {
			rollback()
			return ierr
		}
		j.Install(id)

		var old *job.Job
		if prev, ok := e.live[name]; ok && prev != j {
			old = prev
		}
		done = append(done, insertedJob{name: name, job: j, old: old})
	}

	e.commit(done)
	return nil
}

// assignID hands out the next monotonic live-job id.
func (e *Engine) assignID() (uint64, error) {
	e.nextID++
	if e.nextID == 0 {
		return 0, fmt.Errorf("engine: job id space exhausted")
	}
	return e.nextID, nil
}

// commit publishes each newly installed job into the live set, finishes
// whatever live job it replaces, unlinks its transaction bookkeeping and
// notifies the run queue, timer and bus. Nothing here can fail, so by the
// time it runs the batch is guaranteed to land.
func (e *Engine) commit(done []insertedJob) {
	for _, ins := range done {
		if ins.old != nil {
			e.finisher.FinishAndInvalidate(ins.old, Superseded)
		}
		e.live[ins.name] = ins.job
		ins.job.Unlink()
		e.runQueue.Add(ins.job)
		e.timer.Start(ins.job)
		e.bus.Post(ins.job)
		e.metrics.jobsInstalled.WithLabelValues(ins.job.Type.String()).Inc()
	}
}
