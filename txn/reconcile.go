package txn

import (
	log "github.com/sirupsen/logrus"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/unit"
)

// Reconcile rewrites the transaction in place through a fixed series of
// passes until it converges (one job per unit, acyclic, mergeable,
// non-destructive) or a pass gives up.
func Reconcile(tr *Transaction, mode Mode) error {
	log.WithFields(log.Fields{"txn": tr.ID, "mode": mode}).Debug("reconcile: start")

	pass1MarkEssential(tr)
	if mode == ModeFail {
		pass2MinimizeImpact(tr)
	}
	pass3DropRedundant(tr)

	for {
		if mode != ModeIsolate {
			pass4GCOrphans(tr)
		}

		retry, err := pass5VerifyOrder(tr)
		if err != nil {
			return err
		}
		if retry {
			continue
		}

		retry, err = pass6Merge(tr)
		if err != nil {
			return err
		}
		if retry {
			continue
		}

		break
	}

	pass3DropRedundant(tr) // pass 7: redundancy may appear only after merging

	if mode == ModeFail {
		if err := pass8Destructiveness(tr); err != nil {
			return err
		}
	}

	log.WithFields(log.Fields{"txn": tr.ID}).Debug("reconcile: converged")
	return nil
}

// pass1MarkEssential recomputes MattersToAnchor by following only
// matters=true links outward from the anchor.
func pass1MarkEssential(tr *Transaction) {
	for _, name := range tr.Units() {
		for _, j := range tr.JobsFor(name) {
			j.MattersToAnchor = false
		}
	}
	if tr.Anchor == nil {
		return
	}

	tr.gen++
	gen := tr.gen

	tr.Anchor.MattersToAnchor = true
	tr.Anchor.Generation = gen

	queue := []*job.Job{tr.Anchor}
	for len(queue) > 0 {
		j := queue[0]
		queue = queue[1:]
		for _, l := range j.SubjectList {
			if !l.Matters {
				continue
			}
			obj := l.Object
			if obj.Generation == gen {
				continue
			}
			obj.Generation = gen
			obj.MattersToAnchor = true
			queue = append(queue, obj)
		}
	}
}

// pass2MinimizeImpact deletes non-essential jobs that would stop a running
// unit or collide with a live job, FAIL mode only.
func pass2MinimizeImpact(tr *Transaction) {
	for {
		changed := false
		for _, name := range tr.Units() {
			for _, j := range tr.JobsFor(name) {
				// An earlier deletion this sweep may have cascaded into j.
				if !tr.contains(j) {
					continue
				}
				if j.MattersToAnchor {
					continue
				}

				wouldStopRunning := j.Type == job.Stop &&
					(j.Unit.ActiveState() == unit.Active || j.Unit.ActiveState() == unit.Activating)

				conflictsLive := false
				if live, ok := tr.Live.Get(name); ok {
					if _, mergeable := job.Merge(live.Type, j.Type); !mergeable {
						conflictsLive = true
					}
				}

				if wouldStopRunning || conflictsLive {
					tr.Delete(j, true)
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// pass3DropRedundant deletes installed or redundant jobs; also used
// verbatim as pass 7 after merging. The anchor itself is not protected
// here: a redundant anchor (starting an already-active unit, say) is
// dropped too, and Activate still reports success with nothing newly
// installed.
func pass3DropRedundant(tr *Transaction) {
	for {
		changed := false
		for _, name := range tr.Units() {
			for _, j := range tr.JobsFor(name) {
				redundant := j.Installed || job.IsRedundant(j.Type, j.Unit.ActiveState())
				if !redundant {
					continue
				}
				if hasConflictingLiveJob(tr, name, j.Type) {
					continue
				}
				// No cascade: a redundant job is already satisfied, so
				// whatever pulled it in can still proceed.
				tr.Delete(j, false)
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func hasConflictingLiveJob(tr *Transaction, unitName string, t job.Type) bool {
	live, ok := tr.Live.Get(unitName)
	if !ok {
		return false
	}
	_, mergeable := job.Merge(live.Type, t)
	return !mergeable
}

// pass4GCOrphans deletes non-anchor jobs nothing pulls in anymore.
func pass4GCOrphans(tr *Transaction) {
	for {
		changed := false
		for _, name := range tr.Units() {
			for _, j := range tr.JobsFor(name) {
				if j == tr.Anchor || !tr.contains(j) {
					continue
				}
				if j.IsOrphan() {
					tr.Delete(j, true)
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// pass5VerifyOrder DFSes the UNIT_BEFORE graph restricted to jobs in the
// transaction. On a cycle it drops the first non-installed, non-essential
// node on the cycle and asks the caller to retry from pass 4; if no such
// node exists it fails.
func pass5VerifyOrder(tr *Transaction) (retry bool, err error) {
	heads := make([]*job.Job, 0, len(tr.jobs))
	for _, j := range tr.jobs {
		heads = append(heads, j)
	}
	edges := buildOrderEdges(tr, heads)

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[*job.Job]int, len(heads))

	var cycleAncestor, cycleTip *job.Job

	var visit func(j *job.Job) bool
	visit = func(j *job.Job) bool {
		color[j] = gray
		for _, k := range edges[j] {
			switch color[k] {
			case gray:
				cycleAncestor, cycleTip = k, j
				return true
			case black:
				continue
			default:
				k.Marker = j
				if visit(k) {
					return true
				}
			}
		}
		color[j] = black
		return false
	}

	for _, j := range heads {
		if color[j] != white {
			continue
		}
		j.Marker = nil
		if visit(j) {
			break
		}
	}

	if cycleAncestor == nil {
		return false, nil
	}

	path := []*job.Job{cycleTip}
	for cur := cycleTip; cur != cycleAncestor; {
		if cur.Marker == nil {
			break // defensive: malformed path, fall through to hard failure below
		}
		cur = cur.Marker
		path = append(path, cur)
	}

	for _, candidate := range path {
		if !candidate.Installed && !candidate.MattersToAnchor {
			log.WithFields(log.Fields{
				"unit": candidate.Unit.Name(), "type": candidate.Type,
			}).Warn("breaking ordering cycle")
			tr.Stats.CyclesBroken++
			tr.Delete(candidate, true)
			return true, nil
		}
	}

	return false, newError(OrderIsCyclic, cycleAncestor.Unit.Name())
}

func buildOrderEdges(tr *Transaction, heads []*job.Job) map[*job.Job][]*job.Job {
	edges := make(map[*job.Job][]*job.Job, len(heads))
	for _, j := range heads {
		if j.IgnoreOrder {
			continue
		}
		for _, other := range j.Unit.Dependencies(unit.Before) {
			if k, ok := tr.jobs[other]; ok && !k.IgnoreOrder {
				edges[j] = append(edges[j], k)
			}
		}
		for _, other := range j.Unit.Dependencies(unit.After) {
			if k, ok := tr.jobs[other]; ok && !k.IgnoreOrder {
				edges[k] = append(edges[k], j)
			}
		}
	}
	return edges
}

// pass6Merge folds every unit's job list to one type, merges that type
// with any live installed job, and collapses the list into one survivor.
// If the fold fails it tries to drop one of the conflicting jobs first.
func pass6Merge(tr *Transaction) (retry bool, err error) {
	for _, name := range tr.Units() {
		jobs := tr.JobsFor(name)
		if len(jobs) == 0 {
			continue
		}

		merged := jobs[0].Type
		ok := true
		for _, j := range jobs[1:] {
			if merged, ok = job.Merge(merged, j.Type); !ok {
				break
			}
		}

		if !ok {
			dropped, rerr := resolveMergeConflict(tr, jobs)
			if rerr != nil {
				return false, rerr
			}
			if dropped {
				return true, nil
			}
			continue
		}

		if live, hasLive := tr.Live.Get(name); hasLive {
			if withLive, mergeable := job.Merge(merged, live.Type); mergeable {
				merged = withLive
			}
		}

		collapse(tr, jobs, merged)
	}
	return false, nil
}

func collapse(tr *Transaction, jobs []*job.Job, merged job.Type) {
	survivor := jobs[0]
	survivor.Type = merged
	for _, dead := range jobs[1:] {
		survivor.Override = survivor.Override || dead.Override
		survivor.MattersToAnchor = survivor.MattersToAnchor || dead.MattersToAnchor

		for _, l := range dead.SubjectList {
			l.Subject = survivor
		}
		for _, l := range dead.ObjectList {
			l.Object = survivor
		}
		survivor.SubjectList = append(survivor.SubjectList, dead.SubjectList...)
		survivor.ObjectList = append(survivor.ObjectList, dead.ObjectList...)

		if tr.Anchor == dead {
			tr.Anchor = survivor
		}
		dead.SubjectList, dead.ObjectList = nil, nil
		tr.removeJob(dead)
	}

	// Links between two now-merged jobs have collapsed into self-links;
	// drop them so they don't keep the survivor artificially non-orphan.
	for _, l := range append([]*job.Link(nil), survivor.SubjectList...) {
		if l.Object == survivor {
			l.Free()
		}
	}
}

// resolveMergeConflict prefers to keep starts over stops, except a stop
// pulled in via a Conflicts edge beats the opposing start.
func resolveMergeConflict(tr *Transaction, jobs []*job.Job) (dropped bool, err error) {
	for i := 0; i < len(jobs); i++ {
		for k := i + 1; k < len(jobs); k++ {
			a, b := jobs[i], jobs[k]
			if job.IsMergeable(a.Type, b.Type) {
				continue
			}
			if a.MattersToAnchor || b.MattersToAnchor || a.Installed || b.Installed {
				continue
			}

			var stopJob, otherJob *job.Job
			switch {
			case a.Type == job.Stop:
				stopJob, otherJob = a, b
			case b.Type == job.Stop:
				stopJob, otherJob = b, a
			}
			if stopJob == nil {
				continue
			}

			if stopJob.PulledByConflict() {
				tr.Delete(otherJob, true)
			} else {
				tr.Delete(stopJob, true)
			}
			return true, nil
		}
	}
	return false, newError(JobsConflicting, jobs[0].Unit.Name())
}

// pass8Destructiveness requires every surviving job to be a superset of any
// live job it would replace, FAIL mode only.
func pass8Destructiveness(tr *Transaction) error {
	for _, name := range tr.Units() {
		jobs := tr.JobsFor(name)
		if len(jobs) == 0 {
			continue
		}
		j := jobs[0]
		live, ok := tr.Live.Get(name)
		if !ok || live == j {
			continue
		}
		if !job.IsSuperset(j.Type, live.Type) {
			return newError(IsDestructive, name)
		}
	}
	return nil
}
