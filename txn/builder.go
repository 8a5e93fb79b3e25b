package txn

import (
	log "github.com/sirupsen/logrus"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/unit"
)

// LinkOptions carries the recursion flags of AddJobAndDependencies.
type LinkOptions struct {
	// Matters is whether the inbound link (from puller) marks the pulled
	// job as essential. Ignored when puller is nil.
	Matters            bool
	Override           bool
	Conflicts          bool
	IgnoreRequirements bool
	IgnoreOrder        bool
}

// expansionRule is one row of the per-dependency-kind fan-out table. The
// table keeps each edge kind's matters/fail-on-error behavior next to its
// name instead of burying it in a switch.
type expansionRule struct {
	Kind        unit.DependencyKind
	ChildType   func(requested job.Type) job.Type
	Matters     func(override bool) bool
	Conflicts   bool
	FailOnError bool
}

func always(t job.Type) func(job.Type) job.Type   { return func(job.Type) job.Type { return t } }
func sameAsRequested(requested job.Type) job.Type { return requested }
func mattersAlways(v bool) func(bool) bool        { return func(bool) bool { return v } }

var startRules = []expansionRule{
	{Kind: unit.Requires, ChildType: always(job.Start), Matters: mattersAlways(true), FailOnError: true},
	{Kind: unit.BindTo, ChildType: always(job.Start), Matters: mattersAlways(true), FailOnError: true},
	{Kind: unit.RequiresOverridable, ChildType: always(job.Start), Matters: func(o bool) bool { return !o }, FailOnError: false},
	{Kind: unit.Wants, ChildType: always(job.Start), Matters: mattersAlways(false), FailOnError: false},
	{Kind: unit.Requisite, ChildType: always(job.VerifyActive), Matters: mattersAlways(true), FailOnError: true},
	{Kind: unit.RequisiteOverridable, ChildType: always(job.VerifyActive), Matters: func(o bool) bool { return !o }, FailOnError: false},
	{Kind: unit.Conflicts, ChildType: always(job.Stop), Matters: mattersAlways(true), Conflicts: true, FailOnError: true},
	{Kind: unit.ConflictedBy, ChildType: always(job.Stop), Matters: mattersAlways(false), FailOnError: false},
}

var stopRules = []expansionRule{
	{Kind: unit.RequiredBy, ChildType: sameAsRequested, Matters: mattersAlways(true), FailOnError: true},
	{Kind: unit.BoundBy, ChildType: sameAsRequested, Matters: mattersAlways(true), FailOnError: true},
}

var reloadRules = []expansionRule{
	{Kind: unit.PropagateReloadTo, ChildType: always(job.Reload), Matters: mattersAlways(false), FailOnError: false},
}

func rulesFor(t job.Type) []expansionRule {
	switch t {
	case job.Start, job.ReloadOrStart:
		rules := append([]expansionRule(nil), startRules...)
		if t == job.ReloadOrStart {
			rules = append(rules, reloadRules...)
		}
		return rules
	case job.Stop, job.Restart, job.TryRestart:
		return stopRules
	case job.Reload:
		return reloadRules
	default: // VerifyActive
		return nil
	}
}

// AddJobAndDependencies finds or creates a job for (unitName, t), links it
// to puller if given, and recursively expands its dependencies when it's
// newly created.
func AddJobAndDependencies(tr *Transaction, t job.Type, unitName string, puller *job.Job, opts LinkOptions) (*job.Job, error) {
	u, ok := tr.Registry.Lookup(unitName)
	if !ok {
		return nil, wrapError(LoadFailed, unitName, nil)
	}

	if u.LoadState() == unit.Error && t != job.Stop {
		return nil, newError(LoadFailed, unitName)
	}
	if u.LoadState() == unit.Masked && t != job.Stop {
		return nil, newError(Masked, unitName)
	}
	if !job.IsApplicable(u.Class(), t) {
		return nil, newError(JobTypeNotApplicable, unitName)
	}

	j := tr.findJob(u, t)
	isNew := j == nil
	if isNew {
		j = job.New(u, t)
		j.Override = opts.Override
		j.IgnoreOrder = opts.IgnoreOrder
		tr.appendJob(u, j)
	} else {
		j.Override = j.Override || opts.Override
	}

	if puller == nil {
		if tr.Anchor != nil && tr.Anchor != j {
			panic("txn: a second anchor job was requested on a transaction that already has one")
		}
		tr.Anchor = j
	} else {
		job.NewLink(puller, j, opts.Matters, opts.Conflicts)
	}

	if isNew && !opts.IgnoreRequirements {
		if err := expand(tr, j, t); err != nil {
			return nil, err
		}
	}

	return j, nil
}

// expand walks followers, then the per-dependency-kind table.
func expand(tr *Transaction, j *job.Job, requested job.Type) error {
	for _, follower := range j.Unit.Followers() {
		if _, err := AddJobAndDependencies(tr, requested, follower, j, LinkOptions{
			Matters:            false,
			Conflicts:          false,
			IgnoreRequirements: true,
			IgnoreOrder:        j.IgnoreOrder,
		}); err != nil {
			if k, _ := KindOf(err); k != JobTypeNotApplicable {
				log.WithFields(log.Fields{"unit": follower, "err": err}).Warn("follower replication failed")
			}
		}
	}

	for _, rule := range rulesFor(requested) {
		for _, name := range j.Unit.Dependencies(rule.Kind) {
			childType := rule.ChildType(requested)
			_, err := AddJobAndDependencies(tr, childType, name, j, LinkOptions{
				Matters:     rule.Matters(j.Override),
				Conflicts:   rule.Conflicts,
				Override:    j.Override,
				IgnoreOrder: j.IgnoreOrder,
			})
			if err == nil {
				continue
			}
			if k, _ := KindOf(err); k == JobTypeNotApplicable {
				continue
			}
			if rule.FailOnError {
				return err
			}
			log.WithFields(log.Fields{
				"unit": name, "kind": rule.Kind, "err": err,
			}).Warn("dependency expansion failed; continuing")
		}
	}
	return nil
}

// AddIsolateJobs queues a Stop for every loaded unit not already in the
// transaction that is active or carries a live job, pulled in by the
// anchor.
func AddIsolateJobs(tr *Transaction) error {
	if tr.Anchor == nil {
		panic("txn: AddIsolateJobs called before an anchor job exists")
	}
	for _, u := range tr.Registry.Units() {
		if u.IgnoreOnIsolate() {
			continue
		}
		if u.LoadState() != unit.Loaded {
			continue
		}
		if len(tr.JobsFor(u.Name())) > 0 {
			continue
		}
		_, hasLive := tr.Live.Get(u.Name())
		if u.ActiveState() == unit.Inactive && !hasLive {
			continue
		}
		if _, err := AddJobAndDependencies(tr, job.Stop, u.Name(), tr.Anchor, LinkOptions{
			Matters: false,
		}); err != nil {
			if k, _ := KindOf(err); k != JobTypeNotApplicable {
				return err
			}
		}
	}
	return nil
}
