package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvolosatovs/systemgo/job"
	"github.com/rvolosatovs/systemgo/txn"
	"github.com/rvolosatovs/systemgo/unit"
)

// recordingFinisher records how each live job was finished, for assertions
// on the isolate cancel-sweep.
type recordingFinisher struct {
	finished map[string]Result
}

func newRecordingFinisher() *recordingFinisher {
	return &recordingFinisher{finished: map[string]Result{}}
}

func (f *recordingFinisher) FinishAndInvalidate(j *job.Job, result Result) bool {
	f.finished[j.Unit.Name()] = result
	return false
}

func regOf(units ...*unit.StaticUnit) *unit.MapRegistry {
	r := unit.NewMapRegistry()
	for _, u := range units {
		r.Add(u)
	}
	return r
}

// A requires B; B requires C; all inactive. Starting A installs all three.
func TestStartInstallsRequiresClosure(t *testing.T) {
	a := unit.NewStaticUnit("a.service", unit.ClassService).Add(unit.Requires, "b.service")
	b := unit.NewStaticUnit("b.service", unit.ClassService).Add(unit.Requires, "c.service")
	c := unit.NewStaticUnit("c.service", unit.ClassService)

	e := New(regOf(a, b, c))
	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Activate(tr, txn.ModeFail))

	for _, name := range []string{"a.service", "b.service", "c.service"} {
		live, ok := e.LiveJob(name)
		require.True(t, ok, name)
		assert.Equal(t, job.Start, live.Type, name)
		assert.True(t, live.Installed, name)
	}
}

// A conflicts B; B active. Starting A installs a start for A and a stop
// for B.
func TestStartStopsConflictingUnit(t *testing.T) {
	a := unit.NewStaticUnit("a.service", unit.ClassService).Add(unit.Conflicts, "b.service")
	b := unit.NewStaticUnit("b.service", unit.ClassService)
	b.State = unit.Active

	e := New(regOf(a, b))
	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)
	require.NoError(t, e.Activate(tr, txn.ModeFail))

	liveA, ok := e.LiveJob("a.service")
	require.True(t, ok)
	assert.Equal(t, job.Start, liveA.Type)

	liveB, ok := e.LiveJob("b.service")
	require.True(t, ok)
	assert.Equal(t, job.Stop, liveB.Type)
}

// Isolate mode stops every live unit not pulled into the target's
// dependency closure. Units AddIsolateJobs can still reach (a, b) get a
// stop job superseding their old live job through the normal install path;
// a unit AddIsolateJobs can no longer see at all (d, now masked) falls back
// to the cancel-sweep.
func TestIsolateStopsEverythingElse(t *testing.T) {
	a := unit.NewStaticUnit("a.service", unit.ClassService)
	a.State = unit.Active
	b := unit.NewStaticUnit("b.service", unit.ClassService)
	b.State = unit.Active
	d := unit.NewStaticUnit("d.service", unit.ClassService)
	d.Load = unit.Masked
	target := unit.NewStaticUnit("t.target", unit.ClassTarget)

	finisher := newRecordingFinisher()
	e := New(regOf(a, b, d, target), WithFinisher(finisher))

	// seed live jobs for a, b, d as if they were started earlier
	for _, u := range []*unit.StaticUnit{a, b, d} {
		seed := job.New(u, job.Start)
		seed.Install(1)
		e.live[u.Name()] = seed
	}

	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "t.target", nil, txn.LinkOptions{})
	require.NoError(t, err)
	require.NoError(t, e.AddIsolateJobs(tr))

	require.NoError(t, e.Activate(tr, txn.ModeIsolate))

	liveT, ok := e.LiveJob("t.target")
	require.True(t, ok)
	assert.Equal(t, job.Start, liveT.Type)

	for _, name := range []string{"a.service", "b.service"} {
		live, ok := e.LiveJob(name)
		require.True(t, ok, name)
		assert.Equal(t, job.Stop, live.Type, name)
		assert.Equal(t, Superseded, finisher.finished[name], name)
	}

	_, stillLive := e.LiveJob("d.service")
	assert.False(t, stillLive)
	assert.Equal(t, Canceled, finisher.finished["d.service"])
}

// A unit marked ignore-on-isolate gets no STOP queued; with no live job
// either, isolate leaves it completely alone.
func TestIsolateRespectsIgnoreOnIsolate(t *testing.T) {
	keep := unit.NewStaticUnit("keep.service", unit.ClassService)
	keep.State = unit.Active
	keep.IgnoreOnIso = true
	target := unit.NewStaticUnit("t.target", unit.ClassTarget)

	finisher := newRecordingFinisher()
	e := New(regOf(keep, target), WithFinisher(finisher))

	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "t.target", nil, txn.LinkOptions{})
	require.NoError(t, err)
	require.NoError(t, e.AddIsolateJobs(tr))
	require.NoError(t, e.Activate(tr, txn.ModeIsolate))

	_, ok := e.LiveJob("keep.service")
	assert.False(t, ok)
	assert.NotContains(t, finisher.finished, "keep.service")

	_, ok = e.LiveJob("t.target")
	assert.True(t, ok)
}

// VerifyActive on an already-active unit is a pure no-op.
func TestVerifyActiveOnActiveUnitIsNoop(t *testing.T) {
	u := unit.NewStaticUnit("a.service", unit.ClassService)
	u.State = unit.Active

	e := New(regOf(u))
	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.VerifyActive, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Activate(tr, txn.ModeFail))

	_, ok := e.LiveJob("a.service")
	assert.False(t, ok)
}

// Starting an already-active unit installs nothing new.
func TestStartOnActiveUnitIsIdempotent(t *testing.T) {
	u := unit.NewStaticUnit("a.service", unit.ClassService)
	u.State = unit.Active

	e := New(regOf(u))
	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)
	require.NoError(t, e.Activate(tr, txn.ModeFail))

	_, ok := e.LiveJob("a.service")
	assert.False(t, ok)
}

// A failed Activate leaves the live set untouched.
func TestFailedActivateLeavesLiveSetUntouched(t *testing.T) {
	u := unit.NewStaticUnit("a.service", unit.ClassService)
	u.State = unit.Active

	live := job.New(u, job.Stop)
	live.Install(1)

	e := New(regOf(u))
	e.live["a.service"] = live

	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)

	err = e.Activate(tr, txn.ModeFail)
	require.Error(t, err)

	still, ok := e.LiveJob("a.service")
	require.True(t, ok)
	assert.Same(t, live, still)
	assert.Equal(t, job.Stop, still.Type)

	e.Abort(tr)
}

// A unit is active with a live reload job in flight; requesting a start
// is redundant against the unit's active state, so the redundancy pass
// drops the anchor before the merge pass ever sees the live job. Activate
// still reports success, and the live reload job is left untouched.
func TestRedundantStartLeavesLiveReloadUntouched(t *testing.T) {
	u := unit.NewStaticUnit("a.service", unit.ClassService)
	u.State = unit.Active

	e := New(regOf(u))
	live := job.New(u, job.Reload)
	live.Install(1)
	e.live["a.service"] = live

	tr := e.NewTransaction()
	_, err := e.AddJobAndDependencies(tr, job.Start, "a.service", nil, txn.LinkOptions{})
	require.NoError(t, err)

	require.NoError(t, e.Activate(tr, txn.ModeFail))

	still, ok := e.LiveJob("a.service")
	require.True(t, ok)
	assert.Same(t, live, still, "the in-flight reload job is untouched")
	assert.Equal(t, job.Reload, still.Type)
}
