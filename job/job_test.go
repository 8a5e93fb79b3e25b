package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvolosatovs/systemgo/unit"
)

func TestMergeLattice(t *testing.T) {
	cases := []struct {
		a, b Type
		want Type
		ok   bool
	}{
		{Start, VerifyActive, Start, true},
		{Start, Reload, ReloadOrStart, true},
		{Start, Restart, Restart, true},
		{Reload, Restart, Restart, true},
		{TryRestart, Restart, Restart, true},
		{TryRestart, Stop, Stop, true},
		{Stop, Stop, Stop, true},
		{Stop, Start, 0, false},
		{Stop, Reload, 0, false},
		{Stop, Restart, 0, false},
	}
	for _, c := range cases {
		got, ok := Merge(c.a, c.b)
		assert.Equal(t, c.ok, ok, "%s/%s mergeable", c.a, c.b)
		if ok {
			assert.Equal(t, c.want, got, "%s/%s merge result", c.a, c.b)
		}

		// commutativity
		got2, ok2 := Merge(c.b, c.a)
		assert.Equal(t, ok, ok2)
		if ok {
			assert.Equal(t, got, got2, "merge must be commutative")
		}
	}
}

func TestIsRedundant(t *testing.T) {
	assert.True(t, IsRedundant(Start, unit.Active))
	assert.False(t, IsRedundant(Start, unit.Inactive))
	assert.True(t, IsRedundant(Stop, unit.Inactive))
	assert.True(t, IsRedundant(Stop, unit.Failed))
	assert.False(t, IsRedundant(Stop, unit.Active))
	assert.False(t, IsRedundant(Restart, unit.Active))
}

func TestIsSuperset(t *testing.T) {
	assert.True(t, IsSuperset(Restart, Start))
	assert.True(t, IsSuperset(ReloadOrStart, Reload))
	assert.True(t, IsSuperset(ReloadOrStart, VerifyActive))
	assert.False(t, IsSuperset(Start, Reload))
	assert.True(t, IsSuperset(Start, VerifyActive))
}

func TestIsApplicable(t *testing.T) {
	assert.False(t, IsApplicable(unit.ClassTarget, Reload))
	assert.True(t, IsApplicable(unit.ClassTarget, Start))
	assert.True(t, IsApplicable(unit.ClassService, Reload))
}

func TestLinkFree(t *testing.T) {
	u := unit.NewStaticUnit("a", unit.ClassService)
	j1 := New(u, Start)
	j2 := New(u, Start)

	l := NewLink(j1, j2, true, false)
	require.Len(t, j1.SubjectList, 1)
	require.Len(t, j2.ObjectList, 1)
	assert.False(t, j2.IsOrphan())

	l.Free()
	assert.Empty(t, j1.SubjectList)
	assert.Empty(t, j2.ObjectList)
	assert.True(t, j2.IsOrphan())
}

func TestPulledByConflict(t *testing.T) {
	u := unit.NewStaticUnit("a", unit.ClassService)
	subject := New(u, Start)
	object := New(u, Stop)
	NewLink(subject, object, true, true)

	assert.True(t, object.PulledByConflict())
	assert.False(t, subject.PulledByConflict())
}
