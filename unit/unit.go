// Package unit defines the external unit registry the transaction engine
// consumes. Real unit loading, config parsing and process supervision live
// in the embedding manager; this package only carries the small surface
// the engine needs to read.
package unit

// LoadState mirrors whether a unit's definition was loaded successfully.
type LoadState int

const (
	Loaded LoadState = iota
	Error
	Masked
	NotFound
)

func (s LoadState) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Error:
		return "error"
	case Masked:
		return "masked"
	case NotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

// ActiveState is the coarse run state of a unit.
type ActiveState int

const (
	Inactive ActiveState = iota
	Active
	Activating
	Deactivating
	Reloading
	Failed
)

func (s ActiveState) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Active:
		return "active"
	case Activating:
		return "activating"
	case Deactivating:
		return "deactivating"
	case Reloading:
		return "reloading"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Class gates which job types a unit kind supports.
type Class string

const (
	ClassService Class = "service"
	ClassSocket  Class = "socket"
	ClassTarget  Class = "target"
	ClassDevice  Class = "device"
	ClassMount   Class = "mount"
	ClassTimer   Class = "timer"
	ClassPath    Class = "path"
	ClassSwap    Class = "swap"
)

// DependencyKind enumerates the typed edges the transaction builder walks.
type DependencyKind int

const (
	Requires DependencyKind = iota
	RequiresOverridable
	Wants
	Requisite
	RequisiteOverridable
	Conflicts
	ConflictedBy
	RequiredBy
	BoundBy
	BindTo
	PropagateReloadTo
	Before
	After
)

func (k DependencyKind) String() string {
	switch k {
	case Requires:
		return "Requires"
	case RequiresOverridable:
		return "RequiresOverridable"
	case Wants:
		return "Wants"
	case Requisite:
		return "Requisite"
	case RequisiteOverridable:
		return "RequisiteOverridable"
	case Conflicts:
		return "Conflicts"
	case ConflictedBy:
		return "ConflictedBy"
	case RequiredBy:
		return "RequiredBy"
	case BoundBy:
		return "BoundBy"
	case BindTo:
		return "BindTo"
	case PropagateReloadTo:
		return "PropagateReloadTo"
	case Before:
		return "Before"
	case After:
		return "After"
	default:
		return "unknown"
	}
}

// Unit is the read-only view the engine has of a unit. The embedding
// manager's real unit type satisfies this however it likes; nothing here
// mutates a unit except through the engine's own live-job bookkeeping.
type Unit interface {
	Name() string
	LoadState() LoadState
	ActiveState() ActiveState
	Class() Class
	// Dependencies returns the names of units linked by kind. Order is not
	// significant; the builder treats it as a set.
	Dependencies(kind DependencyKind) []string
	// IgnoreOnIsolate reports whether AddIsolateJobs should skip this unit.
	IgnoreOnIsolate() bool
	// Followers returns units that track this unit's state; a job pulled on
	// this unit is replicated (non-essentially) to each of them.
	Followers() []string
}

// Registry is the manager's unit table.
type Registry interface {
	Lookup(name string) (Unit, bool)
	Units() []Unit
}
