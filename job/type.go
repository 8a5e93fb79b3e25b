package job

import "github.com/rvolosatovs/systemgo/unit"

// Type is one pending operation kind.
type Type int

const (
	Start Type = iota
	VerifyActive
	Stop
	Reload
	Restart
	TryRestart
	ReloadOrStart
)

func (t Type) String() string {
	switch t {
	case Start:
		return "start"
	case VerifyActive:
		return "verify-active"
	case Stop:
		return "stop"
	case Reload:
		return "reload"
	case Restart:
		return "restart"
	case TryRestart:
		return "try-restart"
	case ReloadOrStart:
		return "reload-or-start"
	default:
		return "unknown"
	}
}

// mergeTable is the merge lattice. Missing entries are unmergeable; Stop
// is absorbed only by Stop (and by TryRestart, which degrades to Stop).
var mergeTable = map[Type]map[Type]Type{
	Start: {
		Start:         Start,
		VerifyActive:  Start,
		Reload:        ReloadOrStart,
		Restart:       Restart,
		TryRestart:    Restart,
		ReloadOrStart: ReloadOrStart,
	},
	VerifyActive: {
		Start:         Start,
		VerifyActive:  VerifyActive,
		Reload:        Reload,
		Restart:       Restart,
		TryRestart:    TryRestart,
		ReloadOrStart: ReloadOrStart,
	},
	Reload: {
		Start:         ReloadOrStart,
		VerifyActive:  Reload,
		Reload:        Reload,
		Restart:       Restart,
		TryRestart:    Restart,
		ReloadOrStart: ReloadOrStart,
	},
	Restart: {
		Start:         Restart,
		VerifyActive:  Restart,
		Reload:        Restart,
		Restart:       Restart,
		TryRestart:    Restart,
		ReloadOrStart: Restart,
	},
	TryRestart: {
		Start:         Restart,
		VerifyActive:  TryRestart,
		Reload:        Restart,
		Restart:       Restart,
		TryRestart:    TryRestart,
		ReloadOrStart: Restart,
		Stop:          Stop,
	},
	ReloadOrStart: {
		Start:         ReloadOrStart,
		VerifyActive:  ReloadOrStart,
		Reload:        ReloadOrStart,
		Restart:       Restart,
		TryRestart:    Restart,
		ReloadOrStart: ReloadOrStart,
	},
	Stop: {
		Stop:       Stop,
		TryRestart: Stop,
	},
}

// Merge returns the least upper bound of a and b, or false if they conflict.
func Merge(a, b Type) (Type, bool) {
	if a == b {
		return a, true
	}
	if t, ok := mergeTable[a][b]; ok {
		return t, true
	}
	if t, ok := mergeTable[b][a]; ok {
		return t, true
	}
	return 0, false
}

// IsMergeable reports whether a and b fold to a single type.
func IsMergeable(a, b Type) bool {
	_, ok := Merge(a, b)
	return ok
}

// IsRedundant reports whether applying t to a unit already in state would
// be a no-op.
func IsRedundant(t Type, state unit.ActiveState) bool {
	switch t {
	case Start, VerifyActive:
		return state == unit.Active || state == unit.Reloading
	case Stop, TryRestart:
		return state == unit.Inactive || state == unit.Failed
	default:
		return false
	}
}

// IsSuperset reports whether executing a subsumes executing b.
func IsSuperset(a, b Type) bool {
	if a == b {
		return true
	}
	switch a {
	case Restart:
		return true // restart achieves start, reload and a verify-active along the way
	case ReloadOrStart:
		return b == Start || b == VerifyActive || b == Reload
	case Start:
		return b == VerifyActive
	default:
		return false
	}
}

// classInapplicable lists, per unit class, the job types the class does
// NOT support. Absent classes support every type.
var classInapplicable = map[unit.Class]map[Type]bool{
	unit.ClassTarget: {Reload: true, Restart: true, TryRestart: true, ReloadOrStart: true},
	unit.ClassDevice: {Reload: true, Restart: true, TryRestart: true, ReloadOrStart: true},
	unit.ClassMount:  {Reload: true},
	unit.ClassSwap:   {Reload: true},
}

// IsApplicable reports whether units of the given class support t at all.
func IsApplicable(class unit.Class, t Type) bool {
	return !classInapplicable[class][t]
}
