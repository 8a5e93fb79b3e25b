package unit

// StaticUnit is an in-memory Unit used by the engine's own tests and by
// embedding code that wants to exercise the transaction engine before a
// real unit loader exists.
type StaticUnit struct {
	NameVal      string
	Load         LoadState
	State        ActiveState
	ClassVal     Class
	Deps         map[DependencyKind][]string
	IgnoreOnIso  bool
	FollowersVal []string
}

func NewStaticUnit(name string, class Class) *StaticUnit {
	return &StaticUnit{
		NameVal:  name,
		Load:     Loaded,
		State:    Inactive,
		ClassVal: class,
		Deps:     make(map[DependencyKind][]string),
	}
}

func (u *StaticUnit) Name() string { return u.NameVal }

func (u *StaticUnit) LoadState() LoadState { return u.Load }

func (u *StaticUnit) ActiveState() ActiveState { return u.State }

func (u *StaticUnit) Class() Class { return u.ClassVal }

func (u *StaticUnit) IgnoreOnIsolate() bool { return u.IgnoreOnIso }

func (u *StaticUnit) Followers() []string { return u.FollowersVal }

func (u *StaticUnit) Dependencies(kind DependencyKind) []string {
	return u.Deps[kind]
}

// Add records unit names as depending on kind; it's a convenience for
// building fixtures, not part of the Unit interface.
func (u *StaticUnit) Add(kind DependencyKind, names ...string) *StaticUnit {
	u.Deps[kind] = append(u.Deps[kind], names...)
	return u
}

// MapRegistry is a Registry backed by a plain map.
type MapRegistry struct {
	units map[string]Unit
}

func NewMapRegistry() *MapRegistry {
	return &MapRegistry{units: make(map[string]Unit)}
}

func (r *MapRegistry) Add(u Unit) *MapRegistry {
	r.units[u.Name()] = u
	return r
}

func (r *MapRegistry) Lookup(name string) (Unit, bool) {
	u, ok := r.units[name]
	return u, ok
}

func (r *MapRegistry) Units() []Unit {
	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		out = append(out, u)
	}
	return out
}
