package codegen

// DebugSymbolTable assigns small monotonic integer ids to routine and
// Crashable-type names the first time each is seen, so the generated IR
// can hand the runtime's stack-trace support a compact id instead of a
// fresh string pointer on every call site. Id assignment and the
// one-time registration-call emission are tracked separately: a routine
// gets exactly one id and one registration call (at its own
// definition), but a type's id may be looked up from many throw/verify
// sites scattered across a function, so only the first lookup emits the
// registration call.
type DebugSymbolTable struct {
	routines       map[string]int32
	types          map[string]int32
	nextRoutine    int32
	nextType       int32
	typeRegistered map[string]bool
}

func NewDebugSymbolTable() *DebugSymbolTable {
	return &DebugSymbolTable{
		routines:       make(map[string]int32),
		types:          make(map[string]int32),
		typeRegistered: make(map[string]bool),
	}
}

// RoutineID returns the id for name, assigning the next free id the
// first time name is seen.
func (d *DebugSymbolTable) RoutineID(name string) int32 {
	if id, ok := d.routines[name]; ok {
		return id
	}
	id := d.nextRoutine
	d.routines[name] = id
	d.nextRoutine++
	return id
}

// TypeID returns the id for name, assigning the next free id the first
// time name is seen. needsRegistration reports whether this is the
// first lookup for name, so the caller knows to emit a registration
// call alongside the id.
func (d *DebugSymbolTable) TypeID(name string) (id int32, needsRegistration bool) {
	id, ok := d.types[name]
	if !ok {
		id = d.nextType
		d.types[name] = id
		d.nextType++
	}
	if d.typeRegistered[name] {
		return id, false
	}
	d.typeRegistered[name] = true
	return id, true
}
