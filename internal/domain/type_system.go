// Package domain contains the front-language type system. Every type the
// engine reasons about implements Type.
package domain

import (
	"fmt"
	"strings"
)

// Type is the closed interface every front-language type implements.
type Type interface {
	String() string
	Equals(other Type) bool
	// IsWrapped reports whether this type is emitted as a record-wrapped
	// primitive, per the "everything is a record" invariant.
	IsWrapped() bool
}

// PrimitiveKind enumerates the closed set of scalar kinds. Width is carried
// separately on PrimitiveType so s8..s128 and u8..u128 share one kind each.
type PrimitiveKind int

const (
	PKSignedInt PrimitiveKind = iota
	PKUnsignedInt
	PKFloat
	PKBool
	PKChar
	PKVoid
)

// PrimitiveType is a scalar front-language type: signed/unsigned integers of
// width BitWidth (or address-sized when AddrSized is set), IEEE floats,
// bool, and letter8/16/32 character codepoints.
type PrimitiveType struct {
	Kind      PrimitiveKind
	BitWidth  int // 8,16,32,64,128 for ints/chars; 16,32,64,128 for floats
	AddrSized bool
}

func (p *PrimitiveType) String() string {
	switch p.Kind {
	case PKSignedInt:
		if p.AddrSized {
			return "saddr"
		}
		return fmt.Sprintf("s%d", p.BitWidth)
	case PKUnsignedInt:
		if p.AddrSized {
			return "uaddr"
		}
		return fmt.Sprintf("u%d", p.BitWidth)
	case PKFloat:
		return fmt.Sprintf("f%d", p.BitWidth)
	case PKBool:
		return "bool"
	case PKChar:
		return fmt.Sprintf("letter%d", p.BitWidth)
	case PKVoid:
		return "void"
	default:
		return "<unknown-primitive>"
	}
}

func (p *PrimitiveType) Equals(other Type) bool {
	o, ok := other.(*PrimitiveType)
	return ok && o.Kind == p.Kind && o.BitWidth == p.BitWidth && o.AddrSized == p.AddrSized
}

// IsWrapped is true for every primitive except void, which never appears as
// a value.
func (p *PrimitiveType) IsWrapped() bool { return p.Kind != PKVoid }

func (p *PrimitiveType) IsUnsigned() bool { return p.Kind == PKUnsignedInt }
func (p *PrimitiveType) IsFloat() bool    { return p.Kind == PKFloat }
func (p *PrimitiveType) IsInteger() bool  { return p.Kind == PKSignedInt || p.Kind == PKUnsignedInt }

// Well-known primitive constructors, matching the front language's closed
// name set.
func NewSignedInt(bits int) *PrimitiveType   { return &PrimitiveType{Kind: PKSignedInt, BitWidth: bits} }
func NewUnsignedInt(bits int) *PrimitiveType { return &PrimitiveType{Kind: PKUnsignedInt, BitWidth: bits} }
func NewFloat(bits int) *PrimitiveType       { return &PrimitiveType{Kind: PKFloat, BitWidth: bits} }
func NewChar(bits int) *PrimitiveType        { return &PrimitiveType{Kind: PKChar, BitWidth: bits} }
func NewBool() *PrimitiveType                { return &PrimitiveType{Kind: PKBool} }
func NewVoid() *PrimitiveType                { return &PrimitiveType{Kind: PKVoid} }
func NewSAddr() *PrimitiveType               { return &PrimitiveType{Kind: PKSignedInt, AddrSized: true} }
func NewUAddr() *PrimitiveType               { return &PrimitiveType{Kind: PKUnsignedInt, AddrSized: true} }

// StringType is the opaque-pointer text type. Unlike the scalar primitives
// it is never record-wrapped: it already is a pointer.
type StringType struct{}

func (s *StringType) String() string        { return "text" }
func (s *StringType) Equals(other Type) bool { _, ok := other.(*StringType); return ok }
func (s *StringType) IsWrapped() bool       { return false }

// FieldDef is one ordered field of a record or entity.
type FieldDef struct {
	Name string
	Type Type
}

// RecordType is a value aggregate. A RecordType whose
// single field is an saddr/uaddr PrimitiveType is, by convention, a
// pointer/address wrapper; StaticMessage/DynamicMessage carry the Crash Message
// Resolver's findings for Crashable records.
type RecordType struct {
	Name           string
	Fields         []FieldDef
	IsCrashable    bool
	StaticMessage  *string // non-nil if the resolver found `return "..."`.
	DynamicMessage bool    // true if crash_message reads fields/interpolates.
}

func (r *RecordType) String() string { return r.Name }
func (r *RecordType) Equals(other Type) bool {
	o, ok := other.(*RecordType)
	return ok && o.Name == r.Name
}
func (r *RecordType) IsWrapped() bool { return true }

func (r *RecordType) FieldIndex(name string) (int, Type, bool) {
	for i, f := range r.Fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return -1, nil, false
}

// IsAddressWrapper reports whether this record is a single-field wrapper
// around an address-sized primitive, the shape the front language uses for
// explicit pointer/address types wrapped in single-field records.
func (r *RecordType) IsAddressWrapper() bool {
	if len(r.Fields) != 1 {
		return false
	}
	p, ok := r.Fields[0].Type.(*PrimitiveType)
	return ok && p.AddrSized
}

// EntityType is a heap-allocated reference aggregate. It has the same
// field shape as RecordType but is passed/stored as a
// pointer to the underlying struct.
type EntityType struct {
	Name   string
	Fields []FieldDef
}

func (e *EntityType) String() string { return e.Name }
func (e *EntityType) Equals(other Type) bool {
	o, ok := other.(*EntityType)
	return ok && o.Name == e.Name
}
func (e *EntityType) IsWrapped() bool { return true }

func (e *EntityType) FieldIndex(name string) (int, Type, bool) {
	for i, f := range e.Fields {
		if f.Name == name {
			return i, f.Type, true
		}
	}
	return -1, nil, false
}

// GenericParamType stands in for an unsubstituted template type parameter
// while a template body is registered but not yet instantiated.
type GenericParamType struct {
	Name string
}

func (g *GenericParamType) String() string { return g.Name }
func (g *GenericParamType) Equals(other Type) bool {
	o, ok := other.(*GenericParamType)
	return ok && o.Name == g.Name
}
func (g *GenericParamType) IsWrapped() bool { return false }

// GenericInstanceType is a concrete instantiation of a generic
// record/entity/function template, e.g. Box<u64>. Its Mangled name is what
// the Generic Monomorphizer uses to dedupe emission.
type GenericInstanceType struct {
	Base string
	Args []Type
}

func (g *GenericInstanceType) String() string {
	parts := make([]string, len(g.Args))
	for i, a := range g.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", g.Base, strings.Join(parts, ","))
}

func (g *GenericInstanceType) Equals(other Type) bool {
	o, ok := other.(*GenericInstanceType)
	if !ok || o.Base != g.Base || len(o.Args) != len(g.Args) {
		return false
	}
	for i := range g.Args {
		if !g.Args[i].Equals(o.Args[i]) {
			return false
		}
	}
	return true
}

func (g *GenericInstanceType) IsWrapped() bool { return true }

// Mangled produces the `Base_Arg1_Arg2…` name the Monomorphizer keys
// instantiations by, with nested generics' `<`, `>`, `,` sanitized to
// underscores.
func (g *GenericInstanceType) Mangled() string {
	var b strings.Builder
	b.WriteString(g.Base)
	for _, a := range g.Args {
		b.WriteByte('_')
		b.WriteString(sanitizeMangle(a.String()))
	}
	return b.String()
}

func sanitizeMangle(s string) string {
	r := strings.NewReplacer("<", "_", ">", "_", ",", "_", " ", "")
	return r.Replace(s)
}

// FunctionType is a function signature, used for module function index
// lookups and FFI declarations.
type FunctionType struct {
	ParameterTypes []Type
	ReturnType     Type
	Variadic       bool
}

func (ft *FunctionType) String() string {
	params := make([]string, len(ft.ParameterTypes))
	for i, p := range ft.ParameterTypes {
		params[i] = p.String()
	}
	return fmt.Sprintf("func(%s) %s", strings.Join(params, ", "), ft.ReturnType.String())
}

func (ft *FunctionType) Equals(other Type) bool {
	o, ok := other.(*FunctionType)
	if !ok || len(o.ParameterTypes) != len(ft.ParameterTypes) || o.Variadic != ft.Variadic {
		return false
	}
	for i, p := range ft.ParameterTypes {
		if !p.Equals(o.ParameterTypes[i]) {
			return false
		}
	}
	return ft.ReturnType.Equals(o.ReturnType)
}

func (ft *FunctionType) IsWrapped() bool { return false }

// TemplateKind distinguishes the three things the engine can monomorphize.
type TemplateKind int

const (
	TemplateRecord TemplateKind = iota
	TemplateEntity
	TemplateFunction
)

// GenericTemplate is a record/entity/function template keyed by name with
// an ordered list of type-parameter names and an unsubstituted body.
type GenericTemplate struct {
	Name       string
	Kind       TemplateKind
	TypeParams []string
	RecordDecl *StructDecl   // set when Kind is Record/Entity
	FuncDecl   *FunctionDecl // set when Kind is Function
}

// TypeRegistry is the global type-name resolution surface: well-known
// primitive names, record/entity declarations, and generic templates.
type TypeRegistry interface {
	RegisterRecord(t *RecordType) error
	RegisterEntity(t *EntityType) error
	RegisterTemplate(t *GenericTemplate) error
	LookupRecord(name string) (*RecordType, bool)
	LookupEntity(name string) (*EntityType, bool)
	LookupTemplate(name string) (*GenericTemplate, bool)
	// ResolvePrimitive maps a closed primitive name to its Type, or returns
	// (nil,false) if name is not one of the well-known primitive spellings.
	ResolvePrimitive(name string) (Type, bool)
}

// DefaultTypeRegistry is the engine's TypeRegistry implementation.
type DefaultTypeRegistry struct {
	records   map[string]*RecordType
	entities  map[string]*EntityType
	templates map[string]*GenericTemplate
}

func NewDefaultTypeRegistry() *DefaultTypeRegistry {
	return &DefaultTypeRegistry{
		records:   make(map[string]*RecordType),
		entities:  make(map[string]*EntityType),
		templates: make(map[string]*GenericTemplate),
	}
}

func (r *DefaultTypeRegistry) RegisterRecord(t *RecordType) error {
	if _, exists := r.records[t.Name]; exists {
		return fmt.Errorf("record %q already registered", t.Name)
	}
	r.records[t.Name] = t
	return nil
}

func (r *DefaultTypeRegistry) RegisterEntity(t *EntityType) error {
	if _, exists := r.entities[t.Name]; exists {
		return fmt.Errorf("entity %q already registered", t.Name)
	}
	r.entities[t.Name] = t
	return nil
}

func (r *DefaultTypeRegistry) RegisterTemplate(t *GenericTemplate) error {
	if _, exists := r.templates[t.Name]; exists {
		return fmt.Errorf("template %q already registered", t.Name)
	}
	r.templates[t.Name] = t
	return nil
}

func (r *DefaultTypeRegistry) LookupRecord(name string) (*RecordType, bool) {
	t, ok := r.records[name]
	return t, ok
}

func (r *DefaultTypeRegistry) LookupEntity(name string) (*EntityType, bool) {
	t, ok := r.entities[name]
	return t, ok
}

func (r *DefaultTypeRegistry) LookupTemplate(name string) (*GenericTemplate, bool) {
	t, ok := r.templates[name]
	return t, ok
}

// primitiveWidths lists the closed set of integer/char widths the front
// language supports.
var primitiveWidths = []int{8, 16, 32, 64, 128}

func (r *DefaultTypeRegistry) ResolvePrimitive(name string) (Type, bool) {
	switch name {
	case "bool":
		return NewBool(), true
	case "void":
		return NewVoid(), true
	case "text":
		return &StringType{}, true
	case "saddr":
		return NewSAddr(), true
	case "uaddr":
		return NewUAddr(), true
	}
	for _, w := range primitiveWidths {
		if name == fmt.Sprintf("s%d", w) {
			return NewSignedInt(w), true
		}
		if name == fmt.Sprintf("u%d", w) {
			return NewUnsignedInt(w), true
		}
		if name == fmt.Sprintf("letter%d", w) && w != 64 && w != 128 {
			return NewChar(w), true
		}
	}
	for _, w := range []int{16, 32, 64, 128} {
		if name == fmt.Sprintf("f%d", w) {
			return NewFloat(w), true
		}
	}
	return nil, false
}

// IsNumeric reports whether a type supports arithmetic operators.
func IsNumeric(t Type) bool {
	p, ok := t.(*PrimitiveType)
	return ok && (p.Kind == PKSignedInt || p.Kind == PKUnsignedInt || p.Kind == PKFloat)
}
