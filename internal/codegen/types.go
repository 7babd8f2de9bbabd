// Package codegen lowers a front-language AST (internal/domain) into an
// LLVM IR module using github.com/llir/llvm's object model.
package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"

	"github.com/sokoide/corelang/internal/domain"
)

// TypeMapper turns front-language types into LLVM types, caching the named
// struct definitions so the "everything is a record" wrapper for a given
// front type is only emitted once per module.
type TypeMapper struct {
	module   *ir.Module
	wrappers map[string]types.Type // front type String() -> cached LLVM type
	target   domain.TargetInfo
}

func NewTypeMapper(module *ir.Module, target domain.TargetInfo) *TypeMapper {
	return &TypeMapper{
		module:   module,
		wrappers: make(map[string]types.Type),
		target:   target,
	}
}

// allowUnknown controls whether an unresolved GenericParamType/unsubstituted
// generic is tolerated (returned as an opaque i8* placeholder) instead of
// raising TypeResolutionFailed. Template bodies are mapped only after
// substitution, and every caller, the Monomorphizer included, passes
// allowUnknown=false.
func (m *TypeMapper) Map(t domain.Type, allowUnknown bool) (types.Type, error) {
	switch ft := t.(type) {
	case *domain.PrimitiveType:
		return m.mapPrimitive(ft)
	case *domain.StringType:
		return types.NewPointer(types.I8), nil
	case *domain.RecordType:
		return m.mapRecord(ft, allowUnknown)
	case *domain.EntityType:
		return m.mapEntity(ft, allowUnknown)
	case *domain.GenericParamType:
		if allowUnknown {
			return types.NewPointer(types.I8), nil
		}
		return nil, fmt.Errorf("unsubstituted generic parameter %q", ft.Name)
	case *domain.GenericInstanceType:
		// Callers that reach this path (rather than routing through the
		// Monomorphizer first) are asking for the type before its
		// instantiation has been emitted; that is always a driver bug.
		return nil, fmt.Errorf("generic instance %q must be resolved by the monomorphizer before type mapping", ft.String())
	case *domain.FunctionType:
		return m.mapFunction(ft)
	default:
		return nil, fmt.Errorf("unrecognized front-language type %T", t)
	}
}

func (m *TypeMapper) mapPrimitive(p *domain.PrimitiveType) (types.Type, error) {
	if p.Kind == domain.PKVoid {
		return types.Void, nil
	}
	name := p.String()
	if cached, ok := m.wrappers[name]; ok {
		return cached, nil
	}
	inner, err := m.RawPrimitiveLLVM(p)
	if err != nil {
		return nil, err
	}
	wrapper := types.NewStruct(inner)
	named := m.module.NewTypeDef(name, wrapper)
	m.wrappers[name] = named
	return named, nil
}

// RawPrimitiveLLVM returns the unwrapped LLVM scalar type backing a
// primitive, i.e. what extractvalue/insertvalue operate on.
func (m *TypeMapper) RawPrimitiveLLVM(p *domain.PrimitiveType) (types.Type, error) {
	switch p.Kind {
	case domain.PKBool:
		return types.I1, nil
	case domain.PKChar:
		return types.NewInt(uint64(p.BitWidth)), nil
	case domain.PKSignedInt, domain.PKUnsignedInt:
		if p.AddrSized {
			return m.pointerSizedInt(), nil
		}
		return types.NewInt(uint64(p.BitWidth)), nil
	case domain.PKFloat:
		switch p.BitWidth {
		case 16:
			return types.Half, nil
		case 32:
			return types.Float, nil
		case 64:
			return types.Double, nil
		case 128:
			return types.FP128, nil
		}
		return nil, fmt.Errorf("unsupported float width %d", p.BitWidth)
	default:
		return nil, fmt.Errorf("void has no raw LLVM representation")
	}
}

func (m *TypeMapper) pointerSizedInt() types.Type {
	if m.target != nil {
		if p, ok := m.target.PointerSizedIntType().(*domain.PrimitiveType); ok && !p.AddrSized {
			return types.NewInt(uint64(p.BitWidth))
		}
	}
	return types.I64
}

func (m *TypeMapper) mapRecord(r *domain.RecordType, allowUnknown bool) (types.Type, error) {
	if cached, ok := m.wrappers[r.Name]; ok {
		return cached, nil
	}
	fields := make([]types.Type, len(r.Fields))
	for i, f := range r.Fields {
		ft, err := m.Map(f.Type, allowUnknown)
		if err != nil {
			return nil, err
		}
		fields[i] = ft
	}
	st := types.NewStruct(fields...)
	named := m.module.NewTypeDef(r.Name, st)
	m.wrappers[r.Name] = named
	return named, nil
}

func (m *TypeMapper) mapEntity(e *domain.EntityType, allowUnknown bool) (types.Type, error) {
	if cached, ok := m.wrappers[e.Name]; ok {
		return cached, nil
	}
	fields := make([]types.Type, len(e.Fields))
	for i, f := range e.Fields {
		ft, err := m.Map(f.Type, allowUnknown)
		if err != nil {
			return nil, err
		}
		fields[i] = ft
	}
	st := types.NewStruct(fields...)
	named := m.module.NewTypeDef(e.Name, st)
	ptr := types.NewPointer(named)
	// Entities are always referenced by pointer; cache the pointer form
	// under the entity's name so repeat lookups skip straight to it.
	m.wrappers[e.Name] = ptr
	return ptr, nil
}

// MapReceiver maps a method receiver's front type the way CallResolver's
// prepareReceiver passes it: entities and address-wrapper records already
// are (or behave like) a single pointer-sized value, so they map exactly
// like any other value of that type; every other record (multi-field, or
// a non-address-wrapper single field) is spilled to a stack slot at the
// call site, so its parameter type here must be a pointer to the mapped
// struct rather than the struct itself.
func (m *TypeMapper) MapReceiver(t domain.Type, allowUnknown bool) (types.Type, error) {
	if rec, isRecord := t.(*domain.RecordType); isRecord && !rec.IsAddressWrapper() {
		st, err := m.mapRecord(rec, allowUnknown)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(st), nil
	}
	return m.Map(t, allowUnknown)
}

func (m *TypeMapper) mapFunction(ft *domain.FunctionType) (types.Type, error) {
	ret, err := m.Map(ft.ReturnType, false)
	if err != nil {
		return nil, err
	}
	params := make([]types.Type, len(ft.ParameterTypes))
	for i, p := range ft.ParameterTypes {
		pt, err := m.Map(p, false)
		if err != nil {
			return nil, err
		}
		params[i] = pt
	}
	sig := types.NewFunc(ret, params...)
	sig.Variadic = ft.Variadic
	return sig, nil
}

// MapCallingConvention turns the closed FunctionDecl.CallingConvention
// spelling set into the llir enum.CallingConv the declared ir.Func carries.
func MapCallingConvention(name string) enum.CallingConv {
	switch name {
	case "C", "":
		return enum.CallingConvNone
	case "fastcall":
		return enum.CallingConvX86FastCall
	case "stdcall":
		return enum.CallingConvX86StdCall
	case "thiscall":
		return enum.CallingConvX86ThisCall
	case "vectorcall":
		return enum.CallingConvX86VectorCall
	case "win64":
		return enum.CallingConvWin64
	case "sysv64":
		return enum.CallingConvX8664SysV
	case "aapcs":
		return enum.CallingConvARMAAPCS
	case "aapcs_vfp":
		return enum.CallingConvARMAAPCSVFP
	default:
		return enum.CallingConvNone
	}
}

// ClassifyRaw reports the properties lowering code needs to pick the right
// instruction variant for a raw (unwrapped) scalar type: its bit width
// (0 for non-integers) and whether it is a floating-point type.
func ClassifyRaw(t types.Type) (bitWidth int, isFloat bool) {
	switch tt := t.(type) {
	case *types.IntType:
		return int(tt.BitSize), false
	case *types.FloatType:
		return 0, true
	default:
		return 0, false
	}
}
