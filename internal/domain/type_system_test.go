package domain

import "testing"

func TestPrimitiveTypeString(t *testing.T) {
	cases := []struct {
		typ  *PrimitiveType
		want string
	}{
		{NewSignedInt(32), "s32"},
		{NewUnsignedInt(64), "u64"},
		{NewFloat(128), "f128"},
		{NewChar(16), "letter16"},
		{NewBool(), "bool"},
		{NewSAddr(), "saddr"},
		{NewUAddr(), "uaddr"},
	}
	for _, c := range cases {
		if got := c.typ.String(); got != c.want {
			t.Errorf("String() = %q, want %q", got, c.want)
		}
	}
}

func TestPrimitiveTypeSignAndFloat(t *testing.T) {
	if !NewUnsignedInt(32).IsUnsigned() {
		t.Error("u32 should be unsigned")
	}
	if NewSignedInt(32).IsUnsigned() {
		t.Error("s32 should not be unsigned")
	}
	if !NewFloat(64).IsFloat() {
		t.Error("f64 should be float")
	}
}

func TestPrimitiveTypeEquals(t *testing.T) {
	if !NewSignedInt(32).Equals(NewSignedInt(32)) {
		t.Error("s32 should equal s32")
	}
	if NewSignedInt(32).Equals(NewUnsignedInt(32)) {
		t.Error("s32 should not equal u32")
	}
	if NewSAddr().Equals(NewSignedInt(64)) {
		t.Error("saddr should not equal s64: address-sized is a distinct identity")
	}
}

func TestStringTypeIsNotWrapped(t *testing.T) {
	s := &StringType{}
	if s.IsWrapped() {
		t.Error("text is already a pointer and must not be record-wrapped")
	}
	if NewUnsignedInt(32).IsWrapped() != true {
		t.Error("u32 must be record-wrapped")
	}
	if NewVoid().IsWrapped() {
		t.Error("void is never a value and must not be wrapped")
	}
}

func TestRecordTypeIsAddressWrapper(t *testing.T) {
	ptr := &RecordType{Name: "Ptr", Fields: []FieldDef{{Name: "addr", Type: NewUAddr()}}}
	if !ptr.IsAddressWrapper() {
		t.Error("single uaddr-field record should be an address wrapper")
	}

	notPtr := &RecordType{Name: "Point", Fields: []FieldDef{{Name: "x", Type: NewSignedInt(32)}, {Name: "y", Type: NewSignedInt(32)}}}
	if notPtr.IsAddressWrapper() {
		t.Error("multi-field record must not be an address wrapper")
	}
}

func TestRecordTypeFieldIndex(t *testing.T) {
	rec := &RecordType{Name: "Point", Fields: []FieldDef{{Name: "x", Type: NewSignedInt(32)}, {Name: "y", Type: NewSignedInt(32)}}}
	idx, typ, ok := rec.FieldIndex("y")
	if !ok || idx != 1 || !typ.Equals(NewSignedInt(32)) {
		t.Errorf("FieldIndex(y) = (%d, %v, %v), want (1, s32, true)", idx, typ, ok)
	}
	if _, _, ok := rec.FieldIndex("z"); ok {
		t.Error("FieldIndex should fail for an unknown field")
	}
}

func TestGenericInstanceTypeMangled(t *testing.T) {
	inst := &GenericInstanceType{Base: "Box", Args: []Type{NewUnsignedInt(64)}}
	if got, want := inst.Mangled(), "Box_u64"; got != want {
		t.Errorf("Mangled() = %q, want %q", got, want)
	}

	nested := &GenericInstanceType{Base: "Pair", Args: []Type{
		&GenericInstanceType{Base: "Box", Args: []Type{NewSignedInt(32)}},
		NewBool(),
	}}
	if got, want := nested.Mangled(), "Pair_Box_s32__bool"; got != want {
		t.Errorf("Mangled() = %q, want %q", got, want)
	}
}

func TestDefaultTypeRegistryResolvePrimitive(t *testing.T) {
	reg := NewDefaultTypeRegistry()
	cases := []string{"s8", "s128", "u16", "u128", "f16", "f32", "f64", "f128", "bool", "letter8", "letter32", "text", "saddr", "uaddr", "void"}
	for _, name := range cases {
		if _, ok := reg.ResolvePrimitive(name); !ok {
			t.Errorf("ResolvePrimitive(%q) should succeed", name)
		}
	}
	if _, ok := reg.ResolvePrimitive("not_a_type"); ok {
		t.Error("ResolvePrimitive should fail for an unknown name")
	}
}

func TestDefaultTypeRegistryRecordRoundTrip(t *testing.T) {
	reg := NewDefaultTypeRegistry()
	rec := &RecordType{Name: "Point", Fields: []FieldDef{{Name: "x", Type: NewSignedInt(32)}}}
	if err := reg.RegisterRecord(rec); err != nil {
		t.Fatalf("RegisterRecord failed: %v", err)
	}
	if err := reg.RegisterRecord(rec); err == nil {
		t.Error("RegisterRecord should reject a duplicate name")
	}
	got, ok := reg.LookupRecord("Point")
	if !ok || got != rec {
		t.Errorf("LookupRecord(Point) = (%v, %v), want (%v, true)", got, ok, rec)
	}
}
