package codegen

import (
	"testing"

	"github.com/llir/llvm/ir/enum"
)

func TestMapCallingConventionCoversTheClosedSpellingSet(t *testing.T) {
	cases := map[string]enum.CallingConv{
		"":           enum.CallingConvNone,
		"C":          enum.CallingConvNone,
		"fastcall":   enum.CallingConvX86FastCall,
		"stdcall":    enum.CallingConvX86StdCall,
		"thiscall":   enum.CallingConvX86ThisCall,
		"vectorcall": enum.CallingConvX86VectorCall,
		"win64":      enum.CallingConvWin64,
		"sysv64":     enum.CallingConvX8664SysV,
		"aapcs":      enum.CallingConvARMAAPCS,
		"aapcs_vfp":  enum.CallingConvARMAAPCSVFP,
	}
	for spelling, want := range cases {
		if got := MapCallingConvention(spelling); got != want {
			t.Errorf("MapCallingConvention(%q) = %v, want %v", spelling, got, want)
		}
	}
}
