package infrastructure

import (
	"os"
	"strings"
	"testing"

	"github.com/sokoide/corelang/internal/domain"
)

func TestConsoleErrorReporter(t *testing.T) {
	reporter := NewConsoleErrorReporter(os.Stderr)
	if reporter == nil {
		t.Fatal("NewConsoleErrorReporter should return non-nil reporter")
	}

	if reporter.HasErrors() {
		t.Error("New reporter should have no errors")
	}
	if reporter.HasWarnings() {
		t.Error("New reporter should have no warnings")
	}

	testError := domain.CodeGenError{
		Kind:    domain.TypeResolutionFailed,
		Message: "Test type error",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 1, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 1, Column: 5},
		},
	}
	reporter.ReportError(testError)

	if !reporter.HasErrors() {
		t.Error("Reporter should have errors after reporting")
	}

	errs := reporter.GetErrors()
	if len(errs) != 1 {
		t.Errorf("Expected 1 error, got %d", len(errs))
	}
	if errs[0].Message != "Test type error" {
		t.Errorf("Expected 'Test type error', got '%s'", errs[0].Message)
	}

	testWarning := domain.CodeGenError{
		Kind:    domain.UnsupportedFeature,
		Message: "Test warning",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 2, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 2, Column: 5},
		},
	}
	reporter.ReportWarning(testWarning)

	if !reporter.HasWarnings() {
		t.Error("Reporter should have warnings after reporting")
	}

	warnings := reporter.GetWarnings()
	if len(warnings) != 1 {
		t.Errorf("Expected 1 warning, got %d", len(warnings))
	}

	reporter.Clear()

	if reporter.HasErrors() {
		t.Error("Reporter should have no errors after clear")
	}
	if reporter.HasWarnings() {
		t.Error("Reporter should have no warnings after clear")
	}
}

func TestConsoleErrorReporterLimits(t *testing.T) {
	reporter := NewConsoleErrorReporter(os.Stderr)
	reporter.SetMaxErrors(2)
	reporter.SetMaxWarnings(1)

	for i := 0; i < 5; i++ {
		reporter.ReportError(domain.CodeGenError{
			Kind:    domain.TypeResolutionFailed,
			Message: "Test error",
			Location: domain.SourceRange{
				Start: domain.SourcePosition{Filename: "test.core", Line: i + 1, Column: 1},
				End:   domain.SourcePosition{Filename: "test.core", Line: i + 1, Column: 5},
			},
		})
	}

	if errs := reporter.GetErrors(); len(errs) > 2 {
		t.Errorf("Expected at most 2 errors due to limit, got %d", len(errs))
	}

	for i := 0; i < 3; i++ {
		reporter.ReportWarning(domain.CodeGenError{
			Kind:    domain.UnsupportedFeature,
			Message: "Test warning",
			Location: domain.SourceRange{
				Start: domain.SourcePosition{Filename: "test.core", Line: i + 1, Column: 1},
				End:   domain.SourcePosition{Filename: "test.core", Line: i + 1, Column: 5},
			},
		})
	}

	if warnings := reporter.GetWarnings(); len(warnings) > 1 {
		t.Errorf("Expected at most 1 warning due to limit, got %d", len(warnings))
	}
}

func TestSortedErrorReporter(t *testing.T) {
	baseReporter := NewConsoleErrorReporter(os.Stderr)
	reporter := NewSortedErrorReporter(baseReporter)
	if reporter == nil {
		t.Fatal("NewSortedErrorReporter should return non-nil reporter")
	}

	if reporter.HasErrors() {
		t.Error("New reporter should have no errors")
	}

	mkErr := func(kind domain.ErrorKind, msg string, line int) domain.CodeGenError {
		return domain.CodeGenError{
			Kind:    kind,
			Message: msg,
			Location: domain.SourceRange{
				Start: domain.SourcePosition{Filename: "test.core", Line: line, Column: 1},
				End:   domain.SourcePosition{Filename: "test.core", Line: line, Column: 5},
			},
		}
	}

	reporter.ReportError(mkErr(domain.TypeResolutionFailed, "First error", 3))
	reporter.ReportError(mkErr(domain.ArityMismatch, "Second error", 1))
	reporter.ReportError(mkErr(domain.TypeResolutionFailed, "Third error", 2))

	if !reporter.HasErrors() {
		t.Error("Reporter should have errors after reporting")
	}

	errs := reporter.GetErrors()
	if len(errs) != 3 {
		t.Errorf("Expected 3 errors, got %d", len(errs))
	}

	reporter.Flush()

	underlyingErrors := baseReporter.GetErrors()
	if len(underlyingErrors) >= 3 {
		if underlyingErrors[0].Location.Start.Line > underlyingErrors[1].Location.Start.Line {
			t.Error("Errors should be sorted by line number")
		}
		if underlyingErrors[1].Location.Start.Line > underlyingErrors[2].Location.Start.Line {
			t.Error("Errors should be sorted by line number")
		}
	}
}

func TestErrorReporterSourceContext(t *testing.T) {
	reporter := NewConsoleErrorReporter(os.Stderr)

	sourceContent := `func main() {
    var x s32 = "invalid";
    return x;
}`
	reporter.SetSourceContent("test.core", []byte(sourceContent))

	testError := domain.CodeGenError{
		Kind:    domain.TypeResolutionFailed,
		Message: "Cannot assign text to s32",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 2, Column: 17},
			End:   domain.SourcePosition{Filename: "test.core", Line: 2, Column: 26},
		},
	}
	reporter.ReportError(testError)

	if !reporter.HasErrors() {
		t.Error("Reporter should have errors after reporting")
	}

	errs := reporter.GetErrors()
	if len(errs) != 1 {
		t.Errorf("Expected 1 error, got %d", len(errs))
	}
	if !strings.Contains(errs[0].Message, "Cannot assign text to s32") {
		t.Error("Error message should be preserved")
	}
}

func TestConsoleErrorReporterReportWarning(t *testing.T) {
	reporter := NewConsoleErrorReporter(os.Stderr)

	if reporter.HasWarnings() {
		t.Error("New reporter should have no warnings")
	}

	warning1 := domain.CodeGenError{
		Kind:    domain.UnsupportedFeature,
		Message: "Test warning 1",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 1, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 1, Column: 10},
		},
	}
	warning2 := domain.CodeGenError{
		Kind:    domain.TypeResolutionFailed,
		Message: "Test warning 2",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 2, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 2, Column: 10},
		},
	}

	reporter.ReportWarning(warning1)
	if !reporter.HasWarnings() {
		t.Error("Reporter should have warnings after reporting")
	}
	reporter.ReportWarning(warning2)

	warnings := reporter.GetWarnings()
	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %d", len(warnings))
	}
	if warnings[0].Message != "Test warning 1" {
		t.Errorf("First warning message incorrect: got '%s'", warnings[0].Message)
	}
	if warnings[1].Message != "Test warning 2" {
		t.Errorf("Second warning message incorrect: got '%s'", warnings[1].Message)
	}
}

func TestSortedErrorReporterReportWarning(t *testing.T) {
	baseReporter := NewConsoleErrorReporter(os.Stderr)
	reporter := NewSortedErrorReporter(baseReporter)

	if reporter.HasWarnings() {
		t.Error("New reporter should have no warnings")
	}

	warning1 := domain.CodeGenError{
		Kind:    domain.UnsupportedFeature,
		Message: "Warning A",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 3, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 3, Column: 10},
		},
	}
	warning2 := domain.CodeGenError{
		Kind:    domain.TypeResolutionFailed,
		Message: "Warning B",
		Location: domain.SourceRange{
			Start: domain.SourcePosition{Filename: "test.core", Line: 1, Column: 1},
			End:   domain.SourcePosition{Filename: "test.core", Line: 1, Column: 10},
		},
	}

	reporter.ReportWarning(warning1)
	reporter.ReportWarning(warning2)

	if !reporter.HasWarnings() {
		t.Error("Reporter should have warnings after reporting")
	}

	warnings := reporter.GetWarnings()
	if len(warnings) != 2 {
		t.Errorf("Expected 2 warnings, got %d", len(warnings))
	}

	reporter.Flush()

	underlyingWarnings := baseReporter.GetWarnings()
	if len(underlyingWarnings) != 2 {
		t.Errorf("Expected underlying reporter to have 2 warnings after flush, got %d", len(underlyingWarnings))
	}
}

func TestCompareSourceRanges(t *testing.T) {
	range1 := domain.SourceRange{
		Start: domain.SourcePosition{Filename: "test.core", Line: 1, Column: 5},
		End:   domain.SourcePosition{Filename: "test.core", Line: 1, Column: 10},
	}
	range2 := domain.SourceRange{
		Start: domain.SourcePosition{Filename: "test.core", Line: 2, Column: 1},
		End:   domain.SourcePosition{Filename: "test.core", Line: 2, Column: 5},
	}
	range3 := domain.SourceRange{
		Start: domain.SourcePosition{Filename: "test.core", Line: 1, Column: 1},
		End:   domain.SourcePosition{Filename: "test.core", Line: 1, Column: 5},
	}

	if !compareSourceRanges(range1, range2) {
		t.Error("range1 should be less than range2 (earlier line)")
	}
	if compareSourceRanges(range1, range3) {
		t.Error("range1 should be greater than range3 (same line, later column)")
	}
	if compareSourceRanges(range1, range1) {
		t.Error("Same ranges should be equal")
	}
}

func TestUtilityFunctions(t *testing.T) {
	if max(5, 10) != 10 {
		t.Error("max(5, 10) should be 10")
	}
	if max(7, 7) != 7 {
		t.Error("max(7, 7) should be 7")
	}
	if min(5, 10) != 5 {
		t.Error("min(5, 10) should be 5")
	}
	if min(3, 3) != 3 {
		t.Error("min(3, 3) should be 3")
	}
}
