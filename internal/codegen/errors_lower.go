package codegen

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"github.com/sokoide/corelang/internal/domain"
)

// CrashMessageResolver scans the stdlib source tree: find every Crashable
// type's `crash_message` routine and decide, from its body text alone,
// whether it always returns one fixed string literal (static, cacheable)
// or reads fields/interpolates (dynamic, needs a runtime call). This is a
// line-oriented text scan, not a parse: lexing/parsing the front language
// is out of scope here, and the resolver only needs to distinguish
// "single literal return" from "anything else".
type CrashMessageResolver struct {
	stdlibPath string
	static     map[string]string
	dynamic    map[string]bool
}

func NewCrashMessageResolver(stdlibPath string) *CrashMessageResolver {
	return &CrashMessageResolver{
		stdlibPath: stdlibPath,
		static:     make(map[string]string),
		dynamic:    make(map[string]bool),
	}
}

var (
	typeHeaderRe  = regexp.MustCompile(`^\s*(?:record|entity)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	methodHeaderRe = regexp.MustCompile(`crash_message\s*\(`)
	returnLitRe   = regexp.MustCompile(`^\s*return\s+"((?:[^"\\]|\\.)*)"\s*;?\s*$`)
)

// Load scans every source file under stdlibPath. A file that can't be read
// is skipped, so its types get neither a static nor a dynamic entry and a
// throw falls back to the generic "<Type> occurred" static message; a
// crash_message body that doesn't fit the single-return-literal shape marks
// its type dynamic. Neither case is a compile error.
func (r *CrashMessageResolver) Load() error {
	if r.stdlibPath == "" {
		return nil
	}
	return filepath.Walk(r.stdlibPath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		r.scanFile(path)
		return nil
	})
}

func (r *CrashMessageResolver) scanFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	currentType := ""
	for scanner.Scan() {
		line := scanner.Text()
		if m := typeHeaderRe.FindStringSubmatch(line); m != nil {
			currentType = m[1]
			continue
		}
		if currentType == "" || !methodHeaderRe.MatchString(line) {
			continue
		}
		body, ok := readBraceBody(scanner)
		if !ok {
			continue // malformed/unbalanced body; leave this type unresolved
		}
		r.classify(currentType, body)
	}
}

// readBraceBody consumes lines until it finds one containing the closing
// brace of the method whose opening brace was on the trigger line (which
// may itself have opened the brace), returning the lines in between.
func readBraceBody(scanner *bufio.Scanner) ([]string, bool) {
	var body []string
	depth := 1
	for scanner.Scan() {
		line := scanner.Text()
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			return body, true
		}
		body = append(body, line)
	}
	return nil, false
}

func (r *CrashMessageResolver) classify(typeName string, body []string) {
	nonBlank := make([]string, 0, len(body))
	for _, l := range body {
		if strings.TrimSpace(l) != "" {
			nonBlank = append(nonBlank, l)
		}
	}
	if len(nonBlank) == 1 {
		if m := returnLitRe.FindStringSubmatch(nonBlank[0]); m != nil {
			r.static[typeName] = m[1]
			return
		}
	}
	r.dynamic[typeName] = true
}

// Annotate fills in rec.StaticMessage/DynamicMessage from the scan results,
// called as each record is indexed (generator.go's indexStructDecl).
func (r *CrashMessageResolver) Annotate(rec *domain.RecordType) {
	if !rec.IsCrashable {
		return
	}
	if msg, ok := r.static[rec.Name]; ok {
		m := msg
		rec.StaticMessage = &m
		return
	}
	if r.dynamic[rec.Name] {
		rec.DynamicMessage = true
	}
}

// ErrorLowerer implements throw-site lowering: a dynamic thunk call when
// the Crash Message Resolver found one, otherwise the cached (type name,
// message) pointer pair, both forwarded to the stack-trace runtime's entry
// points (declared in generator.go's emitExternalDeclarations; the runtime
// itself — unwinding, formatting, process exit — is out of scope here,
// a collaborator this engine only calls into).
type ErrorLowerer struct {
	gen *Generator
}

func NewErrorLowerer(gen *Generator) *ErrorLowerer {
	return &ErrorLowerer{gen: gen}
}

// EmitStaticCrash calls corelang_crash(typeID, typeName, message) without
// adding a terminator, for callers (verify!/breach!/stop!) that control
// their own block-termination sequence. typeID comes from the Debug Symbol
// Table; the first lookup for a given typeName also emits a one-time
// corelang_debug_register_type call so the runtime can resolve the id back
// to a name when it prints a trace.
func (l *ErrorLowerer) EmitStaticCrash(loc domain.SourceRange, typeName, message string) error {
	g := l.gen
	block := g.fn.Block
	typeID, needsRegistration := g.debugSymbols.TypeID(typeName)
	typeNamePtr := g.stringPool.Pointer(block, typeName)
	if needsRegistration {
		block.NewCall(g.moduleFuncs["corelang_debug_register_type"],
			constant.NewInt(types.I32, int64(typeID)), typeNamePtr)
	}
	msgPtr := g.stringPool.Pointer(block, message)
	block.NewCall(g.moduleFuncs["corelang_crash"], constant.NewInt(types.I32, int64(typeID)), typeNamePtr, msgPtr)
	return nil
}

// EmitOverflowTrap is called from the trap block emitCheckedArith builds
// (expr.go) for the six arithmetic with.overflow intrinsics.
func (l *ErrorLowerer) EmitOverflowTrap(loc domain.SourceRange) error {
	return l.EmitStaticCrash(loc, "OverflowError", "overflow")
}

// EmitVerify implements `verify!(cond, "message")`: crash when cond is
// false, continue otherwise.
func (l *ErrorLowerer) EmitVerify(loc domain.SourceRange, condRaw value.Value, message string) error {
	g := l.gen
	fn := g.fn
	entry := fn.Block
	trapBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("verify.fail"))
	contBlock := fn.LLVMFunc.NewBlock(fn.NewLabel("verify.ok"))
	entry.NewCondBr(condRaw, contBlock, trapBlock)

	fn.Block = trapBlock
	if err := l.EmitStaticCrash(loc, "VerificationError", message); err != nil {
		return err
	}
	trapBlock.NewUnreachable()

	fn.Block = contBlock
	return nil
}

// EmitThrow lowers `throw someCrashableValue`, preferring the dynamic
// crash_message thunk when the resolver found one, falling back to the
// cached static message, and finally to a generic per-type message if
// the resolver never saw this type's stdlib source.
func (l *ErrorLowerer) EmitThrow(loc domain.SourceRange, errVal value.Value, errType domain.Type) error {
	g := l.gen
	rec, ok := errType.(*domain.RecordType)
	if !ok {
		return g.unsupported(loc, "throw requires a Crashable record value, got %s", errType)
	}

	if rec.DynamicMessage {
		for _, m := range g.methodDecls[rec.Name] {
			if m.Name != "crash_message" {
				continue
			}
			qualified := rec.Name + ".crash_message"
			fn, ok := g.moduleFuncs[qualified]
			if !ok {
				var err error
				fn, _, err = g.emitFunctionDefinitionNamed(m, qualified)
				if err != nil {
					return err
				}
				g.moduleFuncs[qualified] = fn
			}
			block := g.fn.Block
			slot := block.NewAlloca(errVal.Type())
			block.NewStore(errVal, slot)
			msgPtr := block.NewCall(fn, slot)
			typeID, needsRegistration := g.debugSymbols.TypeID(rec.Name)
			typeNamePtr := g.stringPool.Pointer(block, rec.Name)
			if needsRegistration {
				block.NewCall(g.moduleFuncs["corelang_debug_register_type"],
					constant.NewInt(types.I32, int64(typeID)), typeNamePtr)
			}
			block.NewCall(g.moduleFuncs["corelang_crash_dynamic"], constant.NewInt(types.I32, int64(typeID)), typeNamePtr, msgPtr)
			block.NewUnreachable()
			return nil
		}
	}

	message := rec.Name + " occurred"
	if rec.StaticMessage != nil {
		message = *rec.StaticMessage
	}
	if err := l.EmitStaticCrash(loc, rec.Name, message); err != nil {
		return err
	}
	g.fn.Block.NewUnreachable()
	return nil
}

// EmitAbsent lowers the `absent` statement: always throws AbsentValueError.
func (l *ErrorLowerer) EmitAbsent(loc domain.SourceRange) error {
	g := l.gen
	if err := l.EmitStaticCrash(loc, "AbsentValueError", "accessed an absent value"); err != nil {
		return err
	}
	g.fn.Block.NewUnreachable()
	return nil
}
