// Package descriptor reads the dependency list out of a project descriptor
// such as setup.py without running the rest of the file.
//
// Only the first top-level statement is parsed and evaluated. Later
// statements typically import packaging tooling or call it, and must never
// execute here: they may have import-time side effects or need an
// environment that is not installed yet.
package descriptor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	// DefaultVariable is the name the leading statement is expected to bind.
	DefaultVariable = "dependencies"
	// DefaultMaxSteps bounds evaluation of the leading statement.
	DefaultMaxSteps uint64 = 100_000
)

var (
	// ErrMalformedDescriptor is returned when the descriptor cannot be read
	// or its leading statement does not parse.
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	// ErrMissingDependencyList is returned when the leading statement does
	// not bind the expected name to a sequence of strings.
	ErrMissingDependencyList = errors.New("missing dependency list")
)

// Extractor evaluates the leading statement of a descriptor in isolation.
// The zero value looks for DefaultVariable with DefaultMaxSteps.
type Extractor struct {
	Variable string
	MaxSteps uint64
	Logger   *slog.Logger
}

// Extract returns the dependency specifiers bound by the first statement
// of the descriptor at path, in declared order.
func Extract(path string) ([]string, error) {
	return (&Extractor{}).Extract(path)
}

func (e *Extractor) Extract(path string) ([]string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrMalformedDescriptor, path, err)
	}
	return e.ExtractSource(path, src)
}

// ExtractSource is Extract for an in-memory descriptor. filename is used
// only in error positions.
func (e *Extractor) ExtractSource(filename string, src []byte) ([]string, error) {
	src = bytes.TrimPrefix(src, utf8BOM)
	stmt, line, err := leadingStatement(filename, src)
	if err != nil {
		return nil, err
	}
	e.logger().Debug("parsed leading statement", "file", filename, "line", line)

	globals, err := e.eval(filename, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluating statement at %s:%d: %v", ErrMissingDependencyList, filename, line, err)
	}

	return e.bound(filename, globals)
}

var utf8BOM = []byte("\xef\xbb\xbf")

// leadingStatement parses exactly one top-level statement, skipping any
// blank or comment-only lines before it. The parser pulls input a line at
// a time and stops at the statement's closing newline, so nothing after
// it is tokenized. The returned line number is 1-based within src.
func leadingStatement(filename string, src []byte) (syntax.Stmt, int, error) {
	r := bufio.NewReader(bytes.NewReader(src))

	line := 0
	var first []byte
	for {
		b, err := r.ReadBytes('\n')
		if len(b) > 0 {
			line++
			if !isBlank(b) {
				first = b
				break
			}
		}
		if err == io.EOF {
			return nil, 0, fmt.Errorf("%w: %s contains no statements", ErrMissingDependencyList, filename)
		}
		if err != nil {
			return nil, 0, fmt.Errorf("%w: reading %s: %v", ErrMalformedDescriptor, filename, err)
		}
	}

	pending := first
	readline := func() ([]byte, error) {
		if pending != nil {
			b := pending
			pending = nil
			return terminated(b), nil
		}
		b, err := r.ReadBytes('\n')
		if err == io.EOF {
			// An empty, error-free read is how the scanner sees end of input.
			return terminated(b), nil
		}
		return b, err
	}

	f, err := fileOptions.ParseCompoundStmt(filename, readline)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: statement at %s:%d: %v", ErrMalformedDescriptor, filename, line, err)
	}
	// "a = [...]; b = 2" parses as several statements on one line; only
	// the first is the leading statement.
	if len(f.Stmts) == 0 {
		return nil, 0, fmt.Errorf("%w: %s:%d has no statement", ErrMissingDependencyList, filename, line)
	}

	return f.Stmts[0], line, nil
}

// fileOptions is the dialect used to parse and resolve the leading
// statement. Top-level control flow is allowed so a conditional list
// assembly still parses; it is still only one statement.
var fileOptions = &syntax.FileOptions{
	TopLevelControl: true,
	GlobalReassign:  true,
}

// eval compiles a synthetic single-statement file and runs it on a fresh
// thread with nothing predeclared.
func (e *Extractor) eval(filename string, stmt syntax.Stmt) (starlark.StringDict, error) {
	f := &syntax.File{
		Options: fileOptions,
		Path:    filename,
		Stmts:   []syntax.Stmt{stmt},
	}

	prog, err := starlark.FileProgram(f, func(string) bool { return false })
	if err != nil {
		return nil, err
	}

	logger := e.logger()
	thread := &starlark.Thread{
		Name: "descriptor:" + filename,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Debug("descriptor print", "msg", msg)
		},
		Load: func(_ *starlark.Thread, module string) (starlark.StringDict, error) {
			return nil, fmt.Errorf("load of %q is not permitted", module)
		},
	}
	thread.SetMaxExecutionSteps(e.maxSteps())

	return prog.Init(thread, nil)
}

// bound converts the expected binding to Go strings, preserving order and
// duplicates.
func (e *Extractor) bound(filename string, globals starlark.StringDict) ([]string, error) {
	name := e.variable()
	v, ok := globals[name]
	if !ok {
		return nil, fmt.Errorf("%w: first statement of %s does not bind %q", ErrMissingDependencyList, filename, name)
	}

	seq, ok := asSequence(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q is a %s, want list of strings", ErrMissingDependencyList, name, v.Type())
	}

	deps := make([]string, 0, seq.Len())
	for i := 0; i < seq.Len(); i++ {
		s, ok := starlark.AsString(seq.Index(i))
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is a %s, want string", ErrMissingDependencyList, name, i, seq.Index(i).Type())
		}
		deps = append(deps, s)
	}

	return deps, nil
}

func asSequence(v starlark.Value) (starlark.Indexable, bool) {
	switch v := v.(type) {
	case *starlark.List:
		return v, true
	case starlark.Tuple:
		return v, true
	}
	return nil, false
}

// terminated appends the newline a final unterminated line lacks; the
// statement parser requires one to close a simple statement.
func terminated(b []byte) []byte {
	if len(b) > 0 && b[len(b)-1] != '\n' {
		return append(b, '\n')
	}
	return b
}

// isBlank reports whether a line holds only whitespace or a comment.
func isBlank(line []byte) bool {
	line = bytes.TrimSpace(line)
	return len(line) == 0 || line[0] == '#'
}

func (e *Extractor) variable() string {
	if e.Variable == "" {
		return DefaultVariable
	}
	return e.Variable
}

func (e *Extractor) maxSteps() uint64 {
	if e.MaxSteps == 0 {
		return DefaultMaxSteps
	}
	return e.MaxSteps
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}
