// Package detect defines the detector framework: the per-instruction
// visitor contract, the finding and diagnostic sink types, and the engine
// that walks class files through the operand stack simulation.
package detect

import (
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/classpath"
	"github.com/phermsdorf/fb-contrib/pkg/opstack"
)

// Priority ranks how confident a detector is in a finding.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Finding is one reported diagnostic at a single call site.
type Finding struct {
	Detector         string   `json:"detector"`
	Category         string   `json:"category"`
	Priority         Priority `json:"priority"`
	ClassName        string   `json:"class"`
	MethodName       string   `json:"method"`
	MethodDescriptor string   `json:"descriptor"`
	SourceFile       string   `json:"source_file,omitempty"`
	Line             int      `json:"line,omitempty"`
	PC               int      `json:"pc"`
}

// MissingClass records a failed class metadata resolution. It degrades
// precision for one query; it never fails the run.
type MissingClass struct {
	ClassName string `json:"class"`
	Error     string `json:"error"`
}

// Reporter is the diagnostic sink detectors write to. Implementations
// must be safe for concurrent use when classes are analyzed in parallel.
type Reporter interface {
	Report(f Finding)
	ReportMissingClass(className string, err error)
}

// Context carries everything a detector may consult at one instruction:
// the enclosing class and method, the pre-instruction frame state, the
// class metadata repository, and the diagnostic sink.
type Context struct {
	Class    *classfile.Class
	Method   *classfile.Method
	Frame    *opstack.Frame
	Repo     *classpath.Repository
	Reporter Reporter
	PC       int
}

// Step is a detector's verdict for one instruction. Tag, when non-nil, is
// attached to the top of stack after the instruction's effect applies.
// Stop aborts the scan of the current method; later instructions in the
// method are not analyzed.
type Step struct {
	Tag  any
	Stop bool
}

// Detector is a per-class bytecode detector. One instance analyzes one
// class; instances are never shared across classes or goroutines.
type Detector interface {
	// Name identifies the detector in findings and logs.
	Name() string

	// BeginClass resets per-class state. Returning false skips the class.
	BeginClass(ctx *Context) bool

	// BeginMethod resets per-method state.
	BeginMethod(ctx *Context)

	// Instruction observes one instruction with the frame still showing
	// the pre-instruction stack image.
	Instruction(ctx *Context, in classfile.Instruction) Step
}

// Factory builds a fresh detector instance for one class analysis.
type Factory func() Detector
