package detect

import (
	"log/slog"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/classpath"
	"github.com/phermsdorf/fb-contrib/pkg/opstack"
)

// Engine drives detectors over class files. Per instruction the ordering
// is fixed: the detector reads the pre-instruction frame, the frame
// applies the instruction's stack effect, and only then is an inferred
// tag attached to the newly produced top of stack.
type Engine struct {
	repo     *classpath.Repository
	reporter Reporter
}

// NewEngine creates an engine sharing the given repository and sink.
func NewEngine(repo *classpath.Repository, reporter Reporter) *Engine {
	return &Engine{repo: repo, reporter: reporter}
}

// AnalyzeClass runs one detector instance over one class. The detector
// instance must not be reused for another class.
func (e *Engine) AnalyzeClass(cls *classfile.Class, det Detector) {
	ctx := &Context{
		Class:    cls,
		Repo:     e.repo,
		Reporter: e.reporter,
	}
	if !det.BeginClass(ctx) {
		return
	}
	for i := range cls.Methods {
		m := &cls.Methods[i]
		if m.Code == nil {
			continue // abstract or native
		}
		e.analyzeMethod(ctx, det, m)
	}
}

func (e *Engine) analyzeMethod(ctx *Context, det Detector, m *classfile.Method) {
	insts, err := m.Code.Decode()
	if err != nil {
		// Undecodable bytecode costs precision for this method only.
		slog.Debug("skipping method with undecodable bytecode",
			"class", ctx.Class.Name, "method", m.Name, "error", err)
		return
	}

	ctx.Method = m
	ctx.Frame = opstack.NewFrame(ctx.Class, m)
	det.BeginMethod(ctx)

	for _, in := range insts {
		ctx.PC = in.PC
		step := det.Instruction(ctx, in)

		ctx.Frame.Execute(in)
		if step.Tag != nil {
			if top, ok := ctx.Frame.Item(0); ok {
				top.SetUserValue(step.Tag)
			}
		}
		if step.Stop {
			break // the method is already reported
		}
	}
}
