package detect

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/classpath"
)

// Runner fans class analysis out over a worker pool. Classes are
// independent: every class gets fresh detector instances, and all mutable
// detector state lives inside those instances, so no locking is needed
// beyond the shared reporter and repository.
type Runner struct {
	factories []Factory
	workers   int
}

// NewRunner creates a runner. workers <= 0 selects NumCPU.
func NewRunner(factories []Factory, workers int) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{factories: factories, workers: workers}
}

// Run analyzes every class with every registered detector.
func (r *Runner) Run(classes []*classfile.Class, repo *classpath.Repository, reporter Reporter) {
	p := pool.New().WithMaxGoroutines(r.workers)
	for _, cls := range classes {
		p.Go(func() {
			engine := NewEngine(repo, reporter)
			for _, factory := range r.factories {
				engine.AnalyzeClass(cls, factory())
			}
		})
	}
	p.Wait()
}
