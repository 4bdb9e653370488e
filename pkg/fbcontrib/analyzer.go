package fbcontrib

import (
	"fmt"
	"log/slog"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/classpath"
	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/detect/enumcollections"
)

// AnalyzerOptions holds configuration options for the analyzer.
type AnalyzerOptions struct {
	// ClasspathRoots are additional directories and jar archives used to
	// resolve class metadata (enum-ness, interfaces) for classes outside
	// the analyzed set.
	ClasspathRoots []string

	// ResolutionClasses are parsed classes made available for metadata
	// resolution without being analyzed themselves.
	ResolutionClasses []*classfile.Class

	// Workers bounds the per-class analysis pool. <= 0 selects NumCPU.
	Workers int
}

// Analyzer orchestrates detector runs over loaded classes.
type Analyzer struct {
	opts      AnalyzerOptions
	factories []detect.Factory
}

// NewAnalyzer creates an analyzer with the given options and detector
// factories. With no factories, the full default detector set runs.
func NewAnalyzer(opts AnalyzerOptions, factories ...detect.Factory) *Analyzer {
	if len(factories) == 0 {
		factories = []detect.Factory{enumcollections.Factory}
	}
	return &Analyzer{opts: opts, factories: factories}
}

// Result is the outcome of one analysis run.
type Result struct {
	Findings       []detect.Finding      `json:"findings"`
	MissingClasses []detect.MissingClass `json:"missing_classes,omitempty"`
	Stats          struct {
		ClassesAnalyzed int `json:"classes_analyzed"`
		Findings        int `json:"findings"`
		MissingClasses  int `json:"missing_classes"`
	} `json:"stats"`
}

// Analyze runs all registered detectors over the given classes.
func (a *Analyzer) Analyze(classes []*classfile.Class) (*Result, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("no classes provided")
	}

	repo := classpath.NewRepository(a.opts.ClasspathRoots...)
	for _, cls := range classes {
		repo.Add(cls)
	}
	for _, cls := range a.opts.ResolutionClasses {
		repo.Add(cls)
	}

	collector := detect.NewCollector()
	runner := detect.NewRunner(a.factories, a.opts.Workers)
	runner.Run(classes, repo, collector)

	result := &Result{
		Findings:       collector.Findings(),
		MissingClasses: collector.MissingClasses(),
	}
	result.Stats.ClassesAnalyzed = len(classes)
	result.Stats.Findings = len(result.Findings)
	result.Stats.MissingClasses = len(result.MissingClasses)

	slog.Info("analysis finished",
		"classes", result.Stats.ClassesAnalyzed,
		"findings", result.Stats.Findings,
		"missing_classes", result.Stats.MissingClasses)
	return result, nil
}
