// Package harness provides testing utilities for validating detectors
// against generated class files.
package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

// TestCase represents a single detector test scenario.
type TestCase struct {
	// Name is a descriptive name for this scenario.
	Name string `yaml:"name"`

	// Dir is an optional directory containing prebuilt .class or .jar
	// fixtures. When empty, Classes supplies the fixtures.
	Dir string `yaml:"-"`

	// Classes are programmatic fixtures. They are serialized and written
	// to a temporary directory so the full loading path is exercised.
	Classes []*classgen.Builder `yaml:"-"`

	// Classpath holds extra classes available for metadata resolution
	// only. They are not analyzed.
	Classpath []*classfile.Class `yaml:"-"`

	// ExpectedFindings lists the findings the detectors must report.
	ExpectedFindings []ExpectedFinding `yaml:"expected_findings"`

	// ExpectedMissing lists class names expected to be unresolvable.
	ExpectedMissing []string `yaml:"expected_missing"`
}

// ExpectedFinding represents a finding the analyzer is expected to emit.
type ExpectedFinding struct {
	// Class is the internal name of the class containing the finding.
	Class string `yaml:"class"`

	// Method is the name of the offending method.
	Method string `yaml:"method"`

	// Category is the bug category code.
	Category string `yaml:"category"`

	// Line is the optional source line; zero means "don't care".
	Line int `yaml:"line,omitempty"`

	// Reason describes why the finding is expected.
	Reason string `yaml:"reason,omitempty"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// factories construct the detectors under test
	factories []detect.Factory
}

// NewHarness creates a new test harness for the given detectors. With no
// factories the analyzer's default detector set is used.
func NewHarness(factories ...detect.Factory) *TestHarness {
	return &TestHarness{factories: factories}
}

// Run executes a test case and validates the analyzer output against the
// case's expectations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()

	result := h.analyze(t, tc)

	caseResult := &TestResult{
		TestCase: tc,
		Result:   result,
	}
	validateFindings(caseResult, tc.ExpectedFindings, result.Findings)
	validateMissing(caseResult, tc.ExpectedMissing, result.MissingClasses)

	if !caseResult.Success {
		t.Errorf("%s: %s\n  %s", tc.Name, caseResult.Message, strings.Join(caseResult.Details, "\n  "))
	}
	return caseResult
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// Result is the raw analyzer output.
	Result *fbcontrib.Result

	// Success indicates if the test passed.
	Success bool

	// Message provides a summary of the result.
	Message string

	// Details provides detailed information about failures.
	Details []string
}

func validateFindings(caseResult *TestResult, expected []ExpectedFinding, actual []detect.Finding) {
	expectedMap := make(map[string]ExpectedFinding)
	for _, e := range expected {
		expectedMap[e.Class+"."+e.Method] = e
	}

	actualMap := make(map[string]detect.Finding)
	for _, a := range actual {
		actualMap[a.ClassName+"."+a.MethodName] = a
	}

	var details []string
	success := true

	// Check for missing expected findings.
	var missing []string
	for key, exp := range expectedMap {
		if _, found := actualMap[key]; !found {
			if exp.Reason != "" {
				key = fmt.Sprintf("%s (%s)", key, exp.Reason)
			}
			missing = append(missing, key)
			success = false
		}
	}

	// Check for unexpected findings.
	var unexpected []string
	for key, act := range actualMap {
		if _, found := expectedMap[key]; !found {
			unexpected = append(unexpected, fmt.Sprintf("%s [%s]", key, act.Category))
			success = false
		}
	}

	// Sort for consistent output.
	sort.Strings(missing)
	sort.Strings(unexpected)

	for _, m := range missing {
		details = append(details, "Should have been reported: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Should not have been reported: "+u)
	}

	// Validate category and line for findings that did match.
	for key, exp := range expectedMap {
		act, found := actualMap[key]
		if !found {
			continue
		}
		if exp.Category != "" && act.Category != exp.Category {
			details = append(details, fmt.Sprintf(
				"Category mismatch for %s: expected %q, got %q", key, exp.Category, act.Category))
			success = false
		}
		if exp.Line != 0 && act.Line != exp.Line {
			details = append(details, fmt.Sprintf(
				"Line mismatch for %s: expected %d, got %d", key, exp.Line, act.Line))
			success = false
		}
	}

	var message string
	if success {
		message = fmt.Sprintf("All %d expected findings reported", len(expected))
	} else {
		message = fmt.Sprintf("Test failed: %d missing, %d unexpected", len(missing), len(unexpected))
	}

	caseResult.Success = success
	caseResult.Message = message
	caseResult.Details = details
}

func validateMissing(caseResult *TestResult, expected []string, actual []detect.MissingClass) {
	actualSet := make(map[string]bool, len(actual))
	for _, m := range actual {
		actualSet[m.ClassName] = true
	}

	for _, name := range expected {
		if !actualSet[name] {
			caseResult.Success = false
			caseResult.Details = append(caseResult.Details,
				"Should have been reported as unresolved: "+name)
		}
		delete(actualSet, name)
	}

	var leftover []string
	for name := range actualSet {
		leftover = append(leftover, name)
	}
	sort.Strings(leftover)
	for _, name := range leftover {
		caseResult.Success = false
		caseResult.Details = append(caseResult.Details,
			"Unexpected unresolved class: "+name)
	}

	if !caseResult.Success && caseResult.Message == "" {
		caseResult.Message = "Unresolved class expectations not met"
	}
}
