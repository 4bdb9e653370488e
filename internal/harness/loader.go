package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

// analyze materializes the case's fixtures and runs the analyzer over them.
func (h *TestHarness) analyze(t *testing.T, tc *TestCase) *fbcontrib.Result {
	t.Helper()

	dir := tc.Dir
	if dir == "" {
		require.NotEmpty(t, tc.Classes, "test case %q has neither Dir nor Classes", tc.Name)
		dir = WriteClasses(t, tc.Classes...)
	}

	t.Logf("Loading classes from %q", dir)
	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{
		Paths: []string{dir},
	})
	require.NoError(t, err)

	analyzer := fbcontrib.NewAnalyzer(fbcontrib.AnalyzerOptions{
		ResolutionClasses: tc.Classpath,
	}, h.factories...)
	result, err := analyzer.Analyze(classes)
	require.NoError(t, err)
	return result
}

// WriteClasses serializes the builders as .class files under a fresh
// temporary directory and returns its path.
func WriteClasses(t *testing.T, builders ...*classgen.Builder) string {
	t.Helper()

	dir := t.TempDir()
	for _, b := range builders {
		name := filepath.Join(dir, strings.ReplaceAll(b.ClassName(), "/", "_")+".class")
		require.NoError(t, os.WriteFile(name, b.Bytes(), 0o644))
	}
	return dir
}

// LoadTestCase loads a test case's expectations from an expected.yaml file
// in the given directory. The directory's class and jar files become the
// fixtures.
func LoadTestCase(t *testing.T, dir string) *TestCase {
	t.Helper()
	yamlPath := filepath.Join(dir, "expected.yaml")

	tc := &TestCase{}
	data, err := os.ReadFile(yamlPath)
	require.NoError(t, err)
	err = yaml.Unmarshal(data, tc)
	require.NoError(t, err)

	tc.Dir = dir
	if tc.Name == "" {
		tc.Name = filepath.Base(dir)
	}
	return tc
}
