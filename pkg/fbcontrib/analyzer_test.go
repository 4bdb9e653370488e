package fbcontrib_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

// enumKeyedFixture is a class putting an enum key into a HashMap-typed
// parameter, which the default detector set flags.
func enumKeyedFixture() *classgen.Builder {
	b := classgen.NewClass("com/example/Flagged").SourceFile("Flagged.java")
	b.Method("fill", "(Ljava/util/HashMap;)V").
		Line(7).
		ALoad(1).
		GetStatic("com/example/Color", "RED", "Lcom/example/Color;").
		AconstNull().
		InvokeInterface("java/util/Map", "put",
			"(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;").
		Pop().
		Return().
		Done()
	return b
}

func TestAnalyzer_EndToEnd(t *testing.T) {
	classesDir := t.TempDir()
	writeClass(t, classesDir, enumKeyedFixture())

	// The enum lives on a separate classpath root, not in the analyzed set.
	classpathDir := t.TempDir()
	enumDir := filepath.Join(classpathDir, "com", "example")
	require.NoError(t, os.MkdirAll(enumDir, 0o755))
	writeClass(t, enumDir, classgen.NewClass("com/example/Color").AsEnum())

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{classesDir}})
	require.NoError(t, err)

	analyzer := fbcontrib.NewAnalyzer(fbcontrib.AnalyzerOptions{
		ClasspathRoots: []string{classpathDir},
	})
	result, err := analyzer.Analyze(classes)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	f := result.Findings[0]
	assert.Equal(t, "com/example/Flagged", f.ClassName)
	assert.Equal(t, "fill", f.MethodName)
	assert.Equal(t, "(Ljava/util/HashMap;)V", f.MethodDescriptor)
	assert.Equal(t, "Flagged.java", f.SourceFile)
	assert.Equal(t, 7, f.Line)
	assert.Equal(t, "UEC_USE_ENUM_COLLECTIONS", f.Category)

	assert.Empty(t, result.MissingClasses)
	assert.Equal(t, 1, result.Stats.ClassesAnalyzed)
	assert.Equal(t, 1, result.Stats.Findings)
}

func TestAnalyzer_MissingKeyClass(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, enumKeyedFixture())

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{dir}})
	require.NoError(t, err)

	result, err := fbcontrib.NewAnalyzer(fbcontrib.AnalyzerOptions{}).Analyze(classes)
	require.NoError(t, err)

	assert.Empty(t, result.Findings)
	require.Len(t, result.MissingClasses, 1)
	assert.Equal(t, "com/example/Color", result.MissingClasses[0].ClassName)
}

func TestAnalyzer_NoClasses(t *testing.T) {
	_, err := fbcontrib.NewAnalyzer(fbcontrib.AnalyzerOptions{}).Analyze(nil)
	assert.Error(t, err)
}
