package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/detect/enumcollections"
)

func TestHarness_RunWithGeneratedClasses(t *testing.T) {
	enum := classgen.NewClass("com/example/Color").AsEnum()
	cls, err := enum.Build()
	require.NoError(t, err)

	fixture := classgen.NewClass("com/example/Basic")
	fixture.Method("fill", "(Ljava/util/HashMap;)V").
		ALoad(1).
		GetStatic("com/example/Color", "RED", "Lcom/example/Color;").
		AconstNull().
		InvokeInterface("java/util/Map", "put",
			"(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;").
		Pop().
		Return().
		Done()

	h := NewHarness(enumcollections.Factory)
	res := h.Run(t, &TestCase{
		Name:      "generated fixture",
		Classes:   []*classgen.Builder{fixture},
		Classpath: []*classfile.Class{cls},
		ExpectedFindings: []ExpectedFinding{{
			Class:    "com/example/Basic",
			Method:   "fill",
			Category: enumcollections.Category,
		}},
	})
	assert.True(t, res.Success)
}

func TestLoadTestCase_FromDirectory(t *testing.T) {
	dir := t.TempDir()

	enum := classgen.NewClass("com/example/Color").AsEnum()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Color.class"), enum.Bytes(), 0o644))

	fixture := classgen.NewClass("com/example/Basic")
	fixture.Method("fill", "(Ljava/util/HashMap;)V").
		ALoad(1).
		GetStatic("com/example/Color", "RED", "Lcom/example/Color;").
		AconstNull().
		InvokeInterface("java/util/Map", "put",
			"(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;").
		Pop().
		Return().
		Done()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Basic.class"), fixture.Bytes(), 0o644))

	expected := `
name: yaml driven case
expected_findings:
  - class: com/example/Basic
    method: fill
    category: UEC_USE_ENUM_COLLECTIONS
    reason: hash map keyed by an enum
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "expected.yaml"), []byte(expected), 0o644))

	tc := LoadTestCase(t, dir)
	assert.Equal(t, "yaml driven case", tc.Name)
	require.Len(t, tc.ExpectedFindings, 1)

	res := NewHarness(enumcollections.Factory).Run(t, tc)
	assert.True(t, res.Success)
}

func TestValidateFindings_Mismatches(t *testing.T) {
	expected := []ExpectedFinding{
		{Class: "a/A", Method: "m", Category: "CAT"},
		{Class: "a/A", Method: "missing", Category: "CAT", Reason: "never produced"},
	}
	actual := []detect.Finding{
		{ClassName: "a/A", MethodName: "m", Category: "OTHER"},
		{ClassName: "b/B", MethodName: "extra", Category: "CAT"},
	}

	res := &TestResult{}
	validateFindings(res, expected, actual)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "1 missing, 1 unexpected")

	joined := ""
	for _, d := range res.Details {
		joined += d + "\n"
	}
	assert.Contains(t, joined, "a/A.missing")
	assert.Contains(t, joined, "b/B.extra")
	assert.Contains(t, joined, "Category mismatch")
}

func TestValidateMissing(t *testing.T) {
	res := &TestResult{Success: true}
	validateMissing(res, []string{"a/A"}, []detect.MissingClass{
		{ClassName: "a/A"},
		{ClassName: "b/B"},
	})

	assert.False(t, res.Success)
	require.Len(t, res.Details, 1)
	assert.Contains(t, res.Details[0], "b/B")
}
