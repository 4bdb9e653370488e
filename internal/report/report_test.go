package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/pkg/detect"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

func sampleResult() *fbcontrib.Result {
	result := &fbcontrib.Result{
		Findings: []detect.Finding{
			{
				Detector:         "UseEnumCollections",
				Category:         "UEC_USE_ENUM_COLLECTIONS",
				Priority:         detect.PriorityNormal,
				ClassName:        "com/example/Basic",
				MethodName:       "fill",
				MethodDescriptor: "()V",
				SourceFile:       "Basic.java",
				Line:             5,
				PC:               12,
			},
		},
	}
	result.Stats.ClassesAnalyzed = 3
	result.Stats.Findings = 1
	return result
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), FormatText))

	assert.Equal(t, "Basic.java:5 com/example/Basic.fill UEC_USE_ENUM_COLLECTIONS\n", buf.String())
}

func TestWrite_TextFallsBackToClassName(t *testing.T) {
	result := sampleResult()
	result.Findings[0].SourceFile = ""
	result.Findings[0].Line = 0

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, result, ""))
	assert.True(t, strings.HasPrefix(buf.String(), "com/example/Basic "), buf.String())
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), FormatJSON))

	var decoded struct {
		Findings  []detect.Finding `json:"findings"`
		Timestamp string           `json:"timestamp"`
		Stats     struct {
			ClassesAnalyzed int `json:"classes_analyzed"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Findings, 1)
	assert.Equal(t, "com/example/Basic", decoded.Findings[0].ClassName)
	assert.Equal(t, 3, decoded.Stats.ClassesAnalyzed)
	assert.NotEmpty(t, decoded.Timestamp)
}

func TestWrite_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleResult(), FormatTable))

	out := buf.String()
	assert.Contains(t, out, "com/example/Basic")
	assert.Contains(t, out, "Basic.java:5")
	assert.Contains(t, out, "UEC_USE_ENUM_COLLECTIONS")
	assert.Contains(t, out, "1 finding(s) in 3 class(es)")
}

func TestWrite_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, sampleResult(), Format("xml"))
	require.Error(t, err)
}
