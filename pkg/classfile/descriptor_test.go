package classfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

func TestParseMethodDescriptor(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		params     []string
		ret        string
		wantErr    bool
	}{
		{
			name:       "no args void",
			descriptor: "()V",
			params:     nil,
			ret:        "V",
		},
		{
			name:       "map put",
			descriptor: "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;",
			params:     []string{"Ljava/lang/Object;", "Ljava/lang/Object;"},
			ret:        "Ljava/lang/Object;",
		},
		{
			name:       "primitives and arrays",
			descriptor: "(IJ[B[[Ljava/lang/String;D)Z",
			params:     []string{"I", "J", "[B", "[[Ljava/lang/String;", "D"},
			ret:        "Z",
		},
		{
			name:       "missing paren",
			descriptor: "IV",
			wantErr:    true,
		},
		{
			name:       "unterminated object type",
			descriptor: "(Ljava/lang/Object)V",
			wantErr:    true,
		},
		{
			name:       "empty",
			descriptor: "",
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := classfile.ParseMethodDescriptor(tt.descriptor)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.params, sig.Params)
			assert.Equal(t, tt.ret, sig.Return)
		})
	}
}

func TestSignatureClassName(t *testing.T) {
	assert.Equal(t, "java/util/HashMap", classfile.SignatureClassName("Ljava/util/HashMap;"))
	assert.Equal(t, "", classfile.SignatureClassName("I"))
	assert.Equal(t, "", classfile.SignatureClassName("[Ljava/lang/String;"))
	assert.Equal(t, "", classfile.SignatureClassName(""))
	assert.Equal(t, "", classfile.SignatureClassName("L;"))
}

func TestClassSignature(t *testing.T) {
	assert.Equal(t, "Ljava/util/HashMap;", classfile.ClassSignature("java/util/HashMap"))
}
