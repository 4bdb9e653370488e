package classgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

func TestPoolBuilder_InternsEntries(t *testing.T) {
	pool := newPoolBuilder()

	a := pool.utf8("java/util/HashMap")
	b := pool.utf8("java/util/HashMap")
	assert.Equal(t, a, b)

	c1 := pool.class("java/util/HashMap")
	c2 := pool.class("java/util/HashMap")
	assert.Equal(t, c1, c2)

	r1 := pool.memberRef(classfile.TagMethodref, "java/util/HashMap", "<init>", "()V")
	r2 := pool.memberRef(classfile.TagMethodref, "java/util/HashMap", "<init>", "()V")
	assert.Equal(t, r1, r2)
	assert.NotEqual(t, c1, r1)
}

func TestBuild_ProducesParseableClass(t *testing.T) {
	b := NewClass("com/example/Gen").
		AsEnum().
		SourceFile("Gen.java").
		Field("state", "I")
	b.Method("step", "(I)I").
		Static().
		Line(3).
		Iconst(1).
		Raw(byte(classfile.OpIreturn)).
		Done()

	cls, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "com/example/Gen", cls.Name)
	assert.True(t, cls.IsEnum())
	assert.Equal(t, "Gen.java", cls.SourceFile)
	require.Len(t, cls.Methods, 1)
	assert.True(t, cls.Methods[0].IsStatic())
	assert.Equal(t, 3, cls.Methods[0].Code.LineFor(0))
}

func TestInvokeInterface_CountsArgumentSlots(t *testing.T) {
	b := NewClass("com/example/Gen")
	mb := b.Method("call", "()V")
	mb.InvokeInterface("com/example/Api", "consume", "(JLjava/lang/Object;)V")
	mb.Done()

	cls, err := b.Build()
	require.NoError(t, err)
	ins, err := cls.Methods[0].Code.Decode()
	require.NoError(t, err)
	require.Len(t, ins, 1)
	require.Equal(t, classfile.OpInvokeinterface, ins[0].Op)
	// receiver + long (2 slots) + object = 4
	assert.Equal(t, byte(4), ins[0].Operands[2])
}
