package opstack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/opstack"
)

// buildMethod assembles a single method and returns its enclosing class,
// the method, and its decoded instructions.
func buildMethod(t *testing.T, descriptor string, static bool, body func(*classgen.MethodBuilder)) (*classfile.Class, *classfile.Method, []classfile.Instruction) {
	t.Helper()

	b := classgen.NewClass("com/example/Subject").
		Field("cache", "Ljava/util/HashMap;")
	mb := b.Method("subject", descriptor)
	if static {
		mb.Static()
	}
	body(mb)
	mb.Done()

	cls, err := b.Build()
	require.NoError(t, err)
	require.Len(t, cls.Methods, 1)
	m := &cls.Methods[0]
	ins, err := m.Code.Decode()
	require.NoError(t, err)
	return cls, m, ins
}

// run executes every instruction of the method and returns the final frame.
func run(t *testing.T, descriptor string, static bool, body func(*classgen.MethodBuilder)) *opstack.Frame {
	t.Helper()
	cls, m, ins := buildMethod(t, descriptor, static, body)
	frame := opstack.NewFrame(cls, m)
	for _, in := range ins {
		frame.Execute(in)
	}
	return frame
}

func top(t *testing.T, f *opstack.Frame) *opstack.Item {
	t.Helper()
	it, ok := f.Item(0)
	require.True(t, ok, "stack is empty")
	return it
}

func TestFrame_LocalsSeededFromDescriptor(t *testing.T) {
	// Instance method: slot 0 receiver, slot 1 long (two slots), slot 3 map.
	f := run(t, "(JLjava/util/HashMap;)V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(3)
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "Ljava/util/HashMap;", top(t, f).Signature())
}

func TestFrame_ReceiverSlot(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(0)
	})
	assert.Equal(t, "Lcom/example/Subject;", top(t, f).Signature())
}

func TestFrame_StaticMethodHasNoReceiver(t *testing.T) {
	f := run(t, "(Ljava/util/HashSet;)V", true, func(m *classgen.MethodBuilder) {
		m.ALoad(0)
	})
	assert.Equal(t, "Ljava/util/HashSet;", top(t, f).Signature())
}

func TestExecute_NewPushesClassSignature(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.New("java/util/HashMap")
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "Ljava/util/HashMap;", top(t, f).Signature())
}

func TestExecute_DupCopiesWithoutAliasing(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.New("java/util/HashMap").Dup()
	})
	require.Equal(t, 2, f.Depth())

	top(t, f).SetUserValue("tagged")
	below, ok := f.Item(1)
	require.True(t, ok)
	assert.Equal(t, "Ljava/util/HashMap;", below.Signature())
	assert.Nil(t, below.UserValue(), "dup must not alias detector payloads")
}

func TestExecute_FieldReadCarriesProvenance(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(0).GetField("com/example/Subject", "cache", "Ljava/util/HashMap;")
	})
	require.Equal(t, 1, f.Depth())
	it := top(t, f)
	assert.Equal(t, "Ljava/util/HashMap;", it.Signature())
	assert.Equal(t, "cache", it.Field())
}

func TestExecute_StoreKeepsProvenanceDropsPayload(t *testing.T) {
	cls, m, ins := buildMethod(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(0).
			GetField("com/example/Subject", "cache", "Ljava/util/HashMap;").
			AStore(1).
			ALoad(1)
	})
	f := opstack.NewFrame(cls, m)

	for _, in := range ins {
		f.Execute(in)
		// Tag the freshly read field value before it is stored.
		if in.Op == classfile.OpGetfield {
			top(t, f).SetUserValue(42)
		}
	}

	require.Equal(t, 1, f.Depth())
	it := top(t, f)
	assert.Equal(t, "cache", it.Field(), "provenance follows the value through the slot")
	assert.Equal(t, "Ljava/util/HashMap;", it.Signature())
	assert.Nil(t, it.UserValue(), "payloads must not follow the value through the slot")
}

func TestExecute_StoreOverwritesSlot(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(0).
			GetField("com/example/Subject", "cache", "Ljava/util/HashMap;").
			AStore(1).
			AconstNull().
			AStore(1).
			ALoad(1)
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "", top(t, f).Field())
}

func TestExecute_GotoDiscardsSpeculativeValue(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Goto(4)
	})
	assert.Equal(t, 0, f.Depth())
}

func TestExecute_GotoOnEmptyStack(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Goto(3)
	})
	assert.Equal(t, 0, f.Depth())
}

func TestExecute_InvokePopsArgsPushesReturn(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.New("java/util/HashMap").
			AconstNull().
			AconstNull().
			InvokeInterface("java/util/Map", "put",
				"(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;")
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "Ljava/lang/Object;", top(t, f).Signature())
}

func TestExecute_VoidInvokePushesNothing(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.New("java/util/HashMap").
			Dup().
			InvokeSpecial("java/util/HashMap", "<init>", "()V")
	})
	// The constructor consumes the duplicate and leaves the original.
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "Ljava/util/HashMap;", top(t, f).Signature())
}

func TestExecute_StaticInvokeLeavesReceiverAlone(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.AconstNull().
			InvokeStatic("com/google/common/collect/Maps", "newHashMap", "()Ljava/util/HashMap;")
	})
	require.Equal(t, 2, f.Depth())
	assert.Equal(t, "Ljava/util/HashMap;", top(t, f).Signature())
}

func TestExecute_ReturnClearsStack(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Iconst(2).Return()
	})
	assert.Equal(t, 0, f.Depth())
}

func TestExecute_ConditionalBranchPopsOperands(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Iconst(2).Raw(byte(classfile.OpIfIcmpeq), 0x00, 0x05)
	})
	assert.Equal(t, 0, f.Depth())

	f = run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Raw(byte(classfile.OpIfeq), 0x00, 0x04)
	})
	assert.Equal(t, 0, f.Depth())
}

func TestExecute_CheckcastNarrowsType(t *testing.T) {
	f := run(t, "(Ljava/lang/Object;)V", false, func(m *classgen.MethodBuilder) {
		m.ALoad(1).Checkcast("java/util/HashMap")
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "Ljava/util/HashMap;", top(t, f).Signature())
}

func TestExecute_ArithmeticCollapsesOperands(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Iconst(2).Raw(byte(classfile.OpIadd))
	})
	require.Equal(t, 1, f.Depth())
	assert.Equal(t, "I", top(t, f).Signature())
}

func TestExecute_AthrowClearsStack(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1).Raw(byte(classfile.OpAthrow))
	})
	assert.Equal(t, 0, f.Depth())
}

func TestFrame_ItemOutOfRange(t *testing.T) {
	f := run(t, "()V", false, func(m *classgen.MethodBuilder) {
		m.Iconst(1)
	})
	_, ok := f.Item(1)
	assert.False(t, ok)
	_, ok = f.Item(-1)
	assert.False(t, ok)
}
