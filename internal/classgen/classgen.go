// Package classgen assembles small class files in memory. Tests use it to
// build fixtures with precise bytecode instead of checking in binary
// .class files.
package classgen

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

// Builder assembles one class file.
type Builder struct {
	major      int
	access     uint16
	name       string
	super      string
	sourceFile string
	interfaces []string
	fields     []member
	methods    []*MethodBuilder
	pool       *poolBuilder
}

type member struct {
	access     uint16
	name, desc string
}

// NewClass starts a public class with the given slashed name, extending
// java/lang/Object, at the Java 8 class file version.
func NewClass(name string) *Builder {
	return &Builder{
		major:  52,
		access: classfile.AccPublic | classfile.AccSuper,
		name:   name,
		super:  "java/lang/Object",
		pool:   newPoolBuilder(),
	}
}

// ClassName returns the class's slashed internal name.
func (b *Builder) ClassName() string {
	return b.name
}

// Major overrides the class file major version.
func (b *Builder) Major(v int) *Builder {
	b.major = v
	return b
}

// AsEnum marks the class with ACC_ENUM.
func (b *Builder) AsEnum() *Builder {
	b.access |= classfile.AccEnum
	return b
}

// Implements adds direct interfaces.
func (b *Builder) Implements(names ...string) *Builder {
	b.interfaces = append(b.interfaces, names...)
	return b
}

// SourceFile sets the SourceFile attribute.
func (b *Builder) SourceFile(name string) *Builder {
	b.sourceFile = name
	return b
}

// Field declares an instance field.
func (b *Builder) Field(name, desc string) *Builder {
	b.fields = append(b.fields, member{access: classfile.AccPublic, name: name, desc: desc})
	return b
}

// Method starts a public instance method body.
func (b *Builder) Method(name, desc string) *MethodBuilder {
	mb := &MethodBuilder{
		b:         b,
		access:    classfile.AccPublic,
		name:      name,
		desc:      desc,
		maxStack:  10,
		maxLocals: 10,
	}
	b.methods = append(b.methods, mb)
	return mb
}

// Bytes serializes the class file.
func (b *Builder) Bytes() []byte {
	var body bytes.Buffer

	w2 := func(v uint16) { _ = binary.Write(&body, binary.BigEndian, v) }

	w2(b.access)
	w2(b.pool.class(b.name))
	w2(b.pool.class(b.super))

	w2(uint16(len(b.interfaces)))
	for _, iface := range b.interfaces {
		w2(b.pool.class(iface))
	}

	w2(uint16(len(b.fields)))
	for _, f := range b.fields {
		w2(f.access)
		w2(b.pool.utf8(f.name))
		w2(b.pool.utf8(f.desc))
		w2(0) // no attributes
	}

	w2(uint16(len(b.methods)))
	for _, m := range b.methods {
		body.Write(m.serialize())
	}

	var attrs [][]byte
	if b.sourceFile != "" {
		payload := make([]byte, 2)
		binary.BigEndian.PutUint16(payload, b.pool.utf8(b.sourceFile))
		attrs = append(attrs, attribute(b.pool, "SourceFile", payload))
	}
	w2(uint16(len(attrs)))
	for _, a := range attrs {
		body.Write(a)
	}

	// Header last: the constant pool is complete only now.
	var out bytes.Buffer
	_ = binary.Write(&out, binary.BigEndian, uint32(0xCAFEBABE))
	_ = binary.Write(&out, binary.BigEndian, uint16(0)) // minor
	_ = binary.Write(&out, binary.BigEndian, uint16(b.major))
	_ = binary.Write(&out, binary.BigEndian, b.pool.count)
	out.Write(b.pool.buf.Bytes())
	out.Write(body.Bytes())
	return out.Bytes()
}

// Build serializes and parses the class, returning the parsed form.
func (b *Builder) Build() (*classfile.Class, error) {
	cls, err := classfile.Parse(bytes.NewReader(b.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("assembling %s: %w", b.name, err)
	}
	return cls, nil
}

// attribute serializes one attribute record.
func attribute(pool *poolBuilder, name string, payload []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, pool.utf8(name))
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
	buf.Write(payload)
	return buf.Bytes()
}

// poolBuilder interns constant pool entries as they are referenced.
type poolBuilder struct {
	buf   bytes.Buffer
	count uint16 // constant_pool_count: one past the last index
	memo  map[string]uint16
}

func newPoolBuilder() *poolBuilder {
	return &poolBuilder{count: 1, memo: make(map[string]uint16)}
}

func (p *poolBuilder) intern(key string, write func()) uint16 {
	if idx, ok := p.memo[key]; ok {
		return idx
	}
	idx := p.count
	p.count++
	p.memo[key] = idx
	write()
	return idx
}

func (p *poolBuilder) u2(v uint16) {
	_ = binary.Write(&p.buf, binary.BigEndian, v)
}

func (p *poolBuilder) utf8(s string) uint16 {
	return p.intern("u:"+s, func() {
		p.buf.WriteByte(classfile.TagUtf8)
		p.u2(uint16(len(s)))
		p.buf.WriteString(s)
	})
}

func (p *poolBuilder) class(name string) uint16 {
	nameIdx := p.utf8(name)
	return p.intern("c:"+name, func() {
		p.buf.WriteByte(classfile.TagClass)
		p.u2(nameIdx)
	})
}

func (p *poolBuilder) str(s string) uint16 {
	utf8Idx := p.utf8(s)
	return p.intern("s:"+s, func() {
		p.buf.WriteByte(classfile.TagString)
		p.u2(utf8Idx)
	})
}

func (p *poolBuilder) nameAndType(name, desc string) uint16 {
	nameIdx := p.utf8(name)
	descIdx := p.utf8(desc)
	return p.intern("nt:"+name+":"+desc, func() {
		p.buf.WriteByte(classfile.TagNameAndType)
		p.u2(nameIdx)
		p.u2(descIdx)
	})
}

func (p *poolBuilder) memberRef(tag byte, cls, name, desc string) uint16 {
	clsIdx := p.class(cls)
	ntIdx := p.nameAndType(name, desc)
	return p.intern(fmt.Sprintf("m%d:%s.%s:%s", tag, cls, name, desc), func() {
		p.buf.WriteByte(tag)
		p.u2(clsIdx)
		p.u2(ntIdx)
	})
}
