// Package classfile parses JVM class files far enough for bytecode-level
// detectors: class metadata, constant pool, method bodies, and line tables.
// Attributes the detectors never consult are skipped, not modeled.
package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

const classMagic = 0xCAFEBABE

// MajorJava5 is the class file major version introduced with Java 5,
// the first release with language-level generics and enums.
const MajorJava5 = 49

// Class access and property flags.
const (
	AccPublic     = 0x0001
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
)

// Class is one parsed class file.
type Class struct {
	MinorVersion int
	MajorVersion int
	AccessFlags  uint16
	Name         string   // slashed binary name, e.g. "java/util/HashMap"
	SuperName    string   // empty for java/lang/Object
	Interfaces   []string // slashed names of directly implemented interfaces
	Fields       []Field
	Methods      []Method
	SourceFile   string
	Pool         *ConstantPool
}

// IsEnum reports whether ACC_ENUM is set on the class.
func (c *Class) IsEnum() bool {
	return c.AccessFlags&AccEnum != 0
}

// Field is a declared field. Attribute payloads are not retained.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
}

// Method is a declared method with its Code attribute, if present.
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *Code
}

// IsStatic reports whether ACC_STATIC is set on the method.
func (m *Method) IsStatic() bool {
	return m.AccessFlags&AccStatic != 0
}

// Code is a method's Code attribute.
type Code struct {
	MaxStack  int
	MaxLocals int
	Bytecode  []byte
	lines     []lineEntry // sorted by start PC
}

type lineEntry struct {
	startPC int
	line    int
}

// LineFor returns the source line covering pc, or 0 when the method
// carries no LineNumberTable.
func (c *Code) LineFor(pc int) int {
	line := 0
	for _, le := range c.lines {
		if le.startPC > pc {
			break
		}
		line = le.line
	}
	return line
}

// Parse reads one class file.
func Parse(r io.Reader) (*Class, error) {
	cr := &classReader{r: r}

	if magic := cr.u4(); cr.err == nil && magic != classMagic {
		return nil, fmt.Errorf("bad magic 0x%08X", magic)
	}
	cls := &Class{}
	cls.MinorVersion = int(cr.u2())
	cls.MajorVersion = int(cr.u2())

	pool, err := parseConstantPool(cr)
	if err != nil {
		return nil, err
	}
	cls.Pool = pool

	cls.AccessFlags = cr.u2()
	thisClass := int(cr.u2())
	superClass := int(cr.u2())
	if cr.err != nil {
		return nil, cr.err
	}
	if cls.Name, err = pool.ClassName(thisClass); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if superClass != 0 {
		if cls.SuperName, err = pool.ClassName(superClass); err != nil {
			return nil, fmt.Errorf("super_class: %w", err)
		}
	}

	ifaceCount := int(cr.u2())
	for i := 0; i < ifaceCount && cr.err == nil; i++ {
		name, err := pool.ClassName(int(cr.u2()))
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", i, err)
		}
		cls.Interfaces = append(cls.Interfaces, name)
	}

	fieldCount := int(cr.u2())
	for i := 0; i < fieldCount && cr.err == nil; i++ {
		f, err := parseField(cr, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		cls.Fields = append(cls.Fields, f)
	}

	methodCount := int(cr.u2())
	for i := 0; i < methodCount && cr.err == nil; i++ {
		m, err := parseMethod(cr, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		cls.Methods = append(cls.Methods, m)
	}

	attrCount := int(cr.u2())
	for i := 0; i < attrCount && cr.err == nil; i++ {
		name, data, err := parseAttribute(cr, pool)
		if err != nil {
			return nil, fmt.Errorf("class attribute %d: %w", i, err)
		}
		if name == "SourceFile" && len(data) >= 2 {
			idx := int(binary.BigEndian.Uint16(data))
			if sf, err := pool.UTF8(idx); err == nil {
				cls.SourceFile = sf
			}
		}
	}
	if cr.err != nil {
		return nil, cr.err
	}
	return cls, nil
}

func parseConstantPool(cr *classReader) (*ConstantPool, error) {
	count := int(cr.u2())
	if cr.err != nil {
		return nil, cr.err
	}
	if count < 1 {
		return nil, fmt.Errorf("constant pool count %d", count)
	}
	entries := make([]poolEntry, count)
	for i := 1; i < count; i++ {
		tag := cr.u1()
		if cr.err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, cr.err)
		}
		e := poolEntry{tag: tag}
		switch tag {
		case TagUtf8:
			length := int(cr.u2())
			e.str = string(cr.bytes(length))
		case TagInteger, TagFloat:
			e.bits = uint64(cr.u4())
		case TagLong, TagDouble:
			e.bits = uint64(cr.u4())<<32 | uint64(cr.u4())
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			e.idx1 = cr.u2()
		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			e.idx1 = cr.u2()
			e.idx2 = cr.u2()
		case TagMethodHandle:
			cr.u1()
			e.idx1 = cr.u2()
		default:
			return nil, fmt.Errorf("constant pool entry %d: unknown tag %d", i, tag)
		}
		if cr.err != nil {
			return nil, fmt.Errorf("constant pool entry %d: %w", i, cr.err)
		}
		entries[i] = e
		if tag == TagLong || tag == TagDouble {
			i++ // occupies two slots; the second stays unusable
		}
	}
	return &ConstantPool{entries: entries}, nil
}

func parseField(cr *classReader, pool *ConstantPool) (Field, error) {
	var f Field
	f.AccessFlags = cr.u2()
	nameIdx := int(cr.u2())
	descIdx := int(cr.u2())
	if cr.err != nil {
		return f, cr.err
	}
	var err error
	if f.Name, err = pool.UTF8(nameIdx); err != nil {
		return f, err
	}
	if f.Descriptor, err = pool.UTF8(descIdx); err != nil {
		return f, err
	}
	attrCount := int(cr.u2())
	for i := 0; i < attrCount; i++ {
		if _, _, err := parseAttribute(cr, pool); err != nil {
			return f, err
		}
	}
	return f, cr.err
}

func parseMethod(cr *classReader, pool *ConstantPool) (Method, error) {
	var m Method
	m.AccessFlags = cr.u2()
	nameIdx := int(cr.u2())
	descIdx := int(cr.u2())
	if cr.err != nil {
		return m, cr.err
	}
	var err error
	if m.Name, err = pool.UTF8(nameIdx); err != nil {
		return m, err
	}
	if m.Descriptor, err = pool.UTF8(descIdx); err != nil {
		return m, err
	}
	attrCount := int(cr.u2())
	for i := 0; i < attrCount; i++ {
		name, data, err := parseAttribute(cr, pool)
		if err != nil {
			return m, err
		}
		if name == "Code" {
			code, err := parseCode(data, pool)
			if err != nil {
				return m, fmt.Errorf("Code attribute: %w", err)
			}
			m.Code = code
		}
	}
	return m, cr.err
}

// parseAttribute reads one attribute, returning its resolved name and raw payload.
func parseAttribute(cr *classReader, pool *ConstantPool) (string, []byte, error) {
	nameIdx := int(cr.u2())
	length := int(cr.u4())
	if cr.err != nil {
		return "", nil, cr.err
	}
	name, err := pool.UTF8(nameIdx)
	if err != nil {
		return "", nil, err
	}
	data := cr.bytes(length)
	return name, data, cr.err
}

func parseCode(data []byte, pool *ConstantPool) (*Code, error) {
	cr := &classReader{buf: data}
	code := &Code{
		MaxStack:  int(cr.u2()),
		MaxLocals: int(cr.u2()),
	}
	codeLen := int(cr.u4())
	if cr.err != nil {
		return nil, cr.err
	}
	if codeLen > math.MaxInt32 {
		return nil, fmt.Errorf("code length %d", codeLen)
	}
	code.Bytecode = cr.bytes(codeLen)

	excCount := int(cr.u2())
	cr.bytes(excCount * 8) // exception table not modeled

	attrCount := int(cr.u2())
	for i := 0; i < attrCount && cr.err == nil; i++ {
		name, payload, err := parseAttribute(cr, pool)
		if err != nil {
			return nil, err
		}
		if name != "LineNumberTable" {
			continue
		}
		lcr := &classReader{buf: payload}
		n := int(lcr.u2())
		for j := 0; j < n && lcr.err == nil; j++ {
			code.lines = append(code.lines, lineEntry{
				startPC: int(lcr.u2()),
				line:    int(lcr.u2()),
			})
		}
	}
	sort.Slice(code.lines, func(i, j int) bool { return code.lines[i].startPC < code.lines[j].startPC })
	return code, cr.err
}

// classReader reads big-endian scalars from either a stream or a byte
// slice, latching the first error so callers can defer checks.
type classReader struct {
	r   io.Reader
	buf []byte
	err error
}

func (cr *classReader) bytes(n int) []byte {
	if cr.err != nil || n < 0 {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	if cr.r != nil {
		b := make([]byte, n)
		if _, err := io.ReadFull(cr.r, b); err != nil {
			cr.err = err
			return nil
		}
		return b
	}
	if len(cr.buf) < n {
		cr.err = io.ErrUnexpectedEOF
		return nil
	}
	b := cr.buf[:n]
	cr.buf = cr.buf[n:]
	return b
}

func (cr *classReader) u1() byte {
	b := cr.bytes(1)
	if cr.err != nil {
		return 0
	}
	return b[0]
}

func (cr *classReader) u2() uint16 {
	b := cr.bytes(2)
	if cr.err != nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (cr *classReader) u4() uint32 {
	b := cr.bytes(4)
	if cr.err != nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}
