package classfile

import "fmt"

// Constant pool entry tags from the class file specification.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
	TagModule             = 19
	TagPackage            = 20
)

// poolEntry is a single raw constant pool record. Only the fields relevant
// to the entry's tag are populated.
type poolEntry struct {
	tag  byte
	idx1 uint16 // class index, name index, or high-level reference
	idx2 uint16 // name-and-type index or descriptor index
	str  string // utf8 payload
	bits uint64 // numeric payload for Integer/Float/Long/Double
}

// ConstantPool holds the parsed constant pool of one class. Indexes are
// 1-based as in the class file format; Long and Double entries occupy two
// consecutive slots.
type ConstantPool struct {
	entries []poolEntry
}

// MemberRef is a decoded Fieldref, Methodref, or InterfaceMethodref entry.
type MemberRef struct {
	Class      string // slashed owner class name
	Name       string // member name
	Descriptor string // field or method descriptor
}

func (cp *ConstantPool) entry(index int) (poolEntry, error) {
	if index < 1 || index >= len(cp.entries) {
		return poolEntry{}, fmt.Errorf("constant pool index %d out of range (size %d)", index, len(cp.entries))
	}
	e := cp.entries[index]
	if e.tag == 0 {
		return poolEntry{}, fmt.Errorf("constant pool index %d references an unusable slot", index)
	}
	return e, nil
}

// Tag returns the tag byte of the entry at index.
func (cp *ConstantPool) Tag(index int) (byte, error) {
	e, err := cp.entry(index)
	if err != nil {
		return 0, err
	}
	return e.tag, nil
}

// UTF8 returns the string payload of a Utf8 entry.
func (cp *ConstantPool) UTF8(index int) (string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", err
	}
	if e.tag != TagUtf8 {
		return "", fmt.Errorf("constant pool index %d: want Utf8, got tag %d", index, e.tag)
	}
	return e.str, nil
}

// ClassName resolves a Class entry to its slashed binary name.
func (cp *ConstantPool) ClassName(index int) (string, error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", err
	}
	if e.tag != TagClass {
		return "", fmt.Errorf("constant pool index %d: want Class, got tag %d", index, e.tag)
	}
	return cp.UTF8(int(e.idx1))
}

// MemberRef resolves a Fieldref, Methodref, or InterfaceMethodref entry.
func (cp *ConstantPool) MemberRef(index int) (MemberRef, error) {
	e, err := cp.entry(index)
	if err != nil {
		return MemberRef{}, err
	}
	if e.tag != TagFieldref && e.tag != TagMethodref && e.tag != TagInterfaceMethodref {
		return MemberRef{}, fmt.Errorf("constant pool index %d: want member reference, got tag %d", index, e.tag)
	}
	cls, err := cp.ClassName(int(e.idx1))
	if err != nil {
		return MemberRef{}, err
	}
	name, desc, err := cp.nameAndType(int(e.idx2))
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Class: cls, Name: name, Descriptor: desc}, nil
}

// InvokeDynamicRef resolves a Dynamic or InvokeDynamic entry to the
// referenced name and descriptor. The bootstrap method is not resolved.
func (cp *ConstantPool) InvokeDynamicRef(index int) (name, descriptor string, err error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", "", err
	}
	if e.tag != TagDynamic && e.tag != TagInvokeDynamic {
		return "", "", fmt.Errorf("constant pool index %d: want dynamic reference, got tag %d", index, e.tag)
	}
	return cp.nameAndType(int(e.idx2))
}

func (cp *ConstantPool) nameAndType(index int) (name, descriptor string, err error) {
	e, err := cp.entry(index)
	if err != nil {
		return "", "", err
	}
	if e.tag != TagNameAndType {
		return "", "", fmt.Errorf("constant pool index %d: want NameAndType, got tag %d", index, e.tag)
	}
	if name, err = cp.UTF8(int(e.idx1)); err != nil {
		return "", "", err
	}
	if descriptor, err = cp.UTF8(int(e.idx2)); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}
