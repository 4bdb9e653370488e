// Package enumcollections detects sets and maps keyed exclusively by enum
// values. Such collections are better served by the enum-specialized
// EnumSet and EnumMap, which replace general hashing with a compact
// array-backed representation over the enum's fixed value domain.
package enumcollections

import (
	"strings"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
	"github.com/phermsdorf/fb-contrib/pkg/detect"
)

// Category is the finding category emitted by this detector.
const Category = "UEC_USE_ENUM_COLLECTIONS"

const (
	enumSetClass  = "java/util/EnumSet"
	enumMapClass  = "java/util/EnumMap"
	hashMapClass  = "java/util/HashMap"
	hashSetClass  = "java/util/HashSet"
	mapClass      = "java/util/Map"
	setClass      = "java/util/Set"
	javaUtil      = "java/util/"
	guavaMaps     = "com/google/common/collect/Maps"
	guavaSets     = "com/google/common/collect/Sets"
	constructor   = "<init>"
	sigEnumSetRet = ")Ljava/util/EnumSet;"

	sigMapPut = "(Ljava/lang/Object;Ljava/lang/Object;)Ljava/lang/Object;"
	sigSetAdd = "(Ljava/lang/Object;)Z"

	sigHashMap = "Ljava/util/HashMap;"
	sigHashSet = "Ljava/util/HashSet;"
)

// collectionKind classifies what a simulated value is known to hold.
// The zero value means no information; absence from the tag maps below
// is equivalent to kindUnknown.
type collectionKind int

const (
	kindUnknown collectionKind = iota
	kindRegular                // a general-purpose hash-based set or map
	kindSpecial                // some other concrete collection, not worth flagging
	kindEnum                   // already an enum-optimized collection
)

func (k collectionKind) String() string {
	switch k {
	case kindRegular:
		return "regular"
	case kindSpecial:
		return "special"
	case kindEnum:
		return "enum"
	default:
		return "unknown"
	}
}

// Detector flags put/add call sites on hash-based collections whose keys
// are enums implementing no interfaces. One instance analyzes one class.
type Detector struct {
	localTags     map[int]collectionKind    // local slot -> kind, reset per method
	fieldTags     map[string]collectionKind // field name -> kind, persists per class
	checkedFields map[string]struct{}       // fields already considered, persists per class
}

// New creates a detector for one class analysis.
func New() *Detector {
	return &Detector{}
}

// Factory adapts New to the framework's detector factory signature.
func Factory() detect.Detector {
	return New()
}

// Name implements detect.Detector.
func (d *Detector) Name() string {
	return "UseEnumCollections"
}

// BeginClass gates on the Java 5 class file version, the first with enums,
// and allocates fresh per-class state.
func (d *Detector) BeginClass(ctx *detect.Context) bool {
	if ctx.Class.MajorVersion < classfile.MajorJava5 {
		return false
	}
	d.localTags = make(map[int]collectionKind)
	d.fieldTags = make(map[string]collectionKind)
	d.checkedFields = make(map[string]struct{})
	return true
}

// BeginMethod implements detect.Detector. Field tags persist across
// methods because a field set in one method is consumed in another;
// local slot tags do not.
func (d *Detector) BeginMethod(*detect.Context) {
	clear(d.localTags)
}

// Instruction infers a collection kind for the instruction's result and
// judges put/add call sites. Exactly one rule applies per instruction;
// everything else stays unknown.
func (d *Detector) Instruction(ctx *detect.Context, in classfile.Instruction) detect.Step {
	kind := kindUnknown

	switch {
	case in.Op == classfile.OpInvokestatic:
		kind = d.sawStaticFactory(ctx, in)

	case in.Op == classfile.OpInvokespecial:
		kind = d.sawConstructor(ctx, in)

	case in.Op.IsAStore():
		d.sawLocalStore(ctx, in)

	case in.Op.IsALoad():
		kind = d.localTags[in.LocalIndex()]

	case in.Op == classfile.OpPutfield:
		d.sawFieldWrite(ctx, in)

	case in.Op == classfile.OpGetfield:
		if ref, err := ctx.Class.Pool.MemberRef(in.ConstIndex()); err == nil {
			kind = d.fieldTags[ref.Name]
		}

	case in.Op == classfile.OpInvokeinterface:
		if d.sawInterfaceCall(ctx, in) {
			return detect.Step{Stop: true}
		}
	}

	if kind == kindUnknown {
		return detect.Step{}
	}
	return detect.Step{Tag: kind}
}

// sawStaticFactory recognizes EnumSet factories and the Guava Maps/Sets
// construction helpers.
func (d *Detector) sawStaticFactory(ctx *detect.Context, in classfile.Instruction) collectionKind {
	ref, err := ctx.Class.Pool.MemberRef(in.ConstIndex())
	if err != nil {
		return kindUnknown
	}
	if ref.Class == enumSetClass && strings.HasSuffix(ref.Descriptor, sigEnumSetRet) {
		return kindEnum
	}
	if ref.Class == guavaMaps || ref.Class == guavaSets {
		switch {
		case strings.HasPrefix(ref.Name, "newEnum"):
			return kindEnum
		case strings.HasPrefix(ref.Name, "newHash"):
			return kindRegular
		default:
			return kindSpecial
		}
	}
	return kindUnknown
}

// sawConstructor recognizes construction of java.util map and set types.
func (d *Detector) sawConstructor(ctx *detect.Context, in classfile.Instruction) collectionKind {
	ref, err := ctx.Class.Pool.MemberRef(in.ConstIndex())
	if err != nil || ref.Name != constructor {
		return kindUnknown
	}
	if ref.Class == enumMapClass {
		return kindEnum
	}
	if strings.HasPrefix(ref.Class, javaUtil) &&
		(strings.HasSuffix(ref.Class, "Map") || strings.HasSuffix(ref.Class, "Set")) {
		if ref.Class == hashMapClass || ref.Class == hashSetClass {
			return kindRegular
		}
		return kindSpecial
	}
	return kindUnknown
}

// sawLocalStore moves the tag on the stored value into the local slot
// map. Storing an untagged value erases any stale tag for the slot.
func (d *Detector) sawLocalStore(ctx *detect.Context, in classfile.Instruction) {
	if ctx.Frame.Depth() == 0 {
		return
	}
	item, _ := ctx.Frame.Item(0)
	slot := in.LocalIndex()
	if kind, ok := item.UserValue().(collectionKind); ok {
		d.localTags[slot] = kind
	} else {
		delete(d.localTags, slot)
	}
}

// sawFieldWrite mirrors sawLocalStore keyed by field name.
func (d *Detector) sawFieldWrite(ctx *detect.Context, in classfile.Instruction) {
	if ctx.Frame.Depth() == 0 {
		return
	}
	ref, err := ctx.Class.Pool.MemberRef(in.ConstIndex())
	if err != nil {
		return
	}
	item, _ := ctx.Frame.Item(0)
	if kind, ok := item.UserValue().(collectionKind); ok {
		d.fieldTags[ref.Name] = kind
	} else {
		delete(d.fieldTags, ref.Name)
	}
}

// sawInterfaceCall judges Map.put and Set.add call sites. It returns true
// when a finding was emitted, which ends analysis of the method.
func (d *Detector) sawInterfaceCall(ctx *detect.Context, in classfile.Instruction) bool {
	ref, err := ctx.Class.Pool.MemberRef(in.ConstIndex())
	if err != nil {
		return false
	}

	bug := false
	switch {
	case ref.Class == mapClass && ref.Name == "put" && ref.Descriptor == sigMapPut:
		// put(key, value): key at offset 1, receiver at offset 2.
		bug = d.isEnumKey(ctx, 1) && d.couldBeEnumCollection(ctx, 2) && !d.alreadyReported(ctx, 2)
	case ref.Class == setClass && ref.Name == "add" && ref.Descriptor == sigSetAdd:
		// add(element): element on top, receiver at offset 1.
		bug = d.isEnumKey(ctx, 0) && d.couldBeEnumCollection(ctx, 1) && !d.alreadyReported(ctx, 1)
	}
	if !bug {
		return false
	}

	ctx.Reporter.Report(detect.Finding{
		Detector:         d.Name(),
		Category:         Category,
		Priority:         detect.PriorityNormal,
		ClassName:        ctx.Class.Name,
		MethodName:       ctx.Method.Name,
		MethodDescriptor: ctx.Method.Descriptor,
		SourceFile:       ctx.Class.SourceFile,
		Line:             ctx.Method.Code.LineFor(ctx.PC),
		PC:               ctx.PC,
	})
	return true
}

// isEnumKey reports whether the stack item at pos is an enum that
// implements no interfaces. An enum implementing an interface may be
// stored in a collection keyed by that interface's contract, where the
// enum-specialized collection would not apply, so those are skipped.
// Resolution failures are surfaced to the sink and treated as non-matches.
func (d *Detector) isEnumKey(ctx *detect.Context, pos int) bool {
	item, ok := ctx.Frame.Item(pos)
	if !ok {
		return false
	}
	name := classfile.SignatureClassName(item.Signature())
	if name == "" {
		return false
	}
	cls, err := ctx.Repo.Lookup(name)
	if err != nil {
		ctx.Reporter.ReportMissingClass(name, err)
		return false
	}
	return cls.IsEnum() && len(cls.Interfaces) == 0
}

// couldBeEnumCollection reports whether the receiver at pos is a known
// general-purpose hash-based collection: by attached tag when present,
// otherwise by its declared concrete type.
func (d *Detector) couldBeEnumCollection(ctx *detect.Context, pos int) bool {
	item, ok := ctx.Frame.Item(pos)
	if !ok {
		return false
	}
	if kind, ok := item.UserValue().(collectionKind); ok {
		return kind == kindRegular
	}
	sig := item.Signature()
	return sig == sigHashSet || sig == sigHashMap
}

// alreadyReported suppresses repeat findings against the same backing
// field anywhere in the class. Receivers that do not resolve to a field
// never block a finding. The field is recorded even when the current call
// is not itself flagged, so any later call against it stays suppressed.
func (d *Detector) alreadyReported(ctx *detect.Context, pos int) bool {
	item, ok := ctx.Frame.Item(pos)
	if !ok {
		return false
	}
	fieldName := item.Field()
	if fieldName == "" {
		return false
	}
	_, checked := d.checkedFields[fieldName]
	d.checkedFields[fieldName] = struct{}{}
	return checked
}
