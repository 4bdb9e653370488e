package classfile

import (
	"fmt"
	"strings"
)

// MethodSig is a parsed method descriptor: one signature string per
// parameter plus the return type signature ("V" for void).
type MethodSig struct {
	Params []string
	Return string
}

// ParseMethodDescriptor parses a descriptor such as
// "(Ljava/lang/Object;I)Z" into its parameter and return signatures.
func ParseMethodDescriptor(descriptor string) (MethodSig, error) {
	if !strings.HasPrefix(descriptor, "(") {
		return MethodSig{}, fmt.Errorf("method descriptor %q: missing parameter list", descriptor)
	}
	rest := descriptor[1:]
	var sig MethodSig
	for !strings.HasPrefix(rest, ")") {
		if rest == "" {
			return MethodSig{}, fmt.Errorf("method descriptor %q: unterminated parameter list", descriptor)
		}
		param, tail, err := nextFieldType(rest)
		if err != nil {
			return MethodSig{}, fmt.Errorf("method descriptor %q: %w", descriptor, err)
		}
		sig.Params = append(sig.Params, param)
		rest = tail
	}
	ret := rest[1:]
	if ret == "V" {
		sig.Return = "V"
		return sig, nil
	}
	retSig, tail, err := nextFieldType(ret)
	if err != nil || tail != "" {
		return MethodSig{}, fmt.Errorf("method descriptor %q: bad return type", descriptor)
	}
	sig.Return = retSig
	return sig, nil
}

// nextFieldType consumes one field type signature from the front of s.
func nextFieldType(s string) (sig, rest string, err error) {
	if s == "" {
		return "", "", fmt.Errorf("empty type signature")
	}
	switch s[0] {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		return s[:1], s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return "", "", fmt.Errorf("unterminated object signature %q", s)
		}
		return s[:end+1], s[end+1:], nil
	case '[':
		elem, rest, err := nextFieldType(s[1:])
		if err != nil {
			return "", "", err
		}
		return "[" + elem, rest, nil
	default:
		return "", "", fmt.Errorf("unknown type signature %q", s)
	}
}

// SignatureClassName converts an object type signature such as
// "Ljava/util/Map;" to the slashed class name "java/util/Map".
// It returns "" when the signature does not denote an object type.
func SignatureClassName(sig string) string {
	if len(sig) < 3 || sig[0] != 'L' || sig[len(sig)-1] != ';' {
		return ""
	}
	return sig[1 : len(sig)-1]
}

// ClassSignature converts a slashed class name to its object type signature.
func ClassSignature(name string) string {
	return "L" + name + ";"
}
