package proguard

import (
	"fmt"
	"strings"
)

const arraySymbol = "[]"

// typeDesc is one node of a parsed proguard type: a primitive, an array,
// an object reference or a method signature.
type typeDesc interface {
	// descriptor renders the node in JVM internal form, e.g. "[Ljava/lang/String;".
	descriptor() string
}

type primitiveType byte

type arrayType struct {
	elem typeDesc
}

type objectType struct {
	name string // dotted, e.g. "java.lang.String"
}

type methodType struct {
	args []typeDesc
	ret  typeDesc
}

func (p primitiveType) descriptor() string { return string(p) }

func (a arrayType) descriptor() string { return "[" + a.elem.descriptor() }

func (o objectType) descriptor() string {
	return "L" + strings.ReplaceAll(o.name, ".", "/") + ";"
}

func (m methodType) descriptor() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, arg := range m.args {
		b.WriteString(arg.descriptor())
	}
	b.WriteByte(')')
	b.WriteString(m.ret.descriptor())
	return b.String()
}

var primitives = map[string]primitiveType{
	"boolean": 'Z',
	"byte":    'B',
	"char":    'C',
	"short":   'S',
	"int":     'I',
	"long":    'J',
	"float":   'F',
	"double":  'D',
	"void":    'V',
}

// parseProguardType parses a type as it is written in a mapping file:
// "int", "java.lang.String[][]" or "(int,java.lang.Object)boolean".
// Argument lists are split on commas; generic types are not supported.
func parseProguardType(sig string) (typeDesc, error) {
	if strings.HasPrefix(sig, "(") {
		end := strings.IndexByte(sig, ')')
		if end == -1 {
			return nil, fmt.Errorf("unterminated argument list in signature %q", sig)
		}

		m := methodType{}
		if end > 1 {
			for _, arg := range strings.Split(sig[1:end], ",") {
				t, err := parseProguardType(arg)
				if err != nil {
					return nil, err
				}
				m.args = append(m.args, t)
			}
		}

		ret, err := parseProguardType(sig[end+1:])
		if err != nil {
			return nil, err
		}
		m.ret = ret
		return m, nil
	}

	if strings.HasSuffix(sig, arraySymbol) {
		elem, err := parseProguardType(strings.TrimSuffix(sig, arraySymbol))
		if err != nil {
			return nil, err
		}
		return arrayType{elem: elem}, nil
	}

	if p, ok := primitives[sig]; ok {
		return p, nil
	}

	if sig == "" {
		return nil, fmt.Errorf("empty type name")
	}
	return objectType{name: sig}, nil
}

// fromProguardSignature converts a proguard-formatted signature into a JVM
// descriptor: "(int,boolean)void" becomes "(IZ)V".
func fromProguardSignature(sig string) (string, error) {
	t, err := parseProguardType(sig)
	if err != nil {
		return "", err
	}
	return t.descriptor(), nil
}

// clearSignature rewrites every class reference of a JVM descriptor through
// m.ClassName. Text that is not part of an "L...;" reference is copied as is.
func (m *Map) clearSignature(obfuscatedSig string) string {
	var b strings.Builder
	b.Grow(len(obfuscatedSig))

	for i := 0; i < len(obfuscatedSig); i++ {
		c := obfuscatedSig[i]
		if c != 'L' {
			b.WriteByte(c)
			continue
		}

		e := strings.IndexByte(obfuscatedSig[i:], ';')
		if e == -1 {
			b.WriteString(obfuscatedSig[i:])
			break
		}
		e += i

		cls := strings.ReplaceAll(obfuscatedSig[i+1:e], "/", ".")
		b.WriteByte('L')
		b.WriteString(strings.ReplaceAll(m.ClassName(cls), ".", "/"))
		b.WriteByte(';')
		i = e
	}

	return b.String()
}
