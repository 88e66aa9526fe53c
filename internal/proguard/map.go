// Package proguard reads Proguard/R8 mapping files and deobfuscates class
// names, field names and stack frames with them.
//
// A Map is assembled by a Builder and is read-only afterwards, so a single
// Map can serve any number of concurrent queries. Queries never fail: when
// the mapping has nothing to say about an identifier the identifier is
// returned unchanged.
package proguard

import (
	"slices"
	"strings"

	"github.com/emirpasic/gods/sets/hashset"
	"github.com/emirpasic/gods/sets/linkedhashset"
)

// Frame identifies a line of source code a stack frame refers to.
type Frame struct {
	// Method is the name of the method, e.g. "equals".
	Method string `json:"method"`
	// Signature is the JVM descriptor of the method, e.g. "(Ljava/lang/Object;)Z".
	Signature string `json:"signature"`
	// Filename is the source file holding the method, e.g. "Object.java".
	Filename string `json:"filename"`
	// Line is the source line within Filename.
	Line int `json:"line"`
}

// MethodMatch is the result of a lookup that has a method name but no signature.
type MethodMatch struct {
	Name string
	Line int
	// Ambiguous is set when the name resolved but the matching method lines
	// disagree on the clear line, so Line is still the obfuscated line.
	Ambiguous bool
	// Candidates lists the clear names when the obfuscated name maps to more
	// than one method.
	Candidates []string
}

type frameKey struct {
	obfuscatedMethod string
	clearSignature   string
}

type frameEntry struct {
	clearMethodName string
	lineDelta       int // obfuscatedLine - clearLine
}

type classEntry struct {
	clearName      string
	obfuscatedName string

	// obfuscated field name -> clear field name
	fields map[string]string

	frames map[frameKey]frameEntry

	// obfuscated method name -> every member line for it, in file order
	methods map[string][]methodRange
}

// methodRange is one method line with its line ranges. A line without an
// "N:M:" prefix has obfuscatedFirst and obfuscatedLast of 0 and matches any
// obfuscated line.
type methodRange struct {
	clearMethodName string
	obfuscatedFirst int
	obfuscatedLast  int
	clearFirst      int
	clearLast       int
}

// covers reports whether the obfuscated line falls into the range.
func (r methodRange) covers(obfuscatedLine int) bool {
	return obfuscatedLine == 0 || r.obfuscatedLast == 0 ||
		(r.obfuscatedFirst <= obfuscatedLine && obfuscatedLine <= r.obfuscatedLast)
}

// clearLine translates an obfuscated line inside the range. A range that
// collapses onto a single clear line, as inlined code does, maps every
// obfuscated line to it.
func (r methodRange) clearLine(obfuscatedLine int) int {
	if r.clearFirst == r.obfuscatedFirst {
		return obfuscatedLine
	}
	if r.clearLast != 0 && r.clearLast != r.clearFirst && r.obfuscatedFirst != 0 && obfuscatedLine != 0 {
		return r.clearFirst - r.obfuscatedFirst + obfuscatedLine
	}
	return r.clearFirst
}

func newClassEntry(clearName, obfuscatedName string) *classEntry {
	return &classEntry{
		clearName:      clearName,
		obfuscatedName: obfuscatedName,
		fields:         make(map[string]string),
		frames:         make(map[frameKey]frameEntry),
		methods:        make(map[string][]methodRange),
	}
}

func (c *classEntry) addField(obfuscatedName, clearName string) {
	c.fields[obfuscatedName] = clearName
}

// addFrame records a method line. The keyed frame keeps only the last line
// seen for a name and signature; the ranges keep all of them.
func (c *classEntry) addFrame(obfuscatedMethod, clearMethod, clearSignature string, r methodRange) {
	key := frameKey{obfuscatedMethod: obfuscatedMethod, clearSignature: clearSignature}
	c.frames[key] = frameEntry{
		clearMethodName: clearMethod,
		lineDelta:       r.obfuscatedFirst - r.clearFirst,
	}

	r.clearMethodName = clearMethod
	c.methods[obfuscatedMethod] = append(c.methods[obfuscatedMethod], r)
}

// Map is a frozen proguard mapping. The zero value is an empty mapping.
type Map struct {
	byClearName      map[string]*classEntry
	byObfuscatedName map[string]*classEntry
}

func newMap() *Map {
	return &Map{
		byClearName:      make(map[string]*classEntry),
		byObfuscatedName: make(map[string]*classEntry),
	}
}

// lookupOr returns the value stored under key, or fallback when there is none.
func lookupOr[K comparable, V any](m map[K]V, key K, fallback V) V {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

// Len returns the number of classes in the mapping.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.byClearName)
}

// Classes returns the clear names of all mapped classes, sorted.
func (m *Map) Classes() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.byClearName))
	for name := range m.byClearName {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ClassName returns the clear name of an obfuscated class. Trailing "[]"
// array markers are kept: "a[][]" becomes "com.example.Foo[][]".
func (m *Map) ClassName(obfuscated string) string {
	base := obfuscated
	suffix := ""
	for strings.HasSuffix(base, arraySymbol) {
		suffix += arraySymbol
		base = strings.TrimSuffix(base, arraySymbol)
	}

	name := base
	if m != nil {
		if entry := lookupOr(m.byObfuscatedName, base, nil); entry != nil {
			name = entry.clearName
		}
	}
	return name + suffix
}

// FieldName returns the clear name of an obfuscated field of the class with
// the given clear name.
func (m *Map) FieldName(clearClass, obfuscatedField string) string {
	if m == nil {
		return obfuscatedField
	}
	entry := lookupOr(m.byClearName, clearClass, nil)
	if entry == nil {
		return obfuscatedField
	}
	return lookupOr(entry.fields, obfuscatedField, obfuscatedField)
}

// Frame deobfuscates a stack frame of the class with the given clear name.
// The obfuscated signature is in JVM form; its class references are
// deobfuscated before the method lookup.
func (m *Map) Frame(clearClass, obfuscatedMethod, obfuscatedSignature, obfuscatedFilename string, obfuscatedLine int) Frame {
	signature := m.clearSignature(obfuscatedSignature)

	var entry *classEntry
	if m != nil {
		entry = lookupOr(m.byClearName, clearClass, nil)
	}
	if entry == nil {
		return Frame{
			Method:    obfuscatedMethod,
			Signature: signature,
			Filename:  obfuscatedFilename,
			Line:      obfuscatedLine,
		}
	}

	key := frameKey{obfuscatedMethod: obfuscatedMethod, clearSignature: signature}
	frame := lookupOr(entry.frames, key, frameEntry{clearMethodName: obfuscatedMethod})
	return Frame{
		Method:    frame.clearMethodName,
		Signature: signature,
		Filename:  SourceFileName(clearClass),
		Line:      obfuscatedLine - frame.lineDelta,
	}
}

// Method resolves an obfuscated method name without a signature, as found
// in a printed stack trace. Only method lines whose obfuscated line range
// covers obfuscatedLine are considered; a line of 0 matches every range.
// It reports false when the class is unknown, no method line matches or the
// matching lines belong to more than one clear method.
func (m *Map) Method(clearClass, obfuscatedMethod string, obfuscatedLine int) (MethodMatch, bool) {
	miss := MethodMatch{Name: obfuscatedMethod, Line: obfuscatedLine}
	if m == nil {
		return miss, false
	}
	entry := lookupOr(m.byClearName, clearClass, nil)
	if entry == nil {
		return miss, false
	}

	names := linkedhashset.New()
	lines := hashset.New()
	for _, r := range entry.methods[obfuscatedMethod] {
		if !r.covers(obfuscatedLine) {
			continue
		}
		names.Add(r.clearMethodName)
		lines.Add(r.clearLine(obfuscatedLine))
	}

	switch names.Size() {
	case 0:
		return miss, false
	case 1:
	default:
		for _, name := range names.Values() {
			miss.Candidates = append(miss.Candidates, name.(string))
		}
		return miss, false
	}

	match := MethodMatch{Name: names.Values()[0].(string), Line: obfuscatedLine}
	switch {
	case obfuscatedLine == 0:
	case lines.Size() == 1:
		match.Line = lines.Values()[0].(int)
	default:
		match.Ambiguous = true
	}
	return match, true
}

// SourceFileName guesses the source file of a class from its clear name:
// "com.example.Foo$Bar" lives in "Foo.java".
func SourceFileName(clearClass string) string {
	name := clearClass
	if dot := strings.LastIndexByte(name, '.'); dot != -1 {
		name = name[dot+1:]
	}
	if dollar := strings.IndexByte(name, '$'); dollar != -1 {
		name = name[:dollar]
	}
	return name + ".java"
}
