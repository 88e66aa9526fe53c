package proguard

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	memberIndent = "    "
	nameSep      = " -> "

	maxLineSize = 1 << 20
)

// Builder accumulates mapping information from one or more sources and
// freezes it into a Map. A Builder is not safe for concurrent use.
type Builder struct {
	m *Map
}

// NewBuilder creates a Builder holding an empty mapping.
func NewBuilder() *Builder {
	return &Builder{m: newMap()}
}

// ReadFile adds the mapping in the file at path, as written by proguard's
// -printmapping option. Errors opening or reading the file are returned as is.
func (b *Builder) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return b.ReadFrom(f)
}

// ReadFrom adds the mapping read from r. A malformed line stops the read
// with a *ParseError; classes read before it stay in the mapping.
func (b *Builder) ReadFrom(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	p := &mappingParser{m: b.m}
	for scanner.Scan() {
		p.lineNo++
		if err := p.parseLine(scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Merge adds every class of other to the mapping being built. A class
// already present under the same clear or obfuscated name is replaced.
func (b *Builder) Merge(other *Map) {
	if other == nil {
		return
	}
	for _, entry := range other.byClearName {
		b.m.put(entry)
	}
}

// Build returns the mapping read so far and resets the Builder to empty.
func (b *Builder) Build() *Map {
	m := b.m
	b.m = newMap()
	return m
}

// put indexes entry under both of its names, evicting any entry that is
// displaced from only one of the two indexes.
func (m *Map) put(entry *classEntry) {
	if old, ok := m.byClearName[entry.clearName]; ok && old.obfuscatedName != entry.obfuscatedName {
		if m.byObfuscatedName[old.obfuscatedName] == old {
			delete(m.byObfuscatedName, old.obfuscatedName)
		}
	}
	if old, ok := m.byObfuscatedName[entry.obfuscatedName]; ok && old.clearName != entry.clearName {
		if m.byClearName[old.clearName] == old {
			delete(m.byClearName, old.clearName)
		}
	}
	m.byClearName[entry.clearName] = entry
	m.byObfuscatedName[entry.obfuscatedName] = entry
}

type mappingParser struct {
	m      *Map
	cur    *classEntry
	lineNo int
}

func (p *mappingParser) fail(line, msg string) error {
	return &ParseError{Line: p.lineNo, Text: line, Msg: msg}
}

func (p *mappingParser) parseLine(line string) error {
	if strings.HasPrefix(strings.TrimSpace(line), "#") {
		return nil
	}
	if strings.HasPrefix(line, memberIndent) {
		if p.cur == nil {
			return p.fail(line, "member line outside of a class block")
		}
		return p.parseMember(line)
	}
	return p.parseClass(line)
}

// parseClass handles 'clear.class.name -> obfuscated_class_name:'.
func (p *mappingParser) parseClass(line string) error {
	sep := strings.Index(line, nameSep)
	if sep == -1 || sep+len(nameSep)+1 >= len(line) || !strings.HasSuffix(line, ":") {
		p.cur = nil
		return p.fail(line, "error parsing class line")
	}

	clearName := line[:sep]
	obfuscatedName := line[sep+len(nameSep) : len(line)-1]

	p.cur = newClassEntry(clearName, obfuscatedName)
	p.m.put(p.cur)
	return nil
}

// parseMember handles '    type clearName -> obfuscatedName'.
func (p *mappingParser) parseMember(line string) error {
	trimmed := strings.TrimSpace(line)
	ws := strings.IndexByte(trimmed, ' ')
	sep := strings.Index(trimmed, nameSep)
	if ws == -1 || sep == -1 || ws >= sep {
		return p.fail(line, "error parsing field/method line")
	}

	typ := trimmed[:ws]
	clearName := trimmed[ws+1 : sep]
	obfuscatedName := trimmed[sep+len(nameSep):]

	if !strings.Contains(clearName, "(") {
		p.cur.addField(obfuscatedName, clearName)
		return nil
	}

	// For methods the type is of the form [#:[#:]]<returnType>.
	var r methodRange
	if colon := strings.IndexByte(typ, ':'); colon != -1 {
		n, err := strconv.Atoi(typ[:colon])
		if err != nil {
			return p.fail(line, "invalid obfuscated line number")
		}
		r.obfuscatedFirst, r.obfuscatedLast = n, n
		typ = typ[colon+1:]
	}
	if colon := strings.IndexByte(typ, ':'); colon != -1 {
		if n, err := strconv.Atoi(typ[:colon]); err == nil {
			r.obfuscatedLast = n
		}
		typ = typ[colon+1:]
	}

	// The clear name is of the form <name><sig>[:#[:#]].
	op := strings.IndexByte(clearName, '(')
	cp := strings.IndexByte(clearName, ')')
	if op == -1 || cp == -1 || cp < op {
		return p.fail(line, "error parsing method line")
	}
	sig := clearName[op : cp+1]

	r.clearFirst = r.obfuscatedFirst
	for i := range 2 {
		colon := strings.LastIndexByte(clearName, ':')
		if colon <= cp {
			break
		}
		n, err := strconv.Atoi(clearName[colon+1:])
		if err != nil {
			return p.fail(line, "invalid clear line number")
		}
		if i == 0 {
			r.clearLast = n
		}
		r.clearFirst = n
		clearName = clearName[:colon]
	}
	clearName = clearName[:op]

	clearSig, err := fromProguardSignature(sig + typ)
	if err != nil {
		return p.fail(line, err.Error())
	}
	p.cur.addFrame(obfuscatedName, clearName, clearSig, r)
	return nil
}
