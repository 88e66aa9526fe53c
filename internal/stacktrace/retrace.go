// Package stacktrace rewrites printed Java stack traces of an obfuscated
// application back into their original class names, methods and lines.
package stacktrace

import (
	"github.com/yousuf/unproguard-mcp/internal/proguard"
)

// Deobfuscator answers the lookups needed to retrace a stack trace.
// *proguard.Map implements it.
type Deobfuscator interface {
	ClassName(obfuscated string) string
	Method(clearClass, obfuscatedMethod string, obfuscatedLine int) (proguard.MethodMatch, bool)
}

// Result is a retraced stack trace.
type Result struct {
	Text string `json:"text"`
	// Frames is the number of "at" lines found in the input.
	Frames int `json:"frames"`
	// Mapped is the number of frames and exception headers that changed.
	Mapped int `json:"mapped"`
	// Ambiguous is the number of frames whose method or line could not be
	// pinned down.
	Ambiguous int `json:"ambiguous"`
}

// Retrace deobfuscates every frame and exception header of stack. Lines it
// does not recognize are copied unchanged. With debug set each recognized
// line is suffixed with its mapping status.
func Retrace(d Deobfuscator, stack string, debug bool) Result {
	parser := newStackParser()
	raw, parsed := parser.ParseStackTrace(stack)

	mapped := make([]mappedLine, len(raw))
	var res Result
	for i, line := range parsed {
		if line == nil {
			mapped[i] = mappedLine{traceLine: traceLine{Raw: raw[i], Kind: kindOther}}
			continue
		}

		mapped[i] = mapLine(d, *line)
		if line.Kind == kindFrame {
			res.Frames++
		}
		if mapped[i].Mapped {
			res.Mapped++
		}
		if mapped[i].Ambiguous {
			res.Ambiguous++
		}
	}

	f := newFormatter()
	if debug {
		res.Text = f.FormatWithMetadata(mapped)
	} else {
		res.Text = f.FormatStackTrace(mapped)
	}
	return res
}

// mapLine maps a single frame or exception header to its clear names
func mapLine(d Deobfuscator, line traceLine) mappedLine {
	out := mappedLine{traceLine: line}

	clearClass := d.ClassName(line.ClassName)
	if clearClass != line.ClassName {
		out.OriginalClassName = &clearClass
		out.Mapped = true
	}

	if line.Kind != kindFrame {
		return out
	}

	obfuscatedLine := 0
	if line.LineNumber != nil {
		obfuscatedLine = *line.LineNumber
	}

	match, ok := d.Method(clearClass, line.MethodName, obfuscatedLine)
	switch {
	case ok:
		name := match.Name
		out.OriginalMethodName = &name
		out.Mapped = true
		out.Ambiguous = match.Ambiguous
		if line.LineNumber != nil && !match.Ambiguous {
			clearLine := match.Line
			out.OriginalLineNumber = &clearLine
		}
	case len(match.Candidates) > 0:
		out.Candidates = match.Candidates
		out.Ambiguous = true
	}

	// The clear file name only goes next to a clear line, or where there was
	// no line to begin with.
	if out.Mapped && !line.IsNative && !line.IsUnknownSource &&
		(line.LineNumber == nil || out.OriginalLineNumber != nil) {
		fileName := proguard.SourceFileName(clearClass)
		out.OriginalFileName = &fileName
	}

	return out
}
