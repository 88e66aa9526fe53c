package stacktrace

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// at [module/]pkg.Class.method(location)
	// Example: at a.b.c(SourceFile:12)
	framePattern = regexp.MustCompile(`^(\s*)at\s+((?:[^\s/()]*/)*)([^\s/()]+)\.([^\s.()]+)\(([^()]*)\)\s*$`)

	// [Exception in thread "main" |Caused by: |Suppressed: ]pkg.Class[: message]
	// Example: Caused by: a.b: boom
	exceptionPattern = regexp.MustCompile(`^(\s*)((?:Exception in thread "[^"]*" )|(?:Caused by: )|(?:Suppressed: ))?([A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*)(?:(: ?)(.*))?$`)
)

// stackParser parses Java stack traces into structured traceLine objects
type stackParser struct{}

// newStackParser creates a new stack parser
func newStackParser() *stackParser {
	return &stackParser{}
}

// ParseStackTrace parses a full stack trace. Lines that are not recognized
// are returned as nil entries so callers can copy them through unchanged.
func (p *stackParser) ParseStackTrace(stackTrace string) ([]string, []*traceLine) {
	lines := strings.Split(stackTrace, "\n")
	parsed := make([]*traceLine, len(lines))

	for i, line := range lines {
		parsed[i] = p.ParseStackLine(line)
	}

	return lines, parsed
}

// ParseStackLine parses a single line from a stack trace
// Handles formats like:
// - at pkg.Class.method(File.java:12)
// - at pkg.Class.method(SourceFile)
// - at pkg.Class.method(Unknown Source)
// - at pkg.Class.method(Native Method)
// - at java.base/java.lang.Thread.run(Thread.java:833)
// - pkg.SomeException: message
// - Caused by: pkg.SomeException: message
func (p *stackParser) ParseStackLine(line string) *traceLine {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" {
		return nil
	}

	if matches := framePattern.FindStringSubmatch(line); matches != nil {
		frame := &traceLine{
			Raw:        line,
			Kind:       kindFrame,
			Indent:     matches[1],
			Module:     matches[2],
			ClassName:  matches[3],
			MethodName: matches[4],
		}
		parseLocation(frame, matches[5])
		return frame
	}

	matches := exceptionPattern.FindStringSubmatch(line)
	if matches == nil {
		return nil
	}

	// A bare word such as "at" or "null" is not an exception header; a class
	// name without a package is only trusted after an explicit prefix.
	if matches[2] == "" && !strings.Contains(matches[3], ".") {
		return nil
	}

	header := &traceLine{
		Raw:       line,
		Kind:      kindException,
		Indent:    matches[1],
		Prefix:    matches[2],
		ClassName: matches[3],
	}
	if matches[4] != "" {
		msg := matches[5]
		header.Message = &msg
	}
	return header
}

// parseLocation fills in the file and line of a frame from the text between
// its parentheses.
func parseLocation(frame *traceLine, location string) {
	switch location {
	case "Native Method":
		frame.IsNative = true
		return
	case "Unknown Source", "":
		frame.IsUnknownSource = true
		return
	}

	if colon := strings.LastIndexByte(location, ':'); colon != -1 {
		if n, err := strconv.Atoi(location[colon+1:]); err == nil {
			frame.FileName = location[:colon]
			frame.LineNumber = &n
			return
		}
	}
	frame.FileName = location
}
