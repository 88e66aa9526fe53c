package stacktrace

import (
	"fmt"
	"strings"
)

// formatter formats mapped lines back into readable stack trace format
type formatter struct{}

// newFormatter creates a new formatter
func newFormatter() *formatter {
	return &formatter{}
}

// FormatLine formats a single mapped line
func (f *formatter) FormatLine(line mappedLine) string {
	// If nothing was mapped, return the original line
	if !line.Mapped {
		return line.Raw
	}

	className := line.ClassName
	if line.OriginalClassName != nil {
		className = *line.OriginalClassName
	}

	if line.Kind == kindException {
		if line.Message == nil {
			return fmt.Sprintf("%s%s%s", line.Indent, line.Prefix, className)
		}
		return fmt.Sprintf("%s%s%s: %s", line.Indent, line.Prefix, className, *line.Message)
	}

	methodName := line.MethodName
	if line.OriginalMethodName != nil {
		methodName = *line.OriginalMethodName
	}

	// Format: at class.method(location)
	return fmt.Sprintf("%sat %s%s.%s(%s)", line.Indent, line.Module, className, methodName, f.location(line))
}

// location renders the text between the parentheses of a frame
func (f *formatter) location(line mappedLine) string {
	if line.IsNative {
		return "Native Method"
	}

	fileName := line.FileName
	if line.OriginalFileName != nil {
		fileName = *line.OriginalFileName
	}
	if fileName == "" {
		return "Unknown Source"
	}

	lineNumber := line.LineNumber
	if line.OriginalLineNumber != nil {
		lineNumber = line.OriginalLineNumber
	}
	if lineNumber == nil {
		return fileName
	}
	return fmt.Sprintf("%s:%d", fileName, *lineNumber)
}

// FormatStackTrace formats mapped lines into a complete stack trace
func (f *formatter) FormatStackTrace(lines []mappedLine) string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = f.FormatLine(line)
	}
	return strings.Join(out, "\n")
}

// FormatWithMetadata formats with the mapping status of every recognized line (for debugging)
func (f *formatter) FormatWithMetadata(lines []mappedLine) string {
	out := make([]string, len(lines))
	for i, line := range lines {
		formatted := f.FormatLine(line)
		if line.Kind == kindOther {
			out[i] = formatted
			continue
		}

		status := "✗ unmapped"
		switch {
		case len(line.Candidates) > 0:
			status = fmt.Sprintf("? ambiguous (%s)", strings.Join(line.Candidates, "|"))
		case line.Ambiguous:
			status = "✓ mapped, line ambiguous"
		case line.Mapped:
			status = "✓ mapped"
		}
		out[i] = fmt.Sprintf("%s %s", formatted, status)
	}
	return strings.Join(out, "\n")
}
