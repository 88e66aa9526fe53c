package stacktrace

// lineKind tells what a parsed stack trace line holds
type lineKind int

const (
	kindOther lineKind = iota
	kindFrame
	kindException
)

// traceLine represents a single recognized line of a Java stack trace
type traceLine struct {
	// The raw original line from the stack trace
	Raw  string
	Kind lineKind
	// Leading whitespace, kept when the line is rewritten
	Indent string

	// Fully qualified class name, for frames and exception headers
	ClassName string

	// Method name (frames only)
	MethodName string
	// Source file as printed, e.g. "SourceFile" or "Foo.java"; empty if not available
	FileName string
	// Line number, nil if not available
	LineNumber *int
	// Whether the frame was printed as "(Native Method)"
	IsNative bool
	// Whether the frame was printed as "(Unknown Source)"
	IsUnknownSource bool
	// Module or class loader qualifier, e.g. "java.base/" (kept verbatim)
	Module string

	// Header prefix such as "Caused by: " (exception headers only)
	Prefix string
	// Exception message, nil if the header had none
	Message *string
}

// mappedLine represents a trace line with its deobfuscated information
type mappedLine struct {
	traceLine
	// Clear class name
	OriginalClassName *string
	// Clear method name
	OriginalMethodName *string
	// Clear source file name
	OriginalFileName *string
	// Clear line number
	OriginalLineNumber *int
	// Clear names the method may have been, when it could not be pinned down
	Candidates []string
	// Whether the line number could not be translated unambiguously
	Ambiguous bool
	// Whether anything on the line was deobfuscated
	Mapped bool
}
