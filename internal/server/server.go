package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/unproguard-mcp/internal/proguard"
	"github.com/yousuf/unproguard-mcp/internal/registry"
	"github.com/yousuf/unproguard-mcp/internal/stacktrace"
)

// ClassNameArgs represents the arguments for the deobfuscate_class tool
type ClassNameArgs struct {
	Mapping string `json:"mapping,omitempty" jsonschema:"Name of the configured mapping to use. Uses the default mapping when empty."`
	Name    string `json:"name" jsonschema:"Obfuscated class name, e.g. 'a.b' or 'a.b[][]'"`
}

// NameResult is returned by the class and field tools
type NameResult struct {
	Name   string `json:"name"`
	Mapped bool   `json:"mapped"`
}

// FieldNameArgs represents the arguments for the deobfuscate_field tool
type FieldNameArgs struct {
	Mapping string `json:"mapping,omitempty" jsonschema:"Name of the configured mapping to use. Uses the default mapping when empty."`
	Class   string `json:"class" jsonschema:"Clear (already deobfuscated) name of the class declaring the field"`
	Field   string `json:"field" jsonschema:"Obfuscated field name"`
}

// FrameArgs represents the arguments for the deobfuscate_frame tool
type FrameArgs struct {
	Mapping   string `json:"mapping,omitempty" jsonschema:"Name of the configured mapping to use. Uses the default mapping when empty."`
	Class     string `json:"class" jsonschema:"Clear (already deobfuscated) name of the class declaring the method"`
	Method    string `json:"method" jsonschema:"Obfuscated method name"`
	Signature string `json:"signature" jsonschema:"Obfuscated JVM method descriptor, e.g. '(La;I)V'"`
	File      string `json:"file,omitempty" jsonschema:"Source file name as reported by the runtime, e.g. 'SourceFile'"`
	Line      int    `json:"line,omitempty" jsonschema:"Obfuscated line number"`
}

// RetraceArgs represents the arguments for the retrace_stack tool
type RetraceArgs struct {
	Mapping string `json:"mapping,omitempty" jsonschema:"Name of the configured mapping to use. Uses the default mapping when empty."`
	Stack   string `json:"stack" jsonschema:"Java stack trace as printed by Throwable.printStackTrace"`
	Debug   bool   `json:"debug,omitempty" jsonschema:"Append the mapping status to every frame (default: false)"`
}

// ListMappingsArgs represents the arguments for the list_mappings tool
type ListMappingsArgs struct{}

// ListMappingsResult is returned by the list_mappings tool
type ListMappingsResult struct {
	Mappings []registry.MappingInfo `json:"mappings"`
}

// ReloadMappingArgs represents the arguments for the reload_mapping tool
type ReloadMappingArgs struct {
	Mapping string `json:"mapping,omitempty" jsonschema:"Name of the configured mapping to reload. Uses the default mapping when empty."`
}

// ReloadMappingResult is returned by the reload_mapping tool
type ReloadMappingResult struct {
	Mapping string `json:"mapping"`
	Classes int    `json:"classes"`
}

// NewMCPServer creates and configures the MCP server
func NewMCPServer(mappings *registry.Manager) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "unproguard-mcp",
		Version: "1.0.0",
	}, &mcp.ServerOptions{
		Instructions: `
Proguard/R8 Deobfuscation

unproguard translates names from an obfuscated Android/Java build back to the
original source names, using the mapping files written by proguard's
-printmapping option (mapping.txt).

Available Tools:
1. "list_mappings" - List the configured mappings and whether they are loaded
2. "retrace_stack" - Deobfuscate a complete Java stack trace
3. "deobfuscate_class" - Deobfuscate a single class name
4. "deobfuscate_field" - Deobfuscate a field of a (clear) class
5. "deobfuscate_frame" - Deobfuscate a method, JVM signature and line number
6. "reload_mapping" - Re-read a mapping after its files changed

Recommended Workflow:
1. Call list_mappings to see which mappings exist and which one is the default
2. For crash reports, pass the whole trace to retrace_stack
3. For heap dumps or profiles, deobfuscate the class first, then use its clear
   name to deobfuscate fields and frames

Notes:
- Names that are not in the mapping are returned unchanged
- Field and frame lookups take the CLEAR class name, not the obfuscated one
- Signatures use JVM descriptor syntax, e.g. "(Ljava/lang/Object;)Z"
`,
	})

	server.AddReceivingMiddleware(createLoggingMiddleware())

	// Register deobfuscate_class tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "deobfuscate_class",
		Description: "Deobfuscate a class name. Array suffixes ('[]') are preserved. Unknown names are returned unchanged.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ClassNameArgs) (*mcp.CallToolResult, NameResult, error) {
		mapping, err := mappings.Get(ctx, args.Mapping)
		if err != nil {
			return nil, NameResult{}, err
		}

		name := mapping.ClassName(args.Name)
		out := NameResult{Name: name, Mapped: name != args.Name}
		res, err := jsonResult(out)
		return res, out, err
	})

	// Register deobfuscate_field tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "deobfuscate_field",
		Description: "Deobfuscate a field name of the class with the given clear name. Unknown fields are returned unchanged.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FieldNameArgs) (*mcp.CallToolResult, NameResult, error) {
		mapping, err := mappings.Get(ctx, args.Mapping)
		if err != nil {
			return nil, NameResult{}, err
		}

		name := mapping.FieldName(args.Class, args.Field)
		out := NameResult{Name: name, Mapped: name != args.Field}
		res, err := jsonResult(out)
		return res, out, err
	})

	// Register deobfuscate_frame tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "deobfuscate_frame",
		Description: "Deobfuscate a stack frame: method name, JVM signature, source file and line of the class with the given clear name.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args FrameArgs) (*mcp.CallToolResult, proguard.Frame, error) {
		mapping, err := mappings.Get(ctx, args.Mapping)
		if err != nil {
			return nil, proguard.Frame{}, err
		}

		out := mapping.Frame(args.Class, args.Method, args.Signature, args.File, args.Line)
		res, err := jsonResult(out)
		return res, out, err
	})

	// Register retrace_stack tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrace_stack",
		Description: "Deobfuscate a Java stack trace. Frames and exception class names are rewritten; other lines are kept as they are.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args RetraceArgs) (*mcp.CallToolResult, stacktrace.Result, error) {
		mapping, err := mappings.Get(ctx, args.Mapping)
		if err != nil {
			return nil, stacktrace.Result{}, err
		}

		out := stacktrace.Retrace(mapping, args.Stack, args.Debug)
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: out.Text},
			},
		}, out, nil
	})

	// Register list_mappings tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_mappings",
		Description: "List the configured mappings, their files, and whether they are loaded.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ListMappingsArgs) (*mcp.CallToolResult, ListMappingsResult, error) {
		out := ListMappingsResult{Mappings: mappings.List()}
		res, err := jsonResult(out)
		return res, out, err
	})

	// Register reload_mapping tool
	mcp.AddTool(server, &mcp.Tool{
		Name:        "reload_mapping",
		Description: "Re-read the files of a mapping. The previous copy stays in use if reading fails.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ReloadMappingArgs) (*mcp.CallToolResult, ReloadMappingResult, error) {
		mapping, err := mappings.Reload(ctx, args.Mapping)
		if err != nil {
			return nil, ReloadMappingResult{}, fmt.Errorf("reload failed: %w", err)
		}

		name := args.Mapping
		if name == "" {
			name = mappings.Default()
		}
		out := ReloadMappingResult{Mapping: name, Classes: mapping.Len()}
		res, err := jsonResult(out)
		return res, out, err
	})

	return server
}

// jsonResult wraps v as the text content of a tool result
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil
}
