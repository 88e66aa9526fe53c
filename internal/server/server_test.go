package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/yousuf/unproguard-mcp/internal/config"
	"github.com/yousuf/unproguard-mcp/internal/proguard"
	"github.com/yousuf/unproguard-mcp/internal/registry"
)

const testMapping = `com.example.Foo -> a:
    int count -> a
    5:7:void bar(int):20:22 -> d
com.example.Bar -> b:
    void run() -> a
`

// connect starts the server over an in-memory transport and returns a client session
func connect(t *testing.T) (*mcp.ClientSession, string) {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.txt")
	if err := os.WriteFile(path, []byte(testMapping), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.FromFiles("app", []string{path})
	if err != nil {
		t.Fatal(err)
	}
	srv := NewMCPServer(registry.NewManager(cfg))

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	clientSession, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { clientSession.Close() })

	return clientSession, dir
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("got %d content items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *mcp.TextContent", res.Content[0])
	}
	return text.Text
}

func decodeResult[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	if res.IsError {
		t.Fatalf("tool failed: %s", resultText(t, res))
	}
	var out T
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return out
}

func TestListTools(t *testing.T) {
	session, _ := connect(t)

	res, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	var got []string
	for _, tool := range res.Tools {
		got = append(got, tool.Name)
	}
	want := []string{
		"deobfuscate_class",
		"deobfuscate_field",
		"deobfuscate_frame",
		"list_mappings",
		"reload_mapping",
		"retrace_stack",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tools: (-want, +got)\n%s", diff)
	}
}

func TestDeobfuscateClass(t *testing.T) {
	session, _ := connect(t)

	tests := []struct {
		Name string
		Want NameResult
	}{
		{"a", NameResult{Name: "com.example.Foo", Mapped: true}},
		{"b[][]", NameResult{Name: "com.example.Bar[][]", Mapped: true}},
		{"zz", NameResult{Name: "zz"}},
	}

	for _, test := range tests {
		res := callTool(t, session, "deobfuscate_class", map[string]any{"name": test.Name})
		if diff := cmp.Diff(test.Want, decodeResult[NameResult](t, res)); diff != "" {
			t.Errorf("deobfuscate_class(%s): (-want, +got)\n%s", test.Name, diff)
		}
	}
}

func TestDeobfuscateField(t *testing.T) {
	session, _ := connect(t)

	res := callTool(t, session, "deobfuscate_field", map[string]any{
		"mapping": "app",
		"class":   "com.example.Foo",
		"field":   "a",
	})
	want := NameResult{Name: "count", Mapped: true}
	if diff := cmp.Diff(want, decodeResult[NameResult](t, res)); diff != "" {
		t.Errorf("deobfuscate_field: (-want, +got)\n%s", diff)
	}
}

func TestDeobfuscateFrame(t *testing.T) {
	session, _ := connect(t)

	res := callTool(t, session, "deobfuscate_frame", map[string]any{
		"class":     "com.example.Foo",
		"method":    "d",
		"signature": "(I)V",
		"file":      "SourceFile",
		"line":      6,
	})
	want := proguard.Frame{Method: "bar", Signature: "(I)V", Filename: "Foo.java", Line: 21}
	if diff := cmp.Diff(want, decodeResult[proguard.Frame](t, res)); diff != "" {
		t.Errorf("deobfuscate_frame: (-want, +got)\n%s", diff)
	}
}

func TestRetraceStack(t *testing.T) {
	session, _ := connect(t)

	stack := "java.lang.IllegalStateException: boom\n" +
		"\tat a.d(SourceFile:6)\n" +
		"\tat b.a(SourceFile)\n"
	res := callTool(t, session, "retrace_stack", map[string]any{"stack": stack})
	if res.IsError {
		t.Fatalf("retrace_stack failed: %s", resultText(t, res))
	}

	want := "java.lang.IllegalStateException: boom\n" +
		"\tat com.example.Foo.bar(Foo.java:21)\n" +
		"\tat com.example.Bar.run(Bar.java)\n"
	if diff := cmp.Diff(want, resultText(t, res)); diff != "" {
		t.Errorf("retrace_stack: (-want, +got)\n%s", diff)
	}
}

func TestListAndReloadMappings(t *testing.T) {
	session, dir := connect(t)

	list := decodeResult[ListMappingsResult](t, callTool(t, session, "list_mappings", map[string]any{}))
	if len(list.Mappings) != 1 || list.Mappings[0].Name != "app" || list.Mappings[0].Loaded {
		t.Fatalf("list_mappings before use = %+v", list)
	}

	extra := "com.example.Baz -> c:\n"
	if err := os.WriteFile(filepath.Join(dir, "mapping.txt"), []byte(testMapping+extra), 0644); err != nil {
		t.Fatal(err)
	}

	reload := decodeResult[ReloadMappingResult](t, callTool(t, session, "reload_mapping", map[string]any{}))
	if diff := cmp.Diff(ReloadMappingResult{Mapping: "app", Classes: 3}, reload); diff != "" {
		t.Errorf("reload_mapping: (-want, +got)\n%s", diff)
	}

	list = decodeResult[ListMappingsResult](t, callTool(t, session, "list_mappings", map[string]any{}))
	if !list.Mappings[0].Loaded || list.Mappings[0].Classes != 3 {
		t.Errorf("list_mappings after reload = %+v", list)
	}
}

func TestUnknownMapping(t *testing.T) {
	session, _ := connect(t)

	res := callTool(t, session, "deobfuscate_class", map[string]any{"mapping": "other", "name": "a"})
	if !res.IsError {
		t.Fatalf("deobfuscate_class with unknown mapping succeeded")
	}
	if text := resultText(t, res); !strings.Contains(text, "unknown mapping") {
		t.Errorf("error text = %q", text)
	}
}
