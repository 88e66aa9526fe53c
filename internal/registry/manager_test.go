package registry

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/yousuf/unproguard-mcp/internal/config"
	"github.com/yousuf/unproguard-mcp/internal/proguard"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()

	app := writeFile(t, dir, "app.txt", `com.example.A -> a:
    int count -> a
com.example.B -> b:
`)
	lib := writeFile(t, dir, "lib.txt", `com.example.A -> c:
    int total -> a
com.example.lib.C -> a:
`)
	broken := writeFile(t, dir, "broken.txt", "not a mapping\n")

	cfg := &config.Config{
		Mappings: map[string]config.MappingConfig{
			"app":     {Files: []string{app, lib}, Description: "app and library"},
			"broken":  {Files: []string{app, broken}},
			"missing": {Files: []string{filepath.Join(dir, "nope.txt")}},
		},
		DefaultMapping:  "app",
		LoadConcurrency: 2,
	}
	return NewManager(cfg), dir
}

func TestManager_Get(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	mapping, err := m.Get(ctx, "app")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// The library file is read after the app file, so its classes win.
	if got := mapping.ClassName("a"); got != "com.example.lib.C" {
		t.Errorf("ClassName(a) = %q", got)
	}
	if got := mapping.ClassName("c"); got != "com.example.A" {
		t.Errorf("ClassName(c) = %q", got)
	}
	if got := mapping.FieldName("com.example.A", "a"); got != "total" {
		t.Errorf("FieldName(A, a) = %q", got)
	}

	again, err := m.Get(ctx, "")
	if err != nil {
		t.Fatalf("Get default: %v", err)
	}
	if again != mapping {
		t.Errorf("Get loaded the default mapping twice")
	}
}

func TestManager_ConcurrentGet(t *testing.T) {
	m, _ := newTestManager(t)

	results := make([]*proguard.Map, 8)
	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			mapping, err := m.Get(context.Background(), "app")
			results[i] = mapping
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Get: %v", err)
	}

	for i, mapping := range results {
		if mapping != results[0] {
			t.Errorf("Get #%d returned a different mapping than Get #0", i)
		}
	}
}

func TestManager_GetErrors(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Get(ctx, "other"); !errors.Is(err, ErrUnknownMapping) {
		t.Errorf("Get(other) = %v, want ErrUnknownMapping", err)
	}
	if _, err := m.Get(ctx, "broken"); !errors.Is(err, proguard.ErrMalformed) {
		t.Errorf("Get(broken) = %v, want ErrMalformed", err)
	}
	if _, err := m.Get(ctx, "missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Get(missing) = %v, want fs.ErrNotExist", err)
	}

	for _, info := range m.List() {
		if info.Name != "app" && info.Loaded {
			t.Errorf("failed mapping %q is marked loaded", info.Name)
		}
	}
}

func TestManager_Reload(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	first, err := m.Get(ctx, "app")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	writeFile(t, dir, "lib.txt", "com.example.lib.D -> d:\n")

	second, err := m.Reload(ctx, "app")
	if err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if second == first {
		t.Fatalf("Reload returned the old mapping")
	}
	if got := second.ClassName("d"); got != "com.example.lib.D" {
		t.Errorf("ClassName(d) after reload = %q", got)
	}

	current, err := m.Get(ctx, "app")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current != second {
		t.Errorf("Get after Reload did not return the reloaded mapping")
	}
}

func TestManager_List(t *testing.T) {
	m, _ := newTestManager(t)
	if _, err := m.Get(context.Background(), "app"); err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, info := range m.List() {
		got = append(got, info.Name)
		if info.Name == "app" {
			if !info.Loaded || !info.Default || info.Classes != 3 {
				t.Errorf("app info = %+v", info)
			}
		}
	}
	if diff := cmp.Diff([]string{"app", "broken", "missing"}, got); diff != "" {
		t.Errorf("List names: (-want, +got)\n%s", diff)
	}
}

func TestManager_CancelledContext(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Get(ctx, "app"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with cancelled context = %v, want context.Canceled", err)
	}
}
