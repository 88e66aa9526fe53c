package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/yousuf/unproguard-mcp/internal/config"
	"github.com/yousuf/unproguard-mcp/internal/registry"
	"github.com/yousuf/unproguard-mcp/internal/server"
	"github.com/yousuf/unproguard-mcp/internal/stacktrace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse flags
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to config file")
	mappingFiles := flag.String("mapping", "", "Mapping file(s) to use instead of a config file, comma-separated")
	mappingName := flag.String("name", "", "Configured mapping to use (default: the config's default mapping)")
	className := flag.String("class", "", "Deobfuscate a single class name")
	fieldName := flag.String("field", "", "Deobfuscate a single field, given as ClearClass.obfuscatedField")
	listClasses := flag.Bool("classes", false, "List the clear names of all mapped classes")
	debug := flag.Bool("debug", false, "Append the mapping status to every retraced line")
	pretty := flag.Bool("pretty", false, "Indent JSON output")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	ctx := context.Background()

	cfg, err := loadConfig(*configPath, *mappingFiles)
	if err != nil {
		return err
	}

	mappings := registry.NewManager(cfg)
	mapping, err := mappings.Get(ctx, *mappingName)
	if err != nil {
		return fmt.Errorf("failed to load mapping: %w", err)
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d classes\n", mapping.Len())
	}

	switch {
	case *className != "":
		name := mapping.ClassName(*className)
		return writeJSON(os.Stdout, server.NameResult{Name: name, Mapped: name != *className}, *pretty)

	case *fieldName != "":
		class, field, err := splitField(*fieldName)
		if err != nil {
			return err
		}
		name := mapping.FieldName(class, field)
		return writeJSON(os.Stdout, server.NameResult{Name: name, Mapped: name != field}, *pretty)

	case *listClasses:
		for _, class := range mapping.Classes() {
			fmt.Println(class)
		}
		return nil
	}

	// Retrace a stack trace from a file or stdin
	stack, err := readInput(flag.Arg(0))
	if err != nil {
		return err
	}

	res := stacktrace.Retrace(mapping, stack, *debug)
	fmt.Print(res.Text)
	if !strings.HasSuffix(res.Text, "\n") {
		fmt.Println()
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "Frames: %d, mapped: %d, ambiguous: %d\n", res.Frames, res.Mapped, res.Ambiguous)
	}
	return nil
}

// splitField splits "com.example.Foo.a" into its class and field parts
func splitField(s string) (class, field string, err error) {
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return "", "", fmt.Errorf("invalid -field %q: expected ClearClass.obfuscatedField", s)
	}
	return s[:dot], s[dot+1:], nil
}

// loadConfig prefers mapping files given on the command line over a config file
func loadConfig(configPath, mappingFiles string) (*config.Config, error) {
	if mappingFiles != "" {
		files := strings.Split(mappingFiles, ",")
		for i := range files {
			files[i] = strings.TrimSpace(files[i])
		}
		return config.FromFiles("cli", files)
	}

	if configPath == "" {
		return nil, fmt.Errorf("no mapping given\n\nHint: Use -mapping mapping.txt or specify a config file with -config flag or CONFIG_PATH env var")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func readInput(path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read stack trace: %w", err)
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
