package tools

import (
	"bytes"
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Packages a snippet may import. Filesystem, process and network packages
// are left out.
var allowedPackages = map[string]bool{
	"bytes":           true,
	"encoding/base64": true,
	"encoding/csv":    true,
	"encoding/hex":    true,
	"encoding/json":   true,
	"errors":          true,
	"fmt":             true,
	"math":            true,
	"math/big":        true,
	"math/rand":       true,
	"regexp":          true,
	"slices":          true,
	"sort":            true,
	"strconv":         true,
	"strings":         true,
	"text/template":   true,
	"time":            true,
	"unicode":         true,
	"unicode/utf8":    true,
}

// CodeTool evaluates Go snippets with the yaegi interpreter. A snippet is
// either a full program defining func Run(input string) (string, error), or
// bare statements whose printed output is returned.
type CodeTool struct {
	Timeout time.Duration
	symbols interp.Exports
}

func NewCodeTool() *CodeTool {
	symbols := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		// keys look like "encoding/json/json"
		if allowedPackages[path.Dir(key)] {
			symbols[key] = syms
		}
	}
	return &CodeTool{Timeout: 10 * time.Second, symbols: symbols}
}

func (c *CodeTool) Name() string {
	return "code"
}

func (c *CodeTool) Description() string {
	return "Run a Go snippet in a sandboxed interpreter and return what it prints. Define func Run(input string) (string, error) to receive 'input'. Only pure standard library packages (fmt, strings, math, encoding/json, ...) are available."
}

func (c *CodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{
				"type":        "string",
				"description": "Go source. Either statements, or a program with package main and func Run(input string) (string, error)",
			},
			"input": map[string]any{
				"type":        "string",
				"description": "Optional input passed to Run",
			},
		},
		"required": []string{"code"},
	}
}

func (c *CodeTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Code  string `json:"code"`
		Input string `json:"input"`
	}
	if err := decodeArgs(input, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Code) == "" {
		return "", fmt.Errorf("code is required")
	}

	src := args.Code
	program := strings.Contains(src, "package main")
	if program {
		if err := checkImports(src); err != nil {
			return "", err
		}
	}

	var stdout, stderr bytes.Buffer
	i := interp.New(interp.Options{Stdout: &stdout, Stderr: &stderr})
	if err := i.Use(c.symbols); err != nil {
		return "", fmt.Errorf("failed to load stdlib: %w", err)
	}
	if !program {
		// Bare statements get fmt preloaded.
		if _, err := i.Eval(`import "fmt"`); err != nil {
			return "", err
		}
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("snippet panicked: %v", r)}
			}
		}()

		v, err := i.EvalWithContext(ctx, src)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		if program {
			out, err := callRun(ctx, i, args.Input)
			done <- outcome{out: out, err: err}
			return
		}
		if v.IsValid() && v.CanInterface() && v.Interface() != nil && stdout.Len() == 0 {
			done <- outcome{out: fmt.Sprint(v.Interface())}
			return
		}
		done <- outcome{}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("evaluation failed: %w\n%s", res.err, stderr.String())
		}
		out := stdout.String() + res.out
		if strings.TrimSpace(out) == "" {
			out = "(no output)"
		}
		return truncate(out), nil
	case <-ctx.Done():
		return "", fmt.Errorf("code execution timed out: %w", ctx.Err())
	}
}

func callRun(ctx context.Context, i *interp.Interpreter, input string) (string, error) {
	v, err := i.EvalWithContext(ctx, "main.Run")
	if err != nil {
		// Programs without Run execute main during Eval.
		return "", nil
	}
	run, ok := v.Interface().(func(string) (string, error))
	if !ok {
		return "", fmt.Errorf("Run has signature %s, want func(string) (string, error)", v.Type())
	}
	return run(input)
}

// checkImports rejects programs importing packages outside the allow list.
func checkImports(src string) error {
	f, err := parser.ParseFile(token.NewFileSet(), "snippet.go", src, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse snippet: %w", err)
	}
	var forbidden []string
	for _, imp := range f.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		if !allowedPackages[p] {
			forbidden = append(forbidden, p)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s", strings.Join(forbidden, ", "))
	}
	return nil
}
