package governance

import (
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/rahul/herodotus/pkg/config"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request contains the context of a tool call to be evaluated.
type Request struct {
	Unit      string
	Tool      string
	Arguments string
	Session   string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

func (r Result) Allowed() bool { return r.Effect == EffectAllow }

// PolicyEngine evaluates tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultDeniedPatterns block destructive shell commands.
var DefaultDeniedPatterns = []string{
	`rm\s+-(rf|fr|r)\b`,
	`\bmkfs(\.\w+)?\b`,
	`\bshutdown\b`,
	`\breboot\b`,
	`\bdd\s+if=`,
	`:\(\)\s*\{\s*:\|:&\s*\};:`,
}

// argRule denies calls whose arguments match re. An empty tool applies the
// rule to every tool.
type argRule struct {
	tool string
	re   *regexp.Regexp
}

// DefaultPolicyEngine denies named tools and arguments matching any
// registered rule. Everything else is allowed.
type DefaultPolicyEngine struct {
	deniedTools map[string]bool
	rules       []argRule
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{deniedTools: make(map[string]bool)}
}

// FromConfig builds an engine with the default deny patterns plus the
// configured tools, global patterns and per-tool patterns.
func FromConfig(cfg config.GovernanceConfig) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, p := range append(slices.Clone(DefaultDeniedPatterns), cfg.DeniedPatterns...) {
		if err := e.DenyArguments(p); err != nil {
			return nil, err
		}
	}
	tools := slices.Sorted(maps.Keys(cfg.ToolPatterns))
	for _, tool := range tools {
		for _, p := range cfg.ToolPatterns[tool] {
			if err := e.DenyArgumentsFor(tool, p); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range cfg.DeniedTools {
		e.DenyTool(t)
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenyTool(name string) {
	e.deniedTools[name] = true
}

// DenyArguments denies any tool call whose arguments match pattern.
func (e *DefaultPolicyEngine) DenyArguments(pattern string) error {
	return e.DenyArgumentsFor("", pattern)
}

// DenyArgumentsFor denies calls to tool whose arguments match pattern.
func (e *DefaultPolicyEngine) DenyArgumentsFor(tool, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("governance pattern %q: %w", pattern, err)
	}
	e.rules = append(e.rules, argRule{tool: tool, re: re})
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if e.deniedTools[req.Tool] {
		return deny("tool %q is restricted by policy", req.Tool), nil
	}
	for _, r := range e.rules {
		if r.tool != "" && r.tool != req.Tool {
			continue
		}
		if r.re.MatchString(req.Arguments) {
			return deny("arguments for %s match restricted pattern %s", req.Tool, r.re), nil
		}
	}
	return Result{Effect: EffectAllow, Reason: "allowed by default policy"}, nil
}

func deny(format string, args ...any) Result {
	return Result{Effect: EffectDeny, Reason: fmt.Sprintf(format, args...)}
}

// AllowAll permits every call.
type AllowAll struct{}

func (AllowAll) Evaluate(context.Context, Request) (Result, error) {
	return Result{Effect: EffectAllow, Reason: "no policy configured"}, nil
}
