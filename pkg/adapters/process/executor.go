// Package process executes approved plans as local processes.
//
// Only actions on the allow-list run. Plan fields reach the process as
// environment variables, never as command-line flags, so a request cannot
// inject arguments.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"github.com/afo-kingdom/chancellor/pkg/domain"
)

// EnvPrefix prefixes every variable derived from the plan.
const EnvPrefix = "CHANCELLOR_"

var envKey = regexp.MustCompile(`[^A-Z0-9_]`)

// Executor implements ports.Executor by running allow-listed commands.
type Executor struct {
	actions map[string]Action
	baseDir string
	logger  *slog.Logger
}

// Option configures the executor.
type Option func(*Executor)

// WithActions adds actions to the allow-list. Names are matched case-insensitively.
func WithActions(actions map[string]Action) Option {
	return func(e *Executor) {
		for name, a := range actions {
			e.Register(name, a)
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) Option {
	return func(e *Executor) {
		e.baseDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates an executor with an empty allow-list unless options add to it.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		actions: make(map[string]Action),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register adds a trusted command to the allow-list.
func (e *Executor) Register(name string, action Action) {
	e.actions[strings.ToLower(name)] = action
}

// Actions returns the registered action names, sorted.
func (e *Executor) Actions() []string {
	names := make([]string, 0, len(e.actions))
	for name := range e.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the command bound to plan["action"].
// An unregistered action or a failing process is reported in the result,
// not as an error; only a cancelled context returns an error.
func (e *Executor) Execute(ctx context.Context, plan map[string]any) (domain.ExecutionResult, error) {
	name, _ := plan["action"].(string)
	action, ok := e.actions[strings.ToLower(name)]
	if !ok {
		return domain.ExecutionResult{
			Success: false,
			Error:   fmt.Sprintf("action not registered: %q", name),
		}, nil
	}

	cmd := exec.CommandContext(ctx, action.Command, action.Args...)
	cmd.Dir = e.baseDir
	cmd.Env = append(cmd.Environ(), planEnv(plan, action.Environment)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.DebugContext(ctx, "executing action", "action", name, "command", action.Command)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return domain.ExecutionResult{}, ctx.Err()
		}
		return domain.ExecutionResult{
			Success: false,
			Output:  map[string]any{"stderr": strings.TrimSpace(stderr.String())},
			Error:   fmt.Sprintf("execution failed: %v", err),
		}, nil
	}

	return domain.ExecutionResult{Success: true, Output: parseOutput(stdout.String())}, nil
}

// planEnv flattens the plan into KEY=value pairs. Args land under ARG_<KEY>.
func planEnv(plan map[string]any, static map[string]string) []string {
	vars := maps.Clone(static)
	if vars == nil {
		vars = make(map[string]string)
	}
	for _, key := range []string{"action", "target", "source", "actor"} {
		if v, ok := plan[key]; ok {
			vars[EnvPrefix+envName(key)] = envValue(v)
		}
	}
	if args, ok := plan["args"].(map[string]any); ok {
		for k, v := range args {
			vars[EnvPrefix+"ARG_"+envName(k)] = envValue(v)
		}
	}

	env := make([]string, 0, len(vars))
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

func envName(key string) string {
	return envKey.ReplaceAllString(strings.ToUpper(key), "_")
}

func envValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if data, err := json.Marshal(v); err == nil {
			return string(data)
		}
		return fmt.Sprintf("%v", v)
	}
}

// parseOutput decodes a JSON object on stdout and falls back to raw text.
func parseOutput(stdout string) map[string]any {
	trimmed := strings.TrimSpace(stdout)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		var out map[string]any
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return map[string]any{"stdout": trimmed}
}
