// Package process exposes allow-listed local commands as tools.
package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/quill/pkg/registry"
)

// ArgEnvPrefix prefixes the environment variables that carry tool arguments.
const ArgEnvPrefix = "QUILL_ARG_"

// waitDelay bounds how long a killed command may hold its output pipes open.
const waitDelay = 500 * time.Millisecond

// Runner executes configured commands. Only commands registered from a Config
// can run; the model picks a tool name and supplies arguments, never a command line.
type Runner struct {
	baseDir string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds every command to reg.
func (r *Runner) Register(reg *registry.Registry, cmds ...Config) error {
	for _, c := range cmds {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := reg.Register(c.Definition(), r.Handler(c)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the tool function running c.
//
// Arguments are passed as environment variables (QUILL_ARG_<KEY>), never as
// command flags, so the model cannot inject options or shell syntax.
// Standard output is the tool result; a non-zero exit is an error carrying stderr.
func (r *Runner) Handler(c Config) registry.ToolFunction {
	return func(ctx context.Context, args map[string]any) (string, error) {
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, c.Command, c.Args...)
		cmd.Dir = r.baseDir
		cmd.WaitDelay = waitDelay
		cmd.Env = append(cmd.Environ(), environment(c.Environment, args)...)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("%s: %w", c.Name, ctx.Err())
			}
			return "", fmt.Errorf("execution failed: %v. Stderr: %s", err, strings.TrimSpace(stderr.String()))
		}
		return strings.TrimSpace(stdout.String()), nil
	}
}

func environment(static map[string]string, args map[string]any) []string {
	env := make([]string, 0, len(static)+len(args))
	for k, v := range static {
		env = append(env, k+"="+v)
	}
	for k, v := range args {
		env = append(env, ArgEnvPrefix+strings.ToUpper(k)+"="+formatArg(v))
	}
	sort.Strings(env)
	return env
}

// formatArg renders primitives as text and anything structured as JSON.
func formatArg(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
