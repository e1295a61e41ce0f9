// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-tokenharness.
//
// go-tokenharness is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package token

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/jeremyhahn/go-tokenharness/pkg/logging"
)

// Command describes one external tool invocation. Env holds variables that
// exist only for this invocation; secrets (PINs, token config paths) are
// passed here rather than exported into the harness process, so their
// exposure is scoped to the single child that needs them.
type Command struct {
	Name string
	Args []string
	Env  map[string]string
	Dir  string
}

// Runner executes external token tooling. The production implementation
// shells out; tests substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) ([]byte, error)
}

// ExecRunner runs commands via os/exec, inheriting the process environment
// plus the per-command scoped variables.
type ExecRunner struct {
	Log *logging.Logger
}

// NewExecRunner creates a Runner that shells out to external tools.
func NewExecRunner(log *logging.Logger) *ExecRunner {
	return &ExecRunner{Log: log}
}

// Run executes the command and returns its combined output. A missing
// executable maps to ErrToolNotFound; a nonzero exit maps to ErrToolFailed
// with the tail of the output attached.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	if _, err := exec.LookPath(cmd.Name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, cmd.Name)
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), scopedEnv(cmd.Env)...)

	if r.Log != nil {
		r.Log.Debug("exec", "tool", cmd.Name, "args", cmd.Args)
	}

	out, err := c.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%w: %s %v: %v: %s",
			ErrToolFailed, cmd.Name, cmd.Args, err, tail(out, 512))
	}
	return out, nil
}

// LookTool reports whether the named tool is resolvable from PATH.
func LookTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return nil
}

func scopedEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
