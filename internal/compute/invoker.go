// Package compute runs the external GPU classifier as a child process.
//
// The binary is invoked as
//
//	executable <input image> <model archive> <output path>
//
// and signals success with exit code 0, at which point the output file must
// exist. Everything it prints goes to the diagnostic stream.
package compute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	fileutil "svmmapper/internal/file"
)

var (
	ErrMissingOutput = errors.New("compute exited 0 but produced no output file")
	ErrNoExecutable  = errors.New("empty executable path")
)

// ExitError reports a nonzero exit status from the compute binary.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return fmt.Sprintf("compute exited with status %d", e.Code) }

// Invocation is one run of the binary. Env holds overrides applied on top of
// the inherited process environment; the ambient environment is never mutated.
type Invocation struct {
	Executable string
	Input      string
	Model      string
	Output     string
	Env        map[string]string
}

// Invoker launches invocations. Nil writers default to os.Stderr.
type Invoker struct {
	Stdout io.Writer
	Stderr io.Writer
}

func NewInvoker(diag io.Writer) *Invoker {
	return &Invoker{Stdout: diag, Stderr: diag}
}

// Run starts the binary and blocks until it exits. The context is only
// consulted before launch: once started, the child runs to completion.
func (inv *Invoker) Run(ctx context.Context, call Invocation) error {
	if call.Executable == "" {
		return ErrNoExecutable
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cmd := exec.Command(call.Executable, call.Input, call.Model, call.Output) //nolint:gosec // executable comes from deployment config
	cmd.Env = MergeEnv(os.Environ(), call.Env)
	cmd.Stdin = nil
	cmd.Stdout = writerOr(inv.Stdout)
	cmd.Stderr = writerOr(inv.Stderr)
	configureProcess(cmd)

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("start %s: %w", call.Executable, err)
	}
	if !fileutil.Exists(call.Output) {
		return fmt.Errorf("%w: %s", ErrMissingOutput, call.Output)
	}
	return nil
}

// MergeEnv returns a copy of base with overrides applied. Existing keys are
// replaced in place; new keys are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	applied := make(map[string]bool, len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if val, ok := overrides[key]; ok {
			if !applied[key] {
				merged = append(merged, key+"="+val)
				applied[key] = true
			}
			continue
		}
		merged = append(merged, kv)
	}
	keys := make([]string, 0, len(overrides))
	for key := range overrides {
		if !applied[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		merged = append(merged, key+"="+overrides[key])
	}
	return merged
}

func writerOr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}
