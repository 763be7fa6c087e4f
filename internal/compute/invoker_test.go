//go:build !windows

package compute

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fastSVM")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o700); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestRunSuccessWritesOutputAndPassesEnv(t *testing.T) {
	script := writeScript(t, `echo "args: $1 $2" ; printf '%s' "$GPU_LIB" > "$3"`)
	out := filepath.Join(t.TempDir(), "x.gz")
	var diag bytes.Buffer

	err := NewInvoker(&diag).Run(context.Background(), Invocation{
		Executable: script,
		Input:      "in.jpg",
		Model:      "packaged.gz",
		Output:     out,
		Env:        map[string]string{"GPU_LIB": "/usr/local/cuda/toolkit/lib64"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(got) != "/usr/local/cuda/toolkit/lib64" {
		t.Fatalf("env override not visible to child, got %q", got)
	}
	if !strings.Contains(diag.String(), "args: in.jpg packaged.gz") {
		t.Fatalf("child stdout not forwarded, got %q", diag.String())
	}
	if _, ok := os.LookupEnv("GPU_LIB"); ok {
		t.Fatalf("override leaked into the parent environment")
	}
}

func TestRunNonzeroExit(t *testing.T) {
	script := writeScript(t, "echo gpu unavailable >&2\nexit 2\n")
	var diag bytes.Buffer

	err := NewInvoker(&diag).Run(context.Background(), Invocation{
		Executable: script,
		Output:     filepath.Join(t.TempDir(), "x.gz"),
	})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 2 {
		t.Fatalf("expected ExitError code 2, got %v", err)
	}
	if !strings.Contains(diag.String(), "gpu unavailable") {
		t.Fatalf("child stderr not forwarded, got %q", diag.String())
	}
}

func TestRunMissingOutputViolatesPostcondition(t *testing.T) {
	script := writeScript(t, "exit 0\n")
	err := NewInvoker(&bytes.Buffer{}).Run(context.Background(), Invocation{
		Executable: script,
		Output:     filepath.Join(t.TempDir(), "never.gz"),
	})
	if !errors.Is(err, ErrMissingOutput) {
		t.Fatalf("expected ErrMissingOutput, got %v", err)
	}
}

func TestRunStartFailure(t *testing.T) {
	inv := NewInvoker(&bytes.Buffer{})
	err := inv.Run(context.Background(), Invocation{Executable: filepath.Join(t.TempDir(), "missing")})
	var exitErr *ExitError
	if err == nil || errors.As(err, &exitErr) {
		t.Fatalf("expected start error, got %v", err)
	}
	if err := inv.Run(context.Background(), Invocation{}); !errors.Is(err, ErrNoExecutable) {
		t.Fatalf("expected ErrNoExecutable, got %v", err)
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	script := writeScript(t, "touch \"$3\"\n")
	if err := NewInvoker(&bytes.Buffer{}).Run(ctx, Invocation{Executable: script}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "LD_LIBRARY_PATH=/old", "HOME=/root"}
	got := MergeEnv(base, map[string]string{"LD_LIBRARY_PATH": "/cuda", "B": "2", "A": "1"})
	want := []string{"PATH=/bin", "LD_LIBRARY_PATH=/cuda", "HOME=/root", "A=1", "B=2"}
	if strings.Join(got, ";") != strings.Join(want, ";") {
		t.Fatalf("MergeEnv=%v want %v", got, want)
	}
	if base[1] != "LD_LIBRARY_PATH=/old" {
		t.Fatalf("base slice was mutated")
	}
	if len(MergeEnv(base, nil)) != len(base) {
		t.Fatalf("nil overrides should keep base")
	}
}
