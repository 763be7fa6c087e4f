//go:build windows

package compute

import "os/exec"

// configureProcess is a no-op on Windows.
func configureProcess(_ *exec.Cmd) {}
