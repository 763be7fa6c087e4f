//go:build !windows

package compute

import (
	"os/exec"
	"syscall"
)

// configureProcess puts the child in its own process group so a signal sent
// to the mapper's group does not interrupt a running computation.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
