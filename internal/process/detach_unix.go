//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so signals aimed at the
// launcher (Ctrl-C in the TUI) do not reach launched programs.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
