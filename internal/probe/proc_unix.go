//go:build unix

package probe

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so a terminal interrupt
// delivered to the probe's group does not reach a command in flight.
func detach(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
