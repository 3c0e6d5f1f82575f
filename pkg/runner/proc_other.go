//go:build !unix

package runner

import "os/exec"

// On platforms without process groups the exec default applies: the
// context kills the direct child and WaitDelay closes its pipes.
func setProcessGroup(*exec.Cmd) {}

func killProcessGroup(*exec.Cmd) {}
