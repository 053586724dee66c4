//go:build unix

package supervisor

import "golang.org/x/sys/unix"

func syscallAlive(pid int) error { return unix.Kill(pid, 0) }
