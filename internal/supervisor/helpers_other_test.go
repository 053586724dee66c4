//go:build !unix

package supervisor

import "errors"

func syscallAlive(int) error { return errors.New("not supported") }
