// Package binlocator finds installed model-server executables.
package binlocator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"buddyd/internal/common/fsutil"
)

// Locator resolves a (tool, binary) pair to an absolute executable path.
//
// Lookup order:
//  1. Overrides[tool], when set
//  2. <BinDir>/<tool>/<binary> and <BinDir>/<tool>/build/bin/<binary>
//  3. <BinDir>/<binary>
//  4. well-known install locations for the binary
//  5. $PATH
type Locator struct {
	BinDir    string
	Overrides map[string]string
	// wellKnown is replaced in tests.
	wellKnown func(binary string) []string
	lookPath  func(file string) (string, error)
}

// New returns a Locator rooted at binDir.
func New(binDir string, overrides map[string]string) *Locator {
	return &Locator{BinDir: binDir, Overrides: overrides, wellKnown: wellKnownPaths, lookPath: exec.LookPath}
}

type notFoundError struct {
	tool, binary string
	tried        []string
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s binary %q not found (tried %s and $PATH)", e.tool, e.binary, strings.Join(e.tried, ", "))
}

// IsNotFound reports whether err came from a failed lookup.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// FindBinaryPath returns the absolute path of binary for tool.
func (l *Locator) FindBinaryPath(tool, binary string) (string, error) {
	if p := strings.TrimSpace(l.Overrides[tool]); p != "" {
		p, err := fsutil.ExpandHome(p)
		if err != nil {
			return "", err
		}
		if !fsutil.IsExecutableFile(p) {
			return "", notFoundError{tool: tool, binary: binary, tried: []string{p}}
		}
		return filepath.Abs(p)
	}

	name := binary
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	var candidates []string
	if dir := strings.TrimSpace(l.BinDir); dir != "" {
		if d, err := fsutil.ExpandHome(dir); err == nil {
			candidates = append(candidates,
				filepath.Join(d, tool, name),
				filepath.Join(d, tool, "build", "bin", name),
				filepath.Join(d, name),
			)
		}
	}
	if l.wellKnown != nil {
		candidates = append(candidates, l.wellKnown(name)...)
	}
	for _, c := range candidates {
		if fsutil.IsExecutableFile(c) {
			return filepath.Abs(c)
		}
	}
	if l.lookPath != nil {
		if p, err := l.lookPath(name); err == nil {
			return filepath.Abs(p)
		}
	}
	return "", notFoundError{tool: tool, binary: binary, tried: candidates}
}

func wellKnownPaths(binary string) []string {
	home, _ := os.UserHomeDir()
	out := []string{}
	if home != "" {
		out = append(out,
			filepath.Join(home, "apps", "llama.cpp", "build", "bin", binary),
			filepath.Join(home, ".local", "bin", binary),
		)
	}
	if runtime.GOOS != "windows" {
		out = append(out, "/usr/local/bin/"+binary, "/opt/homebrew/bin/"+binary)
	}
	return out
}
