package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" {
		return path, nil
	}
	if path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	// handle cases like ~/models/llm
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// IsExecutableFile reports whether path names a regular file that is not a directory.
// Permission bits are not checked on Windows.
func IsExecutableFile(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if os.PathSeparator == '\\' {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}

// NormalizePath turns a user-supplied path into a clean absolute path.
// A leading '~' is expanded; relative paths are joined onto baseDir when baseDir
// is set, otherwise resolved against the working directory.
func NormalizePath(baseDir, path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", errors.New("empty path")
	}
	p, err := ExpandHome(p)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) && strings.TrimSpace(baseDir) != "" {
		base, err := ExpandHome(strings.TrimSpace(baseDir))
		if err != nil {
			return "", err
		}
		p = filepath.Join(base, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("abs path: %w", err)
	}
	return filepath.Clean(abs), nil
}
